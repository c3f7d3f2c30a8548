//go:build linux

package process

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProcLister_List(t *testing.T) {
	root := t.TempDir()
	for _, entry := range []struct {
		dir  string
		comm string
	}{
		{"1", "init\n"},
		{"42", "game.exe\n"},
	} {
		dir := filepath.Join(root, entry.dir)
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(entry.comm), 0644); err != nil {
			t.Fatalf("write comm: %v", err)
		}
	}
	// Non-numeric entries are skipped.
	if err := os.Mkdir(filepath.Join(root, "sys"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	procs, err := ProcLister{Root: root}.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(procs) != 2 {
		t.Fatalf("expected 2 processes, got %d: %+v", len(procs), procs)
	}
	byPID := map[int]Process{}
	for _, p := range procs {
		byPID[p.PID] = p
	}
	if byPID[42].Name != "game.exe" {
		t.Fatalf("pid 42 = %+v", byPID[42])
	}
	if byPID[1].Name != "init" {
		t.Fatalf("pid 1 = %+v", byPID[1])
	}
}

func TestNiceValue_Monotonic(t *testing.T) {
	order := []Priority{PriorityIdle, PriorityBelowNormal, PriorityNormal, PriorityAboveNormal, PriorityHigh}
	for i := 1; i < len(order); i++ {
		if niceValue(order[i]) >= niceValue(order[i-1]) {
			t.Fatalf("nice value for %v (%d) not below %v (%d)",
				order[i], niceValue(order[i]), order[i-1], niceValue(order[i-1]))
		}
	}
}
