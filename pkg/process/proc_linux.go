//go:build linux

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/PrimeBuild-pc/threadpilot/pkg/affinity"
)

// ProcLister enumerates processes from procfs: the base name from comm, the
// path from the exe symlink when readable.
type ProcLister struct {
	// Root overrides /proc for tests.
	Root string
}

func (l ProcLister) root() string {
	if l.Root != "" {
		return l.Root
	}
	return "/proc"
}

func (l ProcLister) List() ([]Process, error) {
	entries, err := os.ReadDir(l.root())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.root(), err)
	}
	var procs []Process
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(l.root(), entry.Name(), "comm"))
		if err != nil {
			continue // process exited mid-walk
		}
		proc := Process{
			PID:  pid,
			Name: strings.TrimSpace(string(comm)),
		}
		if exe, err := os.Readlink(filepath.Join(l.root(), entry.Name(), "exe")); err == nil {
			proc.Path = exe
		}
		procs = append(procs, proc)
	}
	return procs, nil
}

// UnixController applies affinity through sched_setaffinity and priority
// through setpriority.
type UnixController struct {
	Logger logr.Logger
}

func (c UnixController) SetAffinity(pid int, mask affinity.Mask) error {
	var set unix.CPUSet
	for _, id := range mask.CPUSet().List() {
		set.Set(id)
	}
	if err := unix.SchedSetaffinity(pid, &set); err != nil {
		return fmt.Errorf("failed to set affinity %s for pid %d: %w", mask, pid, err)
	}
	c.Logger.V(1).Info("Affinity applied", "pid", pid, "mask", mask.String())
	return nil
}

func (c UnixController) SetPriority(pid int, prio Priority) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, niceValue(prio)); err != nil {
		return fmt.Errorf("failed to set priority %s for pid %d: %w", prio, pid, err)
	}
	c.Logger.V(1).Info("Priority applied", "pid", pid, "priority", prio.String())
	return nil
}

// niceValue maps a priority class onto the nice range.
func niceValue(prio Priority) int {
	switch prio {
	case PriorityIdle:
		return 19
	case PriorityBelowNormal:
		return 10
	case PriorityAboveNormal:
		return -5
	case PriorityHigh:
		return -10
	default:
		return 0
	}
}
