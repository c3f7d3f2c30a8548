package powerplan

import (
	"path/filepath"
	"strings"

	"github.com/PrimeBuild-pc/threadpilot/pkg/process"
)

// Resolve picks the best enabled association for a process. Path rules
// compare the full executable path, name rules compare the base name; both
// case-insensitively. Among the matches the highest priority wins, ties
// broken by ascending executable name so the outcome is deterministic.
func Resolve(proc process.Process, assocs []Association) (Association, bool) {
	var best Association
	found := false
	for _, a := range assocs {
		if !a.Enabled || !matches(proc, a) {
			continue
		}
		if !found || better(a, best) {
			best = a
			found = true
		}
	}
	return best, found
}

func matches(proc process.Process, a Association) bool {
	if a.MatchByPath {
		return a.ExecutablePath != "" && strings.EqualFold(proc.Path, a.ExecutablePath)
	}
	name := proc.Name
	if name == "" && proc.Path != "" {
		name = filepath.Base(proc.Path)
	}
	return strings.EqualFold(filepath.Base(name), a.ExecutableName)
}

func better(a, b Association) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return strings.ToLower(a.ExecutableName) < strings.ToLower(b.ExecutableName)
}
