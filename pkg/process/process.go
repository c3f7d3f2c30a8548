package process

import (
	"errors"
	"fmt"

	"github.com/PrimeBuild-pc/threadpilot/pkg/affinity"
)

// ErrUnsupported is returned by process control on platforms without an
// implementation.
var ErrUnsupported = errors.New("process control not supported on this platform")

// Process describes a running process as seen by the resolver: a base
// executable name and, when obtainable, the full executable path.
type Process struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Priority is the scheduling priority class applied alongside affinity.
type Priority int

const (
	PriorityIdle Priority = iota
	PriorityBelowNormal
	PriorityNormal
	PriorityAboveNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityIdle:
		return "idle"
	case PriorityBelowNormal:
		return "below-normal"
	case PriorityNormal:
		return "normal"
	case PriorityAboveNormal:
		return "above-normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePriority parses a priority class name.
func ParsePriority(s string) (Priority, error) {
	val, ok := map[string]Priority{
		"idle":         PriorityIdle,
		"below-normal": PriorityBelowNormal,
		"normal":       PriorityNormal,
		"above-normal": PriorityAboveNormal,
		"high":         PriorityHigh,
	}[s]
	if !ok {
		return PriorityNormal, fmt.Errorf("unknown priority class: %s", s)
	}
	return val, nil
}

// Lister enumerates running processes.
type Lister interface {
	List() ([]Process, error)
}

// Controller applies affinity and priority to a process. Callers validate
// masks against the current topology before calling SetAffinity.
type Controller interface {
	SetAffinity(pid int, mask affinity.Mask) error
	SetPriority(pid int, prio Priority) error
}
