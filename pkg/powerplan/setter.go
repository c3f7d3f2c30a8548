package powerplan

import (
	"fmt"
	"os/exec"

	"github.com/go-logr/logr"
)

// Setter is the outbound boundary to the OS "set active power scheme"
// primitive. The resolver only computes which plan should be active; a
// Setter applies it.
type Setter interface {
	SetActiveScheme(planID, planName string) error
}

// ExecSetter shells out to a platform tool (powerprofilesctl, tuned-adm and
// similar) with the plan ID as argument.
type ExecSetter struct {
	Command string
	Args    []string
	Logger  logr.Logger
}

func (e ExecSetter) SetActiveScheme(planID, planName string) error {
	args := append(append([]string{}, e.Args...), planID)
	if err := exec.Command(e.Command, args...).Run(); err != nil {
		return fmt.Errorf("failed to activate power scheme %s (%s): %w", planName, planID, err)
	}
	e.Logger.Info("Power scheme activated", "plan", planName, "id", planID)
	return nil
}

// NopSetter records the requested scheme without touching the OS. Used when
// no setter command is configured and in tests.
type NopSetter struct {
	Logger logr.Logger
}

func (n NopSetter) SetActiveScheme(planID, planName string) error {
	n.Logger.Info("Power scheme change skipped, no setter configured", "plan", planName, "id", planID)
	return nil
}
