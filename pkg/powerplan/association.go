package powerplan

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateAssociation flags an add or update that would leave two
// enabled associations with the same (executable name, match-by-path) key.
var ErrDuplicateAssociation = errors.New("duplicate association")

// ErrAssociationNotFound flags an update or remove of an unknown ID.
var ErrAssociationNotFound = errors.New("association not found")

// Association binds an executable to a power plan. ExecutableName matching
// is case-insensitive on the process base name; when MatchByPath is set the
// full executable path is compared instead.
type Association struct {
	ID             string `json:"id"`
	ExecutableName string `json:"executableName"`
	ExecutablePath string `json:"executablePath,omitempty"`
	PlanID         string `json:"powerPlanID"`
	PlanName       string `json:"powerPlanName"`
	MatchByPath    bool   `json:"matchByPath"`
	Priority       int    `json:"priority"`
	Enabled        bool   `json:"enabled"`
	Description    string `json:"description,omitempty"`
}

// key is the uniqueness key among enabled associations.
func (a Association) key() string {
	return fmt.Sprintf("%s|%t", strings.ToLower(a.ExecutableName), a.MatchByPath)
}

// Config is the association aggregate handed to the resolver and persisted
// by the store: the ordered rule list, the default plan to fall back to, and
// the monitoring parameters.
type Config struct {
	Associations []Association `json:"associations"`

	DefaultPlanID   string `json:"defaultPowerPlanID"`
	DefaultPlanName string `json:"defaultPowerPlanName"`

	// PollInterval is how often running processes are re-scanned.
	PollInterval time.Duration `json:"pollInterval"`
	// ChangeDelay debounces plan switches when a matched process appears.
	ChangeDelay time.Duration `json:"changeDelay"`
}

// Validate collects every configuration problem instead of failing on the
// first, so a settings surface can display all of them at once.
func (c Config) Validate() []string {
	var problems []string
	if c.PollInterval <= 0 {
		problems = append(problems, fmt.Sprintf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.ChangeDelay <= 0 {
		problems = append(problems, fmt.Sprintf("change delay must be positive, got %s", c.ChangeDelay))
	}
	seen := make(map[string]string)
	for _, a := range c.Associations {
		if !a.Enabled {
			continue
		}
		if a.ExecutableName == "" {
			problems = append(problems, fmt.Sprintf("association %s has no executable name", a.ID))
			continue
		}
		if other, ok := seen[a.key()]; ok {
			problems = append(problems, fmt.Sprintf("associations %s and %s share the key %q", other, a.ID, a.key()))
			continue
		}
		seen[a.key()] = a.ID
	}
	return problems
}

// clone deep-copies the aggregate so snapshots never alias store state.
func (c Config) clone() Config {
	out := c
	out.Associations = make([]Association, len(c.Associations))
	copy(out.Associations, c.Associations)
	return out
}
