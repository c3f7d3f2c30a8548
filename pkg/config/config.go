package config

import (
	"fmt"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/util/yaml"
)

// Config is the daemon configuration read from a YAML file.
type Config struct {
	// AssociationFile is the JSON file holding the power-plan associations.
	AssociationFile string `yaml:"associationFile"`

	// PollIntervalMs and ChangeDelayMs are defaults applied when the
	// association file does not carry its own values.
	PollIntervalMs int `yaml:"pollIntervalMs"`
	ChangeDelayMs  int `yaml:"changeDelayMs"`

	// BoostPreset names the affinity preset applied to matched processes
	// (e.g. "Physical Only"). Empty disables affinity boosting.
	BoostPreset string `yaml:"boostPreset"`
	// BoostPriority is the priority class for matched processes.
	BoostPriority string `yaml:"boostPriority"`

	// PowerPlanCommand is the tool invoked to activate a power scheme. Empty
	// logs the intended change without applying it.
	PowerPlanCommand string   `yaml:"powerPlanCommand"`
	PowerPlanArgs    []string `yaml:"powerPlanArgs"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		AssociationFile: "associations.json",
		PollIntervalMs:  2000,
		ChangeDelayMs:   1000,
		BoostPriority:   "above-normal",
	}
}

// NewConfig reads and parses the config file, falling back to Defaults when
// the path is empty.
func NewConfig(path string) (*Config, error) {
	conf := Defaults()
	if path == "" {
		return &conf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &conf, nil
}

// Validate collects every configuration problem at once.
func (c Config) Validate() []string {
	var problems []string
	if c.AssociationFile == "" {
		problems = append(problems, "association file path must not be empty")
	}
	if c.PollIntervalMs <= 0 {
		problems = append(problems, fmt.Sprintf("poll interval must be positive, got %d", c.PollIntervalMs))
	}
	if c.ChangeDelayMs <= 0 {
		problems = append(problems, fmt.Sprintf("change delay must be positive, got %d", c.ChangeDelayMs))
	}
	return problems
}

// PollInterval returns the poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ChangeDelay returns the change delay as a duration.
func (c Config) ChangeDelay() time.Duration {
	return time.Duration(c.ChangeDelayMs) * time.Millisecond
}
