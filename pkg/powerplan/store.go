package powerplan

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Store owns the association aggregate. Mutations are serialized by a mutex
// (single-writer discipline); Snapshot returns a deep copy so readers never
// block and never observe a half-applied mutation.
type Store struct {
	mu     sync.Mutex
	config Config
	path   string
	logger logr.Logger
}

// NewStore loads the aggregate from the given JSON file. A missing file
// yields an empty aggregate with the supplied defaults rather than an error.
func NewStore(path string, defaults Config, logger logr.Logger) (*Store, error) {
	s := &Store{
		config: defaults.clone(),
		path:   path,
		logger: logger.WithName("powerplan-store"),
	}
	if err := s.Reload(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.logger.Info("Association file not found, starting empty", "path", path)
	}
	return s, nil
}

// Snapshot returns a copy of the last committed aggregate.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.clone()
}

// Add inserts an association. Enabled additions that collide with an
// existing enabled (name, match-by-path) key are rejected with
// ErrDuplicateAssociation and the aggregate is left untouched.
func (s *Store) Add(a Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkDuplicate(a, ""); err != nil {
		return err
	}
	s.config.Associations = append(s.config.Associations, a)
	return s.save()
}

// Update replaces the association with the same ID.
func (s *Store) Update(a Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, existing := range s.config.Associations {
		if existing.ID == a.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAssociationNotFound, a.ID)
	}
	if err := s.checkDuplicate(a, a.ID); err != nil {
		return err
	}
	s.config.Associations[idx] = a
	return s.save()
}

// Remove deletes the association with the given ID.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.config.Associations {
		if existing.ID == id {
			s.config.Associations = append(s.config.Associations[:i], s.config.Associations[i+1:]...)
			return s.save()
		}
	}
	return fmt.Errorf("%w: %s", ErrAssociationNotFound, id)
}

// SetDefaults updates the default plan and monitoring parameters. Validation
// problems are returned as a list and nothing is committed while any exist.
func (s *Store) SetDefaults(planID, planName string, pollInterval, changeDelay time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := s.config.clone()
	candidate.DefaultPlanID = planID
	candidate.DefaultPlanName = planName
	candidate.PollInterval = pollInterval
	candidate.ChangeDelay = changeDelay
	if problems := candidate.Validate(); len(problems) > 0 {
		return problems, nil
	}
	s.config = candidate
	return nil, s.save()
}

// Reload re-reads the backing file, replacing the in-memory aggregate.
// Called at startup and on file-change notifications.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	loaded := Config{}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse association file %s: %w", s.path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if loaded.PollInterval <= 0 {
		loaded.PollInterval = s.config.PollInterval
	}
	if loaded.ChangeDelay <= 0 {
		loaded.ChangeDelay = s.config.ChangeDelay
	}
	s.config = loaded
	s.logger.Info("Associations loaded", "path", s.path, "count", len(loaded.Associations))
	return nil
}

// checkDuplicate enforces the enabled-key uniqueness invariant. ignoreID
// exempts the association being updated.
func (s *Store) checkDuplicate(a Association, ignoreID string) error {
	if !a.Enabled {
		return nil
	}
	for _, existing := range s.config.Associations {
		if existing.ID == ignoreID || !existing.Enabled {
			continue
		}
		if existing.key() == a.key() {
			return fmt.Errorf("%w: %q already associated by %s", ErrDuplicateAssociation, a.ExecutableName, existing.ID)
		}
	}
	return nil
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
