package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/PrimeBuild-pc/threadpilot/pkg/affinity"
	"github.com/PrimeBuild-pc/threadpilot/pkg/powerplan"
	"github.com/PrimeBuild-pc/threadpilot/pkg/process"
	"github.com/PrimeBuild-pc/threadpilot/pkg/topology"
)

// Options tunes what the monitor applies beside the resolved power plan.
type Options struct {
	// BoostPreset names the affinity preset applied to matched processes.
	// Empty leaves affinity untouched.
	BoostPreset string
	// BoostPriority is the priority class applied to matched processes.
	BoostPriority process.Priority
}

// Monitor polls running processes, resolves them against the association
// store and applies power plan, affinity and priority to the matches. The
// default plan is restored once the last matched process exits.
type Monitor struct {
	store      *powerplan.Store
	lister     process.Lister
	controller process.Controller
	setter     powerplan.Setter
	opts       Options
	logger     logr.Logger

	mu      sync.Mutex
	topo    topology.Topology
	pending map[int]time.Time // pid -> first seen
	applied map[int]string    // pid -> association ID
	boosted bool
	nowFunc func() time.Time
}

func New(store *powerplan.Store, lister process.Lister, controller process.Controller, setter powerplan.Setter, opts Options, logger logr.Logger) *Monitor {
	return &Monitor{
		store:      store,
		lister:     lister,
		controller: controller,
		setter:     setter,
		opts:       opts,
		logger:     logger.WithName("monitor"),
		pending:    make(map[int]time.Time),
		applied:    make(map[int]string),
		nowFunc:    time.Now,
	}
}

// SetTopology installs the topology snapshot used for boost masks. Wired to
// the detector's TopologyDetected notification.
func (m *Monitor) SetTopology(t topology.Topology) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topo = t
}

// Run polls until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.store.Snapshot().PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.logger.Info("Monitor started", "pollInterval", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor shutting down")
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one scan-resolve-apply pass.
func (m *Monitor) Tick() {
	procs, err := m.lister.List()
	if err != nil {
		m.logger.Error(err, "Failed to list processes")
		return
	}
	config := m.store.Snapshot()
	now := m.nowFunc()

	m.mu.Lock()
	defer m.mu.Unlock()

	alive := make(map[int]bool, len(procs))
	for _, proc := range procs {
		assoc, ok := powerplan.Resolve(proc, config.Associations)
		if !ok {
			continue
		}
		alive[proc.PID] = true
		if _, done := m.applied[proc.PID]; done {
			continue
		}
		firstSeen, seen := m.pending[proc.PID]
		if !seen {
			m.pending[proc.PID] = now
			continue
		}
		if now.Sub(firstSeen) < config.ChangeDelay {
			continue
		}
		m.apply(proc, assoc)
		delete(m.pending, proc.PID)
		m.applied[proc.PID] = assoc.ID
	}

	for pid := range m.pending {
		if !alive[pid] {
			delete(m.pending, pid)
		}
	}
	for pid := range m.applied {
		if !alive[pid] {
			delete(m.applied, pid)
		}
	}
	if m.boosted && len(m.applied) == 0 {
		m.restoreDefault(config)
	}
}

func (m *Monitor) apply(proc process.Process, assoc powerplan.Association) {
	m.logger.Info("Process matched", "pid", proc.PID, "name", proc.Name, "association", assoc.ID, "plan", assoc.PlanName)
	if err := m.setter.SetActiveScheme(assoc.PlanID, assoc.PlanName); err != nil {
		m.logger.Error(err, "Failed to switch power plan", "plan", assoc.PlanName)
	} else {
		m.boosted = true
	}
	if mask, ok := m.boostMask(); ok {
		if err := m.controller.SetAffinity(proc.PID, mask); err != nil {
			m.logger.Error(err, "Failed to set affinity", "pid", proc.PID)
		}
	}
	if err := m.controller.SetPriority(proc.PID, m.opts.BoostPriority); err != nil {
		m.logger.Error(err, "Failed to set priority", "pid", proc.PID)
	}
}

// boostMask resolves the configured preset against the current topology and
// validates it before it can reach the OS.
func (m *Monitor) boostMask() (affinity.Mask, bool) {
	if m.opts.BoostPreset == "" || m.topo.LogicalCount() == 0 {
		return 0, false
	}
	preset, ok := affinity.PresetByName(affinity.BuildPresets(m.topo), m.opts.BoostPreset)
	if !ok || !preset.Available {
		return 0, false
	}
	if err := affinity.Validate(m.topo, preset.Mask); err != nil {
		m.logger.Error(err, "Boost preset produced an invalid mask", "preset", preset.Name)
		return 0, false
	}
	return preset.Mask, true
}

func (m *Monitor) restoreDefault(config powerplan.Config) {
	if config.DefaultPlanID == "" {
		m.boosted = false
		return
	}
	m.logger.Info("Last matched process exited, restoring default plan", "plan", config.DefaultPlanName)
	if err := m.setter.SetActiveScheme(config.DefaultPlanID, config.DefaultPlanName); err != nil {
		m.logger.Error(err, "Failed to restore default power plan")
		return
	}
	m.boosted = false
}
