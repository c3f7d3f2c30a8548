package topology

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// Detector turns raw Provider descriptors into a classified Topology.
// Detection never fails with an error past this boundary; missing or partial
// platform data degrades into a flat topology with DetectionOK=false.
type Detector struct {
	provider Provider
	logger   logr.Logger

	// fallbackCount supplies a bare processor count when the provider cannot
	// describe the host at all. Usually runtime.NumCPU.
	fallbackCount func() int

	mu          sync.Mutex
	subscribers []func(Topology)
	seq         atomic.Uint64
	published   atomic.Uint64
}

func NewDetector(provider Provider, fallbackCount func() int, logger logr.Logger) *Detector {
	return &Detector{
		provider:      provider,
		fallbackCount: fallbackCount,
		logger:        logger.WithName("topology"),
	}
}

// Subscribe registers a callback invoked with every topology published by
// DetectAsync. Callbacks receive immutable snapshots and may be invoked from
// the detection goroutine.
func (d *Detector) Subscribe(fn func(Topology)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

// Detect runs one synchronous detection pass. Identical provider output
// yields an identical Topology.
func (d *Detector) Detect() Topology {
	platform, descs, err := d.provider.Describe()
	if err != nil {
		d.logger.Error(err, "Topology enumeration failed, falling back to flat layout")
		return d.flatFallback(err.Error())
	}
	if len(descs) == 0 {
		return d.flatFallback("provider returned no processors")
	}
	return classify(platform, descs)
}

// DetectAsync runs Detect off the caller goroutine and notifies subscribers
// with the result. Overlapping requests are tolerated; a result that was
// overtaken by a newer request is dropped so that the last detection wins.
func (d *Detector) DetectAsync(ctx context.Context) {
	seq := d.seq.Add(1)
	go func() {
		topo := d.Detect()
		if ctx.Err() != nil {
			return
		}
		for {
			last := d.published.Load()
			if seq <= last {
				return // stale result
			}
			if d.published.CompareAndSwap(last, seq) {
				break
			}
		}
		d.mu.Lock()
		subs := make([]func(Topology), len(d.subscribers))
		copy(subs, d.subscribers)
		d.mu.Unlock()
		d.logger.Info("Topology detected",
			"logicalCores", topo.LogicalCount(),
			"physicalCores", topo.PhysicalCount(),
			"sockets", topo.SocketCount(),
			"hybrid", topo.HasHybridArchitecture(),
			"ccds", topo.CCDCount(),
			"ok", topo.DetectionOK)
		for _, fn := range subs {
			fn(topo)
		}
	}()
}

// flatFallback builds the degraded topology used when the provider cannot
// describe the host: one physical core per logical core, type Unknown.
func (d *Detector) flatFallback(reason string) Topology {
	count := 0
	if d.fallbackCount != nil {
		count = d.fallbackCount()
	}
	if count <= 0 {
		// Hard failure, zero cores. Callers must disable affinity operations.
		return Topology{DetectionOK: false, DetectionError: reason}
	}
	cores := make([]CpuCore, count)
	for i := range cores {
		cores[i] = CpuCore{
			LogicalID:  i,
			PhysicalID: i,
			SocketID:   0,
			Type:       CoreTypeUnknown,
			Enabled:    true,
		}
	}
	return Topology{Cores: cores, DetectionOK: false, DetectionError: reason}
}

// classify assembles the Topology from descriptors: physical grouping and
// sibling cross-referencing, CCD grouping from last-level-cache domains,
// hybrid or Zen core typing.
func classify(platform Platform, descs []Descriptor) Topology {
	sort.Slice(descs, func(i, j int) bool { return descs[i].CPUID < descs[j].CPUID })

	flat := true
	for _, dsc := range descs {
		if dsc.SocketID >= 0 && dsc.CoreID >= 0 {
			flat = false
			break
		}
	}
	if flat {
		cores := make([]CpuCore, len(descs))
		for i := range descs {
			cores[i] = CpuCore{
				LogicalID:  i,
				PhysicalID: i,
				SocketID:   0,
				Type:       CoreTypeUnknown,
				Enabled:    true,
			}
		}
		return Topology{Cores: cores, DetectionOK: false, DetectionError: "core and socket identifiers unavailable"}
	}

	cores := make([]CpuCore, len(descs))

	// Physical grouping: logical CPUs sharing a (socket, core) pair belong to
	// the same physical core. Physical IDs are renumbered in logical order so
	// reruns on the same input are bit-identical.
	type coreKey struct{ socket, core int }
	physicalOf := make(map[coreKey]int)
	members := make(map[int][]int)
	nextPhysical := 0

	for i, dsc := range descs {
		socket := dsc.SocketID
		if socket < 0 {
			socket = 0
		}
		coreID := dsc.CoreID
		if coreID < 0 {
			coreID = dsc.CPUID
		}
		key := coreKey{socket: socket, core: coreID}
		physical, ok := physicalOf[key]
		if !ok {
			physical = nextPhysical
			nextPhysical++
			physicalOf[key] = physical
		}
		members[physical] = append(members[physical], i)
		cores[i] = CpuCore{
			LogicalID:  i,
			PhysicalID: physical,
			SocketID:   socket,
			Type:       CoreTypeStandard,
			Enabled:    true,
		}
		if dsc.ClusterID >= 0 {
			cluster := dsc.ClusterID
			cores[i].ClusterID = &cluster
		}
	}

	// Sibling cross-reference, 2-way SMT only. Wider SMT groups are flagged
	// as hyper-threaded but left unpaired.
	for _, ids := range members {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			cores[id].HyperThreaded = true
		}
		if len(ids) == 2 {
			a, b := ids[0], ids[1]
			cores[a].Sibling = &cores[b].LogicalID
			cores[b].Sibling = &cores[a].LogicalID
		}
	}

	assignCCDs(cores, descs)
	assignCoreTypes(cores, descs, platform)

	return Topology{Cores: cores, DetectionOK: true}
}

// assignCCDs groups cores by last-level-cache domain. A single shared domain
// means the package is not meaningfully CCD-partitioned and CCDID stays nil.
func assignCCDs(cores []CpuCore, descs []Descriptor) {
	domains := make(map[int]struct{})
	for _, dsc := range descs {
		if dsc.L3CacheID >= 0 {
			domains[dsc.L3CacheID] = struct{}{}
		}
	}
	if len(domains) < 2 {
		return
	}
	// Renumber domains sequentially by ascending cache ID for stable display.
	ids := make([]int, 0, len(domains))
	for id := range domains {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ccdOf := make(map[int]int, len(ids))
	for i, id := range ids {
		ccdOf[id] = i
	}
	for i, dsc := range descs {
		if dsc.L3CacheID >= 0 {
			ccd := ccdOf[dsc.L3CacheID]
			cores[i].CCDID = &ccd
		}
	}
}

func assignCoreTypes(cores []CpuCore, descs []Descriptor, platform Platform) {
	hybrid := false
	for _, dsc := range descs {
		if dsc.Hint != HintNone {
			hybrid = true
			break
		}
	}
	if hybrid {
		for i, dsc := range descs {
			switch dsc.Hint {
			case HintPerformance:
				cores[i].Type = CoreTypePerformance
			case HintEfficiency:
				cores[i].Type = CoreTypeEfficiency
			default:
				cores[i].Type = CoreTypeStandard
			}
		}
		return
	}
	if platform.VendorID == "AuthenticAMD" {
		gen := zenGeneration(platform.Family, platform.Model)
		for i := range cores {
			cores[i].Type = gen
		}
	}
}

// zenGeneration maps AMD family/model to a Zen generation. Families outside
// the Zen range classify as plain standard cores.
func zenGeneration(family, model int) CoreType {
	switch family {
	case 0x17:
		switch {
		case model >= 0x30:
			return CoreTypeZen2
		case model >= 0x08:
			return CoreTypeZenPlus
		default:
			return CoreTypeZen
		}
	case 0x19:
		switch {
		case model >= 0x60:
			return CoreTypeZen4
		case model >= 0x10 && model < 0x20:
			return CoreTypeZen4
		default:
			return CoreTypeZen3
		}
	}
	return CoreTypeStandard
}
