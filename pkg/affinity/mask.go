package affinity

import (
	"errors"
	"fmt"
	"math/bits"

	"k8s.io/utils/cpuset"

	"github.com/PrimeBuild-pc/threadpilot/pkg/topology"
)

// ErrInvalidMask flags a mask that is zero or selects cores outside the
// topology. Such a mask must never reach the OS affinity primitive.
var ErrInvalidMask = errors.New("invalid affinity mask")

// Mask is a 64-bit affinity bitmask: bit i set permits logical core i.
// Cores with a logical ID of 64 or above cannot be represented and are
// excluded from every mask. Known limitation.
type Mask uint64

// maxCores is the widest selection a Mask can express.
const maxCores = 64

func (m Mask) String() string { return fmt.Sprintf("0x%X", uint64(m)) }

// Count returns the number of selected cores.
func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }

// Has reports whether the given logical core is selected.
func (m Mask) Has(logicalID int) bool {
	if logicalID < 0 || logicalID >= maxCores {
		return false
	}
	return m&(1<<uint(logicalID)) != 0
}

// CPUSet converts the mask to a cpuset of logical IDs.
func (m Mask) CPUSet() cpuset.CPUSet {
	var ids []int
	for i := 0; i < maxCores; i++ {
		if m.Has(i) {
			ids = append(ids, i)
		}
	}
	return cpuset.New(ids...)
}

// FromCPUSet builds a mask from a cpuset, dropping IDs beyond 63.
func FromCPUSet(set cpuset.CPUSet) Mask {
	var m Mask
	for _, id := range set.List() {
		if id >= 0 && id < maxCores {
			m |= 1 << uint(id)
		}
	}
	return m
}

// MaskFor returns the OR of the given cores' bits. Empty input yields 0.
func MaskFor(cores []topology.CpuCore) Mask {
	var m Mask
	for _, c := range cores {
		if c.LogicalID >= 0 && c.LogicalID < maxCores {
			m |= 1 << uint(c.LogicalID)
		}
	}
	return m
}

// AllCores selects every logical core of the topology.
func AllCores(t topology.Topology) Mask {
	return MaskFor(t.Cores)
}

// PhysicalOnly selects one logical core per physical core, always the member
// with the lowest logical ID. The result has exactly PhysicalCount bits set
// for topologies that fit in 64 bits.
func PhysicalOnly(t topology.Topology) Mask {
	return MaskFor(t.PhysicalCores())
}

// PerformanceCores selects the P-cores. Zero on non-hybrid topologies.
func PerformanceCores(t topology.Topology) Mask {
	return MaskFor(t.CoresOfType(topology.CoreTypePerformance))
}

// EfficiencyCores selects the E-cores. Zero on non-hybrid topologies.
func EfficiencyCores(t topology.Topology) Mask {
	return MaskFor(t.CoresOfType(topology.CoreTypeEfficiency))
}

// CCD selects the cores of one AMD core-complex die. Zero when the CCD is
// not present in the topology.
func CCD(t topology.Topology, ccdID int) Mask {
	return MaskFor(t.CoresOnCCD(ccdID))
}

// Validate rejects a zero mask and any mask with bits outside the topology's
// logical core set.
func Validate(t topology.Topology, m Mask) error {
	if m == 0 {
		return fmt.Errorf("%w: empty selection", ErrInvalidMask)
	}
	valid := AllCores(t)
	if extra := m &^ valid; extra != 0 {
		return fmt.Errorf("%w: bits %s outside the %d-core topology", ErrInvalidMask, extra, t.LogicalCount())
	}
	return nil
}

// WithoutSiblings drops hyper-thread siblings from a selection: for every
// physical core with more than one selected logical core, only the lowest
// logical ID survives.
func WithoutSiblings(t topology.Topology, m Mask) Mask {
	lowest := make(map[int]int)
	for _, c := range t.Cores {
		if !m.Has(c.LogicalID) {
			continue
		}
		cur, ok := lowest[c.PhysicalID]
		if !ok || c.LogicalID < cur {
			lowest[c.PhysicalID] = c.LogicalID
		}
	}
	var out Mask
	for _, id := range lowest {
		out |= 1 << uint(id)
	}
	return out
}
