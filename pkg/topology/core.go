package topology

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
	"k8s.io/utils/cpuset"
)

// CoreType classifies a logical core by microarchitecture role.
type CoreType int

const (
	CoreTypeUnknown CoreType = iota
	CoreTypeStandard
	CoreTypePerformance
	CoreTypeEfficiency
	CoreTypeZen
	CoreTypeZenPlus
	CoreTypeZen2
	CoreTypeZen3
	CoreTypeZen4
)

func (c CoreType) String() string {
	switch c {
	case CoreTypeStandard:
		return "standard"
	case CoreTypePerformance:
		return "p-core"
	case CoreTypeEfficiency:
		return "e-core"
	case CoreTypeZen:
		return "zen"
	case CoreTypeZenPlus:
		return "zen+"
	case CoreTypeZen2:
		return "zen2"
	case CoreTypeZen3:
		return "zen3"
	case CoreTypeZen4:
		return "zen4"
	default:
		return "unknown"
	}
}

// IsHybrid reports whether the type belongs to a heterogeneous design.
func (c CoreType) IsHybrid() bool {
	return c == CoreTypePerformance || c == CoreTypeEfficiency
}

// MarshalJSON implements the json.Marshaler interface.
func (c CoreType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *CoreType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	val, ok := map[string]CoreType{
		"unknown":  CoreTypeUnknown,
		"standard": CoreTypeStandard,
		"p-core":   CoreTypePerformance,
		"e-core":   CoreTypeEfficiency,
		"zen":      CoreTypeZen,
		"zen+":     CoreTypeZenPlus,
		"zen2":     CoreTypeZen2,
		"zen3":     CoreTypeZen3,
		"zen4":     CoreTypeZen4,
	}[strings.ToLower(s)]
	if !ok {
		return fmt.Errorf("unknown core type: %q", s)
	}
	*c = val
	return nil
}

// CpuCore describes one logical processor. LogicalID is the bit position the
// core owns in any affinity mask.
type CpuCore struct {
	LogicalID  int      `json:"logicalID"`
	PhysicalID int      `json:"physicalID"`
	SocketID   int      `json:"socketID"`
	CCDID      *int     `json:"ccdID,omitempty"`
	ClusterID  *int     `json:"clusterID,omitempty"`
	Type       CoreType `json:"coreType"`

	HyperThreaded bool `json:"hyperThreaded"`
	Sibling       *int `json:"sibling,omitempty"`

	// Enabled is reserved for core-parking exclusion; always true today.
	Enabled bool `json:"enabled"`
}

// Topology is an immutable snapshot of the host CPU structure. Cores are
// ordered by LogicalID with no gaps; a detection pass always constructs a
// brand-new Topology, never mutates a published one.
type Topology struct {
	Cores          []CpuCore `json:"cores"`
	DetectionOK    bool      `json:"detectionOK"`
	DetectionError string    `json:"detectionError,omitempty"`
}

func (t Topology) LogicalCount() int { return len(t.Cores) }

func (t Topology) PhysicalCount() int {
	seen := make(map[int]struct{}, len(t.Cores))
	for _, c := range t.Cores {
		seen[c.PhysicalID] = struct{}{}
	}
	return len(seen)
}

func (t Topology) SocketCount() int {
	seen := make(map[int]struct{})
	for _, c := range t.Cores {
		seen[c.SocketID] = struct{}{}
	}
	return len(seen)
}

func (t Topology) HasHyperThreading() bool {
	for _, c := range t.Cores {
		if c.HyperThreaded {
			return true
		}
	}
	return false
}

func (t Topology) HasHybridArchitecture() bool {
	for _, c := range t.Cores {
		if c.Type.IsHybrid() {
			return true
		}
	}
	return false
}

func (t Topology) HasCCD() bool {
	for _, c := range t.Cores {
		if c.CCDID != nil {
			return true
		}
	}
	return false
}

func (t Topology) CCDCount() int { return len(t.CCDIDs()) }

// CCDIDs returns the distinct CCD identifiers in ascending order.
func (t Topology) CCDIDs() []int {
	seen := make(map[int]struct{})
	for _, c := range t.Cores {
		if c.CCDID != nil {
			seen[*c.CCDID] = struct{}{}
		}
	}
	ids := maps.Keys(seen)
	sort.Ints(ids)
	return ids
}

// PhysicalCores returns one representative core per distinct PhysicalID,
// always the member with the lowest LogicalID.
func (t Topology) PhysicalCores() []CpuCore {
	best := make(map[int]CpuCore)
	for _, c := range t.Cores {
		cur, ok := best[c.PhysicalID]
		if !ok || c.LogicalID < cur.LogicalID {
			best[c.PhysicalID] = c
		}
	}
	out := maps.Values(best)
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalID < out[j].LogicalID })
	return out
}

// CoresOfType returns the cores whose Type matches.
func (t Topology) CoresOfType(ct CoreType) []CpuCore {
	var out []CpuCore
	for _, c := range t.Cores {
		if c.Type == ct {
			out = append(out, c)
		}
	}
	return out
}

// CoresOnCCD returns the cores assigned to the given CCD.
func (t Topology) CoresOnCCD(ccdID int) []CpuCore {
	var out []CpuCore
	for _, c := range t.Cores {
		if c.CCDID != nil && *c.CCDID == ccdID {
			out = append(out, c)
		}
	}
	return out
}

// CPUSet returns the logical IDs as a cpuset.
func (t Topology) CPUSet() cpuset.CPUSet {
	ids := make([]int, len(t.Cores))
	for i, c := range t.Cores {
		ids[i] = c.LogicalID
	}
	return cpuset.New(ids...)
}
