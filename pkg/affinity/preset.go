package affinity

import (
	"fmt"

	"github.com/PrimeBuild-pc/threadpilot/pkg/topology"
)

// Preset is a named, precomputed affinity mask for a common selection
// intent. Presets are generated fresh from a topology and never persisted.
type Preset struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Mask              Mask   `json:"mask"`
	Available         bool   `json:"available"`
	UnavailableReason string `json:"unavailableReason,omitempty"`
}

const (
	PresetAllCores     = "All Cores"
	PresetPhysicalOnly = "Physical Only"
	PresetPerformance  = "Performance Cores"
	PresetEfficiency   = "Efficiency Cores"
)

// BuildPresets derives the preset list for a topology. All Cores and
// Physical Only are always present; the hybrid presets appear with
// Available=false on homogeneous parts, and one CCD preset is added per
// detected core-complex die.
func BuildPresets(t topology.Topology) []Preset {
	presets := []Preset{
		{
			Name:        PresetAllCores,
			Description: "Run on every logical core",
			Mask:        AllCores(t),
			Available:   t.LogicalCount() > 0,
		},
		{
			Name:        PresetPhysicalOnly,
			Description: "One logical core per physical core, no hyper-thread siblings",
			Mask:        PhysicalOnly(t),
			Available:   t.LogicalCount() > 0,
		},
	}
	if t.HasHybridArchitecture() {
		presets = append(presets,
			Preset{
				Name:        PresetPerformance,
				Description: "Performance cores only",
				Mask:        PerformanceCores(t),
				Available:   true,
			},
			Preset{
				Name:        PresetEfficiency,
				Description: "Efficiency cores only",
				Mask:        EfficiencyCores(t),
				Available:   true,
			},
		)
	} else {
		presets = append(presets,
			Preset{
				Name:              PresetPerformance,
				Available:         false,
				UnavailableReason: "not a hybrid architecture",
			},
			Preset{
				Name:              PresetEfficiency,
				Available:         false,
				UnavailableReason: "not a hybrid architecture",
			},
		)
	}
	for _, ccd := range t.CCDIDs() {
		presets = append(presets, Preset{
			Name:        fmt.Sprintf("CCD %d", ccd),
			Description: fmt.Sprintf("Cores on core-complex die %d", ccd),
			Mask:        CCD(t, ccd),
			Available:   true,
		})
	}
	return presets
}

// PresetByName returns the named preset from a built list.
func PresetByName(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
