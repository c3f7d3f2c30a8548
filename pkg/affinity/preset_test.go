package affinity

import (
	"testing"

	"github.com/PrimeBuild-pc/threadpilot/pkg/topology"
)

func TestBuildPresets_FlatFourCore(t *testing.T) {
	presets := BuildPresets(flatTopology(4))

	all, ok := PresetByName(presets, PresetAllCores)
	if !ok || !all.Available || all.Mask != 0xF {
		t.Fatalf("all-cores preset = %+v", all)
	}
	physical, ok := PresetByName(presets, PresetPhysicalOnly)
	if !ok || !physical.Available || physical.Mask != 0xF {
		t.Fatalf("physical-only preset = %+v", physical)
	}

	available := 0
	for _, p := range presets {
		if p.Available {
			available++
		}
	}
	if available != 2 {
		t.Fatalf("expected exactly 2 available presets, got %d (%+v)", available, presets)
	}
}

func TestBuildPresets_NonHybridUnavailable(t *testing.T) {
	presets := BuildPresets(flatTopology(4))
	for _, name := range []string{PresetPerformance, PresetEfficiency} {
		p, ok := PresetByName(presets, name)
		if !ok {
			t.Fatalf("preset %q missing", name)
		}
		if p.Available {
			t.Fatalf("preset %q should be unavailable on a homogeneous topology", name)
		}
		if p.Mask != 0 {
			t.Fatalf("preset %q mask = %s, want 0", name, p.Mask)
		}
		if p.UnavailableReason != "not a hybrid architecture" {
			t.Fatalf("preset %q reason = %q", name, p.UnavailableReason)
		}
	}
}

func TestBuildPresets_Hybrid(t *testing.T) {
	presets := BuildPresets(hybridTopology())
	perf, _ := PresetByName(presets, PresetPerformance)
	eff, _ := PresetByName(presets, PresetEfficiency)
	if !perf.Available || perf.Mask != 0x0F {
		t.Fatalf("performance preset = %+v", perf)
	}
	if !eff.Available || eff.Mask != 0xF0 {
		t.Fatalf("efficiency preset = %+v", eff)
	}
}

func TestBuildPresets_CCD(t *testing.T) {
	presets := BuildPresets(ccdTopology())
	ccd0, ok := PresetByName(presets, "CCD 0")
	if !ok || !ccd0.Available || ccd0.Mask != 0x00FF {
		t.Fatalf("CCD 0 preset = %+v", ccd0)
	}
	ccd1, ok := PresetByName(presets, "CCD 1")
	if !ok || !ccd1.Available || ccd1.Mask != 0xFF00 {
		t.Fatalf("CCD 1 preset = %+v", ccd1)
	}
}

func TestBuildPresets_ZeroCoreTopology(t *testing.T) {
	presets := BuildPresets(topology.Topology{DetectionOK: false, DetectionError: "no processors"})
	for _, p := range presets {
		if p.Available {
			t.Fatalf("preset %q available on a zero-core topology", p.Name)
		}
	}
}
