package topology

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

// hybridDescriptors models a 4 P-core (2-way SMT) + 4 E-core package:
// logical CPUs 0-7 are the P-core threads, 8-11 the E-cores.
func hybridDescriptors() []Descriptor {
	var descs []Descriptor
	for core := 0; core < 4; core++ {
		for thread := 0; thread < 2; thread++ {
			descs = append(descs, Descriptor{
				CPUID:     core*2 + thread,
				SocketID:  0,
				CoreID:    core,
				L3CacheID: 0,
				ClusterID: -1,
				Hint:      HintPerformance,
			})
		}
	}
	for core := 4; core < 8; core++ {
		descs = append(descs, Descriptor{
			CPUID:     core + 4,
			SocketID:  0,
			CoreID:    core,
			L3CacheID: 0,
			ClusterID: -1,
			Hint:      HintEfficiency,
		})
	}
	return descs
}

// dualCCDDescriptors models a 16-core AMD part with two 8-core CCDs and no SMT.
func dualCCDDescriptors() []Descriptor {
	var descs []Descriptor
	for cpu := 0; cpu < 16; cpu++ {
		l3 := 0
		if cpu >= 8 {
			l3 = 1
		}
		descs = append(descs, Descriptor{
			CPUID:     cpu,
			SocketID:  0,
			CoreID:    cpu,
			L3CacheID: l3,
			ClusterID: -1,
		})
	}
	return descs
}

func newTestDetector(p Provider, fallback func() int) *Detector {
	return NewDetector(p, fallback, logr.Discard())
}

func TestDetect_Idempotent(t *testing.T) {
	providers := map[string]Provider{
		"hybrid": StaticProvider{Descriptors: hybridDescriptors()},
		"ccd": StaticProvider{
			Platform:    Platform{VendorID: "AuthenticAMD", Family: 0x19, Model: 0x21},
			Descriptors: dualCCDDescriptors(),
		},
	}
	for name, p := range providers {
		t.Run(name, func(t *testing.T) {
			d := newTestDetector(p, nil)
			first := d.Detect()
			second := d.Detect()
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("detection not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
			}
		})
	}
}

func TestDetect_HyperThreadSiblings(t *testing.T) {
	d := newTestDetector(StaticProvider{Descriptors: hybridDescriptors()}, nil)
	topo := d.Detect()

	if !topo.DetectionOK {
		t.Fatalf("expected successful detection, got error %q", topo.DetectionError)
	}
	if !topo.HasHyperThreading() {
		t.Fatalf("expected hyper-threading")
	}
	if got := topo.LogicalCount(); got != 12 {
		t.Fatalf("expected 12 logical cores, got %d", got)
	}
	if got := topo.PhysicalCount(); got != 8 {
		t.Fatalf("expected 8 physical cores, got %d", got)
	}

	// P-core threads pair up.
	for _, pair := range [][2]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}} {
		a, b := topo.Cores[pair[0]], topo.Cores[pair[1]]
		if !a.HyperThreaded || !b.HyperThreaded {
			t.Fatalf("cores %v should be hyper-threaded", pair)
		}
		if a.Sibling == nil || *a.Sibling != b.LogicalID {
			t.Fatalf("core %d sibling = %v, want %d", a.LogicalID, a.Sibling, b.LogicalID)
		}
		if b.Sibling == nil || *b.Sibling != a.LogicalID {
			t.Fatalf("core %d sibling = %v, want %d", b.LogicalID, b.Sibling, a.LogicalID)
		}
		if a.PhysicalID != b.PhysicalID {
			t.Fatalf("pair %v not on the same physical core", pair)
		}
	}
	// E-cores stand alone.
	for id := 8; id < 12; id++ {
		c := topo.Cores[id]
		if c.HyperThreaded || c.Sibling != nil {
			t.Fatalf("e-core %d should not be hyper-threaded", id)
		}
	}
}

func TestDetect_HybridClassification(t *testing.T) {
	d := newTestDetector(StaticProvider{Descriptors: hybridDescriptors()}, nil)
	topo := d.Detect()

	if !topo.HasHybridArchitecture() {
		t.Fatalf("expected hybrid architecture")
	}
	for id := 0; id < 8; id++ {
		if got := topo.Cores[id].Type; got != CoreTypePerformance {
			t.Fatalf("core %d type = %v, want p-core", id, got)
		}
	}
	for id := 8; id < 12; id++ {
		if got := topo.Cores[id].Type; got != CoreTypeEfficiency {
			t.Fatalf("core %d type = %v, want e-core", id, got)
		}
	}
}

func TestDetect_CCDGrouping(t *testing.T) {
	d := newTestDetector(StaticProvider{
		Platform:    Platform{VendorID: "AuthenticAMD", Family: 0x19, Model: 0x21},
		Descriptors: dualCCDDescriptors(),
	}, nil)
	topo := d.Detect()

	if !topo.HasCCD() {
		t.Fatalf("expected CCD partitioning")
	}
	if got := topo.CCDCount(); got != 2 {
		t.Fatalf("expected 2 CCDs, got %d", got)
	}
	for id := 0; id < 16; id++ {
		want := 0
		if id >= 8 {
			want = 1
		}
		c := topo.Cores[id]
		if c.CCDID == nil || *c.CCDID != want {
			t.Fatalf("core %d CCD = %v, want %d", id, c.CCDID, want)
		}
		if c.Type != CoreTypeZen3 {
			t.Fatalf("core %d type = %v, want zen3", id, c.Type)
		}
	}
}

func TestDetect_SingleCacheDomainMeansNoCCD(t *testing.T) {
	descs := dualCCDDescriptors()
	for i := range descs {
		descs[i].L3CacheID = 0
	}
	d := newTestDetector(StaticProvider{Descriptors: descs}, nil)
	topo := d.Detect()
	if topo.HasCCD() {
		t.Fatalf("single cache domain should not produce CCDs")
	}
	if got := topo.CCDCount(); got != 0 {
		t.Fatalf("expected 0 CCDs, got %d", got)
	}
}

func TestDetect_FlatFallbackOnMissingIdentifiers(t *testing.T) {
	descs := []Descriptor{
		{CPUID: 0, SocketID: -1, CoreID: -1, L3CacheID: -1, ClusterID: -1},
		{CPUID: 1, SocketID: -1, CoreID: -1, L3CacheID: -1, ClusterID: -1},
		{CPUID: 2, SocketID: -1, CoreID: -1, L3CacheID: -1, ClusterID: -1},
		{CPUID: 3, SocketID: -1, CoreID: -1, L3CacheID: -1, ClusterID: -1},
	}
	d := newTestDetector(StaticProvider{Descriptors: descs}, nil)
	topo := d.Detect()

	if topo.DetectionOK {
		t.Fatalf("expected degraded detection")
	}
	if got := topo.LogicalCount(); got != 4 {
		t.Fatalf("expected 4 cores, got %d", got)
	}
	for i, c := range topo.Cores {
		if c.PhysicalID != i {
			t.Fatalf("flat fallback core %d physical = %d, want %d", i, c.PhysicalID, i)
		}
		if c.Type != CoreTypeUnknown {
			t.Fatalf("flat fallback core %d type = %v, want unknown", i, c.Type)
		}
	}
}

func TestDetect_ProviderErrorFallsBackToCount(t *testing.T) {
	d := newTestDetector(StaticProvider{Err: errors.New("boom")}, func() int { return 6 })
	topo := d.Detect()

	if topo.DetectionOK {
		t.Fatalf("expected degraded detection")
	}
	if got := topo.LogicalCount(); got != 6 {
		t.Fatalf("expected 6 fallback cores, got %d", got)
	}
	if topo.DetectionError == "" {
		t.Fatalf("expected a detection error message")
	}
}

func TestDetect_TotalFailureYieldsZeroCores(t *testing.T) {
	d := newTestDetector(StaticProvider{Err: errors.New("boom")}, nil)
	topo := d.Detect()

	if topo.DetectionOK {
		t.Fatalf("expected failed detection")
	}
	if got := topo.LogicalCount(); got != 0 {
		t.Fatalf("expected zero-core topology, got %d cores", got)
	}
}

func TestDetectAsync_NotifiesSubscribers(t *testing.T) {
	d := newTestDetector(StaticProvider{Descriptors: hybridDescriptors()}, nil)
	got := make(chan Topology, 1)
	d.Subscribe(func(topo Topology) { got <- topo })

	d.DetectAsync(context.Background())

	select {
	case topo := <-got:
		if topo.LogicalCount() != 12 {
			t.Fatalf("unexpected topology: %d cores", topo.LogicalCount())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no topology published")
	}
}

func TestZenGeneration(t *testing.T) {
	cases := []struct {
		family, model int
		want          CoreType
	}{
		{0x17, 0x01, CoreTypeZen},
		{0x17, 0x08, CoreTypeZenPlus},
		{0x17, 0x31, CoreTypeZen2},
		{0x17, 0x71, CoreTypeZen2},
		{0x19, 0x01, CoreTypeZen3},
		{0x19, 0x21, CoreTypeZen3},
		{0x19, 0x11, CoreTypeZen4},
		{0x19, 0x61, CoreTypeZen4},
		{0x06, 0x9A, CoreTypeStandard},
	}
	for _, tc := range cases {
		if got := zenGeneration(tc.family, tc.model); got != tc.want {
			t.Errorf("zenGeneration(%#x, %#x) = %v, want %v", tc.family, tc.model, got, tc.want)
		}
	}
}
