package topology

// HybridHint is the platform-provided classification of a logical CPU on
// heterogeneous designs.
type HybridHint int

const (
	HintNone HybridHint = iota
	HintPerformance
	HintEfficiency
)

// Descriptor is the raw per-logical-processor record a Provider hands to the
// detector. Unknown fields are -1 (ints) or HintNone.
type Descriptor struct {
	CPUID     int
	SocketID  int
	CoreID    int
	L3CacheID int
	ClusterID int
	Hint      HybridHint
}

// Platform carries CPU package identity shared by all descriptors.
type Platform struct {
	VendorID string
	Brand    string
	Family   int
	Model    int
}

// Provider enumerates the logical processors of the host. Any facility able
// to supply these records can feed the detector; the detector itself never
// touches the OS.
type Provider interface {
	Describe() (Platform, []Descriptor, error)
}

// StaticProvider serves a fixed descriptor set. Used for simulated hardware
// in tests and for replaying captured topologies.
type StaticProvider struct {
	Platform    Platform
	Descriptors []Descriptor
	Err         error
}

func (p StaticProvider) Describe() (Platform, []Descriptor, error) {
	if p.Err != nil {
		return Platform{}, nil, p.Err
	}
	out := make([]Descriptor, len(p.Descriptors))
	copy(out, p.Descriptors)
	return p.Platform, out, nil
}
