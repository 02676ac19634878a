package wire

// Upstream raw item type codes, per SPEC_FULL.md §6. The adapter maps
// state-change types to a nonzero barrier_type equal to the type itself.
const (
	BeginRun           uint32 = 1
	EndRun             uint32 = 2
	PauseRun           uint32 = 3
	ResumeRun          uint32 = 4
	AbnormalEndrun     uint32 = 5
	RingFormat         uint32 = 12
	PeriodicScalers    uint32 = 20
	MonitoredVariables uint32 = 24
	PhysicsEvent       uint32 = 30
	PhysicsEventCount  uint32 = 31
	EvbGlomInfo        uint32 = 42

	// CompositeBit is OR-ed into Type for glommer-synthesized composite
	// items; see CompositeItem.
	CompositeBit uint32 = 0x8000
)

// BarrierTypes are the upstream item types the adapter treats as state
// changes: their wire type becomes the fragment's barrier_type verbatim.
var BarrierTypes = map[uint32]bool{
	BeginRun:       true,
	EndRun:         true,
	PauseRun:       true,
	ResumeRun:      true,
	AbnormalEndrun: true,
}

// RawItem is one self-delimiting record as produced by the upstream
// transport, before it is cut down to a flat fragment.
type RawItem struct {
	Type      uint32
	SourceID  uint32
	Timestamp uint64
	Body      []byte
}

// IsStateChange reports whether Type is one the adapter maps to a nonzero
// barrier_type.
func (r RawItem) IsStateChange() bool {
	return BarrierTypes[r.Type]
}

// CompositeItem is the glommer's downstream output: a synthesized ring
// item of type CompositeBit|inner, wrapping the raw items coincident
// within one coincidence window (dt) in emission order.
type CompositeItem struct {
	Type      uint32
	Timestamp uint64
	SourceID  uint32
	Children  []RawItem
}

// GlomParameters is the EVB_GLOM_INFO announcement item the glommer emits
// once, when its first fragment arrives, describing its own configuration
// to downstream readers.
type GlomParameters struct {
	Building          bool
	CoincidenceTicks  uint64
	TimestampPolicy   uint32
	SourceID          uint32
}

// Timestamp-assignment policy codes for GlomParameters.TimestampPolicy.
const (
	TimestampPolicyFirst uint32 = iota
	TimestampPolicyLast
	TimestampPolicyAverage
)
