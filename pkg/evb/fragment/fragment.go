// Package fragment implements the owned fragment descriptor and its arena.
//
// A Fragment is the unit the rest of the event-builder core moves around:
// one source's timestamped record plus its opaque payload. Ingest always
// copies the caller's bytes into a freshly owned Fragment so the caller
// keeps ownership of its own buffer; observers later receive borrowed
// pointers valid only for the duration of their callback.
package fragment

import "math"

// NullTimestamp is the sentinel meaning "assign the current newest
// timestamp on ingest".
const NullTimestamp uint64 = math.MaxUint64

// Fragment is one source's data fragment or barrier marker.
type Fragment struct {
	Timestamp   uint64
	SourceID    uint32
	BarrierType uint32
	Payload     []byte
}

// IsBarrier reports whether this fragment is a non-data barrier marker.
func (f *Fragment) IsBarrier() bool {
	return f.BarrierType != 0
}

// Allocate copies body into a new, owned Fragment. The caller retains
// ownership of body; Allocate never aliases it.
func Allocate(timestamp uint64, sourceID, barrierType uint32, body []byte) *Fragment {
	owned := make([]byte, len(body))
	copy(owned, body)
	return &Fragment{
		Timestamp:   timestamp,
		SourceID:    sourceID,
		BarrierType: barrierType,
		Payload:     owned,
	}
}

// Free releases a Fragment's storage. Under Go's garbage collector this is
// a no-op, but call sites still invoke it at the same points the original
// allocate/free pairing did, so a pooled allocator (sync.Pool-backed) can be
// dropped in here later without touching any caller.
func Free(f *Fragment) {
	_ = f
}
