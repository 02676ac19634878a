// Package ringsource adapts an opaque upstream transport into the flat
// fragment batches the orderer core consumes, following the shape of
// CRingSource in the original event builder: a polling data-ready check,
// a pull-based read, and one-shot end-of-run detection.
package ringsource

import (
	"time"

	"daqevb.dev/evbcore/internal/wire"
)

// Transport is the byte-stream abstraction the ring-buffer client library
// would normally provide. It is intentionally out of scope for this
// module (see SPEC_FULL.md §1): production deployments wire in a real
// ring-buffer client here.
type Transport interface {
	// DataReady blocks up to timeout waiting for at least one item to
	// become available, returning false on timeout.
	DataReady(timeout time.Duration) bool
	// Read returns up to max raw items currently available without
	// blocking.
	Read(max int) ([]wire.RawItem, error)
	Close() error
}
