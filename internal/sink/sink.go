// Package sink implements the downstream composite-item writers the
// glommer writes to — the event builder's equivalent of the original's
// CDataSink: a stand-in for a collaborator spec.md declares out of
// scope (see SPEC_FULL.md §1), given a concrete, exercisable shape here.
package sink

import "daqevb.dev/evbcore/internal/wire"

// Writer receives the glommer's output. It satisfies glom.Sink.
type Writer interface {
	WriteParameters(p wire.GlomParameters) error
	WriteComposite(item wire.CompositeItem) error
	Close() error
}
