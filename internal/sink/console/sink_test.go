package console

import (
	"testing"

	"daqevb.dev/evbcore/internal/wire"
)

func TestSinkWritesWithoutError(t *testing.T) {
	s := New("test-pipe")
	if err := s.WriteParameters(wire.GlomParameters{Building: true, CoincidenceTicks: 10}); err != nil {
		t.Fatalf("WriteParameters: %v", err)
	}
	if err := s.WriteComposite(wire.CompositeItem{Type: wire.CompositeBit | wire.BeginRun, Timestamp: 1, SourceID: 1}); err != nil {
		t.Fatalf("WriteComposite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
