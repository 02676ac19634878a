package ringsource

import (
	"errors"
	"testing"
	"time"

	"daqevb.dev/evbcore/internal/wire"
)

func TestNewAdapterRejectsEmptySourceIDs(t *testing.T) {
	tr := NewChannelTransport(4)
	if _, err := NewAdapter(Config{}, tr); err == nil {
		t.Fatal("expected ConfigError for empty permitted source ids")
	}
}

func TestNewAdapterRejectsDuplicateSourceIDs(t *testing.T) {
	tr := NewChannelTransport(4)
	cfg := Config{PermittedSourceIDs: []uint32{1, 1}}
	if _, err := NewAdapter(cfg, tr); err == nil {
		t.Fatal("expected ConfigError for duplicate permitted source ids")
	}
}

func TestGetEventsReframesPhysicsAndBarrier(t *testing.T) {
	tr := NewChannelTransport(8)
	a, err := NewAdapter(Config{Source: "test", PermittedSourceIDs: []uint32{1}}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	tr.Push(wire.RawItem{Type: wire.BeginRun, SourceID: 1, Timestamp: 0})
	tr.Push(wire.RawItem{Type: wire.PhysicsEvent, SourceID: 1, Timestamp: 100, Body: []byte("abc")})
	tr.Push(wire.RawItem{Type: wire.EndRun, SourceID: 1, Timestamp: 200})

	batch, err := a.GetEvents()
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	decoded, err := wire.DecodeFlatFragments(batch)
	if err != nil {
		t.Fatalf("DecodeFlatFragments: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("len(decoded) = %d, want 3", len(decoded))
	}
	if decoded[0].BarrierType != wire.BeginRun {
		t.Errorf("decoded[0].BarrierType = %d, want BeginRun", decoded[0].BarrierType)
	}
	if decoded[1].BarrierType != 0 {
		t.Errorf("decoded[1].BarrierType = %d, want 0", decoded[1].BarrierType)
	}
	if decoded[2].BarrierType != wire.EndRun {
		t.Errorf("decoded[2].BarrierType = %d, want EndRun", decoded[2].BarrierType)
	}
	if !a.OneshotComplete() && a.cfg.OneShot {
		t.Error("unexpected oneshot state")
	}
}

func TestGetEventsRejectsUnauthorizedSource(t *testing.T) {
	tr := NewChannelTransport(4)
	a, err := NewAdapter(Config{Source: "test", PermittedSourceIDs: []uint32{1}}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	tr.Push(wire.RawItem{Type: wire.PhysicsEvent, SourceID: 99, Timestamp: 1})

	if _, err := a.GetEvents(); err == nil {
		t.Fatal("expected UnauthorizedSource error")
	}
}

func TestOneshotCompleteAfterEndRuns(t *testing.T) {
	tr := NewChannelTransport(4)
	a, err := NewAdapter(Config{
		Source:             "test",
		PermittedSourceIDs: []uint32{1},
		OneShot:            true,
		EndRunCount:        2,
	}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	tr.Push(wire.RawItem{Type: wire.EndRun, SourceID: 1})
	if _, err := a.GetEvents(); err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if a.OneshotComplete() {
		t.Fatal("should not be complete after only one end run")
	}
	tr.Push(wire.RawItem{Type: wire.EndRun, SourceID: 1})
	if _, err := a.GetEvents(); err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if !a.OneshotComplete() {
		t.Fatal("should be complete after two end runs")
	}
}

// One-shot completion must trigger on the idle timeout even when no
// END_RUN item ever arrives.
func TestOneshotCompleteAfterIdleTimeout(t *testing.T) {
	tr := NewChannelTransport(1)
	a, err := NewAdapter(Config{
		Source:             "test",
		PermittedSourceIDs: []uint32{1},
		OneShot:            true,
		EndRunCount:        10,
		Timeout:            20 * time.Millisecond,
	}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if a.OneshotComplete() {
		t.Fatal("should not be complete immediately after construction")
	}
	time.Sleep(30 * time.Millisecond)
	if !a.OneshotComplete() {
		t.Fatal("should be complete after the idle timeout elapses with no data")
	}
}

// Receiving any item, not just an END_RUN, resets the idle clock.
func TestGetEventsResetsIdleTimeoutOnData(t *testing.T) {
	tr := NewChannelTransport(4)
	a, err := NewAdapter(Config{
		Source:             "test",
		PermittedSourceIDs: []uint32{1},
		OneShot:            true,
		EndRunCount:        10,
		Timeout:            30 * time.Millisecond,
	}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	tr.Push(wire.RawItem{Type: wire.PhysicsEvent, SourceID: 1, Timestamp: 1})
	if _, err := a.GetEvents(); err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if a.OneshotComplete() {
		t.Fatal("receiving data should have reset the idle timer")
	}
}

func TestReframePhysicsEventUsesExtractor(t *testing.T) {
	tr := NewChannelTransport(4)
	a, err := NewAdapter(Config{
		Source:             "test",
		PermittedSourceIDs: []uint32{1},
		TimestampExtractor: func(payload []byte) (uint64, bool) {
			return 777, true
		},
	}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	tr.Push(wire.RawItem{Type: wire.PhysicsEvent, SourceID: 1, Timestamp: 0, Body: []byte("x")})

	batch, err := a.GetEvents()
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	decoded, err := wire.DecodeFlatFragments(batch)
	if err != nil {
		t.Fatalf("DecodeFlatFragments: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Timestamp != 777 {
		t.Fatalf("decoded = %+v, want a single fragment timestamped 777", decoded)
	}
}

func TestReframePhysicsEventExpectBodyHeadersFatal(t *testing.T) {
	tr := NewChannelTransport(4)
	a, err := NewAdapter(Config{
		Source:             "test",
		PermittedSourceIDs: []uint32{1},
		ExpectBodyHeaders:  true,
	}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	tr.Push(wire.RawItem{Type: wire.PhysicsEvent, SourceID: 1, Timestamp: 0, Body: []byte("x")})

	if _, err := a.GetEvents(); err == nil {
		t.Fatal("expected a fatal ConfigError for a missing body-header timestamp")
	} else {
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("err = %v (%T), want *ConfigError", err, err)
		}
	}
}

func TestDataReadyTimesOutWithNoData(t *testing.T) {
	tr := NewChannelTransport(1)
	a, err := NewAdapter(Config{PermittedSourceIDs: []uint32{1}}, tr)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	start := time.Now()
	if a.DataReady(20 * time.Millisecond) {
		t.Fatal("expected DataReady to time out")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("DataReady returned too early")
	}
}
