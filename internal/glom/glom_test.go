package glom

import (
	"testing"

	"daqevb.dev/evbcore/internal/wire"
	"daqevb.dev/evbcore/pkg/evb/fragment"
)

type fakeSink struct {
	params     []wire.GlomParameters
	composites []wire.CompositeItem
}

func (f *fakeSink) WriteParameters(p wire.GlomParameters) error {
	f.params = append(f.params, p)
	return nil
}

func (f *fakeSink) WriteComposite(item wire.CompositeItem) error {
	f.composites = append(f.composites, item)
	return nil
}

func TestGlommerAnnouncesParametersOnce(t *testing.T) {
	sink := &fakeSink{}
	g := New(Config{Building: true, CoincidenceTicks: 100, Policy: wire.TimestampPolicyFirst}, sink)

	g.OnEvent([]*fragment.Fragment{{Timestamp: 1, SourceID: 1}})
	g.OnEvent([]*fragment.Fragment{{Timestamp: 2, SourceID: 1}})

	if len(sink.params) != 1 {
		t.Fatalf("len(params) = %d, want 1", len(sink.params))
	}
}

func TestGlommerAccumulatesWithinCoincidenceWindow(t *testing.T) {
	sink := &fakeSink{}
	g := New(Config{Building: true, CoincidenceTicks: 10}, sink)

	g.OnEvent([]*fragment.Fragment{
		{Timestamp: 100, SourceID: 1, Payload: []byte("a")},
		{Timestamp: 105, SourceID: 1, Payload: []byte("b")},
		{Timestamp: 120, SourceID: 1, Payload: []byte("c")}, // outside window, starts new group
	})

	if len(sink.composites) != 1 {
		t.Fatalf("len(composites) = %d, want 1 (second group not yet flushed)", len(sink.composites))
	}
	if len(sink.composites[0].Children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(sink.composites[0].Children))
	}
	if sink.composites[0].Timestamp != 100 {
		t.Errorf("Timestamp = %d, want 100 (first policy)", sink.composites[0].Timestamp)
	}
}

func TestGlommerForwardsBarrierAsOwnComposite(t *testing.T) {
	sink := &fakeSink{}
	g := New(Config{Building: true, CoincidenceTicks: 10}, sink)

	g.OnEvent([]*fragment.Fragment{
		{Timestamp: 100, SourceID: 1},
		{Timestamp: 101, BarrierType: wire.BeginRun, SourceID: 1},
	})

	if len(sink.composites) != 2 {
		t.Fatalf("len(composites) = %d, want 2 (flushed accumulation + barrier)", len(sink.composites))
	}
	if sink.composites[1].Type != wire.CompositeBit|wire.BeginRun {
		t.Errorf("barrier composite type = %#x, want CompositeBit|BeginRun", sink.composites[1].Type)
	}
}

func TestGlommerNoBuildEmitsSingletons(t *testing.T) {
	sink := &fakeSink{}
	g := New(Config{Building: false}, sink)

	g.OnEvent([]*fragment.Fragment{
		{Timestamp: 1, SourceID: 1},
		{Timestamp: 2, SourceID: 1},
	})

	if len(sink.composites) != 2 {
		t.Fatalf("len(composites) = %d, want 2 (no-build mode never accumulates)", len(sink.composites))
	}
}

func TestGlommerNestingResetsOnAbnormalEndrun(t *testing.T) {
	sink := &fakeSink{}
	g := New(Config{Building: true, CoincidenceTicks: 10}, sink)

	g.OnEvent([]*fragment.Fragment{
		{Timestamp: 1, BarrierType: wire.BeginRun, SourceID: 1},
		{Timestamp: 2, BarrierType: wire.BeginRun, SourceID: 1},
	})
	if g.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2 after two nested begins", g.Depth())
	}

	g.OnEvent([]*fragment.Fragment{{Timestamp: 3, BarrierType: wire.AbnormalEndrun, SourceID: 1}})
	if g.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0 after abnormal end run", g.Depth())
	}
}

func TestGlommerTimestampPolicyAverage(t *testing.T) {
	sink := &fakeSink{}
	g := New(Config{Building: true, CoincidenceTicks: 100, Policy: wire.TimestampPolicyAverage}, sink)

	g.OnEvent([]*fragment.Fragment{
		{Timestamp: 10, SourceID: 1},
		{Timestamp: 20, SourceID: 1},
		{BarrierType: wire.EndRun, Timestamp: 21, SourceID: 1}, // flushes the pair
	})

	if len(sink.composites) < 1 {
		t.Fatal("expected at least one composite")
	}
	if sink.composites[0].Timestamp != 15 {
		t.Errorf("Timestamp = %d, want 15 (average of 10,20)", sink.composites[0].Timestamp)
	}
}
