package orderer

import (
	"testing"

	"daqevb.dev/evbcore/internal/wire"
	"daqevb.dev/evbcore/pkg/evb/fragment"
)

type recordingObservers struct {
	events    [][]*fragment.Fragment
	complete  [][]BarrierEntry
	partial   []partialCall
	lateData  []lateCall
}

type partialCall struct {
	present []BarrierEntry
	missing []uint32
}

type lateCall struct {
	frag   *fragment.Fragment
	newest uint64
}

func newRecordingOrderer(t *testing.T, w uint64) (*Orderer, *recordingObservers) {
	t.Helper()
	o := New(Config{BuildWindow: w})
	rec := &recordingObservers{}

	if err := o.AddObserver(EventObserverKind, EventObserverFunc(func(batch []*fragment.Fragment) {
		rec.events = append(rec.events, batch)
	})); err != nil {
		t.Fatalf("AddObserver(event): %v", err)
	}
	if err := o.AddObserver(CompleteBarrierObserverKind, CompleteBarrierObserverFunc(func(present []BarrierEntry) {
		rec.complete = append(rec.complete, present)
	})); err != nil {
		t.Fatalf("AddObserver(complete): %v", err)
	}
	if err := o.AddObserver(PartialBarrierObserverKind, PartialBarrierObserverFunc(func(present []BarrierEntry, missing []uint32) {
		rec.partial = append(rec.partial, partialCall{present: present, missing: missing})
	})); err != nil {
		t.Fatalf("AddObserver(partial): %v", err)
	}
	if err := o.AddObserver(LateDataObserverKind, LateDataObserverFunc(func(f *fragment.Fragment, newest uint64) {
		rec.lateData = append(rec.lateData, lateCall{frag: f, newest: newest})
	})); err != nil {
		t.Fatalf("AddObserver(late): %v", err)
	}
	return o, rec
}

func buf(items ...wire.FlatFragment) []byte {
	var b []byte
	for _, it := range items {
		b = wire.EncodeFlatFragment(b, it.Timestamp, it.SourceID, it.BarrierType, it.Payload)
	}
	return b
}

func flat(ts uint64, sourceID, barrierType uint32) wire.FlatFragment {
	return wire.FlatFragment{Timestamp: ts, SourceID: sourceID, BarrierType: barrierType}
}

func timestamps(batch []*fragment.Fragment) []uint64 {
	out := make([]uint64, len(batch))
	for i, f := range batch {
		out[i] = f.Timestamp
	}
	return out
}

func sameUint64s(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// S1 — pure ordering: two sources interleave six non-barrier fragments,
// a single explicit flush releases them in timestamp order.
func TestScenarioS1PureOrdering(t *testing.T) {
	o, rec := newRecordingOrderer(t, 100)
	o.PreDeclareSource(0)
	o.PreDeclareSource(1)

	if err := o.AddFragments(buf(flat(10, 0, 0), flat(30, 0, 0), flat(50, 0, 0))); err != nil {
		t.Fatalf("AddFragments(source 0): %v", err)
	}
	if err := o.AddFragments(buf(flat(20, 1, 0), flat(40, 1, 0), flat(60, 1, 0))); err != nil {
		t.Fatalf("AddFragments(source 1): %v", err)
	}
	o.Flush()

	if len(rec.events) != 1 {
		t.Fatalf("len(rec.events) = %d, want 1", len(rec.events))
	}
	got := timestamps(rec.events[0])
	want := []uint64{10, 20, 30, 40, 50, 60}
	if !sameUint64s(got, want) {
		t.Fatalf("timestamps = %v, want %v", got, want)
	}
}

// S2 — build-window trigger: the 2W rule forces an early partial flush,
// and the remainder drains on an explicit flush.
func TestScenarioS2BuildWindowTrigger(t *testing.T) {
	o, rec := newRecordingOrderer(t, 100)
	o.PreDeclareSource(0)
	o.PreDeclareSource(1)

	if err := o.AddFragments(buf(flat(0, 0, 0))); err != nil {
		t.Fatalf("AddFragments(ts=0): %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("unexpected flush before the 2W trigger: %d batches", len(rec.events))
	}

	if err := o.AddFragments(buf(flat(201, 1, 0))); err != nil {
		t.Fatalf("AddFragments(ts=201): %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("len(rec.events) = %d, want 1 after the 2W trigger", len(rec.events))
	}
	if got := timestamps(rec.events[0]); !sameUint64s(got, []uint64{0}) {
		t.Fatalf("first batch = %v, want [0]", got)
	}

	o.Flush()
	if len(rec.events) != 2 {
		t.Fatalf("len(rec.events) = %d, want 2 after explicit flush", len(rec.events))
	}
	if got := timestamps(rec.events[1]); !sameUint64s(got, []uint64{201}) {
		t.Fatalf("second batch = %v, want [201]", got)
	}
}

// S3 / invariant 4 — late data: a fragment trailing the watermark by more
// than W is flagged to the late-data observer but still enqueued and
// later emitted in its ordered position.
func TestScenarioS3LateData(t *testing.T) {
	o, rec := newRecordingOrderer(t, 100)
	o.PreDeclareSource(0)
	o.PreDeclareSource(1)

	if err := o.AddFragments(buf(flat(1000, 0, 0))); err != nil {
		t.Fatalf("AddFragments(ts=1000): %v", err)
	}
	if err := o.AddFragments(buf(flat(800, 1, 0))); err != nil {
		t.Fatalf("AddFragments(ts=800): %v", err)
	}

	if len(rec.lateData) != 1 {
		t.Fatalf("len(rec.lateData) = %d, want 1", len(rec.lateData))
	}
	if rec.lateData[0].frag.Timestamp != 800 || rec.lateData[0].newest != 1000 {
		t.Fatalf("late call = (ts=%d, newest=%d), want (800, 1000)",
			rec.lateData[0].frag.Timestamp, rec.lateData[0].newest)
	}

	o.Flush()
	if len(rec.events) != 1 {
		t.Fatalf("len(rec.events) = %d, want 1", len(rec.events))
	}
	if got := timestamps(rec.events[0]); !sameUint64s(got, []uint64{800, 1000}) {
		t.Fatalf("flushed timestamps = %v, want [800 1000] (late fragment still ordered in)", got)
	}
}

// S4 — complete barrier: both live sources present a barrier at their
// queue head simultaneously.
func TestScenarioS4CompleteBarrier(t *testing.T) {
	o, rec := newRecordingOrderer(t, 100)
	o.PreDeclareSource(0)
	o.PreDeclareSource(1)

	if err := o.AddFragments(buf(flat(10, 0, wire.BeginRun), flat(20, 1, wire.BeginRun))); err != nil {
		t.Fatalf("AddFragments: %v", err)
	}

	if len(rec.complete) != 1 {
		t.Fatalf("len(rec.complete) = %d, want 1", len(rec.complete))
	}
	if len(rec.partial) != 0 {
		t.Fatalf("len(rec.partial) = %d, want 0", len(rec.partial))
	}
	want := []BarrierEntry{{SourceID: 0, BarrierType: wire.BeginRun}, {SourceID: 1, BarrierType: wire.BeginRun}}
	got := rec.complete[0]
	if len(got) != len(want) {
		t.Fatalf("present = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("present[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if o.barrierPending {
		t.Fatal("barrierPending should clear after a complete barrier")
	}
}

// S5 — malformed barrier via dead source: MarkSourceDead only ever acts on
// a pending barrier (matching markSourceFailed's m_fBarrierPending gate in
// the original), so this drives barrierPending true via an ordinary 2W
// drain before marking source 1 dead.
func TestScenarioS5PartialBarrierViaDeadSource(t *testing.T) {
	o, rec := newRecordingOrderer(t, 10)
	o.PreDeclareSource(0)
	o.PreDeclareSource(1)

	if err := o.AddFragments(buf(flat(5, 0, 0), flat(5, 0, wire.BeginRun))); err != nil {
		t.Fatalf("AddFragments(source 0): %v", err)
	}
	// Triggers the 2W flush: source 0's lone data fragment drains, leaving
	// its barrier exposed at the queue head, which sets barrierPending
	// without emitting anything yet (the 2W path never recurses on a
	// pending barrier — only an explicit/end-of-run flush does).
	if err := o.AddFragments(buf(flat(100, 1, 0))); err != nil {
		t.Fatalf("AddFragments(source 1): %v", err)
	}
	if !o.barrierPending {
		t.Fatal("expected barrierPending after the 2W drain exposed source 0's barrier")
	}
	if len(rec.complete) != 0 || len(rec.partial) != 0 {
		t.Fatalf("no barrier should fire until source 1 is accounted for")
	}

	o.MarkSourceDead(1)

	if len(rec.partial) != 1 {
		t.Fatalf("len(rec.partial) = %d, want 1", len(rec.partial))
	}
	if len(rec.partial[0].present) != 1 || rec.partial[0].present[0].SourceID != 0 {
		t.Fatalf("present = %v, want [{0 %d}]", rec.partial[0].present, wire.BeginRun)
	}
	if len(rec.partial[0].missing) != 1 || rec.partial[0].missing[0] != 1 {
		t.Fatalf("missing = %v, want [1]", rec.partial[0].missing)
	}
}

// Invariant 2 — emission order: every event batch ever emitted is
// non-decreasing in timestamp.
func TestInvariantEmissionOrder(t *testing.T) {
	o, rec := newRecordingOrderer(t, 50)
	o.PreDeclareSource(0)
	o.PreDeclareSource(1)
	o.PreDeclareSource(2)

	pushes := []wire.FlatFragment{
		flat(5, 0, 0), flat(500, 1, 0), flat(15, 2, 0), flat(520, 0, 0),
		flat(25, 2, 0), flat(540, 1, 0),
	}
	for _, p := range pushes {
		if err := o.AddFragments(buf(p)); err != nil {
			t.Fatalf("AddFragments: %v", err)
		}
	}
	o.Flush()

	var prev uint64
	seenFirst := false
	for _, batch := range rec.events {
		for _, f := range batch {
			if seenFirst && f.Timestamp < prev {
				t.Fatalf("emission order violated: %d came after %d", f.Timestamp, prev)
			}
			prev = f.Timestamp
			seenFirst = true
		}
	}
}

// Invariant 6 — idempotence: two resets in a row behave like one, and
// flushing an already-empty orderer emits nothing.
func TestInvariantIdempotence(t *testing.T) {
	o, rec := newRecordingOrderer(t, 100)
	o.PreDeclareSource(0)

	if err := o.AddFragments(buf(flat(10, 0, 0))); err != nil {
		t.Fatalf("AddFragments: %v", err)
	}
	o.Reset()
	o.Reset()
	if o.oldest != fragment.NullTimestamp || o.newest != 0 || o.barrierPending {
		t.Fatalf("double reset left state = (oldest=%d newest=%d pending=%v), want cleared",
			o.oldest, o.newest, o.barrierPending)
	}

	o.Flush()
	if len(rec.events) != 0 {
		t.Fatalf("flush on an empty orderer emitted %d batches, want 0", len(rec.events))
	}
}

// Invariant 7 — framing round trip: N well-formed records decode to
// exactly N fragments with no framing error.
func TestInvariantFramingRoundTrip(t *testing.T) {
	o, rec := newRecordingOrderer(t, 100)
	o.PreDeclareSource(0)
	o.PreDeclareSource(1)

	items := []wire.FlatFragment{
		{Timestamp: 1, SourceID: 0, Payload: []byte("a")},
		{Timestamp: 2, SourceID: 1, Payload: []byte("bc")},
		{Timestamp: 3, SourceID: 0, BarrierType: wire.BeginRun},
	}
	encoded := buf(items...)
	if err := o.AddFragments(encoded); err != nil {
		t.Fatalf("AddFragments: %v", err)
	}
	o.Flush()

	total := 0
	for _, batch := range rec.events {
		total += len(batch)
	}
	for _, c := range rec.complete {
		total += len(c)
	}
	for _, p := range rec.partial {
		total += len(p.present)
	}
	if total != len(items) {
		t.Fatalf("total fragments accounted for = %d, want %d", total, len(items))
	}
}

// TestAddFragmentsFramingError exercises the non-invariant error path:
// a truncated header must be rejected without enqueuing anything from it.
func TestAddFragmentsFramingError(t *testing.T) {
	o, _ := newRecordingOrderer(t, 100)
	o.PreDeclareSource(0)

	truncated := buf(flat(1, 0, 0))[:5]
	err := o.AddFragments(truncated)
	if err == nil {
		t.Fatal("expected a framing error")
	}
	var fe *FramingError
	if !errorsAs(err, &fe) {
		t.Fatalf("err = %v (%T), want *FramingError", err, err)
	}
}

func errorsAs(err error, target **FramingError) bool {
	fe, ok := err.(*FramingError)
	if !ok {
		return false
	}
	*target = fe
	return true
}

// Invariant 1 — conservation of fragments: pushing a deterministic,
// pseudo-randomized stream of fragments across several sources and then
// draining everything leaves the released-plus-queued multiset equal to
// the pushed multiset, counted by (timestamp, source) histogram.
func TestInvariantConservationOfFragments(t *testing.T) {
	o, rec := newRecordingOrderer(t, 64)
	for id := uint32(0); id < 4; id++ {
		o.PreDeclareSource(id)
	}

	type key struct {
		ts       uint64
		sourceID uint32
	}
	pushed := make(map[key]int)

	// A small xorshift generator keeps this deterministic
	// without touching math/rand's global state.
	state := uint64(88172645463325252)
	next := func() uint64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return state
	}

	const n = 500
	for i := 0; i < n; i++ {
		sourceID := uint32(next() % 4)
		ts := next() % 2000
		if err := o.AddFragments(buf(flat(ts, sourceID, 0))); err != nil {
			t.Fatalf("AddFragments: %v", err)
		}
		pushed[key{ts: ts, sourceID: sourceID}]++
	}
	o.Flush()

	released := make(map[key]int)
	for _, batch := range rec.events {
		for _, f := range batch {
			released[key{ts: f.Timestamp, sourceID: f.SourceID}]++
		}
	}

	if len(released) != len(pushed) {
		t.Fatalf("distinct released keys = %d, want %d", len(released), len(pushed))
	}
	for k, want := range pushed {
		if released[k] != want {
			t.Fatalf("key %+v: released %d times, pushed %d times", k, released[k], want)
		}
	}
}
