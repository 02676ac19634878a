// Package orderer implements the fragment ordering and barrier
// synchronization core of the event builder: per-source FIFOs, a
// build-window flush policy, and the begin/end/pause/resume barrier state
// machine that keeps independently-clocked data sources in lockstep.
//
// An Orderer is single-threaded by design (see SPEC_FULL.md §5): one
// goroutine owns AddFragments, Flush, Statistics, and every observer
// callback. It holds no internal mutex, so no method is safe to call from
// another goroutine; the Snapshot that Statistics() returns is an
// independent copy that may then be handed to other goroutines.
package orderer

import (
	"daqevb.dev/evbcore/internal/wire"
	"daqevb.dev/evbcore/pkg/evb/fragment"
	"daqevb.dev/evbcore/pkg/evb/queue"
)

// DefaultBuildWindow is used when Config.BuildWindow is left zero.
const DefaultBuildWindow uint64 = 1_000_000

// Config configures an Orderer.
type Config struct {
	// BuildWindow (W) bounds how far behind the newest-seen timestamp a
	// fragment may sit before it is forced out by the 2W trigger in
	// AddFragments. Units match whatever clock ticks the upstream sources
	// stamp fragments with.
	BuildWindow uint64
}

// Orderer holds one run's worth of per-source fragment queues and drives the
// ordering, flush, and barrier logic described in SPEC_FULL.md §4.C/§4.H.
type Orderer struct {
	buildWindow uint64
	sources     *queue.Set

	oldest uint64
	newest uint64

	barrierPending bool

	eventObservers           []EventObserver
	completeBarrierObservers []CompleteBarrierObserver
	partialBarrierObservers  []PartialBarrierObserver
	lateDataObservers        []LateDataObserver
}

// New returns an Orderer ready to ingest fragments.
func New(cfg Config) *Orderer {
	w := cfg.BuildWindow
	if w == 0 {
		w = DefaultBuildWindow
	}
	return &Orderer{
		buildWindow: w,
		sources:     queue.NewSet(),
		oldest:      fragment.NullTimestamp,
		newest:      0,
	}
}

// SetBuildWindow changes W for subsequent flush-trigger checks.
func (o *Orderer) SetBuildWindow(w uint64) {
	if w == 0 {
		w = DefaultBuildWindow
	}
	o.buildWindow = w
}

// PreDeclareSource registers sourceID as live with an empty queue, before
// any fragment from it has arrived. Used to seed sources known from static
// configuration so early barrier-completeness checks don't treat them as
// unknown.
func (o *Orderer) PreDeclareSource(sourceID uint32) {
	o.sources.QueueFor(sourceID)
}

// MarkSourceDead removes sourceID from the live set. If a barrier is
// currently pending and every remaining live source now has a barrier at
// its queue head, this triggers an immediate barrier emission. That
// emission is always dispatched as malformed/partial, never complete.
// Later barriers stay malformed for as long as any known source is dead;
// a fragment from the dead source (or PreDeclareSource) makes it live again.
func (o *Orderer) MarkSourceDead(sourceID uint32) {
	o.sources.MarkDead(sourceID)
	if o.barrierPending && o.countBarriersPresent() == o.sources.LiveCount() {
		o.emitMalformedBarrier()
	}
}

// Reset drops all queued fragments and returns the orderer to its initial,
// empty-run state. Used between runs.
func (o *Orderer) Reset() {
	o.sources.Range(func(_ uint32, q *queue.SourceQueue) bool {
		for !q.Empty() {
			fragment.Free(q.PopFront())
		}
		return true
	})
	o.oldest = fragment.NullTimestamp
	o.newest = 0
	o.barrierPending = false
}

// AddFragments decodes buf as a sequence of flat wire fragments and ingests
// each in arrival order. After the whole buffer is ingested, it applies the
// 2W flush trigger and then checks barrier readiness.
func (o *Orderer) AddFragments(buf []byte) error {
	items, err := wire.DecodeFlatFragments(buf)
	if err != nil {
		return &FramingError{Msg: err.Error()}
	}
	for _, it := range items {
		o.addFragment(it.Timestamp, it.SourceID, it.BarrierType, it.Payload)
	}

	if o.oldest != fragment.NullTimestamp && o.newest-o.oldest > 2*o.buildWindow {
		o.FlushQueues(false)
	}
	if o.countBarriersPresent() == o.sources.LiveCount() {
		o.emitBarrier()
	}
	return nil
}

// addFragment ingests a single decoded fragment: substitutes the null
// timestamp sentinel, flags late data, enqueues, and updates the
// oldest/newest watermarks. A late fragment is still enqueued and
// ordered normally — only barrier-free fragments trailing the current
// newest watermark by more than the build window are flagged.
func (o *Orderer) addFragment(timestamp uint64, sourceID, barrierType uint32, payload []byte) {
	if timestamp == fragment.NullTimestamp {
		timestamp = o.newest
	}

	if barrierType == 0 && timestamp < o.newest && o.newest-timestamp > o.buildWindow {
		late := fragment.Allocate(timestamp, sourceID, barrierType, payload)
		o.emitLateData(late, o.newest)
		fragment.Free(late)
	}

	f := fragment.Allocate(timestamp, sourceID, barrierType, payload)
	o.sources.QueueFor(sourceID).PushBack(f)

	if barrierType == 0 {
		if o.oldest == fragment.NullTimestamp || timestamp < o.oldest {
			o.oldest = timestamp
		}
		if timestamp > o.newest {
			o.newest = timestamp
		}
	}
	// Barrier timestamps are meaningless and never advance newest.
}

// Flush forces every queued fragment and any pending barrier out, then
// resets the watermarks for the next run segment. Intended for end-of-run.
func (o *Orderer) Flush() {
	o.FlushQueues(true)
	o.oldest = fragment.NullTimestamp
	o.newest = 0
}

// FlushQueues drains fragments in timestamp order. When partial is false it
// stops as soon as newest-oldest no longer exceeds the build window
// (normal steady-state draining); when true it drains until every queue is
// empty (end-of-run / explicit flush).
func (o *Orderer) FlushQueues(partial bool) {
	batch := o.drainOrdered(partial)

	recurse := false
	if partial && o.barrierPending {
		o.emitBarrier()
		recurse = true
	}

	o.notifyEvent(batch)
	o.freeAll(batch)

	if recurse {
		o.FlushQueues(partial)
	}
}

func (o *Orderer) drainOrdered(partial bool) []*fragment.Fragment {
	var batch []*fragment.Fragment
	for !o.allEmpty() && (partial || o.newest-o.oldest > o.buildWindow) {
		if f := o.popOldest(); f != nil {
			batch = append(batch, f)
			continue
		}
		if o.barrierPending {
			o.emitBarrier()
			continue
		}
		panic("orderer: pop_oldest returned no fragment with no barrier pending")
	}
	return batch
}

// popOldest removes and returns the non-barrier queue head with the
// smallest timestamp (lowest source id on a tie), or nil if no queue has a
// non-barrier head. As a side effect it updates the oldest watermark to the
// next candidate and, on observing any queue whose head is a barrier, sets
// barrierPending.
func (o *Orderer) popOldest() *fragment.Fragment {
	var popped *fragment.Fragment
	var from *queue.SourceQueue
	o.sources.Range(func(_ uint32, q *queue.SourceQueue) bool {
		if q.Empty() {
			return true
		}
		head := q.PeekFront()
		if head.IsBarrier() {
			return true
		}
		if from == nil || head.Timestamp < from.PeekFront().Timestamp {
			from = q
		}
		// No data head is older than the watermark, so a match ends the scan.
		return head.Timestamp != o.oldest
	})
	if from != nil {
		popped = from.PopFront()
	}

	nextOldest := o.newest
	o.sources.Range(func(_ uint32, q *queue.SourceQueue) bool {
		if q.Empty() {
			return true
		}
		head := q.PeekFront()
		if head.IsBarrier() {
			o.barrierPending = true
			return true
		}
		if head.Timestamp < nextOldest {
			nextOldest = head.Timestamp
		}
		return true
	})

	if popped != nil {
		o.oldest = nextOldest
	}
	return popped
}

// allEmpty reports whether every known source's queue is empty.
func (o *Orderer) allEmpty() bool {
	empty := true
	o.sources.Range(func(_ uint32, q *queue.SourceQueue) bool {
		if !q.Empty() {
			empty = false
			return false
		}
		return true
	})
	return empty
}

// countBarriersPresent counts live sources whose queue head is
// currently a barrier fragment.
func (o *Orderer) countBarriersPresent() int {
	count := 0
	for _, id := range o.sources.LiveIDs() {
		if q, ok := o.sources.Queue(id); ok && !q.Empty() && q.PeekFront().IsBarrier() {
			count++
		}
	}
	return count
}

// generateBarrier pops the barrier fragment from the head of every known
// source's queue (live or dead) that has one, and records every other
// source — empty, or with non-barrier data still ahead of its barrier — as
// missing. It always scans every known source, not just live ones: a dead
// source's absence is exactly what makes an emission malformed instead of
// complete.
func (o *Orderer) generateBarrier() (present []BarrierEntry, missing []uint32) {
	o.sources.Range(func(id uint32, q *queue.SourceQueue) bool {
		if !q.Empty() && q.PeekFront().IsBarrier() {
			f := q.PopFront()
			present = append(present, BarrierEntry{SourceID: id, BarrierType: f.BarrierType})
			fragment.Free(f)
		} else {
			missing = append(missing, id)
		}
		return true
	})
	o.barrierPending = false
	o.recomputeOldest()
	return present, missing
}

// recomputeOldest recomputes the oldest watermark from scratch over every
// non-empty queue's current head. Called after generateBarrier pops
// fragments out from under the previous watermark.
func (o *Orderer) recomputeOldest() {
	o.oldest = o.newest
	o.sources.Range(func(_ uint32, q *queue.SourceQueue) bool {
		if !q.Empty() {
			if ts := q.PeekFront().Timestamp; ts < o.oldest {
				o.oldest = ts
			}
		}
		return true
	})
}

// emitBarrier generates a barrier summary and dispatches it to the
// complete- or partial-barrier observers. A barrier is only ever
// complete when no source was missing *and* every known source is
// still live — a barrier drained while a source has been marked dead is
// malformed even if that dead source's queue happened to still have a
// barrier at its head.
func (o *Orderer) emitBarrier() {
	present, missing := o.generateBarrier()
	if len(missing) == 0 && o.sources.LiveCount() == o.sources.TotalCount() {
		o.notifyCompleteBarrier(present)
	} else {
		o.notifyPartialBarrier(present, missing)
	}
}

// emitMalformedBarrier generates a barrier summary and always dispatches
// it as partial, regardless of whether every source happened to
// contribute — mirrors the original's markSourceFailed, which never
// calls generateCompleteBarrier once a source has been marked dead.
func (o *Orderer) emitMalformedBarrier() {
	present, missing := o.generateBarrier()
	o.notifyPartialBarrier(present, missing)
}

func (o *Orderer) notifyEvent(batch []*fragment.Fragment) {
	if len(batch) == 0 {
		return
	}
	for _, obs := range o.eventObservers {
		obs.OnEvent(batch)
	}
}

func (o *Orderer) notifyCompleteBarrier(present []BarrierEntry) {
	for _, obs := range o.completeBarrierObservers {
		obs.OnCompleteBarrier(present)
	}
}

func (o *Orderer) notifyPartialBarrier(present []BarrierEntry, missing []uint32) {
	for _, obs := range o.partialBarrierObservers {
		obs.OnPartialBarrier(present, missing)
	}
}

func (o *Orderer) emitLateData(f *fragment.Fragment, newest uint64) {
	for _, obs := range o.lateDataObservers {
		obs.OnLateData(f, newest)
	}
}

func (o *Orderer) freeAll(batch []*fragment.Fragment) {
	for _, f := range batch {
		fragment.Free(f)
	}
}
