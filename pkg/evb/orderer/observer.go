package orderer

import (
	"fmt"

	"daqevb.dev/evbcore/pkg/evb/fragment"
)

// BarrierEntry describes one source's contribution to a barrier emission.
type BarrierEntry struct {
	SourceID    uint32
	BarrierType uint32
}

// ObserverKind identifies one of the four segregated observer registries.
// The orderer keeps these as four separate slices rather than one
// heterogeneous list, since each callback shape and firing condition is
// distinct and a single observer rarely wants all four.
type ObserverKind int

const (
	// EventObserverKind receives ordered, flushed fragment batches.
	EventObserverKind ObserverKind = iota
	// CompleteBarrierObserverKind fires when every known source contributed
	// to a barrier.
	CompleteBarrierObserverKind
	// PartialBarrierObserverKind fires when a barrier was emitted with one
	// or more sources missing.
	PartialBarrierObserverKind
	// LateDataObserverKind fires when an ingested non-barrier fragment's
	// timestamp trails the orderer's newest timestamp by more than the build
	// window.
	LateDataObserverKind
)

// EventObserver is notified with an ordered batch of fragments on every
// non-empty flush. Fragments are borrowed: valid only for the duration of
// the call.
type EventObserver interface {
	OnEvent(batch []*fragment.Fragment)
}

// CompleteBarrierObserver is notified when a barrier drains with no missing
// sources.
type CompleteBarrierObserver interface {
	OnCompleteBarrier(present []BarrierEntry)
}

// PartialBarrierObserver is notified when a barrier drains with one or more
// sources missing — either because a source is dead or because no fragment
// from it has arrived yet.
type PartialBarrierObserver interface {
	OnPartialBarrier(present []BarrierEntry, missing []uint32)
}

// LateDataObserver is notified when a fragment arrives more than the build
// window behind the newest timestamp. The fragment is still enqueued and
// ordered; the notification does not drop it.
type LateDataObserver interface {
	OnLateData(f *fragment.Fragment, newest uint64)
}

// EventObserverFunc adapts a function to an EventObserver.
type EventObserverFunc func(batch []*fragment.Fragment)

func (f EventObserverFunc) OnEvent(batch []*fragment.Fragment) { f(batch) }

// CompleteBarrierObserverFunc adapts a function to a CompleteBarrierObserver.
type CompleteBarrierObserverFunc func(present []BarrierEntry)

func (f CompleteBarrierObserverFunc) OnCompleteBarrier(present []BarrierEntry) { f(present) }

// PartialBarrierObserverFunc adapts a function to a PartialBarrierObserver.
type PartialBarrierObserverFunc func(present []BarrierEntry, missing []uint32)

func (f PartialBarrierObserverFunc) OnPartialBarrier(present []BarrierEntry, missing []uint32) {
	f(present, missing)
}

// LateDataObserverFunc adapts a function to a LateDataObserver.
type LateDataObserverFunc func(f *fragment.Fragment, newest uint64)

func (f LateDataObserverFunc) OnLateData(frag *fragment.Fragment, newest uint64) {
	f(frag, newest)
}

// AddObserver registers obs under kind. obs must implement the interface
// that kind names; a type mismatch or unknown kind returns an error rather
// than panicking, since the kind is usually derived from config-driven
// wiring rather than a literal at the call site.
func (o *Orderer) AddObserver(kind ObserverKind, obs any) error {
	switch kind {
	case EventObserverKind:
		e, ok := obs.(EventObserver)
		if !ok {
			return fmt.Errorf("orderer: observer does not implement EventObserver")
		}
		o.eventObservers = append(o.eventObservers, e)
	case CompleteBarrierObserverKind:
		e, ok := obs.(CompleteBarrierObserver)
		if !ok {
			return fmt.Errorf("orderer: observer does not implement CompleteBarrierObserver")
		}
		o.completeBarrierObservers = append(o.completeBarrierObservers, e)
	case PartialBarrierObserverKind:
		e, ok := obs.(PartialBarrierObserver)
		if !ok {
			return fmt.Errorf("orderer: observer does not implement PartialBarrierObserver")
		}
		o.partialBarrierObservers = append(o.partialBarrierObservers, e)
	case LateDataObserverKind:
		e, ok := obs.(LateDataObserver)
		if !ok {
			return fmt.Errorf("orderer: observer does not implement LateDataObserver")
		}
		o.lateDataObservers = append(o.lateDataObservers, e)
	default:
		return fmt.Errorf("orderer: unknown observer kind %v", kind)
	}
	return nil
}

// RemoveObserver removes the first previously-added observer identical to
// obs under kind, if present.
func (o *Orderer) RemoveObserver(kind ObserverKind, obs any) {
	switch kind {
	case EventObserverKind:
		want := obs.(EventObserver)
		for i, e := range o.eventObservers {
			if e == want {
				o.eventObservers = append(o.eventObservers[:i], o.eventObservers[i+1:]...)
				return
			}
		}
	case CompleteBarrierObserverKind:
		want := obs.(CompleteBarrierObserver)
		for i, e := range o.completeBarrierObservers {
			if e == want {
				o.completeBarrierObservers = append(o.completeBarrierObservers[:i], o.completeBarrierObservers[i+1:]...)
				return
			}
		}
	case PartialBarrierObserverKind:
		want := obs.(PartialBarrierObserver)
		for i, e := range o.partialBarrierObservers {
			if e == want {
				o.partialBarrierObservers = append(o.partialBarrierObservers[:i], o.partialBarrierObservers[i+1:]...)
				return
			}
		}
	case LateDataObserverKind:
		want := obs.(LateDataObserver)
		for i, e := range o.lateDataObservers {
			if e == want {
				o.lateDataObservers = append(o.lateDataObservers[:i], o.lateDataObservers[i+1:]...)
				return
			}
		}
	}
}
