// Package queue implements the per-source FIFO and the source-id keyed set
// of those FIFOs that the orderer core builds from.
package queue

import "daqevb.dev/evbcore/pkg/evb/fragment"

// SourceQueue is a FIFO of fragments in arrival order for a single source.
// It is not safe for concurrent use; the orderer core is its sole owner
// (see the concurrency model in SPEC_FULL.md §5).
type SourceQueue struct {
	items []*fragment.Fragment
}

// PushBack appends a fragment to the tail of the queue.
func (q *SourceQueue) PushBack(f *fragment.Fragment) {
	q.items = append(q.items, f)
}

// PeekFront returns the head fragment without removing it, or nil if empty.
func (q *SourceQueue) PeekFront() *fragment.Fragment {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// PopFront removes and returns the head fragment, or nil if empty.
func (q *SourceQueue) PopFront() *fragment.Fragment {
	if len(q.items) == 0 {
		return nil
	}
	f := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	// Copy into a fresh backing array once fewer than half of the slots
	// remaining past the head are in use, so a queue drained after a burst
	// releases the large array (and its popped prefix).
	if cap(q.items) > 64 && len(q.items) < cap(q.items)/2 {
		fresh := make([]*fragment.Fragment, len(q.items))
		copy(fresh, q.items)
		q.items = fresh
	}
	return f
}

// Empty reports whether the queue holds no fragments.
func (q *SourceQueue) Empty() bool {
	return len(q.items) == 0
}

// Len returns the number of fragments currently queued.
func (q *SourceQueue) Len() int {
	return len(q.items)
}
