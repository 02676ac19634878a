package queue

import "sort"

// Set maps source-id to its SourceQueue and tracks source liveness. A live
// source is expected to contribute to barrier synchronization; a dead
// source is skipped in barrier-completion checks but its queue is kept —
// receipt of any fragment reanimates it.
type Set struct {
	queues map[uint32]*SourceQueue
	live   map[uint32]bool
}

// NewSet returns an empty source set.
func NewSet() *Set {
	return &Set{
		queues: make(map[uint32]*SourceQueue),
		live:   make(map[uint32]bool),
	}
}

// QueueFor returns the queue for sourceID, creating it (and marking the
// source live) on first reference.
func (s *Set) QueueFor(sourceID uint32) *SourceQueue {
	q, ok := s.queues[sourceID]
	if !ok {
		q = &SourceQueue{}
		s.queues[sourceID] = q
	}
	s.live[sourceID] = true
	return q
}

// Queue returns the queue for sourceID without creating it, and whether it
// was found.
func (s *Set) Queue(sourceID uint32) (*SourceQueue, bool) {
	q, ok := s.queues[sourceID]
	return q, ok
}

// MarkDead removes sourceID from the live set without touching its queue.
func (s *Set) MarkDead(sourceID uint32) {
	delete(s.live, sourceID)
}

// IsLive reports whether sourceID is currently considered live.
func (s *Set) IsLive(sourceID uint32) bool {
	return s.live[sourceID]
}

// LiveCount returns the number of currently live sources.
func (s *Set) LiveCount() int {
	return len(s.live)
}

// TotalCount returns the number of known sources, live or dead.
func (s *Set) TotalCount() int {
	return len(s.queues)
}

// Range calls fn once for every known source, in ascending source-id order.
// Ascending order makes scans that need a deterministic tie-break (the
// orderer's pop-oldest and barrier-completion checks) reproducible, since
// Go's native map iteration order is randomized.
func (s *Set) Range(fn func(sourceID uint32, q *SourceQueue) bool) {
	ids := s.sortedIDs()
	for _, id := range ids {
		if !fn(id, s.queues[id]) {
			return
		}
	}
}

// LiveIDs returns the live source ids in ascending order.
func (s *Set) LiveIDs() []uint32 {
	ids := make([]uint32, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Set) sortedIDs() []uint32 {
	ids := make([]uint32, 0, len(s.queues))
	for id := range s.queues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
