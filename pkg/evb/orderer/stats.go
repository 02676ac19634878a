package orderer

import "daqevb.dev/evbcore/pkg/evb/queue"

// QueueStat is a point-in-time view of one source's queue.
type QueueStat struct {
	SourceID      uint32
	Depth         int
	HeadTimestamp uint64
	Live          bool
}

// Snapshot is an independent copy of orderer state, safe to read from any
// goroutine — internal/runner copies these into Prometheus gauges instead
// of exposing the Orderer directly.
type Snapshot struct {
	Oldest         uint64
	Newest         uint64
	TotalQueued    int
	BarrierPending bool
	PerQueue       []QueueStat
}

// Statistics returns a Snapshot of the orderer's current state. Like every
// Orderer method it reads unsynchronized state, so it must be called from
// the goroutine driving AddFragments/Flush; the returned Snapshot can then
// be passed anywhere.
func (o *Orderer) Statistics() Snapshot {
	snap := Snapshot{
		Oldest:         o.oldest,
		Newest:         o.newest,
		BarrierPending: o.barrierPending,
	}
	o.sources.Range(func(id uint32, q *queue.SourceQueue) bool {
		depth := q.Len()
		snap.TotalQueued += depth
		var headTS uint64
		if f := q.PeekFront(); f != nil {
			headTS = f.Timestamp
		}
		snap.PerQueue = append(snap.PerQueue, QueueStat{
			SourceID:      id,
			Depth:         depth,
			HeadTimestamp: headTS,
			Live:          o.sources.IsLive(id),
		})
		return true
	})
	return snap
}
