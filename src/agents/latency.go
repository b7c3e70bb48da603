package agents

import (
	"sort"
)

// QueuedIntent is an intent in flight between decision and book arrival.
// Seq preserves global decision order so same-tick arrivals replay exactly.
type QueuedIntent struct {
	Participant int64
	Seq         uint64
	Arrival     uint64
	Intent      Intent
}

// LatencyQueue delays intents by their owner's tier. Pushes happen in
// decision order, so each arrival bucket is already sequence-sorted.
type LatencyQueue struct {
	pending map[uint64][]QueuedIntent
	seq     uint64
	size    int
}

func NewLatencyQueue() *LatencyQueue {
	return &LatencyQueue{
		pending: make(map[uint64][]QueuedIntent),
	}
}

// Push schedules a participant's intents for delivery after its tier delay.
func (q *LatencyQueue) Push(participant int64, tier LatencyTier, decided uint64, intents []Intent) {
	arrival := decided + tier.DelayTicks()
	for _, intent := range intents {
		q.seq++
		q.pending[arrival] = append(q.pending[arrival], QueuedIntent{
			Participant: participant,
			Seq:         q.seq,
			Arrival:     arrival,
			Intent:      intent,
		})
		q.size++
	}
}

// Drain removes and returns everything due at or before the tick, ordered by
// arrival tick then decision sequence.
func (q *LatencyQueue) Drain(tick uint64) []QueuedIntent {
	var ticks []uint64
	for arrival := range q.pending {
		if arrival <= tick {
			ticks = append(ticks, arrival)
		}
	}
	if len(ticks) == 0 {
		return nil
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	var due []QueuedIntent
	for _, arrival := range ticks {
		due = append(due, q.pending[arrival]...)
		q.size -= len(q.pending[arrival])
		delete(q.pending, arrival)
	}
	return due
}

func (q *LatencyQueue) Len() int {
	return q.size
}
