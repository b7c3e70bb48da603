package agents_test

import (
	"testing"

	"market-sim/src/agents"
	"market-sim/src/engine"
)

func buyIntent(instrument, price int64) agents.Intent {
	return agents.Intent{
		Kind:       agents.IntentSubmit,
		Instrument: instrument,
		Side:       engine.SideBuy,
		Type:       engine.TypeLimit,
		Price:      price,
		Quantity:   10,
	}
}

func TestLatencyQueueDelaysByTier(t *testing.T) {
	q := agents.NewLatencyQueue()

	q.Push(1, agents.TierColocated, 5, []agents.Intent{buyIntent(1, 10000)})
	q.Push(2, agents.TierSlow, 5, []agents.Intent{buyIntent(1, 10001)})

	due := q.Drain(5)
	if len(due) != 1 {
		t.Fatalf("Expected only the colocated intent at tick 5, got: %d", len(due))
	}
	if due[0].Participant != 1 {
		t.Errorf("Expected participant 1, got: %d", due[0].Participant)
	}

	if due := q.Drain(9); len(due) != 0 {
		t.Errorf("Expected nothing before the slow arrival, got: %d", len(due))
	}

	due = q.Drain(10)
	if len(due) != 1 {
		t.Fatalf("Expected the slow intent at tick 10, got: %d", len(due))
	}
	if due[0].Participant != 2 {
		t.Errorf("Expected participant 2, got: %d", due[0].Participant)
	}
	if due[0].Arrival != 10 {
		t.Errorf("Expected arrival tick 10, got: %d", due[0].Arrival)
	}
}

func TestDrainOrdersByArrivalThenSequence(t *testing.T) {
	q := agents.NewLatencyQueue()

	// pushed out of arrival order on purpose
	q.Push(1, agents.TierMedium, 0, []agents.Intent{buyIntent(1, 10000)}) // arrives 3
	q.Push(2, agents.TierFast, 0, []agents.Intent{buyIntent(1, 10001)})  // arrives 1
	q.Push(3, agents.TierFast, 0, []agents.Intent{buyIntent(1, 10002)})  // arrives 1

	due := q.Drain(3)
	if len(due) != 3 {
		t.Fatalf("Expected 3 intents, got: %d", len(due))
	}
	if due[0].Participant != 2 || due[1].Participant != 3 || due[2].Participant != 1 {
		t.Errorf("Expected order [2 3 1], got: [%d %d %d]", due[0].Participant, due[1].Participant, due[2].Participant)
	}
	if due[0].Seq >= due[1].Seq {
		t.Errorf("Expected same-tick arrivals in decision order, got seq %d then %d", due[0].Seq, due[1].Seq)
	}
}

func TestDrainRemovesDelivered(t *testing.T) {
	q := agents.NewLatencyQueue()

	q.Push(1, agents.TierColocated, 2, []agents.Intent{buyIntent(1, 10000), buyIntent(1, 10001)})
	if q.Len() != 2 {
		t.Errorf("Expected 2 queued intents, got: %d", q.Len())
	}

	q.Drain(2)
	if q.Len() != 0 {
		t.Errorf("Expected empty queue after drain, got: %d", q.Len())
	}
	if due := q.Drain(2); due != nil {
		t.Errorf("Expected nil on a second drain, got: %d", len(due))
	}
}

func TestPushKeepsIntentOrderWithinBatch(t *testing.T) {
	q := agents.NewLatencyQueue()

	q.Push(7, agents.TierFast, 4, []agents.Intent{
		buyIntent(1, 10000),
		buyIntent(1, 10001),
		buyIntent(1, 10002),
	})

	due := q.Drain(5)
	if len(due) != 3 {
		t.Fatalf("Expected 3 intents, got: %d", len(due))
	}
	for i, queued := range due {
		expected := int64(10000 + i)
		if queued.Intent.Price != expected {
			t.Errorf("Expected price %d at index %d, got: %d", expected, i, queued.Intent.Price)
		}
	}
}
