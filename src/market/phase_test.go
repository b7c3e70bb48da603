package market_test

import (
	"testing"

	"market-sim/src/market"
)

// TestSchedulePhases walks the session schedule across its boundaries.
// Layout: 5 pre-open, 5 opening auction, continuous, 5 closing auction,
// 100 ticks in total.
func TestSchedulePhases(t *testing.T) {
	schedule := market.Schedule{
		PreOpenTicks:        5,
		OpeningAuctionTicks: 5,
		ClosingAuctionTicks: 5,
		SessionTicks:        100,
	}

	cases := []struct {
		tick uint64
		want market.Phase
	}{
		{0, market.PhasePreOpen},
		{4, market.PhasePreOpen},
		{5, market.PhaseOpeningAuction},
		{9, market.PhaseOpeningAuction},
		{10, market.PhaseContinuous},
		{94, market.PhaseContinuous},
		{95, market.PhaseClosingAuction},
		{99, market.PhaseClosingAuction},
		{100, market.PhasePostClose},
		{500, market.PhasePostClose},
	}
	for _, tc := range cases {
		if got := schedule.PhaseAt(tc.tick); got != tc.want {
			t.Errorf("Expected phase %s at tick %d, got: %s", tc.want, tc.tick, got)
		}
	}

	if schedule.OpeningUncrossTick() != 10 {
		t.Errorf("Expected opening uncross at tick 10, got: %d", schedule.OpeningUncrossTick())
	}
	if schedule.ClosingUncrossTick() != 100 {
		t.Errorf("Expected closing uncross at tick 100, got: %d", schedule.ClosingUncrossTick())
	}
}

// TestPhaseGates verifies order acceptance and matching per phase.
func TestPhaseGates(t *testing.T) {
	accepting := []market.Phase{
		market.PhasePreOpen,
		market.PhaseOpeningAuction,
		market.PhaseContinuous,
		market.PhaseVolatilityAuction,
		market.PhaseHalted,
		market.PhaseClosingAuction,
	}
	for _, phase := range accepting {
		if !phase.AcceptsOrders() {
			t.Errorf("Expected %s to accept orders", phase)
		}
	}
	if market.PhasePostClose.AcceptsOrders() {
		t.Error("Expected POST_CLOSE to refuse orders")
	}

	for _, phase := range accepting {
		if phase == market.PhaseContinuous {
			continue
		}
		if phase.Matching() {
			t.Errorf("Expected %s not to match continuously", phase)
		}
	}
	if !market.PhaseContinuous.Matching() {
		t.Error("Expected CONTINUOUS to match")
	}
}
