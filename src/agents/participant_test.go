package agents_test

import (
	"math/rand"
	"testing"

	"market-sim/src/agents"
	"market-sim/src/engine"
	"market-sim/src/market"
)

func newTestParticipant(participantType agents.ParticipantType) *agents.Participant {
	rng := rand.New(rand.NewSource(42))
	return agents.NewParticipant(1, "test", participantType, agents.TierColocated, agents.DefaultPolicyParams(), rng)
}

func TestApplyFillExtendsAverageCost(t *testing.T) {
	p := newTestParticipant(agents.TypeOther)

	p.ApplyFill(1, engine.SideBuy, 10000, 100)
	p.ApplyFill(1, engine.SideBuy, 10100, 100)

	pos := p.Position(1)
	if pos.Quantity != 200 {
		t.Errorf("Expected quantity 200, got: %d", pos.Quantity)
	}
	if pos.AvgCost != 10050 {
		t.Errorf("Expected average cost 10050, got: %d", pos.AvgCost)
	}
	if pos.Realized != 0 {
		t.Errorf("Expected no realized P&L, got: %d", pos.Realized)
	}
}

func TestApplyFillRealizesAgainstAverage(t *testing.T) {
	p := newTestParticipant(agents.TypeOther)

	p.ApplyFill(1, engine.SideBuy, 10000, 200)
	p.ApplyFill(1, engine.SideSell, 10100, 100)

	pos := p.Position(1)
	if pos.Quantity != 100 {
		t.Errorf("Expected quantity 100, got: %d", pos.Quantity)
	}
	if pos.AvgCost != 10000 {
		t.Errorf("Expected average cost to stay 10000, got: %d", pos.AvgCost)
	}
	if pos.Realized != 10000 {
		t.Errorf("Expected realized P&L 10000, got: %d", pos.Realized)
	}
}

func TestApplyFillThroughZeroReopensAtFillPrice(t *testing.T) {
	p := newTestParticipant(agents.TypeOther)

	p.ApplyFill(1, engine.SideBuy, 10000, 100)
	p.ApplyFill(1, engine.SideSell, 10200, 150)

	pos := p.Position(1)
	if pos.Quantity != -50 {
		t.Errorf("Expected quantity -50, got: %d", pos.Quantity)
	}
	if pos.AvgCost != 10200 {
		t.Errorf("Expected reopened average cost 10200, got: %d", pos.AvgCost)
	}
	if pos.Realized != 20000 {
		t.Errorf("Expected realized P&L 20000, got: %d", pos.Realized)
	}
}

func TestApplyFillShortSideRealization(t *testing.T) {
	p := newTestParticipant(agents.TypeOther)

	p.ApplyFill(1, engine.SideSell, 10000, 100)
	p.ApplyFill(1, engine.SideBuy, 9900, 100)

	pos := p.Position(1)
	if pos.Quantity != 0 {
		t.Errorf("Expected flat position, got: %d", pos.Quantity)
	}
	if pos.AvgCost != 0 {
		t.Errorf("Expected average cost reset on flat, got: %d", pos.AvgCost)
	}
	if pos.Realized != 10000 {
		t.Errorf("Expected realized P&L 10000, got: %d", pos.Realized)
	}
}

func TestNetPnLCombinesRealizedUnrealizedAndFees(t *testing.T) {
	p := newTestParticipant(agents.TypeOther)

	p.ApplyFill(1, engine.SideBuy, 10000, 100)
	p.AddFee(500)

	marks := map[int64]int64{1: 10100}
	if got := p.UnrealizedTotal(marks); got != 10000 {
		t.Errorf("Expected unrealized 10000, got: %d", got)
	}
	if got := p.NetPnL(marks); got != 9500 {
		t.Errorf("Expected net P&L 9500, got: %d", got)
	}
}

func TestUnrealizedSkipsUnmarkedInstruments(t *testing.T) {
	p := newTestParticipant(agents.TypeOther)

	p.ApplyFill(1, engine.SideBuy, 10000, 100)
	p.ApplyFill(2, engine.SideSell, 20000, 50)

	marks := map[int64]int64{2: 19900}
	if got := p.UnrealizedTotal(marks); got != 5000 {
		t.Errorf("Expected unrealized 5000 from the marked instrument only, got: %d", got)
	}
}

func TestKillSwitchIsIdempotent(t *testing.T) {
	p := newTestParticipant(agents.TypeNoise)

	p.KillSwitch()
	if p.Active {
		t.Error("Expected participant to be inactive after kill switch")
	}
	if !p.NeedsWindDown() {
		t.Error("Expected wind-down flag after kill switch")
	}
	if p.NeedsWindDown() {
		t.Error("Expected wind-down flag to be consumed")
	}

	p.KillSwitch()
	if p.NeedsWindDown() {
		t.Error("Expected repeated kill switch not to re-arm wind-down")
	}
}

func TestKillSwitchedParticipantEmitsNothing(t *testing.T) {
	p := newTestParticipant(agents.TypeNoise)
	p.KillSwitch()

	view := &agents.MarketView{
		Tick:  10,
		Phase: market.PhaseContinuous,
		Instruments: []agents.InstrumentView{
			{ID: 1, Phase: market.PhaseContinuous, Reference: 10000, FairValue: 10000, BestBid: 9990, BidQty: 100, HasBid: true, BestAsk: 10010, AskQty: 100, HasAsk: true},
		},
	}
	if intents := p.Decide(view, &agents.OwnView{}); intents != nil {
		t.Errorf("Expected no intents from an inactive participant, got: %d", len(intents))
	}
}

func TestLatencyTierDelays(t *testing.T) {
	cases := []struct {
		tier  agents.LatencyTier
		delay uint64
	}{
		{agents.TierColocated, 0},
		{agents.TierFast, 1},
		{agents.TierMedium, 3},
		{agents.TierSlow, 5},
		{agents.LatencyTier("SOMETHING_ELSE"), 5},
	}
	for _, c := range cases {
		if got := c.tier.DelayTicks(); got != c.delay {
			t.Errorf("Expected delay %d for tier %s, got: %d", c.delay, c.tier, got)
		}
	}
}
