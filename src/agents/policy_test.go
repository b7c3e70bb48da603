package agents_test

import (
	"math/rand"
	"reflect"
	"testing"

	"market-sim/src/agents"
	"market-sim/src/engine"
	"market-sim/src/market"
)

func continuousView(fair, bid, bidQty, ask, askQty int64) *agents.MarketView {
	return &agents.MarketView{
		Tick:  10,
		Phase: market.PhaseContinuous,
		Instruments: []agents.InstrumentView{
			{
				ID:        1,
				Symbol:    "SIMA",
				Phase:     market.PhaseContinuous,
				Reference: fair,
				FairValue: fair,
				LastPrice: fair,
				BestBid:   bid,
				BidQty:    bidQty,
				HasBid:    bid > 0,
				BestAsk:   ask,
				AskQty:    askQty,
				HasAsk:    ask > 0,
			},
		},
	}
}

func TestMarketMakerQuotesBothSides(t *testing.T) {
	p := newTestParticipant(agents.TypeMarketMaker)
	view := continuousView(10000, 9995, 100, 10005, 100)

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 2 {
		t.Fatalf("Expected a two-sided quote, got %d intents", len(intents))
	}

	buy, sell := intents[0], intents[1]
	if buy.Side != engine.SideBuy || sell.Side != engine.SideSell {
		t.Errorf("Expected buy then sell, got: %s then %s", buy.Side, sell.Side)
	}
	if buy.Type != engine.TypeLimit || sell.Type != engine.TypeLimit {
		t.Error("Expected limit orders on both sides")
	}
	if buy.Price != 9990 {
		t.Errorf("Expected bid at 9990, got: %d", buy.Price)
	}
	if sell.Price != 10010 {
		t.Errorf("Expected ask at 10010, got: %d", sell.Price)
	}
	if buy.Quantity < 200 || buy.Quantity > 250 {
		t.Errorf("Expected quote size in [200,250], got: %d", buy.Quantity)
	}
}

func TestMarketMakerHoldsFreshQuotes(t *testing.T) {
	p := newTestParticipant(agents.TypeMarketMaker)
	view := continuousView(10000, 9990, 200, 10010, 200)
	own := &agents.OwnView{Resting: []agents.RestingOrder{
		{ID: 11, Instrument: 1, Side: engine.SideBuy, Price: 9990, Remaining: 200, AgeTicks: 0},
		{ID: 12, Instrument: 1, Side: engine.SideSell, Price: 10010, Remaining: 200, AgeTicks: 0},
	}}

	if intents := p.Decide(view, own); len(intents) != 0 {
		t.Errorf("Expected fresh quotes to be left alone, got %d intents", len(intents))
	}
}

func TestMarketMakerRequotesStaleQuotes(t *testing.T) {
	p := newTestParticipant(agents.TypeMarketMaker)
	view := continuousView(10000, 9990, 200, 10010, 200)
	own := &agents.OwnView{Resting: []agents.RestingOrder{
		{ID: 11, Instrument: 1, Side: engine.SideBuy, Price: 9990, Remaining: 200, AgeTicks: 3},
		{ID: 12, Instrument: 1, Side: engine.SideSell, Price: 10010, Remaining: 200, AgeTicks: 3},
	}}

	intents := p.Decide(view, own)
	if len(intents) != 4 {
		t.Fatalf("Expected 2 cancels and a fresh two-sided quote, got %d intents", len(intents))
	}
	if intents[0].Kind != agents.IntentCancel || intents[1].Kind != agents.IntentCancel {
		t.Error("Expected stale quotes to be cancelled first")
	}
	if intents[2].Kind != agents.IntentSubmit || intents[3].Kind != agents.IntentSubmit {
		t.Error("Expected fresh quotes after the cancels")
	}
}

func TestHFTStepsInsideWideSpread(t *testing.T) {
	p := newTestParticipant(agents.TypeHFT)
	view := continuousView(10010, 10000, 300, 10020, 100)

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 1 {
		t.Fatalf("Expected one intent, got: %d", len(intents))
	}
	if intents[0].Side != engine.SideBuy {
		t.Errorf("Expected buy on bid-heavy imbalance, got: %s", intents[0].Side)
	}
	if intents[0].Price != 10001 {
		t.Errorf("Expected price one tick inside the bid, got: %d", intents[0].Price)
	}
}

func TestHFTChasesWithModify(t *testing.T) {
	p := newTestParticipant(agents.TypeHFT)
	view := continuousView(10015, 10005, 300, 10025, 100)
	own := &agents.OwnView{Resting: []agents.RestingOrder{
		{ID: 9, Instrument: 1, Side: engine.SideBuy, Price: 10000, Remaining: 50, AgeTicks: 1},
	}}

	intents := p.Decide(view, own)
	if len(intents) != 1 {
		t.Fatalf("Expected one intent, got: %d", len(intents))
	}
	if intents[0].Kind != agents.IntentModify {
		t.Errorf("Expected a modify, got: %s", intents[0].Kind)
	}
	if intents[0].OrderID != 9 {
		t.Errorf("Expected modify of order 9, got: %d", intents[0].OrderID)
	}
	if intents[0].Price != 10006 {
		t.Errorf("Expected chase to 10006, got: %d", intents[0].Price)
	}
}

func TestHFTPullsQuotesOnTightSpread(t *testing.T) {
	p := newTestParticipant(agents.TypeHFT)
	view := continuousView(10001, 10000, 100, 10002, 100)
	own := &agents.OwnView{Resting: []agents.RestingOrder{
		{ID: 9, Instrument: 1, Side: engine.SideBuy, Price: 10000, Remaining: 50, AgeTicks: 1},
	}}

	intents := p.Decide(view, own)
	if len(intents) != 1 {
		t.Fatalf("Expected one intent, got: %d", len(intents))
	}
	if intents[0].Kind != agents.IntentCancel || intents[0].OrderID != 9 {
		t.Errorf("Expected cancel of order 9, got: %s %d", intents[0].Kind, intents[0].OrderID)
	}
}

func TestSpooferBuildsWallAwayFromTouch(t *testing.T) {
	p := newTestParticipant(agents.TypeSpoofer)
	view := continuousView(10000, 9995, 100, 10005, 100)

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 1 {
		t.Fatalf("Expected one wall order, got: %d", len(intents))
	}
	wall := intents[0]
	if wall.Type != engine.TypeLimit || wall.Quantity != 800 {
		t.Errorf("Expected an 800-lot limit wall, got: %s %d", wall.Type, wall.Quantity)
	}
	if wall.Side == engine.SideBuy && wall.Price != 9980 {
		t.Errorf("Expected buy wall at 9980, got: %d", wall.Price)
	}
	if wall.Side == engine.SideSell && wall.Price != 10020 {
		t.Errorf("Expected sell wall at 10020, got: %d", wall.Price)
	}
}

func TestSpooferPullsWallAndStrikesOpposite(t *testing.T) {
	p := newTestParticipant(agents.TypeSpoofer)
	view := continuousView(10000, 9995, 100, 10005, 100)
	own := &agents.OwnView{Resting: []agents.RestingOrder{
		{ID: 3, Instrument: 1, Side: engine.SideBuy, Price: 9980, Remaining: 800, AgeTicks: 3},
	}}

	intents := p.Decide(view, own)
	if len(intents) != 2 {
		t.Fatalf("Expected cancel plus genuine order, got: %d", len(intents))
	}
	if intents[0].Kind != agents.IntentCancel || intents[0].OrderID != 3 {
		t.Errorf("Expected cancel of the wall, got: %s %d", intents[0].Kind, intents[0].OrderID)
	}
	if intents[1].Side != engine.SideSell || intents[1].Type != engine.TypeMarket {
		t.Errorf("Expected genuine market sell, got: %s %s", intents[1].Side, intents[1].Type)
	}
	if intents[1].Quantity != 60 {
		t.Errorf("Expected genuine size 60, got: %d", intents[1].Quantity)
	}
}

func TestSpooferHoldsYoungWall(t *testing.T) {
	p := newTestParticipant(agents.TypeSpoofer)
	view := continuousView(10000, 9995, 100, 10005, 100)
	own := &agents.OwnView{Resting: []agents.RestingOrder{
		{ID: 3, Instrument: 1, Side: engine.SideBuy, Price: 9980, Remaining: 800, AgeTicks: 1},
	}}

	if intents := p.Decide(view, own); len(intents) != 0 {
		t.Errorf("Expected the wall to be held, got %d intents", len(intents))
	}
}

func TestMomentumChasesTrend(t *testing.T) {
	p := newTestParticipant(agents.TypeMomentum)
	view := continuousView(10000, 9995, 100, 10005, 100)
	view.Instruments[0].Returns = []float64{0.002, 0.002, 0.002}

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 1 {
		t.Fatalf("Expected one intent on an uptrend, got: %d", len(intents))
	}
	if intents[0].Side != engine.SideBuy || intents[0].Type != engine.TypeMarket {
		t.Errorf("Expected aggressive buy, got: %s %s", intents[0].Side, intents[0].Type)
	}

	view.Instruments[0].Returns = []float64{-0.002, -0.002, -0.002}
	intents = p.Decide(view, &agents.OwnView{})
	if len(intents) != 1 || intents[0].Side != engine.SideSell {
		t.Error("Expected aggressive sell on a downtrend")
	}
}

func TestMomentumIgnoresFlatMarket(t *testing.T) {
	p := newTestParticipant(agents.TypeMomentum)
	view := continuousView(10000, 9995, 100, 10005, 100)
	view.Instruments[0].Returns = []float64{0.001, -0.001, 0.0005}

	if intents := p.Decide(view, &agents.OwnView{}); len(intents) != 0 {
		t.Errorf("Expected no intents below the threshold, got: %d", len(intents))
	}
}

func TestMeanReversionFadesDeviation(t *testing.T) {
	p := newTestParticipant(agents.TypeMeanReversion)
	view := continuousView(10000, 10090, 100, 10110, 100)
	view.Instruments[0].LastPrice = 10100

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 1 {
		t.Fatalf("Expected one intent, got: %d", len(intents))
	}
	if intents[0].Side != engine.SideSell || intents[0].Type != engine.TypeLimit {
		t.Errorf("Expected passive sell against the move, got: %s %s", intents[0].Side, intents[0].Type)
	}
	if intents[0].Price != 10100 {
		t.Errorf("Expected sell at the last price, got: %d", intents[0].Price)
	}
}

func TestMeanReversionWaitsWithWorkingOrder(t *testing.T) {
	p := newTestParticipant(agents.TypeMeanReversion)
	view := continuousView(10000, 10090, 100, 10110, 100)
	view.Instruments[0].LastPrice = 10100
	own := &agents.OwnView{Resting: []agents.RestingOrder{
		{ID: 5, Instrument: 1, Side: engine.SideSell, Price: 10100, Remaining: 60, AgeTicks: 2},
	}}

	if intents := p.Decide(view, own); len(intents) != 0 {
		t.Errorf("Expected no new orders while one is working, got: %d", len(intents))
	}
}

func TestRetailFollowsNewsBias(t *testing.T) {
	params := agents.DefaultPolicyParams()
	params.RetailTradeProb = 1.0
	rng := rand.New(rand.NewSource(42))
	p := agents.NewParticipant(1, "retail", agents.TypeRetail, agents.TierSlow, params, rng)

	view := continuousView(10000, 9595, 100, 9605, 100)
	view.Instruments[0].FairValue = 9600

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 1 {
		t.Fatalf("Expected one intent, got: %d", len(intents))
	}
	if intents[0].Side != engine.SideSell {
		t.Errorf("Expected sell on negative headline bias, got: %s", intents[0].Side)
	}
	if intents[0].Type != engine.TypeMarket {
		t.Errorf("Expected market order while matching runs, got: %s", intents[0].Type)
	}
}

func TestRetailRestsLimitsBeforeOpen(t *testing.T) {
	params := agents.DefaultPolicyParams()
	params.RetailTradeProb = 1.0
	rng := rand.New(rand.NewSource(42))
	p := agents.NewParticipant(1, "retail", agents.TypeRetail, agents.TierSlow, params, rng)

	view := continuousView(10000, 9995, 100, 10005, 100)
	view.Phase = market.PhasePreOpen
	view.Instruments[0].Phase = market.PhasePreOpen

	for i := 0; i < 20; i++ {
		for _, intent := range p.Decide(view, &agents.OwnView{}) {
			if intent.Type != engine.TypeLimit {
				t.Fatalf("Expected only limit orders before the open, got: %s", intent.Type)
			}
		}
	}
}

func TestArbitrageurPairsRichAndCheap(t *testing.T) {
	p := newTestParticipant(agents.TypeArbitrageur)
	view := &agents.MarketView{
		Tick:  10,
		Phase: market.PhaseContinuous,
		Instruments: []agents.InstrumentView{
			{ID: 1, Phase: market.PhaseContinuous, Reference: 10000, FairValue: 10000, BestBid: 10025, BidQty: 100, HasBid: true, BestAsk: 10035, AskQty: 100, HasAsk: true},
			{ID: 2, Phase: market.PhaseContinuous, Reference: 10000, FairValue: 10000, BestBid: 9965, BidQty: 100, HasBid: true, BestAsk: 9975, AskQty: 100, HasAsk: true},
		},
	}

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 2 {
		t.Fatalf("Expected a two-legged trade, got: %d", len(intents))
	}
	if intents[0].Instrument != 1 || intents[0].Side != engine.SideSell {
		t.Errorf("Expected to sell the rich instrument 1, got: %s on %d", intents[0].Side, intents[0].Instrument)
	}
	if intents[1].Instrument != 2 || intents[1].Side != engine.SideBuy {
		t.Errorf("Expected to buy the cheap instrument 2, got: %s on %d", intents[1].Side, intents[1].Instrument)
	}
}

func TestArbitrageurSingleInstrumentFallback(t *testing.T) {
	p := newTestParticipant(agents.TypeArbitrageur)
	view := continuousView(10000, 10025, 100, 10035, 100)
	view.Instruments[0].FairValue = 10000

	intents := p.Decide(view, &agents.OwnView{})
	if len(intents) != 1 {
		t.Fatalf("Expected one intent, got: %d", len(intents))
	}
	if intents[0].Side != engine.SideSell {
		t.Errorf("Expected sell of the rich instrument, got: %s", intents[0].Side)
	}
}

func TestInstitutionalSlicesParentThenCoolsDown(t *testing.T) {
	params := agents.DefaultPolicyParams()
	params.InstMinTarget = 600
	params.InstMaxTarget = 600
	params.InstSliceProb = 1.0
	params.InstSliceSize = 300
	params.InstCooldown = 2
	rng := rand.New(rand.NewSource(42))
	p := agents.NewParticipant(1, "inst", agents.TypeInstitutional, agents.TierMedium, params, rng)

	view := continuousView(10000, 9995, 100, 10005, 100)

	first := p.Decide(view, &agents.OwnView{})
	if len(first) != 1 || first[0].Quantity != 300 {
		t.Fatalf("Expected first 300-lot slice, got: %v", first)
	}
	second := p.Decide(view, &agents.OwnView{})
	if len(second) != 1 || second[0].Quantity != 300 {
		t.Fatalf("Expected second 300-lot slice, got: %v", second)
	}
	if first[0].Side != second[0].Side {
		t.Error("Expected both slices on the parent side")
	}
	if first[0].Type != engine.TypeLimit {
		t.Errorf("Expected passive slices, got: %s", first[0].Type)
	}

	if third := p.Decide(view, &agents.OwnView{}); len(third) != 0 {
		t.Errorf("Expected cooldown after the parent completed, got: %d intents", len(third))
	}
}

func TestPoliciesAreDeterministicForSeed(t *testing.T) {
	run := func() [][]agents.Intent {
		rng := rand.New(rand.NewSource(99))
		p := agents.NewParticipant(1, "noise", agents.TypeNoise, agents.TierFast, agents.DefaultPolicyParams(), rng)
		var rounds [][]agents.Intent
		for i := 0; i < 25; i++ {
			view := continuousView(10000+int64(i), 9990+int64(i), 100, 10010+int64(i), 100)
			rounds = append(rounds, p.Decide(view, &agents.OwnView{}))
		}
		return rounds
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("Expected identical decisions for identical seeds")
	}
}

func TestNoiseSkipsClosedMarket(t *testing.T) {
	p := newTestParticipant(agents.TypeNoise)
	view := continuousView(10000, 9995, 100, 10005, 100)
	view.Phase = market.PhasePostClose
	view.Instruments[0].Phase = market.PhasePostClose

	for i := 0; i < 20; i++ {
		if intents := p.Decide(view, &agents.OwnView{}); len(intents) != 0 {
			t.Fatalf("Expected no orders after the close, got: %d", len(intents))
		}
	}
}

func TestNoisePrivateValueStaysTethered(t *testing.T) {
	params := agents.DefaultPolicyParams()
	params.NoiseTradeProb = 1.0
	params.NoiseMarketProb = 0.0
	params.NoiseDriftVol = 5.0 // forces the walk against its clamps
	rng := rand.New(rand.NewSource(7))
	p := agents.NewParticipant(1, "noise", agents.TypeNoise, agents.TierMedium, params, rng)

	view := continuousView(10000, 9995, 100, 10005, 100)
	for i := 0; i < 50; i++ {
		for _, intent := range p.Decide(view, &agents.OwnView{}) {
			if intent.Type != engine.TypeLimit {
				t.Fatalf("Expected only limit orders, got: %s", intent.Type)
			}
			if intent.Price < 9400 || intent.Price > 10600 {
				t.Fatalf("Expected prices near the midpoint, got: %d", intent.Price)
			}
		}
	}
}

func TestUnknownTypeIdles(t *testing.T) {
	p := newTestParticipant(agents.ParticipantType("SOMETHING_ELSE"))
	view := continuousView(10000, 9995, 100, 10005, 100)

	if intents := p.Decide(view, &agents.OwnView{}); intents != nil {
		t.Errorf("Expected an unknown archetype to idle, got: %d intents", len(intents))
	}
}
