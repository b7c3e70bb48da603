package sim

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"market-sim/src/agents"
	"market-sim/src/config"
	"market-sim/src/engine"
	"market-sim/src/market"
)

func internalTestProfile(participants ...config.ParticipantConfig) config.SessionConfig {
	return config.SessionConfig{
		Seed:              7,
		ReturnsWindow:     16,
		TradeHistoryLimit: 100,
		Schedule: config.ScheduleConfig{
			PreOpenTicks:        1,
			OpeningAuctionTicks: 1,
			ClosingAuctionTicks: 1,
			SessionTicks:        10,
		},
		Instruments: []config.InstrumentConfig{
			{Symbol: "TESTA", Reference: 10000, AuctionTicks: 3, HaltTicks: 3},
		},
		Participants: participants,
		Policy:       config.Default().Session.Policy,
	}
}

func TestKillSwitchWindsDownImmediately(t *testing.T) {
	profile := internalTestProfile(
		config.ParticipantConfig{Name: "risky", Type: "OTHER", Tier: "COLOCATED", Count: 1, MaxLoss: 100},
	)
	s := NewSession(profile, zerolog.Nop())
	p := s.participants[0]

	// a round trip at a loss, well past the kill threshold
	p.ApplyFill(1, engine.SideBuy, 10000, 10)
	p.ApplyFill(1, engine.SideSell, 9000, 10)

	order := s.matcher.NewOrder(1, p.ID, engine.SideBuy, engine.TypeLimit, 9500, 10)
	if _, err := s.matcher.Accumulate(order, 0, 0); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Step(); err != nil {
		t.Fatal(err)
	}

	if p.Active {
		t.Error("Expected the participant to be kill-switched")
	}
	book, _ := s.matcher.Book(1)
	if book.RestingCount() != 0 {
		t.Errorf("Expected the resting order to be wound down, got: %d", book.RestingCount())
	}

	report := s.agg.Report()
	for _, metrics := range report.Participants {
		if metrics.Participant == p.ID {
			if metrics.Active {
				t.Error("Expected the report to show the participant inactive")
			}
			if metrics.Cancels != 1 {
				t.Errorf("Expected one wind-down cancel, got: %d", metrics.Cancels)
			}
		}
	}
}

func TestPositionCapRejectsAtArrival(t *testing.T) {
	profile := internalTestProfile(
		config.ParticipantConfig{Name: "capped", Type: "OTHER", Tier: "COLOCATED", Count: 1, MaxPosition: 50},
	)
	s := NewSession(profile, zerolog.Nop())
	owner := s.participants[0]

	over := agents.Intent{Kind: agents.IntentSubmit, Instrument: 1, Side: engine.SideBuy, Type: engine.TypeLimit, Price: 9900, Quantity: 100}
	s.applySubmit(owner, over, market.PhaseContinuous)

	owner.ApplyFill(1, engine.SideBuy, 10000, 40)
	breach := agents.Intent{Kind: agents.IntentSubmit, Instrument: 1, Side: engine.SideBuy, Type: engine.TypeLimit, Price: 9900, Quantity: 20}
	s.applySubmit(owner, breach, market.PhaseContinuous)

	fits := agents.Intent{Kind: agents.IntentSubmit, Instrument: 1, Side: engine.SideBuy, Type: engine.TypeLimit, Price: 9900, Quantity: 10}
	s.applySubmit(owner, fits, market.PhaseContinuous)

	report := s.agg.Report()
	for _, metrics := range report.Participants {
		if metrics.Participant == owner.ID {
			if metrics.Rejects != 2 {
				t.Errorf("Expected 2 rejected submits, got: %d", metrics.Rejects)
			}
			if metrics.Orders != 1 {
				t.Errorf("Expected 1 accepted submit, got: %d", metrics.Orders)
			}
		}
	}
}

func TestScheduledUncrossReanchorsReference(t *testing.T) {
	profile := internalTestProfile(
		config.ParticipantConfig{Name: "idle", Type: "OTHER", Tier: "COLOCATED", Count: 2},
	)
	s := NewSession(profile, zerolog.Nop())

	buy := s.matcher.NewOrder(1, s.participants[0].ID, engine.SideBuy, engine.TypeLimit, 10100, 100)
	if _, err := s.matcher.Accumulate(buy, 0, 0); err != nil {
		t.Fatal(err)
	}
	sell := s.matcher.NewOrder(1, s.participants[1].ID, engine.SideSell, engine.TypeLimit, 10050, 100)
	if _, err := s.matcher.Accumulate(sell, 1, 0); err != nil {
		t.Fatal(err)
	}

	// pre-open, opening auction, then the uncross at the first continuous tick
	for i := 0; i < 3; i++ {
		if _, err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}

	state := s.instByID[1]
	if state.inst.Reference != 10050 {
		t.Errorf("Expected reference re-anchored to 10050, got: %d", state.inst.Reference)
	}
	if state.inst.LastPrice != 10050 {
		t.Errorf("Expected last price 10050, got: %d", state.inst.LastPrice)
	}
	if len(s.trades) != 1 {
		t.Fatalf("Expected one auction trade, got: %d", len(s.trades))
	}
	if !s.trades[0].Auction || s.trades[0].Price != 10050 {
		t.Errorf("Expected auction print at 10050, got: auction=%v price=%d", s.trades[0].Auction, s.trades[0].Price)
	}
}

func TestBusyControlPathKeepsReadsLockFree(t *testing.T) {
	cfg := config.Default()
	cfg.Session = internalTestProfile(
		config.ParticipantConfig{Name: "idle", Type: "OTHER", Tier: "COLOCATED", Count: 1},
	)
	sm := NewSimulator(cfg, zerolog.Nop())
	if _, err := sm.Start(StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Step(2); err != nil {
		t.Fatal(err)
	}

	// a held control lock stands in for a step batch still in flight
	sm.mu.Lock()

	var busy *SessionBusyError
	if _, err := sm.Step(1); !errors.As(err, &busy) {
		t.Errorf("Expected a busy error from step, got: %v", err)
	}
	if _, err := sm.Start(StartOptions{}); !errors.As(err, &busy) {
		t.Errorf("Expected a busy error from start, got: %v", err)
	}
	if _, err := sm.Stop(); !errors.As(err, &busy) {
		t.Errorf("Expected a busy error from stop, got: %v", err)
	}
	ev := &market.NewsEvent{Instrument: 1, Sentiment: 0.5, Magnitude: 0.1, Horizon: 5}
	if _, err := sm.InjectNews(ev); !errors.As(err, &busy) {
		t.Errorf("Expected a busy error from inject, got: %v", err)
	}

	if _, err := sm.Snapshot(); err != nil {
		t.Errorf("Expected snapshot reads to bypass the control lock, got: %v", err)
	}
	if _, err := sm.OrderBook("TESTA", 5); err != nil {
		t.Errorf("Expected orderbook reads to bypass the control lock, got: %v", err)
	}
	if _, err := sm.Analytics(); err != nil {
		t.Errorf("Expected analytics reads to bypass the control lock, got: %v", err)
	}

	sm.mu.Unlock()

	if _, err := sm.Step(1); err != nil {
		t.Errorf("Expected stepping to resume once the lock frees, got: %v", err)
	}
}

func TestModifyIntentCarriesDesiredRemaining(t *testing.T) {
	profile := internalTestProfile(
		config.ParticipantConfig{Name: "solo", Type: "OTHER", Tier: "COLOCATED", Count: 1},
	)
	s := NewSession(profile, zerolog.Nop())
	owner := s.participants[0]

	order := s.matcher.NewOrder(1, owner.ID, engine.SideBuy, engine.TypeLimit, 9900, 100)
	if _, err := s.matcher.Accumulate(order, 0, 0); err != nil {
		t.Fatal(err)
	}
	order.Fill(30)

	intent := agents.Intent{Kind: agents.IntentModify, Instrument: 1, OrderID: order.ID, Price: 9900, Quantity: 50}
	s.applyModify(owner, intent, market.PhaseContinuous)

	if order.RemainingQuantity() != 50 {
		t.Errorf("Expected remaining 50 after the modify, got: %d", order.RemainingQuantity())
	}
	if order.Quantity != 80 {
		t.Errorf("Expected total quantity 80 (50 remaining + 30 filled), got: %d", order.Quantity)
	}
}
