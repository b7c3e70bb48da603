package sim

import (
	"market-sim/src/agents"
	"market-sim/src/engine"
	"market-sim/src/market"
)

type TickSummary struct {
	Tick   uint64
	Phase  market.Phase
	Trades int64
	Volume int64
}

// Step runs one tick of the pipeline: news, scheduled uncrosses, volatility
// re-opens, agent decisions, delayed arrivals, breaker checks, kill switches,
// analytics marks, news decay, and finally the book invariant check. A
// session that fails the invariant check refuses to advance ever again.
func (s *Session) Step() (*TickSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.clockSlot = 0
	s.tickTrades = 0
	s.tickVolume = 0
	sessionPhase := s.schedule.PhaseAt(s.tick)

	s.applyPendingNews()

	if s.tick == s.schedule.OpeningUncrossTick() {
		s.uncrossAll("opening")
	}
	if s.tick == s.schedule.ClosingUncrossTick() {
		s.uncrossAll("closing")
	}

	if sessionPhase == market.PhaseContinuous {
		for _, state := range s.instruments {
			if state.inst.InOverride() && state.inst.AdvanceOverride(s.tick, state.auctionTicks) {
				s.uncross(state, "volatility reopen")
				state.inst.ClearOverride()
			}
		}
	}

	view := s.marketView(sessionPhase)
	for _, p := range s.participants {
		if !p.Active {
			continue
		}
		intents := p.Decide(view, s.ownView(p.ID))
		if len(intents) > 0 {
			s.latency.Push(p.ID, p.Tier, s.tick, intents)
		}
	}

	for _, queued := range s.latency.Drain(s.tick) {
		s.applyIntent(queued, sessionPhase)
	}

	if sessionPhase == market.PhaseContinuous {
		for _, state := range s.instruments {
			if state.inst.InOverride() {
				continue
			}
			action := state.inst.CheckBands()
			if action == market.BreakerNone {
				continue
			}
			state.inst.TriggerBreaker(action, s.tick, state.auctionTicks, state.haltTicks)
			s.agg.BreakerTriggered(state.inst.ID)
			s.logger.Warn().
				Str("symbol", state.inst.Symbol).
				Int64("reference", state.inst.Reference).
				Int64("last_price", state.inst.LastPrice).
				Int64("fair_value", state.inst.FairValue()).
				Bool("halt", action == market.BreakerHalt).
				Msg("Circuit breaker triggered")
		}
	}

	marks := s.marks()
	for _, p := range s.participants {
		if !p.Active || p.MaxLoss <= 0 {
			continue
		}
		if net := p.NetPnL(marks); net <= -p.MaxLoss {
			p.KillSwitch()
			s.logger.Warn().
				Int64("participant", p.ID).
				Str("name", p.Name).
				Int64("net_pnl", net).
				Int64("max_loss", p.MaxLoss).
				Msg("Kill switch tripped")
			if p.NeedsWindDown() {
				s.windDown(p)
			}
		}
	}

	for _, state := range s.instruments {
		book, _ := s.matcher.Book(state.inst.ID)
		eff := state.inst.EffectivePhase(sessionPhase)
		bid, _, hasBid := book.GetBestBid()
		ask, _, hasAsk := book.GetBestAsk()
		twoSided := hasBid && hasAsk && eff.Matching()
		var spread int64
		if twoSided {
			spread = ask - bid
		}
		mark := state.inst.LastPrice
		s.agg.MarkInstrument(state.inst.ID, spread, twoSided, mark)
		state.recordReturn(mark, s.cfg.ReturnsWindow)
	}
	for _, p := range s.participants {
		realized := p.RealizedTotal()
		unrealized := p.UnrealizedTotal(marks)
		s.agg.MarkParticipant(p.ID, realized, unrealized, p.Fees, realized+unrealized-p.Fees, p.Active)
	}

	for _, state := range s.instruments {
		state.inst.AdvanceNews()
	}

	for _, state := range s.instruments {
		if !state.inst.EffectivePhase(sessionPhase).Matching() {
			continue
		}
		book, _ := s.matcher.Book(state.inst.ID)
		if book.Crossed() {
			bid, _, _ := book.GetBestBid()
			ask, _, _ := book.GetBestAsk()
			s.err = &InvariantViolationError{
				Instrument: state.inst.ID,
				Symbol:     state.inst.Symbol,
				BestBid:    bid,
				BestAsk:    ask,
			}
			s.logger.Error().
				Str("symbol", state.inst.Symbol).
				Int64("best_bid", bid).
				Int64("best_ask", ask).
				Msg("Book crossed after matching, session halted")
			return nil, s.err
		}
	}

	summary := &TickSummary{
		Tick:   s.tick,
		Phase:  sessionPhase,
		Trades: s.tickTrades,
		Volume: s.tickVolume,
	}
	s.tick++
	return summary, nil
}

func (s *Session) applyPendingNews() {
	if len(s.pending) == 0 {
		return
	}
	for _, ev := range s.pending {
		ev.Tick = s.tick
		if ev.Instrument == 0 {
			for _, state := range s.instruments {
				state.inst.ApplyNews(ev)
			}
		} else if state := s.instByID[ev.Instrument]; state != nil {
			state.inst.ApplyNews(ev)
		}
		s.totalNews++
		s.logger.Info().
			Int64("event_id", ev.ID).
			Str("headline", ev.Headline).
			Int64("instrument", ev.Instrument).
			Float64("sentiment", ev.Sentiment).
			Float64("magnitude", ev.Magnitude).
			Uint64("horizon", ev.Horizon).
			Str("decay", string(ev.Decay)).
			Msg("News applied")
	}
	s.pending = s.pending[:0]
}

func (s *Session) uncrossAll(reason string) {
	for _, state := range s.instruments {
		s.uncross(state, reason)
	}
}

// uncross runs the single-price auction for one instrument and re-anchors it
// on the clearing price. A book with no crossing interest is left as is.
func (s *Session) uncross(state *instrumentState, reason string) {
	book, _ := s.matcher.Book(state.inst.ID)
	result := s.matcher.RunAuction(book, state.inst.Reference, s.now(), s.tick)
	if result == nil {
		s.logger.Debug().
			Str("symbol", state.inst.Symbol).
			Str("reason", reason).
			Msg("Uncross found no executable volume")
		return
	}
	s.processTrades(result.Trades)
	state.inst.Reopen(result.ClearingPrice)
	s.logger.Info().
		Str("symbol", state.inst.Symbol).
		Str("reason", reason).
		Int64("clearing_price", result.ClearingPrice).
		Int64("volume", result.Volume).
		Msg("Auction uncross")
}

// applyIntent delivers one queued intent to the book. Intents from
// kill-switched participants are dropped in flight.
func (s *Session) applyIntent(queued agents.QueuedIntent, sessionPhase market.Phase) {
	owner := s.partByID[queued.Participant]
	if owner == nil || !owner.Active {
		return
	}
	switch queued.Intent.Kind {
	case agents.IntentSubmit:
		s.applySubmit(owner, queued.Intent, sessionPhase)
	case agents.IntentCancel:
		s.applyCancel(owner, queued.Intent)
	case agents.IntentModify:
		s.applyModify(owner, queued.Intent, sessionPhase)
	}
}

func (s *Session) applySubmit(owner *agents.Participant, intent agents.Intent, sessionPhase market.Phase) {
	state := s.instByID[intent.Instrument]
	if state == nil {
		s.agg.OrderRejected(owner.ID)
		return
	}
	eff := state.inst.EffectivePhase(sessionPhase)
	if !eff.AcceptsOrders() {
		s.agg.OrderRejected(owner.ID)
		return
	}
	if owner.MaxPosition > 0 {
		projected := owner.Position(intent.Instrument).Quantity
		if intent.Side == engine.SideBuy {
			projected += intent.Quantity
		} else {
			projected -= intent.Quantity
		}
		if projected > owner.MaxPosition || projected < -owner.MaxPosition {
			s.agg.OrderRejected(owner.ID)
			return
		}
	}

	order := s.matcher.NewOrder(intent.Instrument, owner.ID, intent.Side, intent.Type, intent.Price, intent.Quantity)
	var result *engine.MatchResult
	var err error
	if eff.Matching() {
		result, err = s.matcher.Submit(order, s.now(), s.tick)
	} else {
		result, err = s.matcher.Accumulate(order, s.now(), s.tick)
	}
	if err != nil {
		s.agg.OrderRejected(owner.ID)
		return
	}
	s.agg.OrderAccepted(owner.ID, order.Quantity)
	s.processTrades(result.Trades)
}

func (s *Session) applyCancel(owner *agents.Participant, intent agents.Intent) {
	order := s.matcher.Store().Get(intent.OrderID)
	// edge case: cancels racing a fill or aimed at foreign orders are dropped
	if order == nil || order.Participant != owner.ID {
		return
	}
	if _, err := s.matcher.Cancel(intent.OrderID); err == nil {
		s.agg.OrderCancelled(owner.ID)
	}
}

func (s *Session) applyModify(owner *agents.Participant, intent agents.Intent, sessionPhase market.Phase) {
	state := s.instByID[intent.Instrument]
	if state == nil {
		return
	}
	eff := state.inst.EffectivePhase(sessionPhase)
	if !eff.AcceptsOrders() {
		return
	}
	order := s.matcher.Store().Get(intent.OrderID)
	if order == nil || order.Participant != owner.ID || !order.IsResting() {
		return
	}

	oldRemaining := order.RemainingQuantity()
	// the intent carries the desired remaining quantity
	quantity := intent.Quantity + order.Filled
	result, err := s.matcher.Modify(order.ID, intent.Price, quantity, s.now(), s.tick, eff.Matching())
	if err != nil {
		return
	}
	s.agg.OrderModified(owner.ID, intent.Quantity-oldRemaining)
	s.processTrades(result.Trades)
}
