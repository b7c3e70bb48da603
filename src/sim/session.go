package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-sim/src/agents"
	"market-sim/src/analytics"
	"market-sim/src/config"
	"market-sim/src/engine"
	"market-sim/src/market"
)

const (
	tickNanos     = int64(1_000_000) // one simulated millisecond per tick
	snapshotDepth = 32
	recentTrades  = 50

	defaultAuctionTicks = uint64(10)
	defaultHaltTicks    = uint64(20)
)

// instrumentState pairs the tradable instrument with the session-side
// bookkeeping that does not belong on the instrument itself.
type instrumentState struct {
	inst         *market.Instrument
	auctionTicks uint64
	haltTicks    uint64
	newsDecay    market.DecayMode // default for events that carry none

	returns  []float64 // rolling per-tick log returns of the mark
	lastMark int64
}

// Session is one deterministic simulation run. Everything it owns is mutated
// by exactly one goroutine at a time; the facade above serializes access.
type Session struct {
	id     string
	name   string
	cfg    config.SessionConfig
	logger zerolog.Logger

	matcher  *engine.Matcher
	schedule market.Schedule
	fees     analytics.FeeSchedule

	instruments []*instrumentState // ascending id
	instByID    map[int64]*instrumentState

	participants []*agents.Participant // ascending id
	partByID     map[int64]*agents.Participant

	latency *agents.LatencyQueue
	agg     *analytics.Aggregator

	tick       uint64
	clockSlot  int64 // intra-tick event counter for timestamps
	newsSeq    int64
	pending    []*market.NewsEvent
	totalNews  int64
	tickTrades int64
	tickVolume int64

	trades []*engine.Trade // order of execution; snapshots serve it newest first

	err error // sticky after an invariant violation
}

// NewSession builds the whole cast from a profile: books, instruments,
// participants with their seeded rngs, and the analytics ledger.
func NewSession(cfg config.SessionConfig, logger zerolog.Logger) *Session {
	s := &Session{
		id:       uuid.New().String(),
		name:     cfg.Name,
		cfg:      cfg,
		matcher:  engine.NewMatcher(),
		schedule: cfg.Schedule.MarketSchedule(),
		fees:     cfg.Fees.FeeSchedule(),
		instByID: make(map[int64]*instrumentState),
		partByID: make(map[int64]*agents.Participant),
		latency:  agents.NewLatencyQueue(),
		agg:      analytics.NewAggregator(cfg.Fees.FeeSchedule()),
	}
	if s.name == "" {
		s.name = "session"
	}
	s.logger = logger.With().Str("session_id", s.id).Str("session", s.name).Logger()

	for i, ic := range cfg.Instruments {
		id := int64(i + 1)
		s.matcher.AddBook(id, ic.Symbol)
		state := &instrumentState{
			inst:         market.NewInstrument(id, ic.Symbol, ic.Reference, ic.BandBps, ic.HaltBandBps),
			auctionTicks: ic.AuctionTicks,
			haltTicks:    ic.HaltTicks,
			newsDecay:    market.DecayMode(ic.DefaultNewsDecay),
		}
		if state.auctionTicks == 0 {
			state.auctionTicks = defaultAuctionTicks
		}
		if state.haltTicks == 0 {
			state.haltTicks = defaultHaltTicks
		}
		if state.newsDecay != market.DecayLinear && state.newsDecay != market.DecayExponential {
			state.newsDecay = market.DecayLinear
		}
		s.instruments = append(s.instruments, state)
		s.instByID[id] = state
		s.agg.AddInstrument(id, ic.Symbol)
	}

	// every participant draws its seed from the profile seed, so the whole
	// cast replays from one number
	rootRng := rand.New(rand.NewSource(cfg.Seed))
	params := cfg.Policy.PolicyParams()
	nextID := int64(1)
	for _, cohort := range cfg.Participants {
		for n := 0; n < cohort.Count; n++ {
			name := cohort.Name
			if cohort.Count > 1 {
				name = fmt.Sprintf("%s-%d", cohort.Name, n+1)
			}
			rng := rand.New(rand.NewSource(rootRng.Int63()))
			p := agents.NewParticipant(nextID, name, agents.ParticipantType(cohort.Type), agents.LatencyTier(cohort.Tier), params, rng)
			p.MaxPosition = cohort.MaxPosition
			p.MaxLoss = cohort.MaxLoss
			s.participants = append(s.participants, p)
			s.partByID[nextID] = p
			s.agg.AddParticipant(nextID, name, cohort.Type)
			nextID++
		}
	}

	s.logger.Info().
		Int("instruments", len(s.instruments)).
		Int("participants", len(s.participants)).
		Int64("seed", cfg.Seed).
		Uint64("session_ticks", s.schedule.SessionTicks).
		Msg("Session created")

	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) Tick() uint64 {
	return s.tick
}

func (s *Session) Phase() market.Phase {
	return s.schedule.PhaseAt(s.tick)
}

// Err reports the latched invariant failure, if any. A session with a
// non-nil Err never advances again.
func (s *Session) Err() error {
	return s.err
}

// now produces a strictly increasing simulated timestamp within the tick.
func (s *Session) now() int64 {
	ts := int64(s.tick)*tickNanos + s.clockSlot
	s.clockSlot++
	return ts
}

// QueueNews accepts an event for application at the start of the next tick.
// The returned event carries its assigned id. Events without a decay mode
// inherit the target instrument's configured default.
func (s *Session) QueueNews(ev *market.NewsEvent) *market.NewsEvent {
	s.newsSeq++
	ev.ID = s.newsSeq
	ev.Tick = s.tick
	if ev.Decay == "" {
		ev.Decay = market.DecayLinear
		if state := s.instByID[ev.Instrument]; state != nil {
			ev.Decay = state.newsDecay
		}
	}
	s.pending = append(s.pending, ev)
	return ev
}

// HasInstrument reports whether an id names a tradable instrument.
func (s *Session) HasInstrument(id int64) bool {
	_, exists := s.instByID[id]
	return exists
}

// marks returns the valuation price per instrument: last trade when there is
// one, the reference anchor otherwise.
func (s *Session) marks() map[int64]int64 {
	marks := make(map[int64]int64, len(s.instruments))
	for _, state := range s.instruments {
		mark := state.inst.LastPrice
		if mark <= 0 {
			mark = state.inst.Reference
		}
		marks[state.inst.ID] = mark
	}
	return marks
}

// processTrades settles a batch of executions: inventory, fees, analytics
// and the trade tape.
func (s *Session) processTrades(trades []*engine.Trade) {
	for _, trade := range trades {
		state := s.instByID[trade.Instrument]
		state.inst.RecordTrade(trade.Price)

		buyer := s.partByID[trade.Buyer]
		seller := s.partByID[trade.Seller]
		buyer.ApplyFill(trade.Instrument, engine.SideBuy, trade.Price, trade.Quantity)
		seller.ApplyFill(trade.Instrument, engine.SideSell, trade.Price, trade.Quantity)

		makerFee := s.fees.Maker(trade.Price, trade.Quantity)
		takerFee := s.fees.Taker(trade.Price, trade.Quantity)
		s.partByID[trade.Maker()].AddFee(makerFee)
		s.partByID[trade.Taker()].AddFee(takerFee)

		s.agg.TradeExecuted(trade, makerFee, takerFee)

		s.trades = append(s.trades, trade)
		if len(s.trades) > s.cfg.TradeHistoryLimit {
			s.trades = s.trades[len(s.trades)-s.cfg.TradeHistoryLimit:]
		}
		s.tickTrades++
		s.tickVolume += trade.Quantity
	}
}

// marketView assembles the shared decision input for the current tick.
func (s *Session) marketView(sessionPhase market.Phase) *agents.MarketView {
	view := &agents.MarketView{
		Tick:  s.tick,
		Phase: sessionPhase,
	}
	for _, state := range s.instruments {
		book, _ := s.matcher.Book(state.inst.ID)
		bid, bidQty, hasBid := book.GetBestBid()
		ask, askQty, hasAsk := book.GetBestAsk()

		returns := make([]float64, len(state.returns))
		copy(returns, state.returns)

		view.Instruments = append(view.Instruments, agents.InstrumentView{
			ID:        state.inst.ID,
			Symbol:    state.inst.Symbol,
			Phase:     state.inst.EffectivePhase(sessionPhase),
			Reference: state.inst.Reference,
			FairValue: state.inst.FairValue(),
			LastPrice: state.inst.LastPrice,
			BestBid:   bid,
			BidQty:    bidQty,
			HasBid:    hasBid,
			BestAsk:   ask,
			AskQty:    askQty,
			HasAsk:    hasAsk,
			Returns:   returns,
		})
	}
	return view
}

// ownView collects one participant's live orders across all books.
func (s *Session) ownView(participant int64) *agents.OwnView {
	own := &agents.OwnView{}
	store := s.matcher.Store()
	for _, book := range s.matcher.Books() {
		for _, id := range book.RestingOrders(participant) {
			order := store.Get(id)
			own.Resting = append(own.Resting, agents.RestingOrder{
				ID:         order.ID,
				Instrument: order.Instrument,
				Side:       order.Side,
				Price:      order.Price,
				Remaining:  order.RemainingQuantity(),
				AgeTicks:   s.tick - order.Tick,
			})
		}
	}
	return own
}

// windDown pulls every resting order of a kill-switched participant off the
// books immediately, without a latency round trip.
func (s *Session) windDown(p *agents.Participant) {
	cancelled := 0
	for _, book := range s.matcher.Books() {
		for _, id := range book.RestingOrders(p.ID) {
			if _, err := s.matcher.Cancel(id); err == nil {
				s.agg.OrderCancelled(p.ID)
				cancelled++
			}
		}
	}
	s.logger.Warn().
		Int64("participant", p.ID).
		Str("name", p.Name).
		Int("cancelled", cancelled).
		Msg("Kill switch wind-down")
}

// recordReturn appends the tick's log return of the mark to the rolling
// window the momentum and volatility math reads.
func (st *instrumentState) recordReturn(mark int64, window int) {
	if mark > 0 && st.lastMark > 0 {
		st.returns = append(st.returns, math.Log(float64(mark)/float64(st.lastMark)))
		if len(st.returns) > window {
			st.returns = st.returns[len(st.returns)-window:]
		}
	}
	if mark > 0 {
		st.lastMark = mark
	}
}
