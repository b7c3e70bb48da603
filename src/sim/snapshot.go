package sim

import (
	"market-sim/src/analytics"
	"market-sim/src/engine"
	"market-sim/src/market"
)

// TradeView is one executed trade as served to readers.
type TradeView struct {
	ID         int64
	Instrument int64
	Symbol     string
	Price      int64
	Quantity   int64
	Tick       uint64
	Timestamp  int64 // simulated nanoseconds
	Aggressor  engine.OrderSide
	Auction    bool
}

type InstrumentSnapshot struct {
	ID        int64
	Symbol    string
	Phase     market.Phase
	Reference int64
	FairValue int64
	LastPrice int64

	BestBid int64
	BidQty  int64
	HasBid  bool
	BestAsk int64
	AskQty  int64
	HasAsk  bool

	Bids []engine.LevelSnapshot
	Asks []engine.LevelSnapshot

	RestingOrders   int
	ActiveNews      int
	BreakerTriggers int64
}

// Snapshot is the consistent read surface published after every tick.
// Readers never touch live session state.
type Snapshot struct {
	SessionID   string
	SessionName string
	Tick        uint64
	Phase       market.Phase
	Running     bool

	Instruments []InstrumentSnapshot
	Trades      []TradeView // newest first
	Report      *analytics.Report

	QueueDepth int
	TotalNews  int64
}

func (s *Snapshot) Instrument(id int64) *InstrumentSnapshot {
	for i := range s.Instruments {
		if s.Instruments[i].ID == id {
			return &s.Instruments[i]
		}
	}
	return nil
}

// Snapshot captures the current state of the session. Called between ticks
// only, so everything it reads is quiescent.
func (s *Session) Snapshot(running bool) *Snapshot {
	sessionPhase := s.schedule.PhaseAt(s.tick)
	snap := &Snapshot{
		SessionID:   s.id,
		SessionName: s.name,
		Tick:        s.tick,
		Phase:       sessionPhase,
		Running:     running,
		Report:      s.agg.Report(),
		QueueDepth:  s.latency.Len(),
		TotalNews:   s.totalNews,
	}

	for _, state := range s.instruments {
		book, _ := s.matcher.Book(state.inst.ID)
		bid, bidQty, hasBid := book.GetBestBid()
		ask, askQty, hasAsk := book.GetBestAsk()
		bids, asks := book.DepthSnapshot(snapshotDepth)

		snap.Instruments = append(snap.Instruments, InstrumentSnapshot{
			ID:              state.inst.ID,
			Symbol:          state.inst.Symbol,
			Phase:           state.inst.EffectivePhase(sessionPhase),
			Reference:       state.inst.Reference,
			FairValue:       state.inst.FairValue(),
			LastPrice:       state.inst.LastPrice,
			BestBid:         bid,
			BidQty:          bidQty,
			HasBid:          hasBid,
			BestAsk:         ask,
			AskQty:          askQty,
			HasAsk:          hasAsk,
			Bids:            bids,
			Asks:            asks,
			RestingOrders:   book.RestingCount(),
			ActiveNews:      state.inst.ActiveNews(),
			BreakerTriggers: state.inst.Triggers,
		})
	}

	count := len(s.trades)
	if count > recentTrades {
		count = recentTrades
	}
	snap.Trades = make([]TradeView, 0, count)
	for i := len(s.trades) - 1; i >= len(s.trades)-count; i-- {
		trade := s.trades[i]
		symbol := ""
		if state := s.instByID[trade.Instrument]; state != nil {
			symbol = state.inst.Symbol
		}
		snap.Trades = append(snap.Trades, TradeView{
			ID:         trade.ID,
			Instrument: trade.Instrument,
			Symbol:     symbol,
			Price:      trade.Price,
			Quantity:   trade.Quantity,
			Tick:       trade.Tick,
			Timestamp:  trade.Timestamp,
			Aggressor:  trade.Aggressor,
			Auction:    trade.Auction,
		})
	}

	return snap
}
