package agents

import (
	"market-sim/src/engine"
	"market-sim/src/market"
)

// InstrumentView is the per-instrument slice of the world a policy sees at
// decision time. Everything here was true at the start of the tick; fills
// and book changes from the current tick are not visible yet.
type InstrumentView struct {
	ID        int64
	Symbol    string
	Phase     market.Phase
	Reference int64
	FairValue int64
	LastPrice int64
	BestBid   int64
	BidQty    int64
	HasBid    bool
	BestAsk   int64
	AskQty    int64
	HasAsk    bool
	Returns   []float64 // per-tick log returns, oldest first
}

// Mid is the quote midpoint, falling back to fair value on a one-sided or
// empty book.
func (v *InstrumentView) Mid() int64 {
	if v.HasBid && v.HasAsk {
		return (v.BestBid + v.BestAsk) / 2
	}
	return v.FairValue
}

// Spread is best ask minus best bid, 0 unless both sides quote.
func (v *InstrumentView) Spread() int64 {
	if v.HasBid && v.HasAsk {
		return v.BestAsk - v.BestBid
	}
	return 0
}

// Imbalance is (bidQty-askQty)/(bidQty+askQty) at the top of the book.
func (v *InstrumentView) Imbalance() float64 {
	total := v.BidQty + v.AskQty
	if total == 0 {
		return 0
	}
	return float64(v.BidQty-v.AskQty) / float64(total)
}

// MomentumSignal sums the most recent window of returns.
func (v *InstrumentView) MomentumSignal(window int) float64 {
	returns := v.Returns
	if len(returns) > window {
		returns = returns[len(returns)-window:]
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	return sum
}

type MarketView struct {
	Tick        uint64
	Phase       market.Phase
	Instruments []InstrumentView
}

func (v *MarketView) Instrument(id int64) *InstrumentView {
	for i := range v.Instruments {
		if v.Instruments[i].ID == id {
			return &v.Instruments[i]
		}
	}
	return nil
}

// RestingOrder is a participant's own live order as seen at decision time.
type RestingOrder struct {
	ID         int64
	Instrument int64
	Side       engine.OrderSide
	Price      int64
	Remaining  int64
	AgeTicks   uint64
}

// OwnView is the private half of the decision input: the participant's own
// resting orders in price-time order.
type OwnView struct {
	Resting []RestingOrder
}

func (o *OwnView) ForInstrument(id int64) []RestingOrder {
	var orders []RestingOrder
	for _, order := range o.Resting {
		if order.Instrument == id {
			orders = append(orders, order)
		}
	}
	return orders
}

type IntentKind string

const (
	IntentSubmit IntentKind = "SUBMIT"
	IntentCancel IntentKind = "CANCEL"
	IntentModify IntentKind = "MODIFY"
)

// Intent is one decision emitted by a policy. It travels through the latency
// queue and only touches the book on arrival.
type Intent struct {
	Kind       IntentKind
	Instrument int64
	Side       engine.OrderSide
	Type       engine.OrderType
	Price      int64
	Quantity   int64
	OrderID    int64 // cancel/modify target
}

func submit(instrument int64, side engine.OrderSide, orderType engine.OrderType, price, quantity int64) Intent {
	return Intent{
		Kind:       IntentSubmit,
		Instrument: instrument,
		Side:       side,
		Type:       orderType,
		Price:      price,
		Quantity:   quantity,
	}
}

func cancel(instrument, orderID int64) Intent {
	return Intent{
		Kind:       IntentCancel,
		Instrument: instrument,
		OrderID:    orderID,
	}
}

func modify(instrument, orderID, price, quantity int64) Intent {
	return Intent{
		Kind:       IntentModify,
		Instrument: instrument,
		OrderID:    orderID,
		Price:      price,
		Quantity:   quantity,
	}
}
