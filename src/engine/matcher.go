package engine

import (
	"sort"
)

// Matcher owns the per-instrument books and the arrival/trade sequences.
// It is driven by one goroutine at a time; callers gate concurrency above it.
type Matcher struct {
	store    *OrderStore
	books    map[int64]*Book
	ids      []int64 // instrument ids in ascending order for deterministic sweeps
	seq      uint64
	tradeSeq int64
}

func NewMatcher() *Matcher {
	return &Matcher{
		store: NewOrderStore(),
		books: make(map[int64]*Book),
	}
}

func (m *Matcher) Store() *OrderStore {
	return m.store
}

func (m *Matcher) AddBook(instrument int64, symbol string) *Book {
	if book, exists := m.books[instrument]; exists {
		return book
	}
	book := NewBook(instrument, symbol, m.store)
	m.books[instrument] = book
	m.ids = append(m.ids, instrument)
	sort.Slice(m.ids, func(i, j int) bool { return m.ids[i] < m.ids[j] })
	return book
}

func (m *Matcher) Book(instrument int64) (*Book, bool) {
	book, exists := m.books[instrument]
	return book, exists
}

// Books returns every book in ascending instrument id order.
func (m *Matcher) Books() []*Book {
	books := make([]*Book, 0, len(m.ids))
	for _, id := range m.ids {
		books = append(books, m.books[id])
	}
	return books
}

func (m *Matcher) nextSeq() uint64 {
	m.seq++
	return m.seq
}

// NewOrder allocates an order in the arena. Sequence and timestamps are
// assigned later, when the order actually reaches a book.
func (m *Matcher) NewOrder(instrument, participant int64, side OrderSide, orderType OrderType, price, quantity int64) *Order {
	order := &Order{
		Instrument:  instrument,
		Participant: participant,
		Side:        side,
		Type:        orderType,
		Price:       price,
		Quantity:    quantity,
		Status:      StatusAccepted,
	}
	m.store.Add(order)
	return order
}

func (m *Matcher) validate(order *Order) error {
	if _, exists := m.books[order.Instrument]; !exists {
		return &ValidationError{Reason: "unknown instrument"}
	}
	if order.Side != SideBuy && order.Side != SideSell {
		return &ValidationError{Reason: "side must be BUY or SELL"}
	}
	if order.Quantity <= 0 {
		return &ValidationError{Reason: "quantity must be positive"}
	}
	if order.Type == TypeLimit && order.Price <= 0 {
		return &ValidationError{Reason: "limit price must be positive"}
	}
	return nil
}

type MatchResult struct {
	Status            OrderStatus
	FilledQuantity    int64
	RemainingQuantity int64
	Trades            []*Trade
}

// Submit runs continuous price-time matching for an incoming order.
func (m *Matcher) Submit(order *Order, now int64, tick uint64) (*MatchResult, error) {
	if err := m.validate(order); err != nil {
		order.Status = StatusRejected
		return nil, err
	}
	book := m.books[order.Instrument]

	order.Seq = m.nextSeq()
	order.Tick = tick
	order.Timestamp = now

	if order.Type == TypeMarket {
		return m.matchMarketOrder(order, book, now, tick)
	}
	return m.matchLimitOrder(order, book, now, tick)
}

// Accumulate rests an order without matching, which is how auction and halt
// phases collect interest until the uncross.
// edge case: market orders carry no price bound, so they are rejected while
// matching is suspended instead of resting at an undefined level
func (m *Matcher) Accumulate(order *Order, now int64, tick uint64) (*MatchResult, error) {
	if err := m.validate(order); err != nil {
		order.Status = StatusRejected
		return nil, err
	}
	if order.Type == TypeMarket {
		order.Status = StatusRejected
		return nil, &ValidationError{Reason: "market orders are not accepted while matching is suspended"}
	}
	book := m.books[order.Instrument]

	order.Seq = m.nextSeq()
	order.Tick = tick
	order.Timestamp = now
	book.Rest(order)

	return &MatchResult{
		Status:            StatusAccepted,
		FilledQuantity:    0,
		RemainingQuantity: order.Quantity,
		Trades:            make([]*Trade, 0),
	}, nil
}

func (m *Matcher) recordTrade(instrument int64, buy, sell *Order, aggressor OrderSide, price, quantity, now int64, tick uint64, auction bool) *Trade {
	m.tradeSeq++
	return &Trade{
		ID:          m.tradeSeq,
		Instrument:  instrument,
		Price:       price,
		Quantity:    quantity,
		Tick:        tick,
		Timestamp:   now,
		Aggressor:   aggressor,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Buyer:       buy.Participant,
		Seller:      sell.Participant,
		Auction:     auction,
	}
}

func (m *Matcher) matchLimitOrder(order *Order, book *Book, now int64, tick uint64) (*MatchResult, error) {
	result := &MatchResult{
		Status:            StatusAccepted,
		FilledQuantity:    0,
		RemainingQuantity: order.Quantity,
		Trades:            make([]*Trade, 0),
	}

	for order.RemainingQuantity() > 0 {
		var bestPrice int64
		var priceLevel *PriceLevel
		var contra OrderSide

		if order.Side == SideBuy {
			askPrice, _, hasAsk := book.GetBestAsk()
			if !hasAsk || order.Price < askPrice {
				break
			}
			bestPrice = askPrice
			priceLevel = book.askLevel(askPrice)
			contra = SideSell
		} else {
			bidPrice, _, hasBid := book.GetBestBid()
			if !hasBid || order.Price > bidPrice {
				break
			}
			bestPrice = bidPrice
			priceLevel = book.bidLevel(bidPrice)
			contra = SideBuy
		}

		if priceLevel == nil {
			break
		}

		m.sweepLevel(order, book, priceLevel, contra, bestPrice, now, tick, result)
	}

	result.FilledQuantity = order.Filled
	result.RemainingQuantity = order.RemainingQuantity()

	if order.Filled == 0 {
		result.Status = StatusAccepted
		book.Rest(order)
	} else if order.RemainingQuantity() > 0 {
		result.Status = StatusPartialFill
		book.Rest(order)
	} else {
		result.Status = StatusFilled
	}

	return result, nil
}

// sweepLevel fills the incoming order against a level queue front-to-back.
func (m *Matcher) sweepLevel(order *Order, book *Book, priceLevel *PriceLevel, contra OrderSide, price int64, now int64, tick uint64, result *MatchResult) {
	for order.RemainingQuantity() > 0 && len(priceLevel.Orders) > 0 {
		resting := m.store.Get(priceLevel.Orders[0])
		// edge case: drop stale queue entries with nothing remaining
		if resting == nil || resting.RemainingQuantity() <= 0 {
			book.popHead(contra, priceLevel)
			if len(priceLevel.Orders) == 0 {
				return
			}
			continue
		}

		executionQty := order.RemainingQuantity()
		if executionQty > resting.RemainingQuantity() {
			executionQty = resting.RemainingQuantity()
		}

		var trade *Trade
		if order.Side == SideBuy {
			trade = m.recordTrade(book.Instrument, order, resting, SideBuy, price, executionQty, now, tick, false)
		} else {
			trade = m.recordTrade(book.Instrument, resting, order, SideSell, price, executionQty, now, tick, false)
		}
		result.Trades = append(result.Trades, trade)

		order.Fill(executionQty)
		resting.Fill(executionQty)

		if resting.IsFilled() {
			book.popHead(contra, priceLevel)
			if len(priceLevel.Orders) == 0 {
				return
			}
		}
	}
}

func (b *Book) popHead(side OrderSide, priceLevel *PriceLevel) {
	priceLevel.Orders = priceLevel.Orders[1:]
	b.resting--
	if len(priceLevel.Orders) == 0 {
		b.deleteLevel(side, priceLevel.Price)
	}
}

// edge case: market orders are immediate-or-cancel; they fill whatever is
// available and the remainder is cancelled, never rested
func (m *Matcher) matchMarketOrder(order *Order, book *Book, now int64, tick uint64) (*MatchResult, error) {
	var hasContra bool
	if order.Side == SideBuy {
		_, _, hasContra = book.GetBestAsk()
	} else {
		_, _, hasContra = book.GetBestBid()
	}

	// edge case: reject outright when the contra side is empty
	if !hasContra {
		order.Status = StatusRejected
		return nil, &InsufficientLiquidityError{
			Instrument: book.Instrument,
			Requested:  order.Quantity,
		}
	}

	result := &MatchResult{
		Status:            StatusAccepted,
		FilledQuantity:    0,
		RemainingQuantity: order.Quantity,
		Trades:            make([]*Trade, 0),
	}

	for order.RemainingQuantity() > 0 {
		var bestPrice int64
		var priceLevel *PriceLevel
		var contra OrderSide

		if order.Side == SideBuy {
			askPrice, _, hasAsk := book.GetBestAsk()
			if !hasAsk {
				break
			}
			bestPrice = askPrice
			priceLevel = book.askLevel(askPrice)
			contra = SideSell
		} else {
			bidPrice, _, hasBid := book.GetBestBid()
			if !hasBid {
				break
			}
			bestPrice = bidPrice
			priceLevel = book.bidLevel(bidPrice)
			contra = SideBuy
		}

		if priceLevel == nil {
			break
		}

		m.sweepLevel(order, book, priceLevel, contra, bestPrice, now, tick, result)
	}

	result.FilledQuantity = order.Filled
	result.RemainingQuantity = order.RemainingQuantity()

	if order.RemainingQuantity() > 0 {
		order.Status = StatusCancelled
		result.Status = StatusCancelled
	} else {
		result.Status = StatusFilled
	}

	return result, nil
}

// Cancel removes a resting order. Filled, cancelled, and unknown ids all come
// back as not found; the book is left untouched in every failure case.
func (m *Matcher) Cancel(orderID int64) (*Order, error) {
	order := m.store.Get(orderID)
	if order == nil || !order.IsResting() {
		return nil, &OrderNotFoundError{OrderID: orderID}
	}
	book, exists := m.books[order.Instrument]
	if !exists || !book.Remove(orderID) {
		return nil, &OrderNotFoundError{OrderID: orderID}
	}
	order.Status = StatusCancelled
	return order, nil
}

// Modify adjusts a resting order. Any quantity change at an unchanged price
// keeps queue position; a price change re-enters the book at the back of its
// new level as a fresh arrival.
func (m *Matcher) Modify(orderID, price, quantity int64, now int64, tick uint64, matching bool) (*MatchResult, error) {
	order := m.store.Get(orderID)
	if order == nil || !order.IsResting() {
		return nil, &OrderNotFoundError{OrderID: orderID}
	}
	if price <= 0 {
		return nil, &ValidationError{Reason: "limit price must be positive"}
	}
	if quantity <= order.Filled {
		return nil, &ValidationError{Reason: "quantity must exceed filled amount"}
	}
	book, exists := m.books[order.Instrument]
	if !exists {
		return nil, &OrderNotFoundError{OrderID: orderID}
	}

	if price == order.Price {
		order.Quantity = quantity
		return &MatchResult{
			Status:            order.Status,
			FilledQuantity:    order.Filled,
			RemainingQuantity: order.RemainingQuantity(),
			Trades:            make([]*Trade, 0),
		}, nil
	}

	if !book.Remove(orderID) {
		return nil, &OrderNotFoundError{OrderID: orderID}
	}
	order.Price = price
	order.Quantity = quantity
	order.Seq = m.nextSeq()
	order.Tick = tick
	order.Timestamp = now

	if !matching {
		book.Rest(order)
		return &MatchResult{
			Status:            order.Status,
			FilledQuantity:    order.Filled,
			RemainingQuantity: order.RemainingQuantity(),
			Trades:            make([]*Trade, 0),
		}, nil
	}
	return m.matchLimitOrder(order, book, now, tick)
}
