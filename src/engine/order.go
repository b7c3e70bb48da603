package engine

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

type OrderStatus string

const (
	StatusAccepted    OrderStatus = "ACCEPTED"
	StatusPartialFill OrderStatus = "PARTIAL_FILL"
	StatusFilled      OrderStatus = "FILLED"
	StatusCancelled   OrderStatus = "CANCELLED"
	StatusRejected    OrderStatus = "REJECTED"
)

// edge case: price stored as int64 in cents to avoid floating-point precision errors
type Order struct {
	ID          int64
	Instrument  int64
	Participant int64
	Side        OrderSide
	Type        OrderType
	Price       int64 // price in cents, required for LIMIT, 0 for MARKET
	Quantity    int64
	Filled      int64
	Status      OrderStatus
	Seq         uint64 // book arrival sequence, assigned once on acceptance
	Tick        uint64 // tick at which the order reached the book
	Timestamp   int64  // simulated nanoseconds at acceptance
}

func (o *Order) RemainingQuantity() int64 {
	return o.Quantity - o.Filled
}

func (o *Order) IsFilled() bool {
	return o.Filled >= o.Quantity
}

func (o *Order) Fill(quantity int64) {
	o.Filled += quantity
	if o.Filled >= o.Quantity {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartialFill
	}
}

func (o *Order) IsResting() bool {
	return o.Status == StatusAccepted || o.Status == StatusPartialFill
}

type Trade struct {
	ID          int64
	Instrument  int64
	Price       int64 // execution price in cents
	Quantity    int64
	Tick        uint64
	Timestamp   int64     // simulated nanoseconds
	Aggressor   OrderSide // side of the incoming order; for auction trades, side of the later arrival
	BuyOrderID  int64
	SellOrderID int64
	Buyer       int64 // participant ids
	Seller      int64
	Auction     bool
}

// Maker returns the participant whose order was resting first.
func (t *Trade) Maker() int64 {
	if t.Aggressor == SideBuy {
		return t.Seller
	}
	return t.Buyer
}

func (t *Trade) Taker() int64 {
	if t.Aggressor == SideBuy {
		return t.Buyer
	}
	return t.Seller
}

type PriceLevel struct {
	Price  int64
	Orders []int64 // resting order ids in arrival sequence
}

// OrderStore is an append-only arena holding every order created during a
// session, addressed by dense integer id.
// edge case: index 0 is reserved so that valid order ids are always positive
type OrderStore struct {
	orders []*Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make([]*Order, 1, 1024),
	}
}

func (s *OrderStore) Add(order *Order) int64 {
	order.ID = int64(len(s.orders))
	s.orders = append(s.orders, order)
	return order.ID
}

func (s *OrderStore) Get(id int64) *Order {
	if id <= 0 || id >= int64(len(s.orders)) {
		return nil
	}
	return s.orders[id]
}

func (s *OrderStore) Len() int {
	return len(s.orders) - 1
}
