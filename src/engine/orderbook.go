package engine

import (
	"github.com/google/btree"
)

type PriceLevelItem struct {
	PriceLevel *PriceLevel
}

func (p *PriceLevelItem) Less(than btree.Item) bool {
	other := than.(*PriceLevelItem)
	return p.PriceLevel.Price > other.PriceLevel.Price
}

type PriceLevelItemAscending struct {
	PriceLevel *PriceLevel
}

func (p *PriceLevelItemAscending) Less(than btree.Item) bool {
	other := than.(*PriceLevelItemAscending)
	return p.PriceLevel.Price < other.PriceLevel.Price
}

// Book holds the resting orders of one instrument. All mutation happens on
// the tick pipeline goroutine; readers work off published snapshots, so the
// book itself carries no locking.
type Book struct {
	Instrument int64
	Symbol     string
	Bids       *btree.BTree // sorted descending (highest first)
	Asks       *btree.BTree // sorted ascending (lowest first)
	store      *OrderStore
	resting    int
}

func NewBook(instrument int64, symbol string, store *OrderStore) *Book {
	return &Book{
		Instrument: instrument,
		Symbol:     symbol,
		Bids:       btree.New(32),
		Asks:       btree.New(32),
		store:      store,
	}
}

func (b *Book) bidLevel(price int64) *PriceLevel {
	item := b.Bids.Get(&PriceLevelItem{PriceLevel: &PriceLevel{Price: price}})
	if item == nil {
		return nil
	}
	return item.(*PriceLevelItem).PriceLevel
}

func (b *Book) askLevel(price int64) *PriceLevel {
	item := b.Asks.Get(&PriceLevelItemAscending{PriceLevel: &PriceLevel{Price: price}})
	if item == nil {
		return nil
	}
	return item.(*PriceLevelItemAscending).PriceLevel
}

func (b *Book) level(side OrderSide, price int64) *PriceLevel {
	if side == SideBuy {
		return b.bidLevel(price)
	}
	return b.askLevel(price)
}

func (b *Book) deleteLevel(side OrderSide, price int64) {
	if side == SideBuy {
		b.Bids.Delete(&PriceLevelItem{PriceLevel: &PriceLevel{Price: price}})
	} else {
		b.Asks.Delete(&PriceLevelItemAscending{PriceLevel: &PriceLevel{Price: price}})
	}
}

// Rest appends an order to the back of its price level queue, creating the
// level if it does not exist yet.
func (b *Book) Rest(order *Order) {
	priceLevel := b.level(order.Side, order.Price)
	if priceLevel == nil {
		priceLevel = &PriceLevel{
			Price:  order.Price,
			Orders: make([]int64, 0, 4),
		}
		if order.Side == SideBuy {
			b.Bids.ReplaceOrInsert(&PriceLevelItem{PriceLevel: priceLevel})
		} else {
			b.Asks.ReplaceOrInsert(&PriceLevelItemAscending{PriceLevel: priceLevel})
		}
	}
	priceLevel.Orders = append(priceLevel.Orders, order.ID)
	b.resting++
}

// Remove takes a resting order out of its level queue. Returns false when the
// order is unknown to this book or no longer resting.
func (b *Book) Remove(orderID int64) bool {
	order := b.store.Get(orderID)
	if order == nil || order.Instrument != b.Instrument || !order.IsResting() {
		return false
	}

	priceLevel := b.level(order.Side, order.Price)
	if priceLevel == nil {
		return false
	}

	for i, id := range priceLevel.Orders {
		if id == orderID {
			priceLevel.Orders = append(priceLevel.Orders[:i], priceLevel.Orders[i+1:]...)
			b.resting--
			// edge case: remove empty price level
			if len(priceLevel.Orders) == 0 {
				b.deleteLevel(order.Side, priceLevel.Price)
			}
			return true
		}
	}
	return false
}

func (b *Book) levelQuantity(priceLevel *PriceLevel) int64 {
	var total int64
	for _, id := range priceLevel.Orders {
		if order := b.store.Get(id); order != nil {
			total += order.RemainingQuantity()
		}
	}
	return total
}

func (b *Book) GetBestBid() (price int64, quantity int64, ok bool) {
	item := b.Bids.Min()
	if item == nil {
		return 0, 0, false
	}
	priceLevel := item.(*PriceLevelItem).PriceLevel
	if len(priceLevel.Orders) == 0 {
		return 0, 0, false
	}
	return priceLevel.Price, b.levelQuantity(priceLevel), true
}

func (b *Book) GetBestAsk() (price int64, quantity int64, ok bool) {
	item := b.Asks.Min()
	if item == nil {
		return 0, 0, false
	}
	priceLevel := item.(*PriceLevelItemAscending).PriceLevel
	if len(priceLevel.Orders) == 0 {
		return 0, 0, false
	}
	return priceLevel.Price, b.levelQuantity(priceLevel), true
}

// Crossed reports a bid at or above the best ask, which must never survive a
// tick outside auction accumulation.
func (b *Book) Crossed() bool {
	bid, _, hasBid := b.GetBestBid()
	ask, _, hasAsk := b.GetBestAsk()
	return hasBid && hasAsk && bid >= ask
}

func (b *Book) RestingCount() int {
	return b.resting
}

type LevelSnapshot struct {
	Price    int64
	Quantity int64
	Orders   int
}

// DepthSnapshot aggregates the top price levels per side. Bids come back
// highest first, asks lowest first.
func (b *Book) DepthSnapshot(depth int) (bids []LevelSnapshot, asks []LevelSnapshot) {
	bids = make([]LevelSnapshot, 0, depth)
	asks = make([]LevelSnapshot, 0, depth)

	count := 0
	b.Bids.Ascend(func(item btree.Item) bool {
		if count >= depth {
			return false
		}
		priceLevel := item.(*PriceLevelItem).PriceLevel
		bids = append(bids, LevelSnapshot{
			Price:    priceLevel.Price,
			Quantity: b.levelQuantity(priceLevel),
			Orders:   len(priceLevel.Orders),
		})
		count++
		return true
	})

	count = 0
	b.Asks.Ascend(func(item btree.Item) bool {
		if count >= depth {
			return false
		}
		priceLevel := item.(*PriceLevelItemAscending).PriceLevel
		asks = append(asks, LevelSnapshot{
			Price:    priceLevel.Price,
			Quantity: b.levelQuantity(priceLevel),
			Orders:   len(priceLevel.Orders),
		})
		count++
		return true
	})

	return bids, asks
}

// RestingOrders lists the ids of a participant's live orders in price-time
// order. A negative participant id matches everything.
func (b *Book) RestingOrders(participant int64) []int64 {
	var ids []int64
	collect := func(priceLevel *PriceLevel) {
		for _, id := range priceLevel.Orders {
			order := b.store.Get(id)
			if order == nil {
				continue
			}
			if participant < 0 || order.Participant == participant {
				ids = append(ids, id)
			}
		}
	}
	b.Bids.Ascend(func(item btree.Item) bool {
		collect(item.(*PriceLevelItem).PriceLevel)
		return true
	})
	b.Asks.Ascend(func(item btree.Item) bool {
		collect(item.(*PriceLevelItemAscending).PriceLevel)
		return true
	})
	return ids
}
