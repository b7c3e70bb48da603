package engine

import (
	"github.com/google/btree"
)

type AuctionResult struct {
	ClearingPrice int64
	Volume        int64
	Trades        []*Trade
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// RunAuction uncrosses an accumulated book at a single uniform price.
// The clearing price maximizes executable volume; ties resolve toward the
// candidate closest to the reference price, then toward the lower price.
// Returns nil when nothing can execute, leaving the book untouched.
func (m *Matcher) RunAuction(book *Book, reference int64, now int64, tick uint64) *AuctionResult {
	type levelAgg struct {
		price    int64
		quantity int64
	}

	bidLevels := make([]levelAgg, 0, book.Bids.Len())
	book.Bids.Ascend(func(item btree.Item) bool {
		priceLevel := item.(*PriceLevelItem).PriceLevel
		bidLevels = append(bidLevels, levelAgg{price: priceLevel.Price, quantity: book.levelQuantity(priceLevel)})
		return true
	})
	askLevels := make([]levelAgg, 0, book.Asks.Len())
	book.Asks.Ascend(func(item btree.Item) bool {
		priceLevel := item.(*PriceLevelItemAscending).PriceLevel
		askLevels = append(askLevels, levelAgg{price: priceLevel.Price, quantity: book.levelQuantity(priceLevel)})
		return true
	})

	// edge case: a one-sided book cannot uncross
	if len(bidLevels) == 0 || len(askLevels) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(bidLevels)+len(askLevels))
	candidates := make([]int64, 0, len(bidLevels)+len(askLevels))
	for _, level := range bidLevels {
		if _, dup := seen[level.price]; !dup {
			seen[level.price] = struct{}{}
			candidates = append(candidates, level.price)
		}
	}
	for _, level := range askLevels {
		if _, dup := seen[level.price]; !dup {
			seen[level.price] = struct{}{}
			candidates = append(candidates, level.price)
		}
	}

	var clearingPrice int64
	var clearingVolume int64
	for _, candidate := range candidates {
		var demand, supply int64
		for _, level := range bidLevels {
			if level.price >= candidate {
				demand += level.quantity
			}
		}
		for _, level := range askLevels {
			if level.price <= candidate {
				supply += level.quantity
			}
		}
		volume := demand
		if supply < volume {
			volume = supply
		}
		if volume == 0 {
			continue
		}
		if volume > clearingVolume {
			clearingVolume = volume
			clearingPrice = candidate
			continue
		}
		if volume == clearingVolume {
			newDist := absDiff(candidate, reference)
			bestDist := absDiff(clearingPrice, reference)
			if newDist < bestDist || (newDist == bestDist && candidate < clearingPrice) {
				clearingPrice = candidate
			}
		}
	}

	if clearingVolume == 0 {
		return nil
	}

	// collect eligible orders in price-time priority on each side
	var bidIDs []int64
	book.Bids.Ascend(func(item btree.Item) bool {
		priceLevel := item.(*PriceLevelItem).PriceLevel
		if priceLevel.Price < clearingPrice {
			return false
		}
		bidIDs = append(bidIDs, priceLevel.Orders...)
		return true
	})
	var askIDs []int64
	book.Asks.Ascend(func(item btree.Item) bool {
		priceLevel := item.(*PriceLevelItemAscending).PriceLevel
		if priceLevel.Price > clearingPrice {
			return false
		}
		askIDs = append(askIDs, priceLevel.Orders...)
		return true
	})

	result := &AuctionResult{
		ClearingPrice: clearingPrice,
		Trades:        make([]*Trade, 0),
	}

	bi, ai := 0, 0
	for bi < len(bidIDs) && ai < len(askIDs) {
		buy := m.store.Get(bidIDs[bi])
		if buy == nil || buy.RemainingQuantity() <= 0 {
			bi++
			continue
		}
		sell := m.store.Get(askIDs[ai])
		if sell == nil || sell.RemainingQuantity() <= 0 {
			ai++
			continue
		}

		executionQty := buy.RemainingQuantity()
		if executionQty > sell.RemainingQuantity() {
			executionQty = sell.RemainingQuantity()
		}

		// the later arrival takes the aggressor role in the uncross
		aggressor := SideSell
		if buy.Seq > sell.Seq {
			aggressor = SideBuy
		}

		trade := m.recordTrade(book.Instrument, buy, sell, aggressor, clearingPrice, executionQty, now, tick, true)
		result.Trades = append(result.Trades, trade)
		result.Volume += executionQty

		buy.Fill(executionQty)
		sell.Fill(executionQty)

		if buy.IsFilled() {
			book.unrest(buy)
			bi++
		}
		if sell.IsFilled() {
			book.unrest(sell)
			ai++
		}
	}

	return result
}

// unrest drops an order from its level queue without touching its status,
// used when the uncross has already marked it filled.
func (b *Book) unrest(order *Order) {
	priceLevel := b.level(order.Side, order.Price)
	if priceLevel == nil {
		return
	}
	for i, id := range priceLevel.Orders {
		if id == order.ID {
			priceLevel.Orders = append(priceLevel.Orders[:i], priceLevel.Orders[i+1:]...)
			b.resting--
			// edge case: remove empty price level
			if len(priceLevel.Orders) == 0 {
				b.deleteLevel(order.Side, priceLevel.Price)
			}
			return
		}
	}
}
