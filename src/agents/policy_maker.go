package agents

import (
	"math/rand"

	"market-sim/src/engine"
	"market-sim/src/market"
)

// marketMakerPolicy quotes both sides around fair value, shading quotes
// against accumulated inventory and refreshing them on a fixed cadence.
type marketMakerPolicy struct {
	params PolicyParams
}

func (mm *marketMakerPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	var intents []Intent
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.AcceptsOrders() || iv.Phase == market.PhaseHalted {
			continue
		}
		fair := iv.FairValue
		if fair <= 0 {
			continue
		}

		halfSpread := fair * mm.params.MMSpreadBps / 20000
		if halfSpread < 1 {
			halfSpread = 1
		}

		pos := p.Position(iv.ID)
		// inventory skew: a long book shades both quotes down to shed it
		var skew int64
		if mm.params.MMMaxInventory > 0 {
			skew = -pos.Quantity * halfSpread / mm.params.MMMaxInventory
		}
		bid := fair - halfSpread + skew
		ask := fair + halfSpread + skew
		if bid <= 0 {
			bid = 1
		}
		if ask <= bid {
			ask = bid + 1
		}

		resting := own.ForInstrument(iv.ID)
		requote := len(resting) < 2
		for _, order := range resting {
			if order.AgeTicks >= mm.params.MMRequoteTicks {
				requote = true
			}
		}
		if !requote {
			continue
		}

		for _, order := range resting {
			intents = append(intents, cancel(iv.ID, order.ID))
		}

		size := mm.params.MMQuoteSize + rng.Int63n(mm.params.MMQuoteSize/4+1)
		// stop adding on the heavy side once inventory is maxed out
		if mm.params.MMMaxInventory == 0 || pos.Quantity < mm.params.MMMaxInventory {
			intents = append(intents, submit(iv.ID, engine.SideBuy, engine.TypeLimit, bid, size))
		}
		if mm.params.MMMaxInventory == 0 || -pos.Quantity < mm.params.MMMaxInventory {
			intents = append(intents, submit(iv.ID, engine.SideSell, engine.TypeLimit, ask, size))
		}
	}
	return intents
}

// hftPolicy steps inside a wide touch on the side the book imbalance favors,
// chasing the quote with modifies instead of cancel/replace round trips.
type hftPolicy struct {
	params PolicyParams
}

func (h *hftPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	var intents []Intent
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.Matching() {
			continue
		}
		if !iv.HasBid || !iv.HasAsk || iv.Spread() < h.params.HFTMinSpread {
			// nothing worth improving; pull any leftover quote
			for _, order := range own.ForInstrument(iv.ID) {
				intents = append(intents, cancel(iv.ID, order.ID))
			}
			continue
		}

		side := engine.SideBuy
		price := iv.BestBid + 1
		if iv.Imbalance() < 0 {
			side = engine.SideSell
			price = iv.BestAsk - 1
		}

		resting := own.ForInstrument(iv.ID)
		if len(resting) == 0 {
			intents = append(intents, submit(iv.ID, side, engine.TypeLimit, price, h.params.HFTSize))
			continue
		}

		// edge case: keep exactly one working order per instrument
		for _, extra := range resting[1:] {
			intents = append(intents, cancel(iv.ID, extra.ID))
		}
		working := resting[0]
		if working.Side == side && working.Price == price {
			continue
		}
		if working.Side == side {
			intents = append(intents, modify(iv.ID, working.ID, price, working.Remaining))
		} else {
			intents = append(intents, cancel(iv.ID, working.ID))
			intents = append(intents, submit(iv.ID, side, engine.TypeLimit, price, h.params.HFTSize))
		}
	}
	return intents
}
