package agents

import (
	"math/rand"

	"market-sim/src/engine"
)

// institutionalPolicy works large parent orders: it draws a target quantity,
// slices it into passive children over many ticks, then cools down before
// the next parent.
type institutionalPolicy struct {
	params     PolicyParams
	remaining  int64
	side       engine.OrderSide
	instrument int64
	cooldown   uint64
}

func (in *institutionalPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	if in.cooldown > 0 {
		in.cooldown--
		return nil
	}

	if in.remaining == 0 {
		idx := rng.Intn(len(view.Instruments))
		iv := &view.Instruments[idx]
		if !iv.Phase.Matching() {
			return nil
		}
		span := in.params.InstMaxTarget - in.params.InstMinTarget
		if span < 0 {
			span = 0
		}
		in.remaining = in.params.InstMinTarget + rng.Int63n(span+1)
		in.side = engine.SideBuy
		if rng.Intn(2) == 1 {
			in.side = engine.SideSell
		}
		in.instrument = iv.ID
	}

	iv := view.Instrument(in.instrument)
	if iv == nil || !iv.Phase.Matching() {
		return nil
	}
	if rng.Float64() >= in.params.InstSliceProb {
		return nil
	}

	slice := in.params.InstSliceSize
	if slice > in.remaining {
		slice = in.remaining
	}
	in.remaining -= slice
	if in.remaining == 0 {
		in.cooldown = in.params.InstCooldown
	}

	// passive child: join the queue at the touch on our own side
	var price int64
	if in.side == engine.SideBuy {
		if iv.HasBid {
			price = iv.BestBid
		} else {
			price = iv.FairValue - 1
		}
	} else {
		if iv.HasAsk {
			price = iv.BestAsk
		} else {
			price = iv.FairValue + 1
		}
	}
	if price < 1 {
		price = 1
	}
	return []Intent{submit(iv.ID, in.side, engine.TypeLimit, price, slice)}
}

// spooferPolicy parks a large order away from the touch to fake depth, holds
// it briefly, then pulls it and fires a small genuine order the other way.
// The resting wall is recognized from the participant's own order view, so
// the policy itself carries no cross-tick state.
type spooferPolicy struct {
	params PolicyParams
}

func (sp *spooferPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	var intents []Intent
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.Matching() {
			continue
		}

		var wall *RestingOrder
		resting := own.ForInstrument(iv.ID)
		for j := range resting {
			if resting[j].Remaining >= sp.params.SpoofSize/2 {
				wall = &resting[j]
				break
			}
		}

		if wall != nil {
			if wall.AgeTicks < sp.params.SpoofHoldTicks {
				continue
			}
			// pull the wall before it trades and take the other side
			intents = append(intents, cancel(iv.ID, wall.ID))
			genuine := engine.SideSell
			if wall.Side == engine.SideSell {
				genuine = engine.SideBuy
			}
			intents = append(intents, submit(iv.ID, genuine, engine.TypeMarket, 0, sp.params.SpoofGenuineSize))
			continue
		}

		fair := iv.FairValue
		if fair <= 0 {
			continue
		}
		offset := fair * sp.params.SpoofOffsetBps / 10000
		if offset < 2 {
			offset = 2
		}

		side := engine.SideBuy
		if rng.Intn(2) == 1 {
			side = engine.SideSell
		}
		var price int64
		if side == engine.SideBuy {
			anchor := fair
			if iv.HasBid {
				anchor = iv.BestBid
			}
			price = anchor - offset
		} else {
			anchor := fair
			if iv.HasAsk {
				anchor = iv.BestAsk
			}
			price = anchor + offset
		}
		if price < 1 {
			price = 1
		}
		intents = append(intents, submit(iv.ID, side, engine.TypeLimit, price, sp.params.SpoofSize))
	}
	return intents
}

// arbitrageurPolicy trades relative mispricing: across instruments when the
// universe allows it, against fair value otherwise.
type arbitrageurPolicy struct {
	params PolicyParams
}

func (ar *arbitrageurPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	type priced struct {
		id  int64
		dev int64 // mid deviation from fair in bps
	}
	var candidates []priced
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.Matching() || !iv.HasBid || !iv.HasAsk || iv.FairValue <= 0 {
			continue
		}
		dev := (iv.Mid() - iv.FairValue) * 10000 / iv.FairValue
		candidates = append(candidates, priced{id: iv.ID, dev: dev})
	}
	if len(candidates) == 0 {
		return nil
	}

	if len(candidates) == 1 {
		// single-instrument fallback: fade the fair-value gap
		only := candidates[0]
		if only.dev >= ar.params.ArbThresholdBps {
			return []Intent{submit(only.id, engine.SideSell, engine.TypeMarket, 0, ar.params.ArbSize)}
		}
		if only.dev <= -ar.params.ArbThresholdBps {
			return []Intent{submit(only.id, engine.SideBuy, engine.TypeMarket, 0, ar.params.ArbSize)}
		}
		return nil
	}

	rich, cheap := candidates[0], candidates[0]
	for _, c := range candidates[1:] {
		if c.dev > rich.dev {
			rich = c
		}
		if c.dev < cheap.dev {
			cheap = c
		}
	}
	if rich.dev-cheap.dev < ar.params.ArbThresholdBps {
		return nil
	}
	return []Intent{
		submit(rich.id, engine.SideSell, engine.TypeMarket, 0, ar.params.ArbSize),
		submit(cheap.id, engine.SideBuy, engine.TypeMarket, 0, ar.params.ArbSize),
	}
}
