package agents

import (
	"math"
	"math/rand"

	"market-sim/src/engine"
	"market-sim/src/market"
)

// noisePolicy submits small random-direction orders around the midpoint.
// It is the background hum every other archetype trades against. Each trader
// carries a private-value factor following a geometric random walk, so the
// crowd disagrees about where the midpoint belongs.
type noisePolicy struct {
	params PolicyParams
	drift  float64 // multiplicative private-value factor, 1.0 = consensus
}

func (n *noisePolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	if n.drift == 0 {
		n.drift = 1
	}
	if n.params.NoiseDriftVol > 0 {
		n.drift *= math.Exp(n.params.NoiseDriftVol * rng.NormFloat64())
		// the walk stays tethered so a lone trader cannot run the price away
		if n.drift > 1.05 {
			n.drift = 1.05
		} else if n.drift < 0.95 {
			n.drift = 0.95
		}
	}

	var intents []Intent
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.AcceptsOrders() || iv.Phase == market.PhaseHalted {
			continue
		}
		if rng.Float64() >= n.params.NoiseTradeProb {
			continue
		}

		side := engine.SideBuy
		if rng.Intn(2) == 1 {
			side = engine.SideSell
		}
		size := 1 + rng.Int63n(n.params.NoiseMaxSize)

		// market orders only make sense while matching runs
		if iv.Phase.Matching() && rng.Float64() < n.params.NoiseMarketProb {
			intents = append(intents, submit(iv.ID, side, engine.TypeMarket, 0, size))
			continue
		}

		anchor := int64(float64(iv.Mid()) * n.drift)
		if anchor <= 0 {
			continue
		}
		band := anchor * n.params.NoiseBandBps / 10000
		if band < 1 {
			band = 1
		}
		price := anchor + rng.Int63n(2*band+1) - band
		if price < 1 {
			price = 1
		}
		intents = append(intents, submit(iv.ID, side, engine.TypeLimit, price, size))
	}
	return intents
}

// momentumPolicy chases the recent return trend with aggressive orders.
type momentumPolicy struct {
	params PolicyParams
}

func (mo *momentumPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	var intents []Intent
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.Matching() {
			continue
		}
		signal := iv.MomentumSignal(mo.params.MomentumWindow)
		if signal < mo.params.MomentumThreshold && signal > -mo.params.MomentumThreshold {
			continue
		}
		side := engine.SideBuy
		if signal < 0 {
			side = engine.SideSell
		}
		size := mo.params.MomentumSize/2 + rng.Int63n(mo.params.MomentumSize+1)
		if size < 1 {
			size = 1
		}
		intents = append(intents, submit(iv.ID, side, engine.TypeMarket, 0, size))
	}
	return intents
}

// meanReversionPolicy fades moves away from fair value with passive limits.
type meanReversionPolicy struct {
	params PolicyParams
}

func (mr *meanReversionPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	var intents []Intent
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.Matching() || iv.LastPrice <= 0 || iv.FairValue <= 0 {
			continue
		}
		// edge case: one working order per instrument keeps inventory sane
		if len(own.ForInstrument(iv.ID)) > 0 {
			continue
		}
		deviation := (iv.LastPrice - iv.FairValue) * 10000 / iv.FairValue
		if deviation < mr.params.ReversionThresholdBps && deviation > -mr.params.ReversionThresholdBps {
			continue
		}
		size := mr.params.ReversionSize/2 + rng.Int63n(mr.params.ReversionSize+1)
		if size < 1 {
			size = 1
		}
		if deviation > 0 {
			intents = append(intents, submit(iv.ID, engine.SideSell, engine.TypeLimit, iv.LastPrice, size))
		} else {
			intents = append(intents, submit(iv.ID, engine.SideBuy, engine.TypeLimit, iv.LastPrice, size))
		}
	}
	return intents
}

// retailPolicy trades rarely and small, but headlines multiply its appetite
// and set its direction.
type retailPolicy struct {
	params PolicyParams
}

func (r *retailPolicy) Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent {
	var intents []Intent
	for i := range view.Instruments {
		iv := &view.Instruments[i]
		if !iv.Phase.AcceptsOrders() || iv.Phase == market.PhaseHalted {
			continue
		}

		bias := iv.FairValue - iv.Reference
		probability := r.params.RetailTradeProb
		if bias != 0 {
			probability *= r.params.RetailNewsBoost
			if probability > 1 {
				probability = 1
			}
		}
		if rng.Float64() >= probability {
			continue
		}

		side := engine.SideBuy
		switch {
		case bias > 0:
			side = engine.SideBuy
		case bias < 0:
			side = engine.SideSell
		default:
			if rng.Intn(2) == 1 {
				side = engine.SideSell
			}
		}
		size := 1 + rng.Int63n(r.params.RetailMaxSize)

		if iv.Phase.Matching() {
			intents = append(intents, submit(iv.ID, side, engine.TypeMarket, 0, size))
			continue
		}
		anchor := iv.Mid()
		if anchor <= 0 {
			continue
		}
		intents = append(intents, submit(iv.ID, side, engine.TypeLimit, anchor, size))
	}
	return intents
}
