package market

import (
	"math"
)

type DecayMode string

const (
	DecayLinear      DecayMode = "LINEAR"
	DecayExponential DecayMode = "EXPONENTIAL"
)

// NewsEvent is a shock to perceived fair value. Instrument 0 targets the
// whole market; the impact then scales per instrument off its own reference.
type NewsEvent struct {
	ID         int64
	Headline   string // display only, no effect on pricing
	Instrument int64
	Sentiment  float64 // [-1, 1], sign sets direction
	Magnitude  float64 // fraction of the reference price
	Horizon    uint64  // ticks until the effect is fully decayed
	Decay      DecayMode
	Tick       uint64 // tick at which the event took effect
}

// newsEffect is the per-instrument residue of one event: a signed price bias
// in cents that decays to zero over the horizon.
type newsEffect struct {
	amount  int64 // initial bias
	current int64
	age     uint64
	horizon uint64
	decay   DecayMode
}

// impactCents converts sentiment and magnitude into a signed bias against a
// reference price. Rounded half away from zero; all later decay arithmetic
// stays in integers.
func impactCents(reference int64, sentiment, magnitude float64) int64 {
	return int64(math.Round(float64(reference) * sentiment * magnitude))
}

func newEffect(reference int64, ev *NewsEvent) *newsEffect {
	amount := impactCents(reference, ev.Sentiment, ev.Magnitude)
	return &newsEffect{
		amount:  amount,
		current: amount,
		horizon: ev.Horizon,
		decay:   ev.Decay,
	}
}

// step ages the effect by one tick. Returns false once nothing is left.
func (e *newsEffect) step() bool {
	e.age++
	if e.age >= e.horizon {
		e.current = 0
		return false
	}
	switch e.decay {
	case DecayExponential:
		// geometric 20% decay per tick, hard zero at the horizon
		e.current = e.current * 4 / 5
	default:
		remaining := e.horizon - e.age
		e.current = e.amount * int64(remaining) / int64(e.horizon)
	}
	return e.current != 0
}
