package market

type BreakerAction int

const (
	BreakerNone BreakerAction = iota
	BreakerAuction
	BreakerHalt
)

// Instrument carries the per-instrument trading state that sits above the
// order book: the fair-value anchor, active news effects, and the volatility
// interruption machinery.
// edge case: prices are int64 cents throughout, floats only enter via news math
type Instrument struct {
	ID        int64
	Symbol    string
	Reference int64 // re-open anchor in cents; moves only at an uncross
	LastPrice int64 // last traded price, 0 before the first trade

	BandBps     int64 // relative move that interrupts into a volatility auction
	HaltBandBps int64 // wider move that halts outright
	Triggers    int64

	override    Phase // empty while following the session schedule
	overrideEnd uint64

	effects []*newsEffect
}

func NewInstrument(id int64, symbol string, reference, bandBps, haltBandBps int64) *Instrument {
	return &Instrument{
		ID:          id,
		Symbol:      symbol,
		Reference:   reference,
		BandBps:     bandBps,
		HaltBandBps: haltBandBps,
	}
}

// Bias is the summed residue of active news effects in cents.
func (it *Instrument) Bias() int64 {
	var total int64
	for _, effect := range it.effects {
		total += effect.current
	}
	return total
}

// FairValue is what informed agents anchor on: the re-open reference plus
// whatever news bias is still decaying.
func (it *Instrument) FairValue() int64 {
	return it.Reference + it.Bias()
}

// ApplyNews registers an event against this instrument.
func (it *Instrument) ApplyNews(ev *NewsEvent) {
	if ev.Horizon == 0 {
		return
	}
	it.effects = append(it.effects, newEffect(it.Reference, ev))
}

// AdvanceNews ages every active effect by one tick and drops the spent ones.
func (it *Instrument) AdvanceNews() {
	live := it.effects[:0]
	for _, effect := range it.effects {
		if effect.step() {
			live = append(live, effect)
		}
	}
	it.effects = live
}

// ActiveNews reports how many effects are still decaying.
func (it *Instrument) ActiveNews() int {
	return len(it.effects)
}

// CheckBands measures the worse of traded price and fair value against the
// reference and grades it against the two breaker bands.
func (it *Instrument) CheckBands() BreakerAction {
	if it.Reference <= 0 {
		return BreakerNone
	}
	move := absMove(it.FairValue(), it.Reference)
	if it.LastPrice > 0 {
		if traded := absMove(it.LastPrice, it.Reference); traded > move {
			move = traded
		}
	}
	bps := move * 10000 / it.Reference
	switch {
	case it.HaltBandBps > 0 && bps >= it.HaltBandBps:
		return BreakerHalt
	case it.BandBps > 0 && bps >= it.BandBps:
		return BreakerAuction
	default:
		return BreakerNone
	}
}

func absMove(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// TriggerBreaker interrupts continuous trading on this instrument. A halt
// runs for haltTicks and then rolls into a volatility auction of auctionTicks
// before the re-open uncross; a plain band breach goes straight to the
// auction.
func (it *Instrument) TriggerBreaker(action BreakerAction, tick, auctionTicks, haltTicks uint64) {
	switch action {
	case BreakerHalt:
		it.override = PhaseHalted
		it.overrideEnd = tick + haltTicks
	case BreakerAuction:
		it.override = PhaseVolatilityAuction
		it.overrideEnd = tick + auctionTicks
	default:
		return
	}
	it.Triggers++
}

// InOverride reports whether a volatility interruption is in force.
func (it *Instrument) InOverride() bool {
	return it.override != ""
}

// AdvanceOverride moves the interruption machinery along at the given tick.
// Returns true exactly when the re-open uncross should fire now.
func (it *Instrument) AdvanceOverride(tick, auctionTicks uint64) bool {
	if it.override == "" || tick < it.overrideEnd {
		return false
	}
	if it.override == PhaseHalted {
		it.override = PhaseVolatilityAuction
		it.overrideEnd = tick + auctionTicks
		return false
	}
	return true
}

func (it *Instrument) ClearOverride() {
	it.override = ""
	it.overrideEnd = 0
}

// EffectivePhase resolves the phase this instrument actually trades in.
// Overrides only bite while the session schedule says CONTINUOUS; the closing
// auction and post-close always win.
func (it *Instrument) EffectivePhase(session Phase) Phase {
	if it.override != "" && session == PhaseContinuous {
		return it.override
	}
	return session
}

// Reopen re-anchors the instrument after an uncross. A zero clearing price
// means nothing executed and the old anchor stands.
func (it *Instrument) Reopen(clearingPrice int64) {
	if clearingPrice > 0 {
		it.Reference = clearingPrice
		it.LastPrice = clearingPrice
	}
}

// RecordTrade updates the last traded price.
func (it *Instrument) RecordTrade(price int64) {
	it.LastPrice = price
}
