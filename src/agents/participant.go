package agents

import (
	"math/rand"

	"market-sim/src/engine"
)

type ParticipantType string

const (
	TypeMarketMaker   ParticipantType = "MARKET_MAKER"
	TypeHFT           ParticipantType = "HFT"
	TypeNoise         ParticipantType = "NOISE"
	TypeMomentum      ParticipantType = "MOMENTUM"
	TypeMeanReversion ParticipantType = "MEAN_REVERSION"
	TypeInstitutional ParticipantType = "INSTITUTIONAL"
	TypeRetail        ParticipantType = "RETAIL"
	TypeSpoofer       ParticipantType = "SPOOFER"
	TypeArbitrageur   ParticipantType = "ARBITRAGEUR"
	TypeOther         ParticipantType = "OTHER"
)

type LatencyTier string

const (
	TierColocated LatencyTier = "COLOCATED"
	TierFast      LatencyTier = "FAST"
	TierMedium    LatencyTier = "MEDIUM"
	TierSlow      LatencyTier = "SLOW"
)

// DelayTicks is the decision-to-book delay for a tier. Unknown tiers are
// treated as SLOW.
func (t LatencyTier) DelayTicks() uint64 {
	switch t {
	case TierColocated:
		return 0
	case TierFast:
		return 1
	case TierMedium:
		return 3
	default:
		return 5
	}
}

// Position is the per-instrument inventory of one participant, maintained at
// average cost.
type Position struct {
	Quantity int64 // signed, negative = short
	AvgCost  int64 // average entry price in cents for the open quantity
	Realized int64 // realized P&L in cents, fees excluded
}

// Participant is one trading agent. A kill-switched participant stays
// registered with Active=false; it never trades again within the session but
// remains visible in snapshots.
type Participant struct {
	ID     int64
	Name   string
	Type   ParticipantType
	Tier   LatencyTier
	Active bool

	MaxPosition int64 // absolute per-instrument cap, 0 = uncapped
	MaxLoss     int64 // net loss in cents that trips the kill switch, 0 = off

	Fees int64 // accumulated fee cost in cents, negative = net rebate

	positions map[int64]*Position
	policy    Policy
	rng       *rand.Rand
	windDown  bool
}

func NewParticipant(id int64, name string, participantType ParticipantType, tier LatencyTier, params PolicyParams, rng *rand.Rand) *Participant {
	return &Participant{
		ID:        id,
		Name:      name,
		Type:      participantType,
		Tier:      tier,
		Active:    true,
		positions: make(map[int64]*Position),
		policy:    policyFor(participantType, params),
		rng:       rng,
	}
}

// Position returns a copy of the inventory for an instrument; flat if the
// participant never traded it.
func (p *Participant) Position(instrument int64) Position {
	if pos, exists := p.positions[instrument]; exists {
		return *pos
	}
	return Position{}
}

func (p *Participant) position(instrument int64) *Position {
	pos, exists := p.positions[instrument]
	if !exists {
		pos = &Position{}
		p.positions[instrument] = pos
	}
	return pos
}

// ApplyFill folds one execution into the inventory. Opening quantity extends
// the average cost; closing quantity realizes P&L against it; a fill through
// zero closes out and reopens the remainder at the fill price.
func (p *Participant) ApplyFill(instrument int64, side engine.OrderSide, price, quantity int64) {
	pos := p.position(instrument)

	signed := quantity
	if side == engine.SideSell {
		signed = -quantity
	}

	// same direction or flat: extend at average cost
	if pos.Quantity == 0 || (pos.Quantity > 0) == (signed > 0) {
		oldAbs := abs64(pos.Quantity)
		addAbs := abs64(signed)
		pos.AvgCost = (pos.AvgCost*oldAbs + price*addAbs) / (oldAbs + addAbs)
		pos.Quantity += signed
		return
	}

	oldQty := pos.Quantity
	closed := abs64(signed)
	if closed > abs64(oldQty) {
		closed = abs64(oldQty)
	}
	if oldQty > 0 {
		pos.Realized += (price - pos.AvgCost) * closed
	} else {
		pos.Realized += (pos.AvgCost - price) * closed
	}
	pos.Quantity += signed

	// edge case: fill through zero reopens the remainder at the fill price
	if pos.Quantity == 0 {
		pos.AvgCost = 0
	} else if (oldQty > 0) != (pos.Quantity > 0) {
		pos.AvgCost = price
	}
}

func (p *Participant) AddFee(amount int64) {
	p.Fees += amount
}

// RealizedTotal sums realized P&L across instruments, fees excluded.
func (p *Participant) RealizedTotal() int64 {
	var total int64
	for _, pos := range p.positions {
		total += pos.Realized
	}
	return total
}

// UnrealizedTotal marks open inventory against the given prices. Instruments
// without a mark contribute nothing.
func (p *Participant) UnrealizedTotal(marks map[int64]int64) int64 {
	var total int64
	for instrument, pos := range p.positions {
		if pos.Quantity == 0 {
			continue
		}
		mark, exists := marks[instrument]
		if !exists || mark <= 0 {
			continue
		}
		if pos.Quantity > 0 {
			total += (mark - pos.AvgCost) * pos.Quantity
		} else {
			total += (pos.AvgCost - mark) * (-pos.Quantity)
		}
	}
	return total
}

// NetPnL is realized plus unrealized minus fees, the figure the kill switch
// watches.
func (p *Participant) NetPnL(marks map[int64]int64) int64 {
	return p.RealizedTotal() + p.UnrealizedTotal(marks) - p.Fees
}

// Decide runs the participant's policy. Inactive participants emit nothing.
func (p *Participant) Decide(view *MarketView, own *OwnView) []Intent {
	if !p.Active || p.policy == nil {
		return nil
	}
	return p.policy.Decide(view, own, p, p.rng)
}

// KillSwitch deactivates the participant and flags its resting orders for
// wind-down. Idempotent.
func (p *Participant) KillSwitch() {
	if !p.Active {
		return
	}
	p.Active = false
	p.windDown = true
}

// NeedsWindDown reports and consumes the wind-down flag.
func (p *Participant) NeedsWindDown() bool {
	if !p.windDown {
		return false
	}
	p.windDown = false
	return true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
