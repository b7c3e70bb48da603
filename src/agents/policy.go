package agents

import (
	"math/rand"
)

// Policy turns a market view into intents. Implementations must draw all
// randomness from the supplied rng so that a seeded session replays exactly.
type Policy interface {
	Decide(view *MarketView, own *OwnView, p *Participant, rng *rand.Rand) []Intent
}

// PolicyParams is the shared tuning block for every archetype. Zero values
// are filled from DefaultPolicyParams by the config layer.
type PolicyParams struct {
	MMSpreadBps    int64
	MMQuoteSize    int64
	MMMaxInventory int64
	MMRequoteTicks uint64

	HFTSize      int64
	HFTMinSpread int64 // cents of spread needed before stepping inside

	NoiseTradeProb  float64
	NoiseMarketProb float64
	NoiseMaxSize    int64
	NoiseBandBps    int64
	NoiseDriftVol   float64 // stddev of the per-tick private-value walk

	MomentumWindow    int
	MomentumThreshold float64
	MomentumSize      int64

	ReversionThresholdBps int64
	ReversionSize         int64

	InstMinTarget int64
	InstMaxTarget int64
	InstSliceProb float64
	InstSliceSize int64
	InstCooldown  uint64

	RetailTradeProb float64
	RetailMaxSize   int64
	RetailNewsBoost float64

	SpoofSize        int64
	SpoofOffsetBps   int64
	SpoofHoldTicks   uint64
	SpoofGenuineSize int64

	ArbThresholdBps int64
	ArbSize         int64
}

func DefaultPolicyParams() PolicyParams {
	return PolicyParams{
		MMSpreadBps:    20,
		MMQuoteSize:    200,
		MMMaxInventory: 2000,
		MMRequoteTicks: 2,

		HFTSize:      50,
		HFTMinSpread: 3,

		NoiseTradeProb:  0.40,
		NoiseMarketProb: 0.25,
		NoiseMaxSize:    150,
		NoiseBandBps:    30,
		NoiseDriftVol:   0.0015,

		MomentumWindow:    5,
		MomentumThreshold: 0.004,
		MomentumSize:      120,

		ReversionThresholdBps: 25,
		ReversionSize:         120,

		InstMinTarget: 2000,
		InstMaxTarget: 10000,
		InstSliceProb: 0.35,
		InstSliceSize: 300,
		InstCooldown:  20,

		RetailTradeProb: 0.08,
		RetailMaxSize:   40,
		RetailNewsBoost: 3.0,

		SpoofSize:        800,
		SpoofOffsetBps:   15,
		SpoofHoldTicks:   3,
		SpoofGenuineSize: 60,

		ArbThresholdBps: 20,
		ArbSize:         100,
	}
}

// policyFor builds a fresh policy instance per participant; some archetypes
// carry per-participant state.
func policyFor(participantType ParticipantType, params PolicyParams) Policy {
	switch participantType {
	case TypeMarketMaker:
		return &marketMakerPolicy{params: params}
	case TypeHFT:
		return &hftPolicy{params: params}
	case TypeNoise:
		return &noisePolicy{params: params}
	case TypeMomentum:
		return &momentumPolicy{params: params}
	case TypeMeanReversion:
		return &meanReversionPolicy{params: params}
	case TypeInstitutional:
		return &institutionalPolicy{params: params}
	case TypeRetail:
		return &retailPolicy{params: params}
	case TypeSpoofer:
		return &spooferPolicy{params: params}
	case TypeArbitrageur:
		return &arbitrageurPolicy{params: params}
	default:
		// unrecognized archetypes idle rather than failing the session
		return idlePolicy{}
	}
}

type idlePolicy struct{}

func (idlePolicy) Decide(*MarketView, *OwnView, *Participant, *rand.Rand) []Intent {
	return nil
}
