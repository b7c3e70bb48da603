package models

import (
	"encoding/json"
	"strings"

	"market-sim/src/agents"
	"market-sim/src/market"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

func Fail(message string) Response {
	return Response{Success: false, Error: message}
}

// EnumString accepts an enum either as a bare JSON string or as a single-key
// tagged object like {"MARKET_MAKER": {}}. Anything else decodes to the empty
// discriminant rather than an error; the semantic layer decides what that
// means.
type EnumString string

func (e *EnumString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = EnumString(s)
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err == nil && len(tagged) == 1 {
		for key := range tagged {
			*e = EnumString(key)
		}
		return nil
	}

	*e = ""
	return nil
}

func (e EnumString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(e))
}

// ParticipantType maps a wire token onto the known archetypes. Unrecognized
// tokens become OTHER, never an error.
func (e EnumString) ParticipantType() agents.ParticipantType {
	switch agents.ParticipantType(strings.ToUpper(string(e))) {
	case agents.TypeMarketMaker:
		return agents.TypeMarketMaker
	case agents.TypeHFT:
		return agents.TypeHFT
	case agents.TypeNoise:
		return agents.TypeNoise
	case agents.TypeMomentum:
		return agents.TypeMomentum
	case agents.TypeMeanReversion:
		return agents.TypeMeanReversion
	case agents.TypeInstitutional:
		return agents.TypeInstitutional
	case agents.TypeRetail:
		return agents.TypeRetail
	case agents.TypeSpoofer:
		return agents.TypeSpoofer
	case agents.TypeArbitrageur:
		return agents.TypeArbitrageur
	default:
		return agents.TypeOther
	}
}

// LatencyTier maps a wire token onto the known tiers; unrecognized tokens get
// the slowest tier.
func (e EnumString) LatencyTier() agents.LatencyTier {
	switch agents.LatencyTier(strings.ToUpper(string(e))) {
	case agents.TierColocated:
		return agents.TierColocated
	case agents.TierFast:
		return agents.TierFast
	case agents.TierMedium:
		return agents.TierMedium
	case agents.TierSlow:
		return agents.TierSlow
	default:
		return agents.TierSlow
	}
}

// DecayMode maps a wire token onto a decay curve, defaulting unrecognized or
// absent tokens to LINEAR.
func (e EnumString) DecayMode() market.DecayMode {
	switch market.DecayMode(strings.ToUpper(string(e))) {
	case market.DecayExponential:
		return market.DecayExponential
	default:
		return market.DecayLinear
	}
}

type StartSessionRequest struct {
	Name         string       `json:"name"`
	Seed         *int64       `json:"seed"`
	SessionTicks *uint64      `json:"session_ticks"`
	Participants []CohortSpec `json:"participants"` // optional crowd override
}

// CohortSpec is one participant cohort on the wire.
type CohortSpec struct {
	Name        string     `json:"name"`
	Type        EnumString `json:"type"`
	Tier        EnumString `json:"tier"`
	Count       int        `json:"count"`
	MaxPosition int64      `json:"max_position"`
	MaxLoss     int64      `json:"max_loss"`
}

type StepRequest struct {
	Ticks int `json:"ticks"`
}

type NewsRequest struct {
	Headline      string     `json:"headline"`
	Sentiment     float64    `json:"sentiment"`
	Magnitude     float64    `json:"magnitude"`
	Horizon       uint64     `json:"horizon"`
	Decay         EnumString `json:"decay"`
	InstrumentIDs []int64    `json:"instrument_ids"` // empty targets the whole market
}

type NewsResponse struct {
	EventIDs []int64 `json:"event_ids"`
	Headline string  `json:"headline"`
	Queued   int     `json:"queued"`
}

type PriceLevelInfo struct {
	Price    int64 `json:"price"` // price in cents
	Quantity int64 `json:"quantity"`
}

type TradeInfo struct {
	TradeID    int64  `json:"trade_id"`
	Instrument int64  `json:"instrument"`
	Symbol     string `json:"symbol"`
	Price      int64  `json:"price"` // price in cents
	Quantity   int64  `json:"quantity"`
	Tick       uint64 `json:"tick"`
	Timestamp  int64  `json:"timestamp"` // simulated nanoseconds
	Aggressor  string `json:"aggressor"`
	Auction    bool   `json:"auction"`
}

type InstrumentView struct {
	ID        int64  `json:"id"`
	Symbol    string `json:"symbol"`
	Phase     string `json:"phase"`
	Reference int64  `json:"reference"`
	FairValue int64  `json:"fair_value"`
	LastPrice int64  `json:"last_price"`

	BestBid int64 `json:"best_bid"`
	BidQty  int64 `json:"bid_qty"`
	HasBid  bool  `json:"has_bid"`
	BestAsk int64 `json:"best_ask"`
	AskQty  int64 `json:"ask_qty"`
	HasAsk  bool  `json:"has_ask"`

	Bids []PriceLevelInfo `json:"bids"`
	Asks []PriceLevelInfo `json:"asks"`

	RestingOrders   int   `json:"resting_orders"`
	ActiveNews      int   `json:"active_news"`
	BreakerTriggers int64 `json:"breaker_triggers"`
}

type SnapshotResponse struct {
	SessionID   string           `json:"session_id"`
	SessionName string           `json:"session_name"`
	Tick        uint64           `json:"tick"`
	Phase       string           `json:"phase"`
	Running     bool             `json:"running"`
	Instruments []InstrumentView `json:"instruments"`
	Trades      []TradeInfo      `json:"trades"` // newest first
	QueueDepth  int              `json:"queue_depth"`
	TotalNews   int64            `json:"total_news"`
}

type StepResponse struct {
	TicksAdvanced int              `json:"ticks_advanced"`
	Trades        int64            `json:"trades"`
	Volume        int64            `json:"volume"`
	Snapshot      SnapshotResponse `json:"snapshot"`
}

type OrderBookResponse struct {
	Tick       uint64         `json:"tick"`
	Phase      string         `json:"phase"`
	Instrument InstrumentView `json:"instrument"`
	Trades     []TradeInfo    `json:"trades"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SessionActive bool   `json:"session_active"`
	Tick          uint64 `json:"tick"`
}

type MetricsResponse struct {
	SessionsStarted int64   `json:"sessions_started"`
	TicksStepped    int64   `json:"ticks_stepped"`
	NewsInjected    int64   `json:"news_injected"`
	OrdersAccepted  int64   `json:"orders_accepted"`
	TradesExecuted  int64   `json:"trades_executed"`
	StepP50Ms       float64 `json:"step_p50_ms"`
	StepP99Ms       float64 `json:"step_p99_ms"`
	StepP999Ms      float64 `json:"step_p999_ms"`
	TicksPerSec     float64 `json:"ticks_per_sec"`
}
