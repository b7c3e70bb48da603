package analytics

import (
	"math"
	"sort"

	"market-sim/src/engine"
)

type instrumentStats struct {
	symbol string

	lastPrice int64
	high      int64
	low       int64

	volume   int64
	notional int64
	trades   int64

	spreadSum   int64
	spreadTicks int64

	lastMark int64
	retSum   float64
	retSumSq float64
	retCount int64

	breakerCount int64
}

type participantStats struct {
	name            string
	participantType string

	orders   int64
	cancels  int64
	modifies int64
	rejects  int64

	submittedQty int64
	filledQty    int64

	trades int64
	volume int64

	fees       int64
	realized   int64
	unrealized int64
	net        int64

	peakNet     int64
	maxDrawdown int64
	active      bool
}

// Aggregator accumulates per-instrument and per-participant statistics over
// the life of a session. It is fed from the tick pipeline and read only
// through Report, so it needs no locking of its own.
type Aggregator struct {
	fees FeeSchedule

	instruments  map[int64]*instrumentStats
	participants map[int64]*participantStats

	totalOrders int64
	totalTrades int64
	totalVolume int64
}

func NewAggregator(fees FeeSchedule) *Aggregator {
	return &Aggregator{
		fees:         fees,
		instruments:  make(map[int64]*instrumentStats),
		participants: make(map[int64]*participantStats),
	}
}

func (a *Aggregator) Fees() FeeSchedule {
	return a.fees
}

func (a *Aggregator) AddInstrument(id int64, symbol string) {
	a.instruments[id] = &instrumentStats{symbol: symbol}
}

func (a *Aggregator) AddParticipant(id int64, name, participantType string) {
	a.participants[id] = &participantStats{
		name:            name,
		participantType: participantType,
		active:          true,
	}
}

func (a *Aggregator) instrument(id int64) *instrumentStats {
	stats, exists := a.instruments[id]
	if !exists {
		stats = &instrumentStats{}
		a.instruments[id] = stats
	}
	return stats
}

func (a *Aggregator) participant(id int64) *participantStats {
	stats, exists := a.participants[id]
	if !exists {
		stats = &participantStats{active: true}
		a.participants[id] = stats
	}
	return stats
}

// OrderAccepted counts a submit that reached the book or matched.
func (a *Aggregator) OrderAccepted(participant, quantity int64) {
	stats := a.participant(participant)
	stats.orders++
	stats.submittedQty += quantity
	a.totalOrders++
}

func (a *Aggregator) OrderRejected(participant int64) {
	a.participant(participant).rejects++
}

func (a *Aggregator) OrderCancelled(participant int64) {
	a.participant(participant).cancels++
}

// OrderModified counts a modify; addedQty is the quantity increase, if any,
// so the fill rate denominator follows upsized orders.
func (a *Aggregator) OrderModified(participant, addedQty int64) {
	stats := a.participant(participant)
	stats.modifies++
	if addedQty > 0 {
		stats.submittedQty += addedQty
	}
}

// TradeExecuted folds one fill into both books of statistics. Fees are the
// amounts already charged to maker and taker for this fill.
func (a *Aggregator) TradeExecuted(trade *engine.Trade, makerFee, takerFee int64) {
	stats := a.instrument(trade.Instrument)
	stats.lastPrice = trade.Price
	if stats.high == 0 || trade.Price > stats.high {
		stats.high = trade.Price
	}
	if stats.low == 0 || trade.Price < stats.low {
		stats.low = trade.Price
	}
	stats.volume += trade.Quantity
	stats.notional += trade.Price * trade.Quantity
	stats.trades++

	maker := a.participant(trade.Maker())
	maker.trades++
	maker.volume += trade.Quantity
	maker.filledQty += trade.Quantity
	maker.fees += makerFee

	taker := a.participant(trade.Taker())
	taker.trades++
	taker.volume += trade.Quantity
	taker.filledQty += trade.Quantity
	taker.fees += takerFee

	a.totalTrades++
	a.totalVolume += trade.Quantity
}

func (a *Aggregator) BreakerTriggered(instrument int64) {
	a.instrument(instrument).breakerCount++
}

// MarkInstrument closes a tick for one instrument: it samples the spread
// when the book is two-sided and accumulates the log return of the mark.
func (a *Aggregator) MarkInstrument(instrument, spread int64, twoSided bool, mark int64) {
	stats := a.instrument(instrument)
	if twoSided {
		stats.spreadSum += spread
		stats.spreadTicks++
	}
	if mark > 0 {
		if stats.lastMark > 0 && mark != stats.lastMark {
			r := math.Log(float64(mark) / float64(stats.lastMark))
			stats.retSum += r
			stats.retSumSq += r * r
			stats.retCount++
		} else if stats.lastMark > 0 {
			// unchanged mark is still an observation
			stats.retCount++
		}
		stats.lastMark = mark
	}
}

// MarkParticipant closes a tick for one participant: it refreshes the P&L
// decomposition and advances the drawdown watermark.
func (a *Aggregator) MarkParticipant(participant, realized, unrealized, fees, net int64, active bool) {
	stats := a.participant(participant)
	stats.realized = realized
	stats.unrealized = unrealized
	stats.fees = fees
	stats.net = net
	stats.active = active
	if net > stats.peakNet {
		stats.peakNet = net
	}
	if drawdown := stats.peakNet - net; drawdown > stats.maxDrawdown {
		stats.maxDrawdown = drawdown
	}
}

// InstrumentMetrics is the per-instrument block of a report. Prices are in
// cents; vwap and the spread average carry fractions.
type InstrumentMetrics struct {
	Instrument   int64   `json:"instrument"`
	Symbol       string  `json:"symbol"`
	LastPrice    int64   `json:"last_price"`
	High         int64   `json:"high"`
	Low          int64   `json:"low"`
	VWAP         float64 `json:"vwap"`
	Volume       int64   `json:"volume"`
	Trades       int64   `json:"trades"`
	TWASpread    float64 `json:"twa_spread"`
	RealizedVol  float64 `json:"realized_vol"`
	BreakerCount int64   `json:"breaker_count"`
}

type ParticipantMetrics struct {
	Participant     int64   `json:"participant"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Active          bool    `json:"active"`
	Orders          int64   `json:"orders"`
	Cancels         int64   `json:"cancels"`
	Modifies        int64   `json:"modifies"`
	Rejects         int64   `json:"rejects"`
	Trades          int64   `json:"trades"`
	Volume          int64   `json:"volume"`
	FillRate        float64 `json:"fill_rate"`
	OrderTradeRatio float64 `json:"order_trade_ratio"`
	Fees            int64   `json:"fees"`
	Realized        int64   `json:"realized_pnl"`
	Unrealized      int64   `json:"unrealized_pnl"`
	NetPnL          int64   `json:"net_pnl"`
	MaxDrawdown     int64   `json:"max_drawdown"`
}

type Report struct {
	TotalOrders  int64                `json:"total_orders"`
	TotalTrades  int64                `json:"total_trades"`
	TotalVolume  int64                `json:"total_volume"`
	Instruments  []InstrumentMetrics  `json:"instruments"`
	Participants []ParticipantMetrics `json:"participants"`
}

// Report assembles the current statistics, ordered by id so repeated calls
// and repeated runs serialize identically.
func (a *Aggregator) Report() *Report {
	report := &Report{
		TotalOrders: a.totalOrders,
		TotalTrades: a.totalTrades,
		TotalVolume: a.totalVolume,
	}

	instrumentIDs := make([]int64, 0, len(a.instruments))
	for id := range a.instruments {
		instrumentIDs = append(instrumentIDs, id)
	}
	sort.Slice(instrumentIDs, func(i, j int) bool { return instrumentIDs[i] < instrumentIDs[j] })
	for _, id := range instrumentIDs {
		stats := a.instruments[id]
		metrics := InstrumentMetrics{
			Instrument:   id,
			Symbol:       stats.symbol,
			LastPrice:    stats.lastPrice,
			High:         stats.high,
			Low:          stats.low,
			Volume:       stats.volume,
			Trades:       stats.trades,
			BreakerCount: stats.breakerCount,
		}
		if stats.volume > 0 {
			metrics.VWAP = float64(stats.notional) / float64(stats.volume)
		}
		if stats.spreadTicks > 0 {
			metrics.TWASpread = float64(stats.spreadSum) / float64(stats.spreadTicks)
		}
		if stats.retCount > 1 {
			n := float64(stats.retCount)
			variance := (stats.retSumSq - stats.retSum*stats.retSum/n) / (n - 1)
			if variance > 0 {
				metrics.RealizedVol = math.Sqrt(variance)
			}
		}
		report.Instruments = append(report.Instruments, metrics)
	}

	participantIDs := make([]int64, 0, len(a.participants))
	for id := range a.participants {
		participantIDs = append(participantIDs, id)
	}
	sort.Slice(participantIDs, func(i, j int) bool { return participantIDs[i] < participantIDs[j] })
	for _, id := range participantIDs {
		stats := a.participants[id]
		metrics := ParticipantMetrics{
			Participant: id,
			Name:        stats.name,
			Type:        stats.participantType,
			Active:      stats.active,
			Orders:      stats.orders,
			Cancels:     stats.cancels,
			Modifies:    stats.modifies,
			Rejects:     stats.rejects,
			Trades:      stats.trades,
			Volume:      stats.volume,
			Fees:        stats.fees,
			Realized:    stats.realized,
			Unrealized:  stats.unrealized,
			NetPnL:      stats.net,
			MaxDrawdown: stats.maxDrawdown,
		}
		if stats.submittedQty > 0 {
			rate := float64(stats.filledQty) / float64(stats.submittedQty)
			// edge case: auction fills on upsized orders cannot push past 1.0
			if rate > 1 {
				rate = 1
			}
			metrics.FillRate = rate
		}
		actions := stats.orders + stats.cancels + stats.modifies
		if stats.trades > 0 {
			metrics.OrderTradeRatio = float64(actions) / float64(stats.trades)
		} else {
			metrics.OrderTradeRatio = float64(actions)
		}
		report.Participants = append(report.Participants, metrics)
	}

	return report
}
