package handlers

import (
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"market-sim/src/config"
	"market-sim/src/market"
	"market-sim/src/models"
	"market-sim/src/sim"
)

const defaultNewsHorizon = uint64(10)

type SessionHandler struct {
	Sim       *sim.Simulator
	StartTime time.Time

	SessionsStarted int64
	TicksStepped    int64
	NewsInjected    int64

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewSessionHandler(simulator *sim.Simulator) *SessionHandler {
	maxLatencies := 10000
	if envMax := os.Getenv("METRICS_MAX_LATENCIES"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxLatencies = parsed
		}
	}

	return &SessionHandler{
		Sim:          simulator,
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, maxLatencies),
		maxLatencies: maxLatencies,
	}
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	var req models.StartSessionRequest

	// edge case: an empty body starts the configured default profile
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			log.Warn().
				Err(err).
				Str("ip", c.IP()).
				Str("path", c.Path()).
				Msg("Invalid request: malformed JSON")
			return c.Status(fiber.StatusBadRequest).JSON(models.Fail("Invalid request: malformed JSON"))
		}
	}

	if err := validateStartRequest(&req); err != nil {
		log.Warn().
			Err(err).
			Str("name", req.Name).
			Str("ip", c.IP()).
			Msg("Invalid start request")
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail(err.Error()))
	}

	opts := sim.StartOptions{
		Name:         req.Name,
		Seed:         req.Seed,
		SessionTicks: req.SessionTicks,
	}
	for _, cohort := range req.Participants {
		opts.Participants = append(opts.Participants, config.ParticipantConfig{
			Name:        cohort.Name,
			Type:        string(cohort.Type.ParticipantType()),
			Tier:        string(cohort.Tier.LatencyTier()),
			Count:       cohort.Count,
			MaxPosition: cohort.MaxPosition,
			MaxLoss:     cohort.MaxLoss,
		})
	}

	snap, err := h.Sim.Start(opts)
	if err != nil {
		return respondSimError(c, err)
	}

	atomic.AddInt64(&h.SessionsStarted, 1)

	log.Info().
		Str("session_id", snap.SessionID).
		Str("name", snap.SessionName).
		Int("instruments", len(snap.Instruments)).
		Str("ip", c.IP()).
		Msg("Session started")

	return c.Status(fiber.StatusCreated).JSON(models.OK(snapshotResponse(snap)))
}

func (h *SessionHandler) StepSession(c *fiber.Ctx) error {
	var req models.StepRequest

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			log.Warn().
				Err(err).
				Str("ip", c.IP()).
				Str("path", c.Path()).
				Msg("Invalid request: malformed JSON")
			return c.Status(fiber.StatusBadRequest).JSON(models.Fail("Invalid request: malformed JSON"))
		}
	}
	// edge case: an empty body advances a single tick
	if req.Ticks == 0 {
		req.Ticks = 1
	}

	startTime := time.Now()
	result, err := h.Sim.Step(req.Ticks)
	h.recordLatency(time.Since(startTime))

	if err != nil {
		return respondSimError(c, err)
	}

	atomic.AddInt64(&h.TicksStepped, int64(result.TicksAdvanced))

	snap, err := h.Sim.Snapshot()
	if err != nil {
		return respondSimError(c, err)
	}

	log.Info().
		Int("ticks", result.TicksAdvanced).
		Uint64("tick", result.Tick).
		Str("phase", string(result.Phase)).
		Int64("trades", result.Trades).
		Int64("volume", result.Volume).
		Msg("Session stepped")

	return c.Status(fiber.StatusOK).JSON(models.OK(models.StepResponse{
		TicksAdvanced: result.TicksAdvanced,
		Trades:        result.Trades,
		Volume:        result.Volume,
		Snapshot:      snapshotResponse(snap),
	}))
}

func (h *SessionHandler) StopSession(c *fiber.Ctx) error {
	snap, err := h.Sim.Stop()
	if err != nil {
		return respondSimError(c, err)
	}

	log.Info().
		Str("session_id", snap.SessionID).
		Uint64("tick", snap.Tick).
		Str("ip", c.IP()).
		Msg("Session stopped")

	return c.Status(fiber.StatusOK).JSON(models.OK(snapshotResponse(snap)))
}

func (h *SessionHandler) GetOrderBook(c *fiber.Ctx) error {
	key := c.Params("instrument")

	defaultDepth := 10
	if envDepth := os.Getenv("ORDERBOOK_DEFAULT_DEPTH"); envDepth != "" {
		if parsed, err := strconv.Atoi(envDepth); err == nil && parsed > 0 {
			defaultDepth = parsed
		}
	}

	depthStr := c.Query("depth", strconv.Itoa(defaultDepth))
	depth, err := strconv.Atoi(depthStr)
	if err != nil || depth <= 0 {
		depth = defaultDepth
	}

	view, err := h.Sim.OrderBook(key, depth)
	if err != nil {
		return respondSimError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.OK(models.OrderBookResponse{
		Tick:       view.Tick,
		Phase:      string(view.Phase),
		Instrument: instrumentView(view.Instrument),
		Trades:     tradeInfos(view.Trades),
	}))
}

func (h *SessionHandler) GetAnalytics(c *fiber.Ctx) error {
	report, err := h.Sim.Analytics()
	if err != nil {
		return respondSimError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(models.OK(report))
}

func (h *SessionHandler) InjectNews(c *fiber.Ctx) error {
	var req models.NewsRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail("Invalid request: malformed JSON"))
	}

	// edge case: horizon is optional on the wire, the effect is always bounded
	if req.Horizon == 0 {
		req.Horizon = defaultNewsHorizon
	}

	ev := &market.NewsEvent{
		Headline:  req.Headline,
		Sentiment: req.Sentiment,
		Magnitude: req.Magnitude,
		Horizon:   req.Horizon,
	}
	if req.Decay != "" {
		ev.Decay = req.Decay.DecayMode()
	}

	queued, err := h.Sim.InjectNews(ev, req.InstrumentIDs...)
	if err != nil {
		return respondSimError(c, err)
	}

	atomic.AddInt64(&h.NewsInjected, int64(len(queued)))

	ids := make([]int64, 0, len(queued))
	for _, q := range queued {
		ids = append(ids, q.ID)
	}

	log.Info().
		Str("headline", req.Headline).
		Float64("sentiment", req.Sentiment).
		Float64("magnitude", req.Magnitude).
		Ints64("targets", req.InstrumentIDs).
		Str("ip", c.IP()).
		Msg("News injected")

	return c.Status(fiber.StatusAccepted).JSON(models.OK(models.NewsResponse{
		EventIDs: ids,
		Headline: req.Headline,
		Queued:   len(queued),
	}))
}

func (h *SessionHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	resp := models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(uptime),
	}
	if snap, err := h.Sim.Snapshot(); err == nil {
		resp.SessionActive = snap.Running
		resp.Tick = snap.Tick
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *SessionHandler) Metrics(c *fiber.Ctx) error {
	p50, p99, p999 := h.calculateLatencyPercentiles()
	throughput := h.calculateThroughput()

	resp := models.MetricsResponse{
		SessionsStarted: atomic.LoadInt64(&h.SessionsStarted),
		TicksStepped:    atomic.LoadInt64(&h.TicksStepped),
		NewsInjected:    atomic.LoadInt64(&h.NewsInjected),
		StepP50Ms:       p50,
		StepP99Ms:       p99,
		StepP999Ms:      p999,
		TicksPerSec:     throughput,
	}
	if report, err := h.Sim.Analytics(); err == nil && report != nil {
		resp.OrdersAccepted = report.TotalOrders
		resp.TradesExecuted = report.TotalTrades
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *SessionHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *SessionHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0, 0
	}

	latenciesCopy := make([]time.Duration, len(h.latencies))
	copy(latenciesCopy, h.latencies)

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	p50Index := int(float64(len(latenciesCopy)) * 0.50)
	p99Index := int(float64(len(latenciesCopy)) * 0.99)
	p999Index := int(float64(len(latenciesCopy)) * 0.999)

	// edge case: ensure indices are within bounds
	if p50Index >= len(latenciesCopy) {
		p50Index = len(latenciesCopy) - 1
	}
	if p99Index >= len(latenciesCopy) {
		p99Index = len(latenciesCopy) - 1
	}
	if p999Index >= len(latenciesCopy) {
		p999Index = len(latenciesCopy) - 1
	}

	p50 = float64(latenciesCopy[p50Index].Nanoseconds()) / 1e6
	p99 = float64(latenciesCopy[p99Index].Nanoseconds()) / 1e6
	p999 = float64(latenciesCopy[p999Index].Nanoseconds()) / 1e6

	return p50, p99, p999
}

func (h *SessionHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}

	ticksStepped := atomic.LoadInt64(&h.TicksStepped)
	return float64(ticksStepped) / uptime
}

// respondSimError maps simulator errors onto the envelope: lifecycle
// conflicts are 409, bad input is 400, unknown instruments are 404.
func respondSimError(c *fiber.Ctx, err error) error {
	switch err.(type) {
	case *sim.SessionBusyError, *sim.SessionRunningError, *sim.NoSessionError, *sim.SessionStoppedError:
		return c.Status(fiber.StatusConflict).JSON(models.Fail(err.Error()))
	case *sim.InvalidStepError, *sim.InvalidNewsError:
		return c.Status(fiber.StatusBadRequest).JSON(models.Fail(err.Error()))
	case *sim.UnknownInstrumentError:
		return c.Status(fiber.StatusNotFound).JSON(models.Fail(err.Error()))
	case *sim.InvariantViolationError:
		log.Error().Err(err).Msg("Session halted on invariant violation")
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail(err.Error()))
	default:
		log.Error().Err(err).Msg("Unexpected simulator error")
		return c.Status(fiber.StatusInternalServerError).JSON(models.Fail("Internal server error"))
	}
}

func validateStartRequest(req *models.StartSessionRequest) error {
	if req.Seed != nil && *req.Seed < 0 {
		return &ValidationError{Message: "Invalid start: seed must not be negative"}
	}
	if req.SessionTicks != nil && *req.SessionTicks == 0 {
		return &ValidationError{Message: "Invalid start: session_ticks must be positive"}
	}
	for _, cohort := range req.Participants {
		if cohort.Name == "" {
			return &ValidationError{Message: "Invalid start: participant name is required"}
		}
		if cohort.Count <= 0 {
			return &ValidationError{Message: "Invalid start: participant count must be positive"}
		}
		if cohort.MaxPosition < 0 || cohort.MaxLoss < 0 {
			return &ValidationError{Message: "Invalid start: participant limits must not be negative"}
		}
	}
	return nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func snapshotResponse(snap *sim.Snapshot) models.SnapshotResponse {
	resp := models.SnapshotResponse{
		SessionID:   snap.SessionID,
		SessionName: snap.SessionName,
		Tick:        snap.Tick,
		Phase:       string(snap.Phase),
		Running:     snap.Running,
		Instruments: make([]models.InstrumentView, 0, len(snap.Instruments)),
		Trades:      tradeInfos(snap.Trades),
		QueueDepth:  snap.QueueDepth,
		TotalNews:   snap.TotalNews,
	}
	for _, instrument := range snap.Instruments {
		resp.Instruments = append(resp.Instruments, instrumentView(instrument))
	}
	return resp
}

func instrumentView(snap sim.InstrumentSnapshot) models.InstrumentView {
	view := models.InstrumentView{
		ID:              snap.ID,
		Symbol:          snap.Symbol,
		Phase:           string(snap.Phase),
		Reference:       snap.Reference,
		FairValue:       snap.FairValue,
		LastPrice:       snap.LastPrice,
		BestBid:         snap.BestBid,
		BidQty:          snap.BidQty,
		HasBid:          snap.HasBid,
		BestAsk:         snap.BestAsk,
		AskQty:          snap.AskQty,
		HasAsk:          snap.HasAsk,
		Bids:            make([]models.PriceLevelInfo, 0, len(snap.Bids)),
		Asks:            make([]models.PriceLevelInfo, 0, len(snap.Asks)),
		RestingOrders:   snap.RestingOrders,
		ActiveNews:      snap.ActiveNews,
		BreakerTriggers: snap.BreakerTriggers,
	}
	for _, level := range snap.Bids {
		view.Bids = append(view.Bids, models.PriceLevelInfo{Price: level.Price, Quantity: level.Quantity})
	}
	for _, level := range snap.Asks {
		view.Asks = append(view.Asks, models.PriceLevelInfo{Price: level.Price, Quantity: level.Quantity})
	}
	return view
}

func tradeInfos(trades []sim.TradeView) []models.TradeInfo {
	infos := make([]models.TradeInfo, 0, len(trades))
	for _, trade := range trades {
		infos = append(infos, models.TradeInfo{
			TradeID:    trade.ID,
			Instrument: trade.Instrument,
			Symbol:     trade.Symbol,
			Price:      trade.Price,
			Quantity:   trade.Quantity,
			Tick:       trade.Tick,
			Timestamp:  trade.Timestamp,
			Aggressor:  string(trade.Aggressor),
			Auction:    trade.Auction,
		})
	}
	return infos
}
