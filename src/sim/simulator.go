package sim

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"market-sim/src/analytics"
	"market-sim/src/config"
	"market-sim/src/market"
)

const maxStepBatch = 10_000

// StartOptions override parts of the configured profile for one run.
type StartOptions struct {
	Name         string
	Seed         *int64
	SessionTicks *uint64
	Participants []config.ParticipantConfig
}

type StepResult struct {
	TicksAdvanced int
	Tick          uint64
	Phase         market.Phase
	Trades        int64
	Volume        int64
}

// OrderBookView is the per-instrument slice of a snapshot served by the
// orderbook query, depth-limited and with that instrument's recent prints.
type OrderBookView struct {
	Tick       uint64
	Phase      market.Phase
	Instrument InstrumentSnapshot
	Trades     []TradeView
}

// Simulator is the control surface over one session at a time. Control
// operations serialize on a TryLock so a caller never blocks behind a long
// step batch; reads come off the last published snapshot and never lock.
type Simulator struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger zerolog.Logger

	session *Session
	running bool
	snap    atomic.Pointer[Snapshot]
}

func NewSimulator(cfg *config.Config, logger zerolog.Logger) *Simulator {
	return &Simulator{
		cfg:    cfg,
		logger: logger,
	}
}

// Start creates a fresh session from the configured profile. Starting over a
// stopped session replaces it; starting over a running one fails.
func (sm *Simulator) Start(opts StartOptions) (*Snapshot, error) {
	if !sm.mu.TryLock() {
		return nil, &SessionBusyError{}
	}
	defer sm.mu.Unlock()

	if sm.session != nil && sm.running {
		return nil, &SessionRunningError{}
	}

	profile := sm.cfg.Session
	if opts.Name != "" {
		profile.Name = opts.Name
	}
	if opts.Seed != nil {
		profile.Seed = *opts.Seed
	}
	if opts.SessionTicks != nil {
		profile.Schedule.SessionTicks = *opts.SessionTicks
	}
	if len(opts.Participants) > 0 {
		profile.Participants = opts.Participants
	}

	sm.session = NewSession(profile, sm.logger)
	sm.running = true
	snap := sm.session.Snapshot(true)
	sm.snap.Store(snap)
	return snap, nil
}

// Step advances the session by count ticks and publishes a fresh snapshot.
// A failed invariant check halts the session: the error is latched, later
// steps keep failing with it, and the snapshot published before the failure
// stays in place so queries never observe the corrupted state.
func (sm *Simulator) Step(count int) (*StepResult, error) {
	if !sm.mu.TryLock() {
		return nil, &SessionBusyError{}
	}
	defer sm.mu.Unlock()

	if sm.session == nil {
		return nil, &NoSessionError{}
	}
	if err := sm.session.Err(); err != nil {
		return nil, err
	}
	if !sm.running {
		return nil, &SessionStoppedError{}
	}
	if count <= 0 || count > maxStepBatch {
		return nil, &InvalidStepError{Count: count}
	}

	result := &StepResult{}
	for i := 0; i < count; i++ {
		summary, err := sm.session.Step()
		if err != nil {
			sm.running = false
			sm.logger.Error().
				Err(err).
				Str("session_id", sm.session.ID()).
				Uint64("tick", sm.session.Tick()).
				Msg("Session halted")
			if last := sm.snap.Load(); last != nil && last.Running {
				frozen := *last
				frozen.Running = false
				sm.snap.Store(&frozen)
			}
			return nil, err
		}
		result.TicksAdvanced++
		result.Trades += summary.Trades
		result.Volume += summary.Volume
	}

	result.Tick = sm.session.Tick()
	result.Phase = sm.session.Phase()
	sm.snap.Store(sm.session.Snapshot(true))
	return result, nil
}

// Stop freezes the session. Stopping an already stopped session is a no-op
// that returns the final snapshot again.
func (sm *Simulator) Stop() (*Snapshot, error) {
	if !sm.mu.TryLock() {
		return nil, &SessionBusyError{}
	}
	defer sm.mu.Unlock()

	if sm.session == nil {
		return nil, &NoSessionError{}
	}
	if sm.running {
		sm.running = false
		sm.logger.Info().
			Str("session_id", sm.session.ID()).
			Uint64("tick", sm.session.Tick()).
			Msg("Session stopped")
	}
	// Never rebuild from a halted session; keep serving the frame published
	// before the failure.
	if sm.session.Err() != nil {
		if snap := sm.snap.Load(); snap != nil {
			return snap, nil
		}
	}
	snap := sm.session.Snapshot(false)
	sm.snap.Store(snap)
	return snap, nil
}

// InjectNews validates and queues a shock for the next tick. Extra instrument
// ids fan the event out to one queued copy per target; with none given the
// event's own instrument applies, 0 meaning the whole market. Nothing is
// queued unless every target is known.
func (sm *Simulator) InjectNews(ev *market.NewsEvent, instruments ...int64) ([]*market.NewsEvent, error) {
	if !sm.mu.TryLock() {
		return nil, &SessionBusyError{}
	}
	defer sm.mu.Unlock()

	if sm.session == nil {
		return nil, &NoSessionError{}
	}
	if err := sm.session.Err(); err != nil {
		return nil, err
	}
	if !sm.running {
		return nil, &SessionStoppedError{}
	}
	if ev.Sentiment < -1 || ev.Sentiment > 1 {
		return nil, &InvalidNewsError{Reason: "sentiment must be within [-1, 1]"}
	}
	if ev.Magnitude <= 0 || ev.Magnitude > 1 {
		return nil, &InvalidNewsError{Reason: "magnitude must be within (0, 1]"}
	}
	if ev.Horizon == 0 {
		return nil, &InvalidNewsError{Reason: "horizon must be at least one tick"}
	}
	if ev.Decay != "" && ev.Decay != market.DecayLinear && ev.Decay != market.DecayExponential {
		return nil, &InvalidNewsError{Reason: "decay must be LINEAR or EXPONENTIAL"}
	}

	targets := instruments
	if len(targets) == 0 {
		targets = []int64{ev.Instrument}
	}
	for _, id := range targets {
		if id != 0 && !sm.session.HasInstrument(id) {
			return nil, &UnknownInstrumentError{Key: strconv.FormatInt(id, 10)}
		}
	}

	queued := make([]*market.NewsEvent, 0, len(targets))
	for _, id := range targets {
		clone := *ev
		clone.Instrument = id
		queued = append(queued, sm.session.QueueNews(&clone))
	}
	return queued, nil
}

// Snapshot returns the last published state without taking the control lock.
func (sm *Simulator) Snapshot() (*Snapshot, error) {
	snap := sm.snap.Load()
	if snap == nil {
		return nil, &NoSessionError{}
	}
	return snap, nil
}

// OrderBook resolves an instrument by numeric id or symbol and returns its
// depth-limited book view from the last snapshot.
func (sm *Simulator) OrderBook(key string, depth int) (*OrderBookView, error) {
	snap := sm.snap.Load()
	if snap == nil {
		return nil, &NoSessionError{}
	}

	var found *InstrumentSnapshot
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		found = snap.Instrument(id)
	}
	if found == nil {
		for i := range snap.Instruments {
			if strings.EqualFold(snap.Instruments[i].Symbol, key) {
				found = &snap.Instruments[i]
				break
			}
		}
	}
	if found == nil {
		return nil, &UnknownInstrumentError{Key: key}
	}

	if depth <= 0 {
		depth = 10
	}
	if depth > snapshotDepth {
		depth = snapshotDepth
	}
	view := &OrderBookView{
		Tick:       snap.Tick,
		Phase:      snap.Phase,
		Instrument: *found,
	}
	if len(view.Instrument.Bids) > depth {
		view.Instrument.Bids = view.Instrument.Bids[:depth]
	}
	if len(view.Instrument.Asks) > depth {
		view.Instrument.Asks = view.Instrument.Asks[:depth]
	}
	for _, trade := range snap.Trades {
		if trade.Instrument == found.ID {
			view.Trades = append(view.Trades, trade)
			if len(view.Trades) >= 20 {
				break
			}
		}
	}
	return view, nil
}

// Analytics returns the aggregate report from the last snapshot.
func (sm *Simulator) Analytics() (*analytics.Report, error) {
	snap := sm.snap.Load()
	if snap == nil {
		return nil, &NoSessionError{}
	}
	return snap.Report, nil
}
