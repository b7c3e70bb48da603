package market

type Phase string

const (
	PhasePreOpen           Phase = "PRE_OPEN"
	PhaseOpeningAuction    Phase = "OPENING_AUCTION"
	PhaseContinuous        Phase = "CONTINUOUS"
	PhaseVolatilityAuction Phase = "VOLATILITY_AUCTION"
	PhaseHalted            Phase = "HALTED"
	PhaseClosingAuction    Phase = "CLOSING_AUCTION"
	PhasePostClose         Phase = "POST_CLOSE"
)

// AcceptsOrders reports whether new orders may enter the book in this phase.
// Everything except POST_CLOSE takes order flow; phases that are not
// CONTINUOUS accumulate it for the next uncross instead of matching.
func (p Phase) AcceptsOrders() bool {
	return p != PhasePostClose
}

func (p Phase) Matching() bool {
	return p == PhaseContinuous
}

// Schedule maps ticks onto the session-wide phase sequence
// PRE_OPEN -> OPENING_AUCTION -> CONTINUOUS -> CLOSING_AUCTION -> POST_CLOSE.
// Per-instrument volatility interruptions overlay this, they do not move it.
type Schedule struct {
	PreOpenTicks        uint64
	OpeningAuctionTicks uint64
	ClosingAuctionTicks uint64
	SessionTicks        uint64
}

func (s Schedule) PhaseAt(tick uint64) Phase {
	switch {
	case tick < s.PreOpenTicks:
		return PhasePreOpen
	case tick < s.PreOpenTicks+s.OpeningAuctionTicks:
		return PhaseOpeningAuction
	case tick < s.SessionTicks-s.ClosingAuctionTicks:
		return PhaseContinuous
	case tick < s.SessionTicks:
		return PhaseClosingAuction
	default:
		return PhasePostClose
	}
}

// OpeningUncrossTick is the first continuous tick; the opening auction book
// uncrosses at its start.
func (s Schedule) OpeningUncrossTick() uint64 {
	return s.PreOpenTicks + s.OpeningAuctionTicks
}

// ClosingUncrossTick is the first post-close tick; the closing auction book
// uncrosses at its start.
func (s Schedule) ClosingUncrossTick() uint64 {
	return s.SessionTicks
}
