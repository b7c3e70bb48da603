package analytics

// FeeSchedule prices executions in basis points of traded notional. A
// negative maker rate is a rebate.
type FeeSchedule struct {
	MakerBps int64
	TakerBps int64
}

// Maker is the fee in cents charged to the resting side of a fill.
func (f FeeSchedule) Maker(price, quantity int64) int64 {
	return price * quantity * f.MakerBps / 10000
}

// Taker is the fee in cents charged to the aggressing side of a fill.
func (f FeeSchedule) Taker(price, quantity int64) int64 {
	return price * quantity * f.TakerBps / 10000
}
