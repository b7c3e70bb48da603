package sim

import (
	"fmt"
)

// SessionBusyError reports that another control operation holds the session.
type SessionBusyError struct{}

func (e *SessionBusyError) Error() string {
	return "Session is busy with another operation"
}

type NoSessionError struct{}

func (e *NoSessionError) Error() string {
	return "No session has been started"
}

type SessionStoppedError struct{}

func (e *SessionStoppedError) Error() string {
	return "Session is stopped"
}

type SessionRunningError struct{}

func (e *SessionRunningError) Error() string {
	return "Session is already running"
}

type UnknownInstrumentError struct {
	Key string
}

func (e *UnknownInstrumentError) Error() string {
	return fmt.Sprintf("Unknown instrument: %s", e.Key)
}

type InvalidNewsError struct {
	Reason string
}

func (e *InvalidNewsError) Error() string {
	return fmt.Sprintf("Invalid news event: %s", e.Reason)
}

type InvalidStepError struct {
	Count int
}

func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("Invalid step count: %d", e.Count)
}

// InvariantViolationError is fatal: a matching book ended a tick crossed.
// The session refuses to advance past it.
type InvariantViolationError struct {
	Instrument int64
	Symbol     string
	BestBid    int64
	BestAsk    int64
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("Order book for %s crossed after matching: bid %d >= ask %d", e.Symbol, e.BestBid, e.BestAsk)
}
