package engine

import (
	"fmt"
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "Invalid order: " + e.Reason
}

type OrderNotFoundError struct {
	OrderID int64
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("Order %d not found", e.OrderID)
}

type InsufficientLiquidityError struct {
	Instrument int64
	Requested  int64
}

func (e *InsufficientLiquidityError) Error() string {
	return "Insufficient liquidity"
}
