package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// OrderState tracks an execution order through submission and confirmation.
type OrderState int

const (
	OrderBuilding OrderState = iota
	OrderSubmitted
	OrderConfirmed
	OrderFailed
	OrderTimedOut
)

func (s OrderState) String() string {
	switch s {
	case OrderBuilding:
		return "building"
	case OrderSubmitted:
		return "submitted"
	case OrderConfirmed:
		return "confirmed"
	case OrderFailed:
		return "failed"
	case OrderTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// ExecutionOrder is a strategy decision to mirror an observed trade.
type ExecutionOrder struct {
	ID       string
	Intent   *TradeIntent
	Side     Side
	Mint     solana.PublicKey
	Protocol Protocol
	// Amount is the input amount in base units: lamports to spend for a
	// buy, token units to sell for a sell.
	Amount uint64
	// SlippageBps bounds the acceptable output shortfall in basis points.
	SlippageBps uint64
	CreatedAt   time.Time
}

// ExecutionResult is the terminal outcome of an ExecutionOrder.
type ExecutionResult struct {
	Order     *ExecutionOrder
	State     OrderState
	Signature solana.Signature
	// AmountOut is the confirmed output amount, zero unless State is
	// OrderConfirmed.
	AmountOut uint64
	Attempts  int
	Err       error
	Duration  time.Duration
}

// Confirmed reports whether the order landed on chain.
func (r *ExecutionResult) Confirmed() bool {
	return r.State == OrderConfirmed
}
