package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// PositionState is the lifecycle state of a tracked token position.
type PositionState int

const (
	// PositionPendingBuy means a buy order was issued but not yet confirmed.
	PositionPendingBuy PositionState = iota
	// PositionActive means the position holds a confirmed token balance.
	PositionActive
	// PositionPendingSell means a sell order was issued but not yet confirmed.
	PositionPendingSell
	// PositionRemoved means the position was closed or swept as dust.
	PositionRemoved
)

func (s PositionState) String() string {
	switch s {
	case PositionPendingBuy:
		return "pending_buy"
	case PositionActive:
		return "active"
	case PositionPendingSell:
		return "pending_sell"
	case PositionRemoved:
		return "removed"
	}
	return "unknown"
}

// Position is one tracked token holding. There is at most one Position per
// mint; the ledger owns all mutation.
type Position struct {
	Mint         solana.PublicKey
	State        PositionState
	Amount       uint64 // token base units, confirmed on-chain balance
	TokenAccount solana.PublicKey
	// CostLamports is the cumulative SOL spent acquiring the current amount.
	CostLamports uint64
	OpenedAt     time.Time
	UpdatedAt    time.Time
}
