// internal/storage/models/trade.go
package models

import (
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

// Trade is one mirrored order and its outcome.
type Trade struct {
	BaseModel
	OrderID string `gorm:"unique;not null;type:varchar(36)"`
	// SourceSignature is the observed transaction that triggered the order.
	SourceSignature string `gorm:"index;not null;type:varchar(88)"`
	SourceWallet    string `gorm:"index;not null;type:varchar(44)"`
	Signature       string `gorm:"index;type:varchar(88)"`
	Mint            string `gorm:"index;not null;type:varchar(44)"`
	Protocol        string `gorm:"not null;type:varchar(20)"`
	Side            string `gorm:"not null;type:varchar(4)"`
	// AmountIn in base units: lamports for buys, token units for sells.
	AmountIn     uint64 `gorm:"not null"`
	AmountOut    uint64
	SlippageBps  uint64 `gorm:"not null"`
	State        string `gorm:"not null;type:varchar(20)"`
	Attempts     int    `gorm:"not null"`
	ErrorMessage string `gorm:"type:text"`
	DurationMs   int64
}

// TradeFromResult flattens an execution result into its storage row.
func TradeFromResult(result *domain.ExecutionResult) *Trade {
	order := result.Order
	trade := &Trade{
		OrderID:         order.ID,
		SourceSignature: order.Intent.Signature.String(),
		SourceWallet:    order.Intent.Wallet.String(),
		Signature:       result.Signature.String(),
		Mint:            order.Mint.String(),
		Protocol:        string(order.Protocol),
		Side:            string(order.Side),
		AmountIn:        order.Amount,
		AmountOut:       result.AmountOut,
		SlippageBps:     order.SlippageBps,
		State:           result.State.String(),
		Attempts:        result.Attempts,
		DurationMs:      result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		trade.ErrorMessage = result.Err.Error()
	}
	return trade
}
