// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

// EventType represents the type of event.
type EventType string

const (
	// Trade lifecycle events
	TradeDetected EventType = "trade.detected"
	TradeExecuted EventType = "trade.executed"
	TradeFailed   EventType = "trade.failed"
	TradeSkipped  EventType = "trade.skipped"

	// Ledger events
	PositionRemoved   EventType = "position.removed"
	BalanceReconciled EventType = "balance.reconciled"

	// Stream events
	StreamLagging EventType = "stream.lagging"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// TradeDetectedEvent is emitted when a monitored wallet's swap is decoded.
type TradeDetectedEvent struct {
	BaseEvent
	Intent *domain.TradeIntent
}

// TradeExecutedEvent is emitted when a mirrored order confirms on chain.
type TradeExecutedEvent struct {
	BaseEvent
	Result *domain.ExecutionResult
}

// TradeFailedEvent is emitted when a mirrored order reaches a failed or
// timed-out terminal state.
type TradeFailedEvent struct {
	BaseEvent
	Result *domain.ExecutionResult
}

// TradeSkippedEvent is emitted when the strategy rejects an observed trade.
type TradeSkippedEvent struct {
	BaseEvent
	Intent *domain.TradeIntent
	Reason string
}

// PositionRemovedEvent is emitted when the ledger drops a position, either
// sold out or swept below the dust threshold.
type PositionRemovedEvent struct {
	BaseEvent
	Mint   string
	Reason string
}

// BalanceReconciledEvent is emitted when the monitor corrects a ledger
// amount against the on-chain balance.
type BalanceReconciledEvent struct {
	BaseEvent
	Mint       string
	OldBalance uint64
	NewBalance uint64
}

// StreamLaggingEvent is emitted when the ingest queue overflows and events
// are dropped.
type StreamLaggingEvent struct {
	BaseEvent
	Dropped uint64
}
