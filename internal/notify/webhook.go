// =============================
// File: internal/notify/webhook.go
// =============================
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/events"
)

// payload is the JSON body posted for every notification.
type payload struct {
	Event     string    `json:"event"`
	Time      time.Time `json:"time"`
	Mint      string    `json:"mint,omitempty"`
	Wallet    string    `json:"wallet,omitempty"`
	Side      string    `json:"side,omitempty"`
	Protocol  string    `json:"protocol,omitempty"`
	Signature string    `json:"signature,omitempty"`
	Lamports  uint64    `json:"lamports,omitempty"`
	Tokens    uint64    `json:"tokens,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Webhook posts trade lifecycle events to an HTTP endpoint. Delivery rides
// the event bus, so a slow or dead endpoint never blocks trading.
type Webhook struct {
	logger *zap.Logger
	url    string
	client *http.Client
}

func NewWebhook(logger *zap.Logger, url string) (*Webhook, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if url == "" {
		return nil, fmt.Errorf("webhook url is empty")
	}
	return &Webhook{
		logger: logger.Named("notify"),
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Register subscribes the webhook to the trade lifecycle events.
func (w *Webhook) Register(bus *events.Bus) []events.Subscription {
	types := []events.EventType{
		events.TradeDetected,
		events.TradeExecuted,
		events.TradeFailed,
		events.PositionRemoved,
		events.BalanceReconciled,
	}
	subs := make([]events.Subscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, bus.SubscribeFunc(t, w.Handle))
	}
	return subs
}

// Handle converts an event to its payload and posts it.
func (w *Webhook) Handle(ctx context.Context, event events.Event) error {
	body := payload{
		Event: string(event.Type()),
		Time:  event.Timestamp(),
	}

	switch e := event.(type) {
	case *events.TradeDetectedEvent:
		body.Mint = e.Intent.Mint.String()
		body.Wallet = e.Intent.Wallet.String()
		body.Side = string(e.Intent.Side)
		body.Protocol = string(e.Intent.Protocol)
		body.Signature = e.Intent.Signature.String()
		body.Lamports = e.Intent.SpentLamports()
	case *events.TradeExecutedEvent:
		body.Mint = e.Result.Order.Mint.String()
		body.Side = string(e.Result.Order.Side)
		body.Protocol = string(e.Result.Order.Protocol)
		body.Signature = e.Result.Signature.String()
		body.Tokens = e.Result.AmountOut
		body.Attempts = e.Result.Attempts
	case *events.TradeFailedEvent:
		body.Mint = e.Result.Order.Mint.String()
		body.Side = string(e.Result.Order.Side)
		body.Protocol = string(e.Result.Order.Protocol)
		body.Attempts = e.Result.Attempts
		body.Reason = e.Result.State.String()
		if e.Result.Err != nil {
			body.Error = e.Result.Err.Error()
		}
	case *events.PositionRemovedEvent:
		body.Mint = e.Mint
		body.Reason = e.Reason
	case *events.BalanceReconciledEvent:
		body.Mint = e.Mint
		body.Tokens = e.NewBalance
	}

	return w.post(ctx, body)
}

func (w *Webhook) post(ctx context.Context, body payload) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("Notification delivery failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn("Notification rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("event", body.Event))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
