package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/events"
)

type capture struct {
	mu       sync.Mutex
	payloads []payload
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *capture) received() []payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]payload, len(c.payloads))
	copy(out, c.payloads)
	return out
}

func TestHandleTradeDetected(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(cap.handler())
	defer srv.Close()

	w, err := NewWebhook(zap.NewNop(), srv.URL)
	require.NoError(t, err)

	mint := solana.NewWallet().PublicKey()
	trader := solana.NewWallet().PublicKey()
	ev := &events.TradeDetectedEvent{
		BaseEvent: events.NewBase(events.TradeDetected),
		Intent: &domain.TradeIntent{
			Wallet:    trader,
			Protocol:  domain.ProtocolPumpFun,
			Side:      domain.SideBuy,
			Mint:      mint,
			AmountIn:  500_000_000,
			AmountOut: 1_000_000,
		},
	}

	require.NoError(t, w.Handle(context.Background(), ev))

	got := cap.received()
	require.Len(t, got, 1)
	assert.Equal(t, "trade.detected", got[0].Event)
	assert.Equal(t, mint.String(), got[0].Mint)
	assert.Equal(t, trader.String(), got[0].Wallet)
	assert.Equal(t, "buy", got[0].Side)
	assert.Equal(t, uint64(500_000_000), got[0].Lamports)
}

func TestHandleTradeFailedCarriesError(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(cap.handler())
	defer srv.Close()

	w, err := NewWebhook(zap.NewNop(), srv.URL)
	require.NoError(t, err)

	order := &domain.ExecutionOrder{
		Mint:     solana.NewWallet().PublicKey(),
		Side:     domain.SideSell,
		Protocol: domain.ProtocolRaydium,
	}
	ev := &events.TradeFailedEvent{
		BaseEvent: events.NewBase(events.TradeFailed),
		Result: &domain.ExecutionResult{
			Order:    order,
			State:    domain.OrderTimedOut,
			Attempts: 3,
			Err:      context.DeadlineExceeded,
		},
	}

	require.NoError(t, w.Handle(context.Background(), ev))

	got := cap.received()
	require.Len(t, got, 1)
	assert.Equal(t, "timed_out", got[0].Reason)
	assert.Equal(t, 3, got[0].Attempts)
	assert.NotEmpty(t, got[0].Error)
}

func TestHandleRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w, err := NewWebhook(zap.NewNop(), srv.URL)
	require.NoError(t, err)

	ev := &events.PositionRemovedEvent{
		BaseEvent: events.NewBase(events.PositionRemoved),
		Mint:      "mint",
		Reason:    "dust",
	}
	assert.Error(t, w.Handle(context.Background(), ev))
}

func TestRegisterDeliversThroughBus(t *testing.T) {
	cap := &capture{}
	srv := httptest.NewServer(cap.handler())
	defer srv.Close()

	w, err := NewWebhook(zap.NewNop(), srv.URL)
	require.NoError(t, err)

	bus := events.NewBus(zap.NewNop(), 16)
	subs := w.Register(bus)
	assert.Len(t, subs, 5)
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	require.NoError(t, bus.Publish(&events.PositionRemovedEvent{
		BaseEvent: events.NewBase(events.PositionRemoved),
		Mint:      "mint",
		Reason:    "sold out",
	}))

	require.Eventually(t, func() bool {
		return len(cap.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "sold out", cap.received()[0].Reason)
}

func TestNewWebhookValidation(t *testing.T) {
	_, err := NewWebhook(zap.NewNop(), "")
	assert.Error(t, err)
}
