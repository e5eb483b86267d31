package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/events"
)

func TestQueue_PushAndConsume(t *testing.T) {
	q := NewQueue(2)

	assert.False(t, q.Push(&domain.TransactionEvent{Slot: 1}))
	assert.False(t, q.Push(&domain.TransactionEvent{Slot: 2}))

	ev := <-q.C()
	assert.Equal(t, uint64(1), ev.Slot)
	ev = <-q.C()
	assert.Equal(t, uint64(2), ev.Slot)
	assert.Equal(t, uint64(0), q.Dropped())
}

func TestQueue_DropOldestOnOverflow(t *testing.T) {
	q := NewQueue(2)

	q.Push(&domain.TransactionEvent{Slot: 1})
	q.Push(&domain.TransactionEvent{Slot: 2})
	dropped := q.Push(&domain.TransactionEvent{Slot: 3})

	assert.True(t, dropped)
	assert.Equal(t, uint64(1), q.Dropped())

	// Oldest (slot 1) was evicted; 2 and 3 remain in order.
	ev := <-q.C()
	assert.Equal(t, uint64(2), ev.Slot)
	ev = <-q.C()
	assert.Equal(t, uint64(3), ev.Slot)
}

func TestWalletFilter_EmptySet(t *testing.T) {
	_, err := NewWalletFilter(nil)
	require.Error(t, err)
}

func TestWalletFilter_Match(t *testing.T) {
	monitored := solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	other := solana.SystemProgramID

	f, err := NewWalletFilter(map[solana.PublicKey]struct{}{monitored: {}})
	require.NoError(t, err)

	wallet, ok := f.Match(&domain.TransactionEvent{
		Accounts: []solana.PublicKey{other, monitored},
	})
	assert.True(t, ok)
	assert.Equal(t, monitored, wallet)

	_, ok = f.Match(&domain.TransactionEvent{
		Accounts: []solana.PublicKey{other},
	})
	assert.False(t, ok)
}

func notificationFixture(t *testing.T, accountKeys []string, data []byte) json.RawMessage {
	t.Helper()

	var sigBytes [64]byte
	for i := range sigBytes {
		sigBytes[i] = byte(i + 1)
	}
	sig := base58.Encode(sigBytes[:])

	payload := fmt.Sprintf(`{
		"signature": %q,
		"slot": 12345,
		"blockTime": 1700000000,
		"transaction": {
			"transaction": {
				"message": {
					"accountKeys": %s,
					"instructions": [
						{"programIdIndex": 2, "accounts": [0, 1], "data": %q}
					]
				}
			},
			"meta": {"err": null, "logMessages": ["Program log: hello"]}
		}
	}`, sig, mustJSON(t, accountKeys), base58.Encode(data))
	return json.RawMessage(payload)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestParseTransactionNotification(t *testing.T) {
	keys := []string{
		"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		"So11111111111111111111111111111111111111112",
		"11111111111111111111111111111111",
	}
	raw := notificationFixture(t, keys, []byte{9, 1, 2, 3})

	ev, err := parseTransactionNotification(raw)
	require.NoError(t, err)

	assert.Equal(t, uint64(12345), ev.Slot)
	assert.Len(t, ev.Accounts, 3)
	require.Len(t, ev.Instructions, 1)

	ins := ev.Instructions[0]
	assert.Equal(t, solana.SystemProgramID, ins.ProgramID)
	require.Len(t, ins.Accounts, 2)
	assert.Equal(t, keys[0], ins.Accounts[0].String())
	assert.Equal(t, []byte{9, 1, 2, 3}, ins.Data)
	assert.Equal(t, []string{"Program log: hello"}, ev.Logs)
	assert.Nil(t, ev.Err)
	assert.False(t, ev.BlockTime.IsZero())
}

func TestParseTransactionNotification_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{{{`,
		"missing signature": `{"slot": 1}`,
		"bad account key":   `{"signature": "x", "slot": 1}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseTransactionNotification(json.RawMessage(payload))
			assert.Error(t, err)
		})
	}
}

func TestHandleMessageQueueOverflowPublishesLagEvent(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})

	got := make(chan events.Event, 1)
	bus.SubscribeFunc(events.StreamLagging, func(_ context.Context, ev events.Event) error {
		got <- ev
		return nil
	})

	c := &Client{
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		bus:    bus,
		queue:  NewQueue(1),
		done:   make(chan struct{}),
	}

	keys := []string{
		"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		"So11111111111111111111111111111111111111112",
		"11111111111111111111111111111111",
	}
	frame := []byte(fmt.Sprintf(
		`{"jsonrpc":"2.0","method":"transactionNotification","params":{"subscription":1,"result":%s}}`,
		notificationFixture(t, keys, []byte{1})))

	c.handleMessage(frame)
	c.handleMessage(frame)

	select {
	case ev := <-got:
		lag, ok := ev.(*events.StreamLaggingEvent)
		require.True(t, ok, "lag event delivered as %T", ev)
		assert.Equal(t, uint64(1), lag.Dropped)
	case <-time.After(2 * time.Second):
		t.Fatal("lag event was not delivered")
	}
}

func TestParseTransactionNotification_IndexOutOfRange(t *testing.T) {
	var sigBytes [64]byte
	sigBytes[0] = 7
	payload := fmt.Sprintf(`{
		"signature": %q,
		"slot": 1,
		"transaction": {
			"transaction": {
				"message": {
					"accountKeys": ["11111111111111111111111111111111"],
					"instructions": [{"programIdIndex": 5, "accounts": [], "data": ""}]
				}
			}
		}
	}`, base58.Encode(sigBytes[:]))

	_, err := parseTransactionNotification(json.RawMessage(payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
