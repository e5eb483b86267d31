package strategy

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/events"
	"github.com/rovshanmuradov/mirror-bot/internal/ledger"
)

func testSetup(t *testing.T, opts Options) (*Strategy, *ledger.Ledger) {
	t.Helper()
	bus := events.NewBus(zap.NewNop(), 64)
	book, err := ledger.New(zap.NewNop(), bus, 0)
	require.NoError(t, err)

	sizer := ProportionalSizer{Ratio: 0.1, MaxLamports: 500_000_000}
	s, err := New(zap.NewNop(), book, sizer, opts)
	require.NoError(t, err)
	return s, book
}

func buyIntent(mint solana.PublicKey, lamports uint64) *domain.TradeIntent {
	return &domain.TradeIntent{
		Protocol:  domain.ProtocolPumpFun,
		Side:      domain.SideBuy,
		Mint:      mint,
		AmountIn:  lamports,
		AmountOut: 1_000_000,
	}
}

func sellIntent(mint solana.PublicKey) *domain.TradeIntent {
	return &domain.TradeIntent{
		Protocol:  domain.ProtocolPumpFun,
		Side:      domain.SideSell,
		Mint:      mint,
		AmountIn:  1_000_000,
		AmountOut: 500_000_000,
	}
}

func TestProportionalSizer(t *testing.T) {
	s := ProportionalSizer{Ratio: 0.1, MaxLamports: 100_000_000}

	assert.Equal(t, uint64(50_000_000), s.BuyLamports(buyIntent(solana.PublicKey{}, 500_000_000)))
	// The cap binds on large observed trades.
	assert.Equal(t, uint64(100_000_000), s.BuyLamports(buyIntent(solana.PublicKey{}, 5_000_000_000)))
	assert.Zero(t, s.BuyLamports(buyIntent(solana.PublicKey{}, 0)))
}

func TestDecideBuy(t *testing.T) {
	s, _ := testSetup(t, Options{SlippageBps: 500})
	mint := solana.NewWallet().PublicKey()

	order, err := s.Decide(buyIntent(mint, 2_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, order.Side)
	assert.Equal(t, mint, order.Mint)
	assert.Equal(t, uint64(200_000_000), order.Amount)
	assert.Equal(t, uint64(500), order.SlippageBps)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, int64(1), s.Issued())
}

func TestDecideBuyHoldsInFlightSlot(t *testing.T) {
	s, _ := testSetup(t, Options{})
	mint := solana.NewWallet().PublicKey()

	_, err := s.Decide(buyIntent(mint, 1_000_000_000))
	require.NoError(t, err)

	_, err = s.Decide(buyIntent(mint, 1_000_000_000))
	assert.ErrorIs(t, err, ledger.ErrOrderInFlight)
	// A refused decision does not consume a trade slot.
	assert.Equal(t, int64(1), s.Issued())
}

func TestDecideBuyBelowMinimum(t *testing.T) {
	s, _ := testSetup(t, Options{MinLamports: 100_000_000})

	_, err := s.Decide(buyIntent(solana.NewWallet().PublicKey(), 50_000_000))
	assert.ErrorIs(t, err, ErrBelowMinimum)
	assert.Zero(t, s.Issued())
}

func TestDecideTradeLimit(t *testing.T) {
	s, book := testSetup(t, Options{MaxTrades: 2})

	for i := 0; i < 2; i++ {
		mint := solana.NewWallet().PublicKey()
		order, err := s.Decide(buyIntent(mint, 1_000_000_000))
		require.NoError(t, err)
		book.CompleteBuy(mint, solana.NewWallet().PublicKey(), 100, order.Amount)
	}

	_, err := s.Decide(buyIntent(solana.NewWallet().PublicKey(), 1_000_000_000))
	assert.ErrorIs(t, err, ErrTradeLimitReached)

	// Sells still go through after the buy limit is hit.
	held := book.Snapshot()[0].Mint
	order, err := s.Decide(sellIntent(held))
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, order.Side)
}

func TestDecideSell(t *testing.T) {
	s, book := testSetup(t, Options{})
	mint := solana.NewWallet().PublicKey()

	require.NoError(t, book.BeginBuy(mint))
	book.CompleteBuy(mint, solana.NewWallet().PublicKey(), 750_000, 1)

	order, err := s.Decide(sellIntent(mint))
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, order.Side)
	// Sells always exit the full position.
	assert.Equal(t, uint64(750_000), order.Amount)
}

func TestDecideSellNotTracked(t *testing.T) {
	s, _ := testSetup(t, Options{})

	_, err := s.Decide(sellIntent(solana.NewWallet().PublicKey()))
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestDecideProtocolFilter(t *testing.T) {
	s, _ := testSetup(t, Options{Protocol: domain.ProtocolRaydium})

	_, err := s.Decide(buyIntent(solana.NewWallet().PublicKey(), 1_000_000_000))
	assert.ErrorIs(t, err, ErrProtocolNotPreferred)
}
