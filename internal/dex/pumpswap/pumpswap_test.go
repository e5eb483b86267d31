package pumpswap

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/dex"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	kp := solana.NewWallet()
	w, err := wallet.New(kp.PrivateKey.String())
	require.NoError(t, err)
	return w
}

func poolRoute(user, baseMint, quoteMint solana.PublicKey) []solana.PublicKey {
	route := make([]solana.PublicKey, swapAccountCount)
	for i := range route {
		route[i] = solana.NewWallet().PublicKey()
	}
	route[idxUser] = user
	route[idxBaseMint] = baseMint
	route[idxQuoteMint] = quoteMint
	route[idxProgram] = ProgramID
	return route
}

func ammData(discriminator []byte, amount1, amount2 uint64) []byte {
	data := make([]byte, swapDataSize)
	copy(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount1)
	binary.LittleEndian.PutUint64(data[16:24], amount2)
	return data
}

func TestDecodeBuyTokenBase(t *testing.T) {
	d := New(zap.NewNop())
	user := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ins := domain.CompiledInstruction{
		ProgramID: ProgramID,
		Accounts:  poolRoute(user, mint, domain.WSOL),
		Data:      ammData(buyDiscriminator, 1_000_000, 300_000_000),
	}

	intent, err := d.Decode(ins, &domain.TransactionEvent{Slot: 7}, user)
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, intent.Side)
	assert.Equal(t, domain.ProtocolPumpSwap, intent.Protocol)
	assert.Equal(t, mint, intent.Mint)
	assert.Equal(t, uint64(300_000_000), intent.AmountIn)
	assert.Equal(t, uint64(1_000_000), intent.AmountOut)
}

func TestDecodeSellTokenBase(t *testing.T) {
	d := New(zap.NewNop())
	user := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ins := domain.CompiledInstruction{
		ProgramID: ProgramID,
		Accounts:  poolRoute(user, mint, domain.WSOL),
		Data:      ammData(sellDiscriminator, 1_000_000, 280_000_000),
	}

	intent, err := d.Decode(ins, &domain.TransactionEvent{}, user)
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, intent.Side)
	assert.Equal(t, mint, intent.Mint)
	assert.Equal(t, uint64(1_000_000), intent.AmountIn)
	assert.Equal(t, uint64(280_000_000), intent.AmountOut)
}

func TestDecodeWSOLBaseFlipsSides(t *testing.T) {
	d := New(zap.NewNop())
	user := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	// A buy of WSOL base paid in tokens is a token sell.
	buy := domain.CompiledInstruction{
		ProgramID: ProgramID,
		Accounts:  poolRoute(user, domain.WSOL, mint),
		Data:      ammData(buyDiscriminator, 300_000_000, 1_000_000),
	}
	intent, err := d.Decode(buy, &domain.TransactionEvent{}, user)
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, intent.Side)
	assert.Equal(t, mint, intent.Mint)
	assert.Equal(t, uint64(1_000_000), intent.AmountIn)
	assert.Equal(t, uint64(300_000_000), intent.AmountOut)

	// A sell of WSOL base for tokens is a token buy.
	sell := domain.CompiledInstruction{
		ProgramID: ProgramID,
		Accounts:  poolRoute(user, domain.WSOL, mint),
		Data:      ammData(sellDiscriminator, 300_000_000, 1_000_000),
	}
	intent, err = d.Decode(sell, &domain.TransactionEvent{}, user)
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, intent.Side)
	assert.Equal(t, mint, intent.Mint)
	assert.Equal(t, uint64(300_000_000), intent.AmountIn)
	assert.Equal(t, uint64(1_000_000), intent.AmountOut)
}

func TestDecodeTokenTokenPool(t *testing.T) {
	d := New(zap.NewNop())
	user := solana.NewWallet().PublicKey()

	ins := domain.CompiledInstruction{
		ProgramID: ProgramID,
		Accounts:  poolRoute(user, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()),
		Data:      ammData(buyDiscriminator, 1, 1),
	}
	_, err := d.Decode(ins, &domain.TransactionEvent{}, user)
	assert.ErrorIs(t, err, dex.ErrUnrecognized)
}

func TestDecodeMalformed(t *testing.T) {
	d := New(zap.NewNop())
	user := solana.NewWallet().PublicKey()
	route := poolRoute(user, solana.NewWallet().PublicKey(), domain.WSOL)

	ins := domain.CompiledInstruction{
		ProgramID: ProgramID,
		Accounts:  route[:10],
		Data:      ammData(buyDiscriminator, 1, 1),
	}
	_, err := d.Decode(ins, &domain.TransactionEvent{}, user)
	assert.True(t, errors.Is(err, dex.ErrMalformed))

	ins = domain.CompiledInstruction{
		ProgramID: ProgramID,
		Accounts:  route,
		Data:      ammData(sellDiscriminator, 1, 1)[:12],
	}
	_, err = d.Decode(ins, &domain.TransactionEvent{}, user)
	assert.True(t, errors.Is(err, dex.ErrMalformed))
}

func TestBuildSwapBuyWrapsWSOL(t *testing.T) {
	d := New(zap.NewNop())
	w := testWallet(t)
	mint := solana.NewWallet().PublicKey()
	route := poolRoute(solana.NewWallet().PublicKey(), mint, domain.WSOL)

	// Observed: 1M tokens for 2 SOL.
	intent := &domain.TradeIntent{
		Protocol:  domain.ProtocolPumpSwap,
		Side:      domain.SideBuy,
		Mint:      mint,
		AmountIn:  2_000_000_000,
		AmountOut: 1_000_000,
		Route:     route,
	}
	order := &domain.ExecutionOrder{
		Intent:      intent,
		Side:        domain.SideBuy,
		Mint:        mint,
		Amount:      100_000_000,
		SlippageBps: 500,
	}

	instructions, err := d.BuildSwap(order, w)
	require.NoError(t, err)
	// create token ATA, create WSOL ATA, transfer, sync, swap, close.
	require.Len(t, instructions, 6)

	swap := instructions[4]
	assert.Equal(t, ProgramID, swap.ProgramID())
	data, err := swap.Data()
	require.NoError(t, err)
	assert.Equal(t, buyDiscriminator, data[:8])
	assert.Equal(t, uint64(47_500), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(100_000_000), binary.LittleEndian.Uint64(data[16:24]))

	metas := swap.Accounts()
	require.Len(t, metas, swapAccountCount)
	assert.Equal(t, route[idxPool], metas[idxPool].PublicKey)
	assert.Equal(t, w.PublicKey, metas[idxUser].PublicKey)
	assert.True(t, metas[idxUser].IsSigner)

	baseATA, err := w.GetATA(mint)
	require.NoError(t, err)
	wsolATA, err := w.GetATA(domain.WSOL)
	require.NoError(t, err)
	assert.Equal(t, baseATA, metas[idxUserBaseATA].PublicKey)
	assert.Equal(t, wsolATA, metas[idxUserQuoteATA].PublicKey)

	// The wrap transfer funds the WSOL account with the full budget.
	transferData, err := instructions[2].Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), binary.LittleEndian.Uint64(transferData[4:12]))

	// The last instruction unwraps by closing the WSOL account.
	closeData, err := instructions[5].Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, closeData)
}

func TestBuildSwapSellTokenBase(t *testing.T) {
	d := New(zap.NewNop())
	w := testWallet(t)
	mint := solana.NewWallet().PublicKey()
	route := poolRoute(solana.NewWallet().PublicKey(), mint, domain.WSOL)

	intent := &domain.TradeIntent{
		Protocol:  domain.ProtocolPumpSwap,
		Side:      domain.SideSell,
		Mint:      mint,
		AmountIn:  1_000_000,
		AmountOut: 2_000_000_000,
		Route:     route,
	}
	order := &domain.ExecutionOrder{
		Intent:      intent,
		Side:        domain.SideSell,
		Mint:        mint,
		Amount:      50_000,
		SlippageBps: 500,
	}

	instructions, err := d.BuildSwap(order, w)
	require.NoError(t, err)
	// No wrap needed on a sell: create ATAs, swap, close WSOL.
	require.Len(t, instructions, 4)

	data, err := instructions[2].Data()
	require.NoError(t, err)
	assert.Equal(t, sellDiscriminator, data[:8])
	assert.Equal(t, uint64(50_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(95_000_000), binary.LittleEndian.Uint64(data[16:24]))
}

func TestBuildSwapWSOLBaseBuy(t *testing.T) {
	d := New(zap.NewNop())
	w := testWallet(t)
	mint := solana.NewWallet().PublicKey()
	route := poolRoute(solana.NewWallet().PublicKey(), domain.WSOL, mint)

	// Buying the token on a WSOL-base pool issues a sell of the base side.
	intent := &domain.TradeIntent{
		Protocol:  domain.ProtocolPumpSwap,
		Side:      domain.SideBuy,
		Mint:      mint,
		AmountIn:  2_000_000_000,
		AmountOut: 1_000_000,
		Route:     route,
	}
	order := &domain.ExecutionOrder{
		Intent:      intent,
		Side:        domain.SideBuy,
		Mint:        mint,
		Amount:      100_000_000,
		SlippageBps: 500,
	}

	instructions, err := d.BuildSwap(order, w)
	require.NoError(t, err)
	require.Len(t, instructions, 6)

	data, err := instructions[4].Data()
	require.NoError(t, err)
	assert.Equal(t, sellDiscriminator, data[:8])
	// Base in is the SOL budget, quote out is the slippage-floored tokens.
	assert.Equal(t, uint64(100_000_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(47_500), binary.LittleEndian.Uint64(data[16:24]))
}

func TestBuildSwapNoIntent(t *testing.T) {
	d := New(zap.NewNop())
	w := testWallet(t)
	_, err := d.BuildSwap(&domain.ExecutionOrder{Side: domain.SideBuy}, w)
	assert.Error(t, err)
}
