// =============================
// File: internal/dex/pumpswap/pumpswap.go
// =============================
package pumpswap

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/dex"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/token"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// DEX decodes and builds PumpSwap AMM swaps.
type DEX struct {
	logger *zap.Logger
}

// New creates the PumpSwap adapter.
func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("pumpswap")}
}

func (d *DEX) Protocol() domain.Protocol {
	return domain.ProtocolPumpSwap
}

func (d *DEX) ProgramID() solana.PublicKey {
	return ProgramID
}

// Decode extracts a TradeIntent from an AMM buy or sell. The pool pairs a
// base and a quote mint; the tracked token is the non-WSOL side, and the
// trade direction is derived from the token flow, not the instruction name.
func (d *DEX) Decode(ins domain.CompiledInstruction, ev *domain.TransactionEvent, monitored solana.PublicKey) (*domain.TradeIntent, error) {
	isBuy := isBuyData(ins.Data)
	isSell := isSellData(ins.Data)
	if !isBuy && !isSell {
		return nil, dex.ErrUnrecognized
	}

	if len(ins.Data) < swapDataSize {
		return nil, fmt.Errorf("%w: swap data is %d bytes", dex.ErrMalformed, len(ins.Data))
	}
	if len(ins.Accounts) < swapAccountCount {
		return nil, fmt.Errorf("%w: swap has %d accounts", dex.ErrMalformed, len(ins.Accounts))
	}
	if !ins.Accounts[idxUser].Equals(monitored) {
		return nil, dex.ErrUnrecognized
	}

	baseMint := ins.Accounts[idxBaseMint]
	quoteMint := ins.Accounts[idxQuoteMint]
	baseIsWSOL := baseMint.Equals(domain.WSOL)
	quoteIsWSOL := quoteMint.Equals(domain.WSOL)
	if baseIsWSOL == quoteIsWSOL {
		// Token-token pools cannot be mirrored against SOL.
		return nil, dex.ErrUnrecognized
	}

	mint := baseMint
	if baseIsWSOL {
		mint = quoteMint
	}

	amount1 := binary.LittleEndian.Uint64(ins.Data[8:16])
	amount2 := binary.LittleEndian.Uint64(ins.Data[16:24])

	intent := &domain.TradeIntent{
		Signature:  ev.Signature,
		Slot:       ev.Slot,
		Wallet:     monitored,
		Protocol:   domain.ProtocolPumpSwap,
		Mint:       mint,
		Route:      ins.Accounts,
		ObservedAt: time.Now().UTC(),
	}

	switch {
	case isBuy && !baseIsWSOL:
		// Buying base tokens with WSOL quote.
		intent.Side = domain.SideBuy
		intent.AmountIn = amount2 // max quote in, lamports
		intent.AmountOut = amount1
	case isBuy && baseIsWSOL:
		// Buying WSOL base with tokens: a token sell.
		intent.Side = domain.SideSell
		intent.AmountIn = amount2
		intent.AmountOut = amount1
	case isSell && !baseIsWSOL:
		// Selling base tokens for WSOL quote.
		intent.Side = domain.SideSell
		intent.AmountIn = amount1
		intent.AmountOut = amount2 // min quote out, lamports
	default:
		// Selling WSOL base for tokens: a token buy.
		intent.Side = domain.SideBuy
		intent.AmountIn = amount1
		intent.AmountOut = amount2
	}
	return intent, nil
}

// BuildSwap mirrors the order against the observed pool, substituting the
// bot's wallet and token accounts into the observed route. WSOL legs are
// wrapped before the swap and unwrapped after.
func (d *DEX) BuildSwap(order *domain.ExecutionOrder, w *wallet.Wallet) ([]solana.Instruction, error) {
	if order == nil || order.Intent == nil {
		return nil, fmt.Errorf("order has no observed intent")
	}
	params, err := paramsFromRoute(order.Intent.Route)
	if err != nil {
		return nil, err
	}

	params.User = w.PublicKey
	if params.UserBaseTokenAccount, err = w.GetATA(params.BaseMint); err != nil {
		return nil, err
	}
	if params.UserQuoteTokenAccount, err = w.GetATA(params.QuoteMint); err != nil {
		return nil, err
	}

	baseIsWSOL := params.BaseMint.Equals(domain.WSOL)
	tokens, lamports := dex.ObservedLegs(order.Intent)

	var wrapLamports uint64
	switch order.Side {
	case domain.SideBuy:
		expectedTokens := dex.ScaleProportional(order.Amount, tokens, lamports)
		if expectedTokens == 0 {
			return nil, fmt.Errorf("cannot price buy from observed trade")
		}
		minTokens := dex.ApplySlippage(expectedTokens, order.SlippageBps)
		if !baseIsWSOL {
			params.IsBuy = true
			params.Amount1 = minTokens    // base out
			params.Amount2 = order.Amount // max quote in
		} else {
			params.IsBuy = false
			params.Amount1 = order.Amount // base (WSOL) in
			params.Amount2 = minTokens    // min quote out
		}
		wrapLamports = order.Amount
	case domain.SideSell:
		var minSol uint64
		if tokens > 0 {
			expectedSol := dex.ScaleProportional(order.Amount, lamports, tokens)
			minSol = dex.ApplySlippage(expectedSol, order.SlippageBps)
		}
		if !baseIsWSOL {
			params.IsBuy = false
			params.Amount1 = order.Amount // base (token) in
			params.Amount2 = minSol       // min quote out
		} else {
			params.IsBuy = true
			params.Amount1 = minSol       // base (WSOL) out
			params.Amount2 = order.Amount // max quote (token) in
		}
	default:
		return nil, fmt.Errorf("unknown side %q", order.Side)
	}

	mint := params.BaseMint
	wsolATA := params.UserQuoteTokenAccount
	if baseIsWSOL {
		mint = params.QuoteMint
		wsolATA = params.UserBaseTokenAccount
	}

	createTokenATA, err := w.CreateATAIdempotentInstruction(mint)
	if err != nil {
		return nil, err
	}
	createWSOLATA, err := w.CreateATAIdempotentInstruction(domain.WSOL)
	if err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{createTokenATA, createWSOLATA}
	if wrapLamports > 0 {
		instructions = append(instructions,
			token.TransferLamportsInstruction(w.PublicKey, wsolATA, wrapLamports),
			token.SyncNativeInstruction(wsolATA))
	}
	instructions = append(instructions, createSwapInstruction(params))
	// Closing the WSOL account unwraps any remaining balance.
	instructions = append(instructions,
		token.CloseAccountInstruction(wsolATA, w.PublicKey, w.PublicKey))

	d.logger.Debug("Built AMM swap",
		zap.String("side", string(order.Side)),
		zap.String("pool", params.PoolAddress.String()),
		zap.Uint64("amount", order.Amount))

	return instructions, nil
}

var _ dex.Adapter = (*DEX)(nil)
