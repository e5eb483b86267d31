// =============================
// File: internal/dex/raydium/raydium.go
// =============================
package raydium

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

// DEX decodes and builds Raydium AMM v4 swaps.
type DEX struct {
	logger *zap.Logger
}

// New creates the Raydium adapter.
func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("raydium")}
}

func (d *DEX) Protocol() domain.Protocol {
	return domain.ProtocolRaydium
}

func (d *DEX) ProgramID() solana.PublicKey {
	return ProgramID
}

// Decode extracts a TradeIntent from a Raydium swap. The instruction data
// carries only amounts, so the pool mints and the executed legs come from
// the swap entry the AMM writes to the transaction logs.
func (d *DEX) Decode(ins domain.CompiledInstruction, ev *domain.TransactionEvent, monitored solana.PublicKey) (*domain.TradeIntent, error) {
	if len(ins.Data) == 0 {
		return nil, dex.ErrUnrecognized
	}
	tag := ins.Data[0]
	if tag != swapBaseInInstruction && tag != swapBaseOutInstruction {
		return nil, dex.ErrUnrecognized
	}

	if len(ins.Data) < swapDataSize {
		return nil, fmt.Errorf("%w: swap data is %d bytes", dex.ErrMalformed, len(ins.Data))
	}
	count := len(ins.Accounts)
	if count < minSwapAccountCount {
		return nil, fmt.Errorf("%w: swap has %d accounts", dex.ErrMalformed, count)
	}

	// The owner signs last.
	if !ins.Accounts[count-1].Equals(monitored) {
		return nil, dex.ErrUnrecognized
	}

	entry := parseRayLog(ev.Logs)
	if entry == nil {
		return nil, fmt.Errorf("%w: no swap log in transaction", dex.ErrMalformed)
	}

	inputIsWSOL := entry.InputMint.Equals(domain.WSOL)
	outputIsWSOL := entry.OutputMint.Equals(domain.WSOL)
	if inputIsWSOL == outputIsWSOL {
		// Token-token swaps cannot be mirrored against SOL.
		return nil, dex.ErrUnrecognized
	}

	intent := &domain.TradeIntent{
		Signature:  ev.Signature,
		Slot:       ev.Slot,
		Wallet:     monitored,
		Protocol:   domain.ProtocolRaydium,
		Route:      ins.Accounts,
		AmountIn:   entry.AmountIn,
		AmountOut:  entry.AmountOut,
		ObservedAt: time.Now().UTC(),
	}
	if inputIsWSOL {
		intent.Side = domain.SideBuy
		intent.Mint = entry.OutputMint
	} else {
		intent.Side = domain.SideSell
		intent.Mint = entry.InputMint
	}
	return intent, nil
}

// BuildSwap mirrors the order through the observed pool. The venue accounts
// are reused as observed; only the user source, destination and owner at the
// tail are replaced with the bot's own accounts.
func (d *DEX) BuildSwap(order *domain.ExecutionOrder, w *wallet.Wallet) ([]solana.Instruction, error) {
	if order == nil || order.Intent == nil {
		return nil, fmt.Errorf("order has no observed intent")
	}
	route := order.Intent.Route
	count := len(route)
	if count < minSwapAccountCount || count > maxSwapAccountCount {
		return nil, fmt.Errorf("route has %d accounts, need %d or %d", count, minSwapAccountCount, maxSwapAccountCount)
	}
	mint := order.Intent.Mint

	tokenATA, err := w.GetATA(mint)
	if err != nil {
		return nil, err
	}
	wsolATA, err := w.GetATA(domain.WSOL)
	if err != nil {
		return nil, err
	}

	tokens, lamports := dex.ObservedLegs(order.Intent)

	var amountIn, minAmountOut, wrapLamports uint64
	var source, destination solana.PublicKey
	switch order.Side {
	case domain.SideBuy:
		expectedTokens := dex.ScaleProportional(order.Amount, tokens, lamports)
		if expectedTokens == 0 {
			return nil, fmt.Errorf("cannot price buy from observed trade")
		}
		amountIn = order.Amount
		minAmountOut = dex.ApplySlippage(expectedTokens, order.SlippageBps)
		source, destination = wsolATA, tokenATA
		wrapLamports = order.Amount
	case domain.SideSell:
		amountIn = order.Amount
		if tokens > 0 {
			expectedSol := dex.ScaleProportional(order.Amount, lamports, tokens)
			minAmountOut = dex.ApplySlippage(expectedSol, order.SlippageBps)
		}
		source, destination = tokenATA, wsolATA
	default:
		return nil, fmt.Errorf("unknown side %q", order.Side)
	}

	serumProgram := serumProgramIndex(count)
	metas := make([]*solana.AccountMeta, count)
	for i, key := range route {
		readonly := i == 0 || i == idxAuthority || i == serumProgram
		metas[i] = solana.NewAccountMeta(key, !readonly, false)
	}
	metas[count-3] = solana.NewAccountMeta(source, true, false)
	metas[count-2] = solana.NewAccountMeta(destination, true, false)
	metas[count-1] = solana.NewAccountMeta(w.PublicKey, true, true)

	data := make([]byte, swapDataSize)
	data[0] = swapBaseInInstruction
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minAmountOut)
	swapIns := solana.NewInstruction(ProgramID, metas, data)

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
	instructions = append(instructions, swapIns)
	instructions = append(instructions,
		token.CloseAccountInstruction(wsolATA, w.PublicKey, w.PublicKey))

	d.logger.Debug("Built AMM v4 swap",
		zap.String("side", string(order.Side)),
		zap.String("amm", route[idxAmm].String()),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("min_amount_out", minAmountOut))

	return instructions, nil
}

var _ dex.Adapter = (*DEX)(nil)
