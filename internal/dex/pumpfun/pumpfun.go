// =============================
// File: internal/dex/pumpfun/pumpfun.go
// =============================
package pumpfun

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/dex"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// DEX decodes and builds pump.fun bonding curve swaps.
type DEX struct {
	logger *zap.Logger
}

// New creates the pump.fun adapter.
func New(logger *zap.Logger) *DEX {
	return &DEX{logger: logger.Named("pumpfun")}
}

func (d *DEX) Protocol() domain.Protocol {
	return domain.ProtocolPumpFun
}

func (d *DEX) ProgramID() solana.PublicKey {
	return ProgramID
}

// Decode extracts a TradeIntent from a bonding curve buy or sell. The swap
// data carries the token amount and the SOL bound; the mint and user sit at
// fixed account positions.
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

	// The swap belongs to whoever signs as the user.
	if !ins.Accounts[idxUser].Equals(monitored) {
		return nil, dex.ErrUnrecognized
	}

	tokenAmount := binary.LittleEndian.Uint64(ins.Data[8:16])
	solAmount := binary.LittleEndian.Uint64(ins.Data[16:24])

	intent := &domain.TradeIntent{
		Signature:  ev.Signature,
		Slot:       ev.Slot,
		Wallet:     monitored,
		Protocol:   domain.ProtocolPumpFun,
		Mint:       ins.Accounts[idxMint],
		Route:      ins.Accounts,
		ObservedAt: time.Now().UTC(),
	}
	if isBuy {
		intent.Side = domain.SideBuy
		intent.AmountIn = solAmount // max SOL cost
		intent.AmountOut = tokenAmount
	} else {
		intent.Side = domain.SideSell
		intent.AmountIn = tokenAmount
		intent.AmountOut = solAmount // min SOL output
	}
	return intent, nil
}

// BuildSwap mirrors the order against the observed bonding curve. Buy
// targets the tokens the budget would have bought at the observed price;
// sell floors the SOL output at the observed rate minus slippage.
func (d *DEX) BuildSwap(order *domain.ExecutionOrder, w *wallet.Wallet) ([]solana.Instruction, error) {
	if order == nil || order.Intent == nil {
		return nil, fmt.Errorf("order has no observed intent")
	}
	accounts, err := accountsFromRoute(order.Intent.Route)
	if err != nil {
		return nil, err
	}

	ataIns, err := w.CreateATAIdempotentInstruction(accounts.Mint)
	if err != nil {
		return nil, err
	}

	tokens, lamports := dex.ObservedLegs(order.Intent)

	var swapIns solana.Instruction
	switch order.Side {
	case domain.SideBuy:
		expectedTokens := dex.ScaleProportional(order.Amount, tokens, lamports)
		if expectedTokens == 0 {
			return nil, fmt.Errorf("cannot price buy from observed trade")
		}
		minTokens := dex.ApplySlippage(expectedTokens, order.SlippageBps)
		swapIns, err = BuildBuyInstruction(accounts, w, minTokens, order.Amount)
	case domain.SideSell:
		var minSol uint64
		if tokens > 0 {
			expectedSol := dex.ScaleProportional(order.Amount, lamports, tokens)
			minSol = dex.ApplySlippage(expectedSol, order.SlippageBps)
		}
		swapIns, err = BuildSellInstruction(accounts, w, order.Amount, minSol)
	default:
		return nil, fmt.Errorf("unknown side %q", order.Side)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Built bonding curve swap",
		zap.String("side", string(order.Side)),
		zap.String("mint", accounts.Mint.String()),
		zap.Uint64("amount", order.Amount))

	return []solana.Instruction{ataIns, swapIns}, nil
}

var _ dex.Adapter = (*DEX)(nil)
