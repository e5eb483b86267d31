// =========================
// File: internal/dex/dex.go
// =========================
package dex

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

var (
	// ErrUnrecognized means the instruction belongs to a known program but
	// is not a swap, or to an unknown program. Skipped silently.
	ErrUnrecognized = errors.New("unrecognized instruction")
	// ErrMalformed means a swap instruction was identified but its data or
	// account list is inconsistent with the protocol layout.
	ErrMalformed = errors.New("malformed instruction")
)

// Decoder extracts a TradeIntent from one protocol's swap instructions.
type Decoder interface {
	Protocol() domain.Protocol
	ProgramID() solana.PublicKey
	// Decode inspects a single instruction within its transaction. The
	// wallet is the monitored address the transaction matched on.
	Decode(ins domain.CompiledInstruction, ev *domain.TransactionEvent, wallet solana.PublicKey) (*domain.TradeIntent, error)
}

// Builder constructs the swap instructions that mirror an order against the
// venue observed in the order's intent.
type Builder interface {
	Protocol() domain.Protocol
	// BuildSwap returns the instructions for the order, including token
	// account setup and WSOL handling but not compute budget.
	BuildSwap(order *domain.ExecutionOrder, w *wallet.Wallet) ([]solana.Instruction, error)
}

// Adapter is a protocol implementation handling both directions.
type Adapter interface {
	Decoder
	Builder
}

// Registry dispatches transaction events to protocol decoders and resolves
// builders for execution.
type Registry struct {
	byProgram  map[solana.PublicKey]Adapter
	byProtocol map[domain.Protocol]Adapter
	logger     *zap.Logger
}

// NewRegistry creates a registry over the given protocol adapters.
func NewRegistry(logger *zap.Logger, adapters ...Adapter) (*Registry, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one protocol adapter is required")
	}

	r := &Registry{
		byProgram:  make(map[solana.PublicKey]Adapter, len(adapters)),
		byProtocol: make(map[domain.Protocol]Adapter, len(adapters)),
		logger:     logger.Named("dex"),
	}
	for _, a := range adapters {
		r.byProgram[a.ProgramID()] = a
		r.byProtocol[a.Protocol()] = a
	}
	return r, nil
}

// Builder returns the adapter for a protocol.
func (r *Registry) Builder(p domain.Protocol) (Builder, error) {
	a, ok := r.byProtocol[p]
	if !ok {
		return nil, fmt.Errorf("no adapter for protocol %q", p)
	}
	return a, nil
}

// DecodeEvent scans a transaction's instructions for the first decodable
// swap by the monitored wallet. It returns ErrUnrecognized when no
// instruction matches a known swap layout.
func (r *Registry) DecodeEvent(ev *domain.TransactionEvent, wallet solana.PublicKey) (*domain.TradeIntent, error) {
	for _, ins := range ev.Instructions {
		adapter, ok := r.byProgram[ins.ProgramID]
		if !ok {
			continue
		}

		intent, err := adapter.Decode(ins, ev, wallet)
		if err != nil {
			if errors.Is(err, ErrUnrecognized) {
				continue
			}
			r.logger.Warn("Malformed swap instruction",
				zap.String("protocol", string(adapter.Protocol())),
				zap.String("signature", ev.Signature.String()),
				zap.Error(err))
			return nil, err
		}
		return intent, nil
	}
	return nil, ErrUnrecognized
}
