// =============================
// File: internal/executor/executor.go
// =============================
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain"
	"github.com/rovshanmuradov/mirror-bot/internal/dex"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/events"
	"github.com/rovshanmuradov/mirror-bot/internal/ledger"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// Options configures execution behavior.
type Options struct {
	// Retries is the number of submission attempts per order.
	Retries int
	// PriorityFee in microlamports per compute unit; 0 omits the instruction.
	PriorityFee uint64
	// ComputeUnits limit per transaction; 0 omits the instruction.
	ComputeUnits uint32
	// SkipPreflight disables the simulation before the first submission.
	SkipPreflight bool
	// MaxElapsed bounds the total retry window.
	MaxElapsed time.Duration
}

// Executor turns execution orders into signed, submitted and confirmed
// transactions. Each order terminates in exactly one ledger transition:
// complete on confirmation, fail otherwise. A confirmation timeout is
// terminal, not retried, because the transaction may still land; the
// reconciliation sweep picks up whatever it did.
type Executor struct {
	logger   *zap.Logger
	client   blockchain.Client
	wallet   *wallet.Wallet
	registry *dex.Registry
	book     *ledger.Ledger
	bus      *events.Bus
	opts     Options
}

func New(logger *zap.Logger, client blockchain.Client, w *wallet.Wallet, registry *dex.Registry, book *ledger.Ledger, bus *events.Bus, opts Options) (*Executor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if client == nil {
		return nil, fmt.Errorf("blockchain client is nil")
	}
	if w == nil {
		return nil, fmt.Errorf("wallet is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("dex registry is nil")
	}
	if book == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus is nil")
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 60 * time.Second
	}
	return &Executor{
		logger:   logger.Named("executor"),
		client:   client,
		wallet:   w,
		registry: registry,
		book:     book,
		bus:      bus,
		opts:     opts,
	}, nil
}

// Execute runs the order to a terminal state and returns the result. The
// order must hold the mint's in-flight ledger slot; Execute releases it.
func (e *Executor) Execute(ctx context.Context, order *domain.ExecutionOrder) *domain.ExecutionResult {
	start := time.Now()
	result := &domain.ExecutionResult{Order: order, State: domain.OrderBuilding}

	sig, attempts, err := e.run(ctx, order)
	result.Signature = sig
	result.Attempts = attempts
	result.Duration = time.Since(start)

	switch {
	case err == nil:
		result.State = domain.OrderConfirmed
	case errors.Is(err, blockchain.ErrConfirmationTimeout):
		result.State = domain.OrderTimedOut
		result.Err = err
	default:
		result.State = domain.OrderFailed
		result.Err = err
	}

	e.settle(ctx, order, result)
	e.announce(result)
	return result
}

// run builds, signs, submits and confirms with retries. Each attempt uses a
// fresh blockhash so an expired one cannot poison the whole retry budget.
func (e *Executor) run(ctx context.Context, order *domain.ExecutionOrder) (solana.Signature, int, error) {
	builder, err := e.registry.Builder(order.Protocol)
	if err != nil {
		return solana.Signature{}, 0, err
	}
	swapInstructions, err := builder.BuildSwap(order, e.wallet)
	if err != nil {
		return solana.Signature{}, 0, fmt.Errorf("failed to build swap: %w", err)
	}
	instructions := append(e.priorityInstructions(), swapInstructions...)

	attempts := 0
	op := func() (solana.Signature, error) {
		attempts++
		tx, err := e.createSignedTransaction(ctx, instructions)
		if err != nil {
			return solana.Signature{}, err
		}
		return e.submitAndConfirm(ctx, tx, order, attempts)
	}

	sig, err := backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(e.opts.Retries)),
		backoff.WithMaxElapsedTime(e.opts.MaxElapsed),
	)
	return sig, attempts, err
}

// priorityInstructions returns the compute budget prelude.
func (e *Executor) priorityInstructions() []solana.Instruction {
	var instructions []solana.Instruction
	if e.opts.ComputeUnits > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitLimitInstruction(e.opts.ComputeUnits).Build())
	}
	if e.opts.PriorityFee > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(e.opts.PriorityFee).Build())
	}
	return instructions
}

func (e *Executor) createSignedTransaction(ctx context.Context, instructions []solana.Instruction) (*solana.Transaction, error) {
	blockhash, err := e.client.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(e.wallet.PublicKey))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create transaction: %w", err))
	}
	if err := e.wallet.SignTransaction(tx); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to sign transaction: %w", err))
	}
	return tx, nil
}

func (e *Executor) submitAndConfirm(ctx context.Context, tx *solana.Transaction, order *domain.ExecutionOrder, attempt int) (solana.Signature, error) {
	if !e.opts.SkipPreflight && attempt == 1 {
		sim, err := e.client.SimulateTransaction(ctx, tx)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("simulation failed: %w", err)
		}
		if sim.Err != nil {
			simErr := fmt.Errorf("simulation rejected transaction: %v", sim.Err)
			if IsSlippageExceededError(simErr) {
				return solana.Signature{}, backoff.Permanent(&SlippageExceededError{
					SlippageBps:   order.SlippageBps,
					Amount:        order.Amount,
					OriginalError: simErr,
				})
			}
			return solana.Signature{}, backoff.Permanent(simErr)
		}
	}

	sig, err := e.client.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if strings.Contains(err.Error(), "BlockhashNotFound") {
			return solana.Signature{}, err // retried with a fresh blockhash
		}
		if IsSlippageExceededError(err) {
			return solana.Signature{}, backoff.Permanent(&SlippageExceededError{
				SlippageBps:   order.SlippageBps,
				Amount:        order.Amount,
				OriginalError: err,
			})
		}
		return solana.Signature{}, backoff.Permanent(fmt.Errorf("transaction failed: %w", err))
	}

	e.logger.Info("Transaction submitted",
		zap.String("order_id", order.ID),
		zap.String("signature", sig.String()),
		zap.Int("attempt", attempt))

	if err := e.client.WaitForTransactionConfirmation(ctx, sig, rpc.CommitmentConfirmed); err != nil {
		if errors.Is(err, blockchain.ErrConfirmationTimeout) {
			// The transaction may still land; do not resubmit.
			return sig, backoff.Permanent(err)
		}
		return sig, backoff.Permanent(fmt.Errorf("transaction confirmed with error: %w", err))
	}
	return sig, nil
}

// settle applies the terminal state to the ledger. Confirmed orders update
// the position from the on-chain balance; everything else releases the
// in-flight slot.
func (e *Executor) settle(ctx context.Context, order *domain.ExecutionOrder, result *domain.ExecutionResult) {
	switch order.Side {
	case domain.SideBuy:
		if result.Confirmed() {
			ata, tokens := e.confirmedBalance(ctx, order.Mint)
			prev, _ := e.book.Get(order.Mint)
			if tokens > prev.Amount {
				result.AmountOut = tokens - prev.Amount
			}
			e.book.CompleteBuy(order.Mint, ata, result.AmountOut, order.Amount)
			return
		}
		e.book.FailBuy(order.Mint)
	case domain.SideSell:
		if result.Confirmed() {
			e.book.CompleteSell(order.Mint, order.Amount)
			return
		}
		e.book.FailSell(order.Mint)
	}

	// A timed-out order may have landed after the window. Correct the
	// ledger from the chain now that the slot is released.
	if result.State == domain.OrderTimedOut {
		_, tokens := e.confirmedBalance(ctx, order.Mint)
		e.book.Reconcile(order.Mint, tokens)
	}
}

// confirmedBalance reads the wallet's on-chain balance for the mint. A
// missing account reads as zero.
func (e *Executor) confirmedBalance(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, uint64) {
	ata, err := e.wallet.GetATA(mint)
	if err != nil {
		return solana.PublicKey{}, 0
	}
	tokens, err := e.client.GetTokenAccountBalance(ctx, ata)
	if err != nil && !errors.Is(err, blockchain.ErrAccountNotFound) {
		e.logger.Warn("Failed to read post-trade balance",
			zap.String("mint", mint.String()),
			zap.Error(err))
	}
	return ata, tokens
}

func (e *Executor) announce(result *domain.ExecutionResult) {
	if result.Confirmed() {
		e.logger.Info("Order confirmed",
			zap.String("order_id", result.Order.ID),
			zap.String("signature", result.Signature.String()),
			zap.Int("attempts", result.Attempts),
			zap.Duration("duration", result.Duration))
		e.publish(&events.TradeExecutedEvent{
			BaseEvent: events.NewBase(events.TradeExecuted),
			Result:    result,
		})
		return
	}

	e.logger.Error("Order did not confirm",
		zap.String("order_id", result.Order.ID),
		zap.String("state", result.State.String()),
		zap.Int("attempts", result.Attempts),
		zap.Error(result.Err))
	e.publish(&events.TradeFailedEvent{
		BaseEvent: events.NewBase(events.TradeFailed),
		Result:    result,
	})
}

func (e *Executor) publish(ev events.Event) {
	if err := e.bus.Publish(ev); err != nil {
		e.logger.Debug("Event not published", zap.Error(err))
	}
}
