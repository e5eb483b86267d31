// =============================
// File: internal/monitor/monitor.go
// =============================
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/ledger"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// concurrent balance queries per sweep
const sweepConcurrency = 4

// Monitor periodically reconciles ledger positions against on-chain token
// balances. A sweep that overruns the interval is not stacked; the next
// tick is skipped instead.
type Monitor struct {
	logger   *zap.Logger
	client   blockchain.Client
	wallet   *wallet.Wallet
	book     *ledger.Ledger
	interval time.Duration

	sweeping atomic.Bool
	sweeps   atomic.Uint64
}

func New(logger *zap.Logger, client blockchain.Client, w *wallet.Wallet, book *ledger.Ledger, interval time.Duration) (*Monitor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if client == nil {
		return nil, fmt.Errorf("blockchain client is nil")
	}
	if w == nil {
		return nil, fmt.Errorf("wallet is nil")
	}
	if book == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		logger:   logger.Named("monitor"),
		client:   client,
		wallet:   w,
		book:     book,
		interval: interval,
	}, nil
}

// Run sweeps on a fixed interval until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Balance monitor started", zap.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Balance monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("Reconciliation sweep had errors", zap.Error(err))
			}
		}
	}
}

// Sweep reconciles every position once. Failed balance queries leave their
// position untouched; the next sweep retries them.
func (m *Monitor) Sweep(ctx context.Context) error {
	if !m.sweeping.CompareAndSwap(false, true) {
		m.logger.Debug("Previous sweep still running, skipping tick")
		return nil
	}
	defer m.sweeping.Store(false)

	positions := m.book.Snapshot()
	if len(positions) == 0 {
		m.sweeps.Add(1)
		return nil
	}

	// A plain group: one failed query must not cancel the queries for the
	// remaining positions.
	var g errgroup.Group
	g.SetLimit(sweepConcurrency)
	for _, pos := range positions {
		if pos.State != domain.PositionActive {
			continue
		}
		g.Go(func() error {
			return m.reconcileOne(ctx, pos)
		})
	}
	err := g.Wait()
	m.sweeps.Add(1)
	m.logger.Debug("Reconciliation sweep complete",
		zap.Int("positions", len(positions)))
	return err
}

// Sweeps returns the number of completed sweeps.
func (m *Monitor) Sweeps() uint64 {
	return m.sweeps.Load()
}

func (m *Monitor) reconcileOne(ctx context.Context, pos domain.Position) error {
	ata := pos.TokenAccount
	if ata.IsZero() {
		derived, err := m.wallet.GetATA(pos.Mint)
		if err != nil {
			return fmt.Errorf("derive token account for %s: %w", pos.Mint, err)
		}
		ata = derived
	}

	balance, err := m.client.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		if errors.Is(err, blockchain.ErrAccountNotFound) {
			// Account closed or never created: the position is gone.
			m.book.Reconcile(pos.Mint, 0)
			return nil
		}
		return fmt.Errorf("balance query for %s: %w", pos.Mint, err)
	}

	m.book.Reconcile(pos.Mint, balance)
	return nil
}
