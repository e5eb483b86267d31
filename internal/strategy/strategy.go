// =============================
// File: internal/strategy/strategy.go
// =============================
package strategy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/ledger"
)

// Rejection reasons. Callers treat these as skips, not failures.
var (
	ErrProtocolNotPreferred = errors.New("trade uses a non-preferred protocol")
	ErrTradeLimitReached    = errors.New("session trade limit reached")
	ErrNotTracked           = errors.New("sell of a token the ledger does not hold")
	ErrBelowMinimum         = errors.New("observed trade below minimum size")
)

// Sizer decides the lamport budget for a mirrored buy.
type Sizer interface {
	BuyLamports(intent *domain.TradeIntent) uint64
}

// ProportionalSizer spends a fixed fraction of what the observed wallet
// spent, capped at MaxLamports.
type ProportionalSizer struct {
	Ratio       float64
	MaxLamports uint64
}

func (s ProportionalSizer) BuyLamports(intent *domain.TradeIntent) uint64 {
	budget := uint64(s.Ratio * float64(intent.SpentLamports()))
	if s.MaxLamports > 0 && budget > s.MaxLamports {
		budget = s.MaxLamports
	}
	return budget
}

// Options configures the strategy.
type Options struct {
	// Protocol restricts mirroring to one venue; empty mirrors all.
	Protocol domain.Protocol
	// MinLamports filters out observed buys too small to bother with.
	MinLamports uint64
	// MaxTrades caps the number of buys issued this session; 0 is unlimited.
	MaxTrades   int64
	SlippageBps uint64
}

// Strategy turns observed trades into execution orders. Buys are sized by
// the Sizer and counted against the session limit; sells always exit the
// full position and are never blocked by the limit.
type Strategy struct {
	logger *zap.Logger
	book   *ledger.Ledger
	sizer  Sizer
	opts   Options

	mu     sync.Mutex
	issued int64
}

func New(logger *zap.Logger, book *ledger.Ledger, sizer Sizer, opts Options) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if book == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if sizer == nil {
		return nil, fmt.Errorf("sizer is nil")
	}
	return &Strategy{
		logger: logger.Named("strategy"),
		book:   book,
		sizer:  sizer,
		opts:   opts,
	}, nil
}

// Issued returns the number of buy orders issued this session.
func (s *Strategy) Issued() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// Decide evaluates an observed trade and either returns an order to execute
// or a rejection error. A returned order holds the mint's in-flight slot in
// the ledger; the executor must complete or fail it.
func (s *Strategy) Decide(intent *domain.TradeIntent) (*domain.ExecutionOrder, error) {
	if s.opts.Protocol != "" && intent.Protocol != s.opts.Protocol {
		return nil, ErrProtocolNotPreferred
	}

	switch intent.Side {
	case domain.SideBuy:
		return s.decideBuy(intent)
	case domain.SideSell:
		return s.decideSell(intent)
	}
	return nil, fmt.Errorf("unknown side %q", intent.Side)
}

func (s *Strategy) decideBuy(intent *domain.TradeIntent) (*domain.ExecutionOrder, error) {
	if intent.SpentLamports() < s.opts.MinLamports {
		return nil, ErrBelowMinimum
	}

	budget := s.sizer.BuyLamports(intent)
	if budget == 0 {
		return nil, ErrBelowMinimum
	}

	// The limit check and the ledger reservation happen under one lock so
	// two concurrent decisions cannot both take the last slot.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.MaxTrades > 0 && s.issued >= s.opts.MaxTrades {
		return nil, ErrTradeLimitReached
	}
	if err := s.book.BeginBuy(intent.Mint); err != nil {
		return nil, err
	}
	s.issued++

	s.logger.Info("Mirroring buy",
		zap.String("mint", intent.Mint.String()),
		zap.String("wallet", intent.Wallet.String()),
		zap.Uint64("observed_lamports", intent.SpentLamports()),
		zap.Uint64("budget_lamports", budget),
		zap.Int64("issued", s.issued))

	return s.newOrder(intent, domain.SideBuy, budget), nil
}

func (s *Strategy) decideSell(intent *domain.TradeIntent) (*domain.ExecutionOrder, error) {
	amount, err := s.book.BeginSell(intent.Mint)
	if err != nil {
		if errors.Is(err, ledger.ErrNoPosition) {
			return nil, ErrNotTracked
		}
		return nil, err
	}

	s.logger.Info("Mirroring sell",
		zap.String("mint", intent.Mint.String()),
		zap.String("wallet", intent.Wallet.String()),
		zap.Uint64("position_tokens", amount))

	return s.newOrder(intent, domain.SideSell, amount), nil
}

func (s *Strategy) newOrder(intent *domain.TradeIntent, side domain.Side, amount uint64) *domain.ExecutionOrder {
	return &domain.ExecutionOrder{
		ID:          uuid.New().String(),
		Intent:      intent,
		Side:        side,
		Mint:        intent.Mint,
		Protocol:    intent.Protocol,
		Amount:      amount,
		SlippageBps: s.opts.SlippageBps,
		CreatedAt:   time.Now().UTC(),
	}
}
