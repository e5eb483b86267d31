// =============================
// File: internal/ledger/ledger.go
// =============================
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/events"
)

var (
	// ErrOrderInFlight means the mint already has an unconfirmed order.
	ErrOrderInFlight = errors.New("order already in flight for mint")
	// ErrNoPosition means there is nothing to sell for the mint.
	ErrNoPosition = errors.New("no position for mint")
)

// entry pairs a position with its own lock so trades on different mints do
// not contend. removed marks entries that have been unlinked from the map;
// holders of a stale pointer must go back to the map.
type entry struct {
	mu      sync.Mutex
	removed bool
	pos     domain.Position
}

// Ledger tracks one position per mint and enforces a single in-flight order
// per mint. All mutation goes through Begin/Complete/Fail pairs so the
// executor cannot race the reconciliation sweep. The map lock is held only
// for lookups and inserts; position state is guarded per mint.
type Ledger struct {
	logger        *zap.Logger
	bus           *events.Bus
	dustThreshold uint64

	mu      sync.RWMutex
	entries map[solana.PublicKey]*entry
}

// New creates a ledger. Positions at or below dustThreshold are removed
// rather than kept as residue.
func New(logger *zap.Logger, bus *events.Bus, dustThreshold uint64) (*Ledger, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus is nil")
	}
	return &Ledger{
		logger:        logger.Named("ledger"),
		bus:           bus,
		dustThreshold: dustThreshold,
		entries:       make(map[solana.PublicKey]*entry),
	}, nil
}

// lookup returns the live entry for the mint with its lock held, or nil
// when the mint is untracked. An entry caught mid-removal is released and
// the map is consulted again.
func (l *Ledger) lookup(mint solana.PublicKey) *entry {
	for {
		l.mu.RLock()
		e := l.entries[mint]
		l.mu.RUnlock()
		if e == nil {
			return nil
		}
		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// create inserts an entry for the mint and returns it with its lock held,
// or nil when the mint is already tracked. The entry lock is taken before
// the insert is visible, so no one can observe a half-built position.
func (l *Ledger) create(mint solana.PublicKey, pos domain.Position) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[mint]; ok {
		return nil
	}
	e := &entry{pos: pos}
	e.mu.Lock()
	l.entries[mint] = e
	return e
}

// acquire returns the entry for the mint with its lock held, creating an
// empty position when the mint is untracked.
func (l *Ledger) acquire(mint solana.PublicKey) *entry {
	for {
		if e := l.lookup(mint); e != nil {
			return e
		}
		if e := l.create(mint, domain.Position{Mint: mint, OpenedAt: time.Now().UTC()}); e != nil {
			return e
		}
	}
}

// discard unlinks the entry from the map. Caller holds e.mu; it is
// released here. The entry lock is never held across the map lock.
func (l *Ledger) discard(mint solana.PublicKey, e *entry) {
	e.removed = true
	e.mu.Unlock()

	l.mu.Lock()
	if l.entries[mint] == e {
		delete(l.entries, mint)
	}
	l.mu.Unlock()
}

// remove drops the position and announces it. Caller holds e.mu.
func (l *Ledger) remove(mint solana.PublicKey, e *entry, reason string) {
	l.discard(mint, e)
	l.logger.Info("Position removed",
		zap.String("mint", mint.String()),
		zap.String("reason", reason))
	l.publish(&events.PositionRemovedEvent{
		BaseEvent: events.NewBase(events.PositionRemoved),
		Mint:      mint.String(),
		Reason:    reason,
	})
}

// BeginBuy reserves the mint for a buy order. A second order for the same
// mint is refused until the first completes or fails.
func (l *Ledger) BeginBuy(mint solana.PublicKey) error {
	for {
		now := time.Now().UTC()
		if e := l.lookup(mint); e != nil {
			if e.pos.State != domain.PositionActive {
				e.mu.Unlock()
				return ErrOrderInFlight
			}
			e.pos.State = domain.PositionPendingBuy
			e.pos.UpdatedAt = now
			e.mu.Unlock()
			return nil
		}
		e := l.create(mint, domain.Position{
			Mint:      mint,
			State:     domain.PositionPendingBuy,
			OpenedAt:  now,
			UpdatedAt: now,
		})
		if e != nil {
			e.mu.Unlock()
			return nil
		}
	}
}

// CompleteBuy records a confirmed buy: tokens received and lamports spent.
func (l *Ledger) CompleteBuy(mint, tokenAccount solana.PublicKey, tokens, costLamports uint64) {
	e := l.acquire(mint)
	e.pos.Amount += tokens
	e.pos.CostLamports += costLamports
	e.pos.TokenAccount = tokenAccount
	e.pos.State = domain.PositionActive
	e.pos.UpdatedAt = time.Now().UTC()
	amount := e.pos.Amount
	cost := e.pos.CostLamports
	e.mu.Unlock()

	l.logger.Info("Position updated after buy",
		zap.String("mint", mint.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("cost_lamports", cost))
}

// FailBuy releases the mint after a failed buy. A position that never held
// tokens is dropped entirely.
func (l *Ledger) FailBuy(mint solana.PublicKey) {
	e := l.lookup(mint)
	if e == nil {
		return
	}
	if e.pos.Amount == 0 {
		l.discard(mint, e)
		return
	}
	e.pos.State = domain.PositionActive
	e.pos.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()
}

// BeginSell reserves the mint for a sell order and returns the sellable
// amount.
func (l *Ledger) BeginSell(mint solana.PublicKey) (uint64, error) {
	e := l.lookup(mint)
	if e == nil {
		return 0, ErrNoPosition
	}
	if e.pos.Amount == 0 {
		e.mu.Unlock()
		return 0, ErrNoPosition
	}
	if e.pos.State != domain.PositionActive {
		e.mu.Unlock()
		return 0, ErrOrderInFlight
	}
	e.pos.State = domain.PositionPendingSell
	e.pos.UpdatedAt = time.Now().UTC()
	amount := e.pos.Amount
	e.mu.Unlock()
	return amount, nil
}

// CompleteSell records a confirmed sell. Selling down to the dust threshold
// removes the position.
func (l *Ledger) CompleteSell(mint solana.PublicKey, soldTokens uint64) {
	e := l.lookup(mint)
	if e == nil {
		return
	}
	if soldTokens >= e.pos.Amount {
		e.pos.Amount = 0
	} else {
		e.pos.Amount -= soldTokens
	}
	e.pos.UpdatedAt = time.Now().UTC()

	if e.pos.Amount <= l.dustThreshold {
		l.remove(mint, e, "sold out")
		return
	}
	e.pos.State = domain.PositionActive
	remaining := e.pos.Amount
	e.mu.Unlock()

	l.logger.Info("Position reduced after sell",
		zap.String("mint", mint.String()),
		zap.Uint64("remaining", remaining))
}

// FailSell releases the mint after a failed sell.
func (l *Ledger) FailSell(mint solana.PublicKey) {
	e := l.lookup(mint)
	if e == nil {
		return
	}
	e.pos.State = domain.PositionActive
	e.pos.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()
}

// Reconcile corrects a position against the on-chain balance. Positions
// with an in-flight order are left alone so a confirmation cannot be
// overwritten mid-trade. Reconciling the same balance twice is a no-op.
func (l *Ledger) Reconcile(mint solana.PublicKey, onChain uint64) {
	e := l.lookup(mint)
	if e == nil {
		if onChain <= l.dustThreshold {
			return
		}
		// Balance found on chain that the ledger never saw.
		now := time.Now().UTC()
		e = l.create(mint, domain.Position{
			Mint:      mint,
			State:     domain.PositionActive,
			Amount:    onChain,
			OpenedAt:  now,
			UpdatedAt: now,
		})
		if e == nil {
			// Lost the insert race; the next sweep settles it.
			return
		}
		e.mu.Unlock()
		l.publish(&events.BalanceReconciledEvent{
			BaseEvent:  events.NewBase(events.BalanceReconciled),
			Mint:       mint.String(),
			NewBalance: onChain,
		})
		return
	}
	if e.pos.State != domain.PositionActive || e.pos.Amount == onChain {
		e.mu.Unlock()
		return
	}

	old := e.pos.Amount
	e.pos.Amount = onChain
	e.pos.UpdatedAt = time.Now().UTC()
	if onChain <= l.dustThreshold {
		l.remove(mint, e, "dust")
	} else {
		e.mu.Unlock()
	}

	l.logger.Warn("Ledger balance corrected from chain",
		zap.String("mint", mint.String()),
		zap.Uint64("old", old),
		zap.Uint64("new", onChain))
	l.publish(&events.BalanceReconciledEvent{
		BaseEvent:  events.NewBase(events.BalanceReconciled),
		Mint:       mint.String(),
		OldBalance: old,
		NewBalance: onChain,
	})
}

// Get returns a copy of the position for the mint.
func (l *Ledger) Get(mint solana.PublicKey) (domain.Position, bool) {
	e := l.lookup(mint)
	if e == nil {
		return domain.Position{}, false
	}
	pos := e.pos
	e.mu.Unlock()
	return pos, true
}

// Snapshot returns copies of all positions, ordered by mint. Each entry is
// locked briefly in turn, so a snapshot never stalls trading on any mint.
func (l *Ledger) Snapshot() []domain.Position {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	out := make([]domain.Position, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			out = append(out, e.pos)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Mint.String() < out[j].Mint.String()
	})
	return out
}

// Len returns the number of tracked positions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) publish(ev events.Event) {
	if err := l.bus.Publish(ev); err != nil {
		l.logger.Debug("Event not published", zap.Error(err))
	}
}
