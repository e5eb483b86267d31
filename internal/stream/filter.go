// internal/stream/filter.go
package stream

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

// WalletFilter retains only transactions that mention a monitored wallet.
// The subscription already filters server side, but the filter is the
// authoritative check: providers occasionally deliver unrelated or stale
// notifications after a resubscribe.
type WalletFilter struct {
	wallets map[solana.PublicKey]struct{}
}

// NewWalletFilter creates a filter over the monitored wallet set.
func NewWalletFilter(wallets map[solana.PublicKey]struct{}) (*WalletFilter, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("monitored wallet set is empty")
	}
	return &WalletFilter{wallets: wallets}, nil
}

// Match returns the first monitored wallet mentioned by the event.
func (f *WalletFilter) Match(ev *domain.TransactionEvent) (solana.PublicKey, bool) {
	return ev.Mentions(f.wallets)
}

// Wallets returns the monitored wallet addresses in base58.
func (f *WalletFilter) Wallets() []string {
	out := make([]string, 0, len(f.wallets))
	for w := range f.wallets {
		out = append(out, w.String())
	}
	return out
}
