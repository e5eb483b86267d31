// internal/status/status.go
package status

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// Report is a point-in-time snapshot of the trading wallet.
type Report struct {
	Wallet      solana.PublicKey
	SOLBalance  uint64
	WSOLBalance uint64
	Accounts    []blockchain.TokenAccount
}

// Collect queries the chain for the wallet's SOL balance and token accounts.
func Collect(ctx context.Context, client blockchain.Client, w *wallet.Wallet) (*Report, error) {
	balance, err := client.GetBalance(ctx, w.PublicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get SOL balance: %w", err)
	}

	accounts, err := client.GetTokenAccountsByOwner(ctx, w.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list token accounts: %w", err)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Mint.String() < accounts[j].Mint.String()
	})

	report := &Report{
		Wallet:     w.PublicKey,
		SOLBalance: balance,
	}
	for _, acc := range accounts {
		if acc.Mint.Equals(domain.WSOL) {
			report.WSOLBalance = acc.Amount
			continue
		}
		report.Accounts = append(report.Accounts, acc)
	}
	return report, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true).
			Underline(true)

	emptyRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)
)

// Render formats the report as a bordered terminal panel.
func Render(r *Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Wallet Status"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Address  "))
	b.WriteString(valueStyle.Render(r.Wallet.String()))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("SOL      "))
	b.WriteString(valueStyle.Render(formatSOL(r.SOLBalance)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("WSOL     "))
	b.WriteString(valueStyle.Render(formatSOL(r.WSOLBalance)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-44s  %18s", "Mint", "Balance")))
	b.WriteString("\n")
	if len(r.Accounts) == 0 {
		b.WriteString(emptyRowStyle.Render("no token accounts"))
	} else {
		for i, acc := range r.Accounts {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(valueStyle.Render(
				fmt.Sprintf("%-44s  %18d", acc.Mint.String(), acc.Amount)))
		}
	}

	return boxStyle.Render(b.String())
}

func formatSOL(lamports uint64) string {
	return fmt.Sprintf("%.9f", float64(lamports)/float64(domain.LamportsPerSOL))
}
