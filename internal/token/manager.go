// ==================================
// File: internal/token/manager.go
// ==================================
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// close instructions bundled into one transaction
const closeBatchSize = 10

// Manager performs one-shot token account maintenance: wrapping SOL,
// unwrapping it back, and sweeping empty token accounts to reclaim rent.
type Manager struct {
	logger *zap.Logger
	client blockchain.Client
	wallet *wallet.Wallet
}

func NewManager(logger *zap.Logger, client blockchain.Client, w *wallet.Wallet) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if client == nil {
		return nil, fmt.Errorf("blockchain client is nil")
	}
	if w == nil {
		return nil, fmt.Errorf("wallet is nil")
	}
	return &Manager{
		logger: logger.Named("token"),
		client: client,
		wallet: w,
	}, nil
}

// Wrap moves lamports into the wallet's WSOL account, creating it if needed.
func (m *Manager) Wrap(ctx context.Context, lamports uint64) (solana.Signature, error) {
	if lamports == 0 {
		return solana.Signature{}, fmt.Errorf("wrap amount is zero")
	}

	wsolATA, err := m.wallet.GetATA(WSOLMint)
	if err != nil {
		return solana.Signature{}, err
	}
	createATA, err := m.wallet.CreateATAIdempotentInstruction(WSOLMint)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := m.submit(ctx, WrapInstructions(m.wallet.PublicKey, wsolATA, createATA, lamports))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("wrap failed: %w", err)
	}
	m.logger.Info("Wrapped SOL",
		zap.Uint64("lamports", lamports),
		zap.String("signature", sig.String()))
	return sig, nil
}

// Unwrap closes the WSOL account, returning its full balance as SOL.
func (m *Manager) Unwrap(ctx context.Context) (solana.Signature, error) {
	wsolATA, err := m.wallet.GetATA(WSOLMint)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := m.submit(ctx, []solana.Instruction{
		CloseAccountInstruction(wsolATA, m.wallet.PublicKey, m.wallet.PublicKey),
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("unwrap failed: %w", err)
	}
	m.logger.Info("Unwrapped SOL", zap.String("signature", sig.String()))
	return sig, nil
}

// CloseEmptyAccounts closes all zero-balance token accounts owned by the
// wallet and returns how many were closed. Funded accounts are never
// touched.
func (m *Manager) CloseEmptyAccounts(ctx context.Context) (int, error) {
	accounts, err := m.client.GetTokenAccountsByOwner(ctx, m.wallet.PublicKey)
	if err != nil {
		return 0, fmt.Errorf("failed to list token accounts: %w", err)
	}

	var toClose []solana.PublicKey
	for _, acc := range accounts {
		if acc.Amount > 0 {
			continue
		}
		toClose = append(toClose, acc.Address)
	}
	if len(toClose) == 0 {
		m.logger.Info("No empty token accounts to close")
		return 0, nil
	}

	closed := 0
	for start := 0; start < len(toClose); start += closeBatchSize {
		end := start + closeBatchSize
		if end > len(toClose) {
			end = len(toClose)
		}
		batch := make([]solana.Instruction, 0, end-start)
		for _, addr := range toClose[start:end] {
			batch = append(batch,
				CloseAccountInstruction(addr, m.wallet.PublicKey, m.wallet.PublicKey))
		}
		sig, err := m.submit(ctx, batch)
		if err != nil {
			return closed, fmt.Errorf("failed closing accounts batch: %w", err)
		}
		closed += len(batch)
		m.logger.Info("Closed empty token accounts",
			zap.Int("count", len(batch)),
			zap.String("signature", sig.String()))
	}
	return closed, nil
}

// WSOLBalance reads the wallet's current wrapped balance; a missing account
// reads as zero.
func (m *Manager) WSOLBalance(ctx context.Context) (uint64, error) {
	wsolATA, err := m.wallet.GetATA(WSOLMint)
	if err != nil {
		return 0, err
	}
	balance, err := m.client.GetTokenAccountBalance(ctx, wsolATA)
	if err != nil {
		if errors.Is(err, blockchain.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func (m *Manager) submit(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	blockhash, err := m.client.GetRecentBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(m.wallet.PublicKey))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := m.wallet.SignTransaction(tx); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := m.client.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := m.client.WaitForTransactionConfirmation(ctx, sig, rpc.CommitmentConfirmed); err != nil {
		return sig, err
	}
	return sig, nil
}
