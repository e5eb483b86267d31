// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrAccountNotFound means the queried account does not exist on chain.
	ErrAccountNotFound = errors.New("account not found")
	// ErrConfirmationTimeout means a submitted transaction was not seen as
	// confirmed within the configured window. It may still land.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// TransactionOptions defines options for submitting transactions.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// SimulationResult is the outcome of a transaction simulation.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// TokenAccount is a parsed SPL token account owned by the bot wallet.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Amount  uint64
}

// Client is the chain access interface the trading components depend on.
type Client interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, error)
}
