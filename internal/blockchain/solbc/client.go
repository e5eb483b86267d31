// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain"
)

var (
	ErrAccountNotFound     = blockchain.ErrAccountNotFound
	ErrConfirmationTimeout = blockchain.ErrConfirmationTimeout
)

// IsAccountNotFoundError reports whether an RPC error means the account
// does not exist.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// Client is a thin adapter over the solana-go RPC client.
type Client struct {
	rpc            *rpc.Client
	logger         *zap.Logger
	confirmTimeout time.Duration
}

// NewClient creates a new client for the given RPC endpoint.
func NewClient(rpcURL string, confirmTimeout time.Duration, logger *zap.Logger) *Client {
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}
	return &Client{
		rpc:            rpc.New(rpcURL),
		logger:         logger.Named("solbc-client"),
		confirmTimeout: confirmTimeout,
	}
}

// GetRecentBlockhash fetches the latest blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// SendTransactionWithOpts submits a transaction with the given options.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// SimulateTransaction runs a preflight simulation.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// GetSignatureStatuses fetches transaction statuses.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, false, signatures...)
	if err != nil {
		c.logger.Error("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// WaitForTransactionConfirmation polls signature statuses until the
// transaction is confirmed or the confirmation timeout elapses.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, _ rpc.CommitmentType) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(c.confirmTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return ErrConfirmationTimeout
		case <-ticker.C:
			statuses, err := c.GetSignatureStatuses(ctx, signature)
			if err != nil {
				c.logger.Warn("Error getting signature statuses", zap.Error(err))
				continue
			}
			if statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
				status := statuses.Value[0]
				if status.Err != nil {
					return errors.New("transaction failed on chain")
				}
				if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
					status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
					return nil
				}
			}
		}
	}
}

// GetBalance fetches the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetTokenAccountBalance fetches the raw token balance of a token account.
// Returns ErrAccountNotFound when the account does not exist.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	if result == nil || result.Value == nil {
		return 0, ErrAccountNotFound
	}
	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// GetTokenAccountsByOwner lists all SPL token accounts owned by a wallet.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]blockchain.TokenAccount, error) {
	out, err := c.rpc.GetTokenAccountsByOwner(ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	if err != nil {
		c.logger.Error("GetTokenAccountsByOwner error", zap.Error(err))
		return nil, err
	}

	accounts := make([]blockchain.TokenAccount, 0, len(out.Value))
	for _, kv := range out.Value {
		var acc token.Account
		if err := bin.NewBinDecoder(kv.Account.Data.GetBinary()).Decode(&acc); err != nil {
			c.logger.Warn("Failed to decode token account",
				zap.String("account", kv.Pubkey.String()),
				zap.Error(err))
			continue
		}
		accounts = append(accounts, blockchain.TokenAccount{
			Address: kv.Pubkey,
			Mint:    acc.Mint,
			Amount:  acc.Amount,
		})
	}
	return accounts, nil
}

var _ blockchain.Client = (*Client)(nil)
