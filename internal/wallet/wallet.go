// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Wallet holds the bot's signing key and a cache of derived associated
// token account addresses.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.RWMutex
	ataCache map[string]solana.PublicKey
}

// New creates a wallet from a base58-encoded 64-byte private key.
func New(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		ataCache:   make(map[string]solana.PublicKey),
	}, nil
}

// SignTransaction signs a transaction with the wallet's private key.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	return err
}

// GetATA returns the associated token account address for the given mint.
// Derived addresses are cached.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	mintStr := mint.String()

	w.mu.RLock()
	ata, ok := w.ataCache[mintStr]
	w.mu.RUnlock()
	if ok {
		return ata, nil
	}

	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}

	w.mu.Lock()
	w.ataCache[mintStr] = ata
	w.mu.Unlock()
	return ata, nil
}

// CreateATAIdempotentInstruction builds a create-idempotent instruction for
// the wallet's associated token account of the given mint.
func (w *Wallet) CreateATAIdempotentInstruction(mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := w.GetATA(mint)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		[]*solana.AccountMeta{
			{PublicKey: w.PublicKey, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: w.PublicKey, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SysVarRentPubkey, IsWritable: false, IsSigner: false},
		},
		[]byte{1}, // create idempotent
	), nil
}

// String returns the wallet's public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
