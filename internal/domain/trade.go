package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Protocol identifies the DEX protocol a swap instruction belongs to.
type Protocol string

const (
	ProtocolPumpFun  Protocol = "pumpfun"
	ProtocolPumpSwap Protocol = "pumpswap"
	ProtocolRaydium  Protocol = "raydium"
)

// Side is the direction of a swap relative to the token mint:
// a Buy spends SOL for tokens, a Sell spends tokens for SOL.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// WSOL is the wrapped SOL mint. Swaps quote against it, and the tracked
// mint of a swap is always the non-WSOL side of the pair.
var WSOL = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// CompiledInstruction is one instruction of an observed transaction with
// its account indices already resolved against the transaction's key list.
type CompiledInstruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// TransactionEvent is a single observed transaction from the stream,
// normalized before protocol decoding.
type TransactionEvent struct {
	Signature    solana.Signature
	Slot         uint64
	BlockTime    time.Time
	Accounts     []solana.PublicKey
	Instructions []CompiledInstruction
	Logs         []string
	Err          interface{}
}

// Mentions reports whether any of the given wallets appears in the
// transaction's account list.
func (e *TransactionEvent) Mentions(wallets map[solana.PublicKey]struct{}) (solana.PublicKey, bool) {
	for _, acc := range e.Accounts {
		if _, ok := wallets[acc]; ok {
			return acc, true
		}
	}
	return solana.PublicKey{}, false
}

// TradeIntent is a decoded swap observed on a monitored wallet. Amounts are
// raw base units (lamports for SOL, token base units for the mint).
type TradeIntent struct {
	Signature solana.Signature
	Slot      uint64
	Wallet    solana.PublicKey
	Protocol  Protocol
	Side      Side
	Mint      solana.PublicKey
	// AmountIn is what the observed wallet spent, AmountOut what it asked
	// for (minimum out for exact-in swaps).
	AmountIn  uint64
	AmountOut uint64
	// Route is the observed instruction's account list in instruction order.
	// The executor rebuilds the swap against the same venue from it, so no
	// separate pool discovery is needed.
	Route      []solana.PublicKey
	ObservedAt time.Time
}

// SpentLamports returns the SOL side of the observed swap in lamports.
func (t *TradeIntent) SpentLamports() uint64 {
	if t.Side == SideBuy {
		return t.AmountIn
	}
	return t.AmountOut
}
