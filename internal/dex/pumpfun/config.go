// =============================
// File: internal/dex/pumpfun/config.go
// =============================
package pumpfun

import (
	"github.com/gagliardetto/solana-go"
)

// Known pump.fun protocol addresses.
var (
	// ProgramID is the pump.fun bonding curve program.
	ProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// EventAuthority is the pump.fun event authority PDA.
	EventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")

	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	SysvarRentPubkey         = solana.SysVarRentPubkey
)

// Anchor instruction discriminators, sha256("global:<name>")[:8].
var (
	buyDiscriminator  = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	sellDiscriminator = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
)

// Swap instruction account layout. Both buy and sell use twelve accounts in
// this order.
const (
	idxGlobal            = 0
	idxFeeRecipient      = 1
	idxMint              = 2
	idxBondingCurve      = 3
	idxAssocBondingCurve = 4
	idxAssociatedUser    = 5
	idxUser              = 6
	idxEventAuthority    = 10
	idxProgram           = 11

	swapAccountCount = 12
	swapDataSize     = 24 // discriminator + two u64 amounts
)
