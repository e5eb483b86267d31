// =============================
// File: internal/dex/pumpswap/config.go
// =============================
package pumpswap

import (
	"github.com/gagliardetto/solana-go"
)

// Known PumpSwap AMM addresses.
var (
	// ProgramID is the PumpSwap AMM program.
	ProgramID = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")

	SystemProgramID          = solana.SystemProgramID
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
)

// Anchor instruction discriminators extracted from the IDL.
var (
	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// Swap instruction account layout, nineteen accounts for both directions.
const (
	idxPool                    = 0
	idxUser                    = 1
	idxGlobalConfig            = 2
	idxBaseMint                = 3
	idxQuoteMint               = 4
	idxUserBaseATA             = 5
	idxUserQuoteATA            = 6
	idxPoolBaseTokenAccount    = 7
	idxPoolQuoteTokenAccount   = 8
	idxProtocolFeeRecipient    = 9
	idxProtocolFeeRecipientATA = 10
	idxBaseTokenProgram        = 11
	idxQuoteTokenProgram       = 12
	idxEventAuthority          = 15
	idxProgram                 = 16
	idxCoinCreatorVaultATA     = 17
	idxCoinCreatorVaultAuth    = 18

	swapAccountCount = 19
	swapDataSize     = 24 // discriminator + two u64 amounts
)
