// =============================
// File: internal/dex/raydium/config.go
// =============================
package raydium

import (
	"github.com/gagliardetto/solana-go"
)

// ProgramID is the Raydium AMM v4 program.
var ProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

// Raydium uses single-byte instruction tags, not anchor discriminators.
const (
	swapBaseInInstruction  = 0x09
	swapBaseOutInstruction = 0x0b

	swapDataSize = 17 // tag + amountIn u64 + minAmountOut u64

	// Swap accounts number 17 without the amm target orders account and 18
	// with it. The user accounts always sit at the tail.
	minSwapAccountCount = 17
	maxSwapAccountCount = 18

	idxAmm       = 1
	idxAuthority = 2
)

// serumProgramIndex returns the position of the serum program account, which
// shifts with the optional target orders account.
func serumProgramIndex(accountCount int) int {
	if accountCount == maxSwapAccountCount {
		return 7
	}
	return 6
}
