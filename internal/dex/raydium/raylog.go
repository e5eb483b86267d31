// =============================
// File: internal/dex/raydium/raylog.go
// =============================
package raydium

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const rayLogPrefix = "ray_log: "

// swapLog is the decoded swap entry the AMM emits to the program logs. The
// instruction data alone does not name the pool mints, so the log is the
// source of truth for what was traded.
type swapLog struct {
	AmmID      solana.PublicKey
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	AmountIn   uint64
	AmountOut  uint64
}

// parseRayLog scans transaction logs for the AMM swap entry and decodes it.
// Returns nil when no swap log is present.
func parseRayLog(logs []string) *swapLog {
	for _, line := range logs {
		idx := strings.Index(line, rayLogPrefix)
		if idx < 0 {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(line[idx+len(rayLogPrefix):])
		if err != nil {
			continue
		}
		if len(raw) < 113 {
			continue
		}
		if raw[0] != swapBaseInInstruction && raw[0] != swapBaseOutInstruction {
			continue
		}
		entry := &swapLog{
			AmountIn:  binary.LittleEndian.Uint64(raw[97:105]),
			AmountOut: binary.LittleEndian.Uint64(raw[105:113]),
		}
		copy(entry.AmmID[:], raw[1:33])
		copy(entry.InputMint[:], raw[33:65])
		copy(entry.OutputMint[:], raw[65:97])
		return entry
	}
	return nil
}
