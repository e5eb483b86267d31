// =============================
// File: internal/dex/amounts.go
// =============================
package dex

import (
	"math/big"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

// ObservedLegs splits an observed trade into its token and lamport legs,
// regardless of direction. Builders derive the venue price from the ratio.
func ObservedLegs(intent *domain.TradeIntent) (tokens, lamports uint64) {
	if intent.Side == domain.SideBuy {
		return intent.AmountOut, intent.AmountIn
	}
	return intent.AmountIn, intent.AmountOut
}

// ScaleProportional returns amount * num / den without intermediate
// overflow. A zero denominator yields zero.
func ScaleProportional(amount, num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	out := new(big.Int).SetUint64(amount)
	out.Mul(out, new(big.Int).SetUint64(num))
	out.Div(out, new(big.Int).SetUint64(den))
	if !out.IsUint64() {
		return ^uint64(0)
	}
	return out.Uint64()
}

// ApplySlippage reduces an expected output by the given basis points,
// producing the minimum acceptable amount.
func ApplySlippage(amount, bps uint64) uint64 {
	if bps >= 10_000 {
		return 0
	}
	return ScaleProportional(amount, 10_000-bps, 10_000)
}
