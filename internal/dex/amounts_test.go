package dex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

func TestObservedLegs(t *testing.T) {
	buy := &domain.TradeIntent{Side: domain.SideBuy, AmountIn: 2_000_000_000, AmountOut: 1_000_000}
	tokens, lamports := ObservedLegs(buy)
	assert.Equal(t, uint64(1_000_000), tokens)
	assert.Equal(t, uint64(2_000_000_000), lamports)

	sell := &domain.TradeIntent{Side: domain.SideSell, AmountIn: 1_000_000, AmountOut: 2_000_000_000}
	tokens, lamports = ObservedLegs(sell)
	assert.Equal(t, uint64(1_000_000), tokens)
	assert.Equal(t, uint64(2_000_000_000), lamports)
}

func TestScaleProportional(t *testing.T) {
	assert.Equal(t, uint64(50_000), ScaleProportional(100_000_000, 1_000_000, 2_000_000_000))
	assert.Equal(t, uint64(0), ScaleProportional(100, 1, 0))
	// Products beyond 64 bits must not wrap.
	assert.Equal(t, uint64(math.MaxUint64), ScaleProportional(math.MaxUint64, math.MaxUint64, 1))
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, uint64(9_500), ApplySlippage(10_000, 500))
	assert.Equal(t, uint64(10_000), ApplySlippage(10_000, 0))
	assert.Equal(t, uint64(0), ApplySlippage(10_000, 10_000))
	assert.Equal(t, uint64(0), ApplySlippage(10_000, 12_000))
}
