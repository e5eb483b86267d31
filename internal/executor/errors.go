// =============================
// File: internal/executor/errors.go
// =============================
package executor

import (
	"fmt"
	"strconv"
	"strings"
)

// Solana program error markers for exceeded slippage.
const (
	SlippageExceededCode    = "0x1774"
	SlippageExceededCodeInt = 6004
)

// SlippageExceededError means the swap would have crossed the configured
// slippage bound. Retrying the same transaction cannot succeed.
type SlippageExceededError struct {
	SlippageBps   uint64
	Amount        uint64
	OriginalError error
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("slippage exceeded: output fell below the %d bps bound for amount %d: %v",
		e.SlippageBps, e.Amount, e.OriginalError)
}

func (e *SlippageExceededError) Unwrap() error {
	return e.OriginalError
}

// IsSlippageExceededError matches the known error shapes the programs return
// when the output bound is crossed.
func IsSlippageExceededError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "ExceededSlippage") ||
		strings.Contains(err.Error(), SlippageExceededCode) ||
		strings.Contains(err.Error(), strconv.Itoa(SlippageExceededCodeInt)))
}
