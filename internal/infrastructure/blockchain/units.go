package blockchain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ScaleAmount converts a decimal amount to its integer base-unit value.
// Amounts with more fractional digits than decimals are rejected instead of rounded.
func ScaleAmount(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount.String())
	}

	scaled := amount.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d fractional digits", amount.String(), decimals)
	}

	return scaled.BigInt(), nil
}
