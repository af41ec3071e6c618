package amountmath

import "math/big"

// usdcUnit is one whole USDC in minor units (6 decimals).
var usdcUnit = big.NewInt(1_000_000)

// slippage tier floors, as basis points, applied below the named
// whole-USDC notional threshold.
const (
	tierFloor1USD   = 500  // 5%
	tierFloor10USD  = 300  // 3%
	tierFloor100USD = 100  // 1%
	tierFloorDefault = 50  // 0.5%
)

// EffectiveSwapSlippage returns the greater of the caller-supplied
// slippage tolerance (in basis points, userSlippageBps may be nil for
// "unset") and a tier floor scaled to the notional amount: small amounts
// are more vulnerable to quote/execute drift, so they get a wider floor.
func EffectiveSwapSlippage(usdcMinor *big.Int, userSlippageBps *int) int {
	floor := tierFloorDefault
	switch {
	case usdcMinor.Cmp(usdcUnit) < 0:
		floor = tierFloor1USD
	case usdcMinor.Cmp(new(big.Int).Mul(usdcUnit, big.NewInt(10))) < 0:
		floor = tierFloor10USD
	case usdcMinor.Cmp(new(big.Int).Mul(usdcUnit, big.NewInt(100))) < 0:
		floor = tierFloor100USD
	}

	if userSlippageBps != nil && *userSlippageBps > floor {
		return *userSlippageBps
	}
	return floor
}
