// Package amountmath implements the engine's fee and net/gross conversion
// arithmetic. Every function here is pure integer math over *big.Int minor
// units; none of it performs I/O, matching the fixed-point style arcsign's
// ethereum fee estimator uses for gas/fee math (see
// src/chainadapter/ethereum/fee.go) rather than floating point.
package amountmath

import "math/big"

// GatewayFeeBps is the settlement service's burn/deposit spread, expressed
// in basis points. It overshoots the service's ~2% intrinsic fee slightly
// to provide headroom against off-by-one rounding.
const GatewayFeeBps = 205

// CrossChainFeePercent and BatchFeePercent are the engine's own service
// fee rates, expressed as decimal-string percentages.
const (
	CrossChainFeePercent = "0.3"
	BatchFeePercent      = "0.25"
)

var (
	ten000        = big.NewInt(10000)
	gatewayDenom  = big.NewInt(10000 + GatewayFeeBps) // 10205
	maxFeeBpsNum  = big.NewInt(300)
	maxFeeFloor   = big.NewInt(50_000)
)

// NetBurnAmount returns the amount that reaches the burn side of a deposit
// after the gateway's intrinsic fee: balance * 10000 / 10205, truncated
// toward zero.
func NetBurnAmount(balance *big.Int) *big.Int {
	out := new(big.Int).Mul(balance, ten000)
	return out.Quo(out, gatewayDenom)
}

// GrossDepositAmount is the inverse of NetBurnAmount: the deposit required
// to net out to burn after the gateway fee, burn * 10205 / 10000, truncated
// toward zero.
func GrossDepositAmount(burn *big.Int) *big.Int {
	out := new(big.Int).Mul(burn, gatewayDenom)
	return out.Quo(out, ten000)
}

// CalcMaxFee returns a fee ceiling (never an actual charge) for a burn
// intent: the greater of 3% of amount and a 50,000-minor-unit floor.
func CalcMaxFee(amount *big.Int) *big.Int {
	pct := new(big.Int).Mul(amount, maxFeeBpsNum)
	pct.Quo(pct, ten000)
	if pct.Cmp(maxFeeFloor) < 0 {
		return new(big.Int).Set(maxFeeFloor)
	}
	return pct
}

// FeeBpsFromPercent converts a decimal-string fee percent (e.g. "0.3",
// "0.25") into its nearest-integer basis-point equivalent: round(pct *
// 10000) / 100 ... concretely round(pct * 100) basis points. "0.3" -> 30bps,
// "0.25" -> 25bps.
func FeeBpsFromPercent(feePercent string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(feePercent)
	if !ok {
		return nil, errInvalidPercent(feePercent)
	}
	// bps = round(pct * 100)
	scaled := new(big.Rat).Mul(r, big.NewRat(100, 1))
	num := new(big.Int).Mul(scaled.Num(), big.NewInt(2))
	denom := new(big.Int).Mul(scaled.Denom(), big.NewInt(2))
	half := new(big.Int).Set(scaled.Denom())
	num.Add(num, half)
	bps := new(big.Int).Quo(num, denom)
	return bps, nil
}

// FeeRaw computes the service fee on total at the given decimal-string
// percent: feeRaw = total * bps / 10000, where bps is FeeBpsFromPercent's
// nearest-integer basis-point equivalent of feePercent.
func FeeRaw(total *big.Int, feePercent string) (*big.Int, error) {
	bps, err := FeeBpsFromPercent(feePercent)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(total, bps)
	return out.Quo(out, ten000), nil
}

type invalidPercentError string

func (e invalidPercentError) Error() string {
	return "amountmath: invalid fee percent " + string(e)
}

func errInvalidPercent(s string) error {
	return invalidPercentError(s)
}
