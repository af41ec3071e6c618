package amountmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetBurnAmountGrossDepositAmountTruncationLaw(t *testing.T) {
	amounts := []int64{0, 1, 50_000, 100_000_000, 102_050_000, 999_999_999}
	for _, a := range amounts {
		amount := big.NewInt(a)
		gross := GrossDepositAmount(amount)
		net := NetBurnAmount(gross)

		diff := new(big.Int).Sub(amount, net)
		assert.True(t, diff.Cmp(big.NewInt(0)) == 0 || diff.Cmp(big.NewInt(1)) == 0,
			"netBurnAmount(grossDepositAmount(%d)) = %s, want amount or amount-1", a, net)
	}
}

func TestBridgeExampleGrossDeposit(t *testing.T) {
	// scenario 2 in spec.md §8: bridging 100 USDC, grossDeposit = 102.050000
	amount, err := ParseUSDC("100")
	require.NoError(t, err)

	gross := GrossDepositAmount(amount)
	assert.Equal(t, "102.050000", FormatUSDC(gross))
}

func TestCalcMaxFeeFloor(t *testing.T) {
	small := big.NewInt(1000)
	assert.Equal(t, big.NewInt(50_000), CalcMaxFee(small))

	large := big.NewInt(1_000_000_000)
	assert.Equal(t, big.NewInt(30_000_000), CalcMaxFee(large))
}

func TestFeeRawBatchExample(t *testing.T) {
	// scenario 3 in spec.md §8: (50+100) * 25 / 10000 = 0.375
	total, err := ParseUSDC("150")
	require.NoError(t, err)

	fee, err := FeeRaw(total, BatchFeePercent)
	require.NoError(t, err)
	assert.Equal(t, "0.375000", FormatUSDC(fee))
}

func TestFeeRawCrossChainExample(t *testing.T) {
	total, err := ParseUSDC("1000")
	require.NoError(t, err)

	fee, err := FeeRaw(total, CrossChainFeePercent)
	require.NoError(t, err)
	assert.Equal(t, "3.000000", FormatUSDC(fee))
}

func TestEffectiveSwapSlippageMonotoneNonIncreasing(t *testing.T) {
	tiers := []int64{500_000, 5_000_000, 50_000_000, 500_000_000}
	prev := -1
	for _, minor := range tiers {
		got := EffectiveSwapSlippage(big.NewInt(minor), nil)
		if prev >= 0 {
			assert.LessOrEqual(t, got, prev, "slippage floor must be non-increasing in amount")
		}
		prev = got
	}
}

func TestEffectiveSwapSlippageUserOverride(t *testing.T) {
	userSlippage := 1000 // 10%, above every tier floor
	got := EffectiveSwapSlippage(big.NewInt(500_000_000), &userSlippage)
	assert.Equal(t, 1000, got)

	lowUserSlippage := 10 // below the default floor
	got = EffectiveSwapSlippage(big.NewInt(500_000_000), &lowUserSlippage)
	assert.Equal(t, tierFloorDefault, got)
}

func TestParseFormatUSDCRoundTrip(t *testing.T) {
	cases := []string{"0", "0.000001", "1", "102.05", "999999.999999"}
	for _, c := range cases {
		minor, err := ParseUSDC(c)
		require.NoError(t, err)
		formatted := FormatUSDC(minor)

		reparsed, err := ParseUSDC(formatted)
		require.NoError(t, err)
		assert.Equal(t, 0, minor.Cmp(reparsed))
	}
}

func TestParseUSDCRejectsTooManyDecimals(t *testing.T) {
	_, err := ParseUSDC("1.1234567")
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestParseUSDCRejectsNegative(t *testing.T) {
	_, err := ParseUSDC("-1")
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}
