package amountmath

import (
	"errors"
	"math/big"
	"strings"
)

// USDCDecimals is the fixed precision used for all persisted monetary
// decimal strings.
const USDCDecimals = 6

var ErrInvalidDecimal = errors.New("amountmath: invalid decimal string")

// ParseUSDC parses a non-negative base-10 decimal string with up to
// USDCDecimals fractional digits into minor units. It never uses
// floating point: the integer and fractional parts are scaled and
// combined with *big.Int arithmetic only.
func ParseUSDC(s string) (*big.Int, error) {
	return ParseDecimal(s, USDCDecimals)
}

// ParseDecimal parses a non-negative base-10 decimal string with up to
// decimals fractional digits into minor units, for tokens whose precision
// differs from USDC's fixed 6 (e.g. an 18-decimal ERC-20 swapped in
// prepareSwapDeposit). It never uses floating point.
func ParseDecimal(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidDecimal
	}
	if strings.HasPrefix(s, "-") {
		return nil, ErrInvalidDecimal
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if !hasFrac {
		fracPart = ""
	}
	if len(fracPart) > decimals {
		return nil, ErrInvalidDecimal
	}
	for len(fracPart) < decimals {
		fracPart += "0"
	}

	combined := intPart + fracPart
	if combined == "" {
		return nil, ErrInvalidDecimal
	}
	for _, r := range combined {
		if r < '0' || r > '9' {
			return nil, ErrInvalidDecimal
		}
	}

	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, ErrInvalidDecimal
	}
	return out, nil
}

// FormatUSDC renders minor units back to a normalized 6-decimal string
// (e.g. 102050000 -> "102.050000").
func FormatUSDC(minor *big.Int) string {
	neg := minor.Sign() < 0
	abs := new(big.Int).Abs(minor)

	digits := abs.String()
	for len(digits) <= USDCDecimals {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-USDCDecimals]
	fracPart := digits[len(digits)-USDCDecimals:]

	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
