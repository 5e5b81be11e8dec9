package claim

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the number of fractional digits the GOIN contract uses.
const TokenDecimals = 18

var baseUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

// ErrInvalidAmount indicates the amount string cannot be converted to
// base units without loss.
var ErrInvalidAmount = errors.New("invalid token amount")

// Render produces the canonical text a claimant signs. The amount is
// embedded verbatim so signer and verifier derive byte-identical
// messages from the same three fields.
func Render(claimant, amount string, nonce int64) string {
	return fmt.Sprintf("Claim %s GOIN for %s (nonce: %d)", amount, claimant, nonce)
}

// ParseAmount converts a human-readable decimal amount such as "50.0"
// into base units. Conversion is exact: the string is split on the
// decimal point and scaled with integer arithmetic, never a float.
// The amount must be strictly positive and carry at most TokenDecimals
// fractional digits.
func ParseAmount(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("%w: signed value %q", ErrInvalidAmount, amount)
	}

	whole, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
	}
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if len(frac) > TokenDecimals {
		return nil, fmt.Errorf("%w: more than %d fractional digits in %q", ErrInvalidAmount, TokenDecimals, amount)
	}

	if whole == "" {
		whole = "0"
	}
	value, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	value.Mul(value, baseUnit)
	if frac != "" {
		fracValue, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(TokenDecimals-len(frac))), nil)
		value.Add(value, fracValue.Mul(fracValue, scale))
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %q", ErrInvalidAmount, amount)
	}
	return value, nil
}

// FormatAmount renders base units back into a decimal string, trimming
// trailing zeros. Used for balances read off the chain.
func FormatAmount(value *big.Int) string {
	if value == nil || value.Sign() == 0 {
		return "0"
	}
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(value, baseUnit, frac)
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%018s", frac.String()), "0")
	return whole.String() + "." + fracStr
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
