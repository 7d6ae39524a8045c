package fordefi

import (
	"fmt"
	"math/big"
	"strings"
)

// ValidateAmount checks that s is a plain non-negative decimal
// ("12", "0.00001"). No exponents, signs or grouping.
func ValidateAmount(s string) error {
	_, _, err := splitDecimal(s)
	return err
}

// ScaleAmount converts a human decimal amount into the smallest-unit integer
// string for an asset with the given number of decimals. Excess fractional
// digits are truncated, never rounded up.
func ScaleAmount(s string, decimals int) (string, error) {
	intPart, fracPart, err := splitDecimal(s)
	if err != nil {
		return "", err
	}
	if decimals < 0 {
		return "", fmt.Errorf("invalid decimals %d", decimals)
	}

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount %q", s)
	}
	return v.String(), nil
}

// IsZeroAmount reports whether the decimal string denotes exactly zero.
func IsZeroAmount(s string) bool {
	intPart, fracPart, err := splitDecimal(s)
	if err != nil {
		return false
	}
	return strings.Trim(intPart, "0") == "" && strings.Trim(fracPart, "0") == ""
}

func splitDecimal(s string) (intPart, fracPart string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("amount is empty")
	}
	intPart = s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return "", "", fmt.Errorf("invalid amount %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, part := range []string{intPart, fracPart} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return "", "", fmt.Errorf("invalid amount %q: want a non-negative decimal", s)
			}
		}
	}
	return intPart, fracPart, nil
}
