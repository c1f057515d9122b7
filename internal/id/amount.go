package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// NormalizeAmount resolves either a base-unit integer string or a decimal
// string into a uint64 base-unit amount plus its normalized decimal rendering.
func NormalizeAmount(baseUnits, decimal string, decimals int) (uint64, string, error) {
	if baseUnits != "" && decimal != "" {
		return 0, "", clierr.New(clierr.CodeUsage, "use either --amount or --amount-decimal, not both")
	}
	if baseUnits == "" && decimal == "" {
		return 0, "", clierr.New(clierr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return 0, "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}

	if baseUnits != "" {
		v, err := strconv.ParseUint(strings.TrimSpace(baseUnits), 10, 64)
		if err != nil {
			return 0, "", clierr.New(clierr.CodeUsage, "--amount must be a non-negative integer in base units")
		}
		return v, FormatDecimal(v, decimals), nil
	}

	if !decimalPattern.MatchString(decimal) {
		return 0, "", clierr.New(clierr.CodeUsage, "--amount-decimal must be in decimal form like 1.23")
	}
	base, err := decimalToBaseUnits(decimal, decimals)
	if err != nil {
		return 0, "", err
	}
	return base, normalizeDecimal(decimal), nil
}

// FormatDecimal renders a base-unit amount as a decimal string.
func FormatDecimal(baseUnits uint64, decimals int) string {
	s := strconv.FormatUint(baseUnits, 10)
	if decimals == 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

func decimalToBaseUnits(decimal string, decimals int) (uint64, error) {
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return 0, clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds asset decimals (%d)", decimals))
	}

	combined := strings.TrimLeft(intPart+fracPart+strings.Repeat("0", decimals-len(fracPart)), "0")
	if combined == "" {
		return 0, nil
	}
	v, ok := new(big.Int).SetString(combined, 10)
	if !ok || !v.IsUint64() {
		return 0, clierr.New(clierr.CodeUsage, "decimal amount does not fit in a u64")
	}
	return v.Uint64(), nil
}

func normalizeDecimal(v string) string {
	if !strings.Contains(v, ".") {
		out := strings.TrimLeft(v, "0")
		if out == "" {
			return "0"
		}
		return out
	}
	parts := strings.SplitN(v, ".", 2)
	intPart := strings.TrimLeft(parts[0], "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart := strings.TrimRight(parts[1], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
