// Package money implements the exact-decimal currency engine: conversion
// between human decimal amounts and integer minor units, per-currency
// rounding, and commission computation.
//
// All arithmetic is performed on exact decimals (shopspring/decimal, a
// big.Int-backed representation) and arbitrary-precision integers; binary
// floating point never touches an amount. Rounding is half-up at the
// currency's minor-unit boundary, which keeps ToMinorUnits and Commission
// consistent with each other under common rates (8.5%, 12%, ...) where a
// float multiply-then-round drifts by a cent.
package money

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultDecimalPlaces applies to any currency code not present in the
// decimal-place table. This is a documented fallback, not a silent failure:
// unknown codes behave like two-decimal currencies.
const DefaultDecimalPlaces int32 = 2

// decimalPlaces enumerates the currencies whose minor unit is not 1/100.
// Everything absent from this table uses DefaultDecimalPlaces.
var decimalPlaces = map[string]int32{
	// Zero-decimal currencies.
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	// Three-decimal currencies.
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// ErrBadCurrency is returned for currency codes that are not three ASCII
// letters.
var ErrBadCurrency = errors.New("currency code must be three letters")

// ErrBadAmount is returned when an amount string cannot be parsed as an
// exact decimal.
var ErrBadAmount = errors.New("amount is not a valid decimal")

// NormalizeCode validates and canonicalizes a currency code. Well-known ISO
// 4217 codes are normalized through x/text; codes that are syntactically
// valid (three letters) but unknown to the ISO table are accepted uppercased
// and later treated as two-decimal currencies.
func NormalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return "", ErrBadCurrency
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String(), nil
	}
	for _, r := range code {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", ErrBadCurrency
		}
	}
	return strings.ToUpper(code), nil
}

// DecimalPlaces returns the number of minor-unit decimal places for code.
// Unknown codes fall back to DefaultDecimalPlaces.
func DecimalPlaces(code string) int32 {
	if p, ok := decimalPlaces[strings.ToUpper(code)]; ok {
		return p
	}
	return DefaultDecimalPlaces
}

// ParseAmount parses a human decimal amount exactly. It exists so callers
// never round-trip an amount through float64 (JSON numbers should be decoded
// as json.Number and handed here as strings).
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrBadAmount
	}
	return d, nil
}

// ToMinorUnits converts a human decimal amount into the smallest unit of the
// currency, rounding half-up at the currency's decimal-place boundary.
// The result is arbitrary precision.
//
// Examples: 12.345 USD -> 1235; 1999.6 JPY -> 2000; 1.2345 KWD -> 1235 (mils).
func ToMinorUnits(amount decimal.Decimal, code string) *big.Int {
	// Shift is exact; Round(0) is half away from zero, which is half-up for
	// the non-negative amounts this subsystem accepts.
	return amount.Shift(DecimalPlaces(code)).Round(0).BigInt()
}

// FromMinorUnits renders an integer minor-unit amount as a fixed-decimal
// string with exactly the currency's number of decimal places, e.g. "12.35"
// for USD cents and "2000" for JPY.
func FromMinorUnits(minor *big.Int, code string) string {
	places := DecimalPlaces(code)
	return decimal.NewFromBigInt(minor, -places).StringFixed(places)
}

// Commission computes minorGross * ratePercent / 100, rounded half-up to the
// currency's minor unit. Both the multiply and the divide happen on exact
// decimals, so e.g. 23900 minor at 12% is exactly 2868 and 10050 minor at
// 7.25% is exactly 729.
func Commission(minorGross *big.Int, ratePercent decimal.Decimal, code string) *big.Int {
	_ = code // the minor unit is already the rounding boundary
	return decimal.NewFromBigInt(minorGross, 0).
		Mul(ratePercent).
		Shift(-2).
		Round(0).
		BigInt()
}

// ParseRate parses a commission rate expressed in percent (e.g. "8.5").
// Rates must be in the interval [0, 100].
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.New("rate is not a valid decimal")
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, errors.New("rate must be between 0 and 100")
	}
	return d, nil
}
