// Package money holds the minor-unit monetary primitive used across pricing
// and the transaction ledger. Values are immutable; every operation returns a
// new Money. Arithmetic across currencies is rejected.
package money

import (
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/shopspring/decimal"
)

// Money is an amount in the smallest unit of its currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

var minorUnitsByCurrency = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"JOD": 3,
	"TND": 3,
}

// MinorUnits returns the number of decimal places for the currency.
func MinorUnits(currency string) int32 {
	if units, ok := minorUnitsByCurrency[normalize(currency)]; ok {
		return units
	}
	return 2
}

func normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: normalize(currency)}
}

func Zero(currency string) Money {
	return New(0, currency)
}

// FromMinorDecimal rounds a fractional minor-unit amount half away from zero.
// This is the single finalisation point for computed amounts.
func FromMinorDecimal(minor decimal.Decimal, currency string) Money {
	return New(minor.Round(0).IntPart(), currency)
}

// FromDecimal converts a major-unit decimal (e.g. 12.345 USD) to Money.
func FromDecimal(major decimal.Decimal, currency string) Money {
	return FromMinorDecimal(major.Shift(MinorUnits(currency)), currency)
}

// MinorDecimal exposes the amount as a decimal of minor units for rate math.
func (m Money) MinorDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Shift(-MinorUnits(m.Currency))
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsNegative() bool {
	return m.Amount < 0
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) SameCurrency(other Money) bool {
	return normalize(m.Currency) == normalize(other.Currency)
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.Amount+other.Amount, m.Currency), nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.Amount-other.Amount, m.Currency), nil
}

// Cmp returns -1, 0 or 1; currencies must match.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

func (m Money) Neg() Money {
	return New(-m.Amount, m.Currency)
}

func (m Money) MulInt(n int64) Money {
	return New(m.Amount*n, m.Currency)
}

// Convert applies an explicit exchange rate and rounds to the target currency.
func (m Money) Convert(rate decimal.Decimal, target string) (Money, error) {
	if !rate.IsPositive() {
		return Money{}, pkgerrors.New(pkgerrors.CodeValidation, "exchange rate must be positive")
	}
	major := m.Decimal().Mul(rate)
	return FromDecimal(major, target), nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(MinorUnits(m.Currency)), normalize(m.Currency))
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.SameCurrency(other) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "currency mismatch").
		WithDetails(map[string]any{"left": normalize(m.Currency), "right": normalize(other.Currency)})
}

// Sum adds values that must all share currency. An empty input yields zero in
// the given currency.
func Sum(currency string, values ...Money) (Money, error) {
	total := Zero(currency)
	for _, v := range values {
		var err error
		total, err = total.Add(v)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// Min returns the smaller of two same-currency values.
func Min(a, b Money) (Money, error) {
	cmp, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if cmp <= 0 {
		return a, nil
	}
	return b, nil
}

// Max returns the larger of two same-currency values.
func Max(a, b Money) (Money, error) {
	cmp, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if cmp >= 0 {
		return a, nil
	}
	return b, nil
}
