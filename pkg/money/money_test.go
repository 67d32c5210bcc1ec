package money

import (
	"testing"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsCurrencyMismatch(t *testing.T) {
	_, err := New(100, "USD").Add(New(100, "EUR"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = New(100, "USD").Sub(New(1, "GBP"))
	require.Error(t, err)

	_, err = Sum("USD", New(1, "USD"), New(1, "JPY"))
	require.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	a := New(2500, "usd")
	assert.Equal(t, "USD", a.Currency)

	sum, err := a.Add(New(500, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), sum.Amount)

	diff, err := a.Sub(New(3000, "USD"))
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
	assert.Equal(t, int64(500), diff.Neg().Amount)
	assert.Equal(t, int64(5000), a.MulInt(2).Amount)

	total, err := Sum("USD")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	low, err := Min(New(3, "USD"), New(2, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), low.Amount)
}

func TestFromMinorDecimalRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0.5", 1},
		{"1.49", 1},
		{"2.5", 3},
		{"-2.5", -3},
		{"-0.4", 0},
	}
	for _, tc := range cases {
		got := FromMinorDecimal(decimal.RequireFromString(tc.in), "USD")
		assert.Equalf(t, tc.want, got.Amount, "input %s", tc.in)
	}
}

func TestMinorUnitsAndDecimal(t *testing.T) {
	assert.Equal(t, int32(0), MinorUnits("JPY"))
	assert.Equal(t, int32(3), MinorUnits("kwd"))
	assert.Equal(t, int32(2), MinorUnits("USD"))

	assert.Equal(t, "54.00 USD", New(5400, "USD").String())
	assert.True(t, New(1234, "USD").Decimal().Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, int64(1235), FromDecimal(decimal.RequireFromString("12.345"), "USD").Amount)
	assert.Equal(t, int64(12), FromDecimal(decimal.RequireFromString("12.4"), "JPY").Amount)
}

func TestConvertRequiresExplicitRate(t *testing.T) {
	converted, err := New(10000, "USD").Convert(decimal.RequireFromString("0.9"), "EUR")
	require.NoError(t, err)
	assert.Equal(t, New(9000, "EUR"), converted)

	yen, err := New(1050, "USD").Convert(decimal.RequireFromString("150"), "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(1575), yen.Amount)

	_, err = New(100, "USD").Convert(decimal.Zero, "EUR")
	require.Error(t, err)
}
