package discounts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/internal/pricing"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func usd(amount int64) money.Money {
	return money.New(amount, "USD")
}

func line(id, purchasableID int64, qty int, unit int64, categories ...int64) pricing.Line {
	return pricing.Line{
		ID:            id,
		PurchasableID: purchasableID,
		Qty:           qty,
		Price:         usd(unit),
		SalePrice:     usd(unit),
		CategoryIDs:   categories,
	}
}

func automatic(id int64, name string) Discount {
	return Discount{
		ID:                   id,
		Name:                 name,
		Enabled:              true,
		Groups:               types.AllowAll(),
		Purchasables:         types.AllowAll(),
		Categories:           types.AllowAll(),
		PercentageOffSubject: enums.PercentageOffSubjectOriginal,
	}
}

func input(lines ...pricing.Line) Input {
	return Input{Currency: "USD", Lines: lines, Now: now}
}

func TestEvaluate_TenPercentOffOriginal(t *testing.T) {
	d := automatic(1, "Ten off")
	d.PercentDiscount = decimal.RequireFromString("0.10")

	res, err := NewEvaluator().Evaluate(input(line(11, 100, 2, 2500)), []Discount{d})
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 1)

	adj := res.Adjustments[0]
	assert.Equal(t, enums.AdjustmentTypeDiscount, adj.Type)
	assert.Equal(t, usd(-500), adj.Amount)
	require.NotNil(t, adj.LineItemID)
	assert.Equal(t, int64(11), *adj.LineItemID)
	assert.Equal(t, []int64{1}, res.AppliedDiscountIDs)
	assert.Equal(t, usd(-500), res.LineDiscounts[11])
	assert.NotEmpty(t, adj.SourceSnapshot)
}

func TestEvaluate_StopProcessingHaltsLaterDiscounts(t *testing.T) {
	first := automatic(1, "first")
	first.PerItemDiscount = 100
	first.StopProcessing = true
	first.SortOrder = 1

	second := automatic(2, "second")
	second.PerItemDiscount = 200
	second.SortOrder = 2

	res, err := NewEvaluator().Evaluate(input(line(1, 100, 1, 1000)), []Discount{second, first})
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 1)
	assert.Equal(t, "first", res.Adjustments[0].Name)
	assert.Equal(t, []int64{1}, res.AppliedDiscountIDs)

	first.StopProcessing = false
	res, err = NewEvaluator().Evaluate(input(line(1, 100, 1, 1000)), []Discount{second, first})
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 2)
	assert.Equal(t, "second", res.Adjustments[1].Name)
}

func TestEvaluate_DiscountedSubjectCompounds(t *testing.T) {
	flat := automatic(1, "flat")
	flat.PerItemDiscount = 1000
	pct := automatic(2, "pct")
	pct.SortOrder = 1
	pct.PercentDiscount = decimal.RequireFromString("0.5")
	pct.PercentageOffSubject = enums.PercentageOffSubjectDiscounted

	res, err := NewEvaluator().Evaluate(input(line(1, 100, 1, 5000)), []Discount{flat, pct})
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 2)
	assert.Equal(t, usd(-1000), res.Adjustments[0].Amount)
	assert.Equal(t, usd(-2000), res.Adjustments[1].Amount)

	pct.PercentageOffSubject = enums.PercentageOffSubjectOriginal
	res, err = NewEvaluator().Evaluate(input(line(1, 100, 1, 5000)), []Discount{flat, pct})
	require.NoError(t, err)
	assert.Equal(t, usd(-2500), res.Adjustments[1].Amount)
}

func TestEvaluate_CapsAtLineSubtotal(t *testing.T) {
	d := automatic(1, "huge")
	d.PerItemDiscount = 5000
	res, err := NewEvaluator().Evaluate(input(line(1, 100, 2, 1000)), []Discount{d})
	require.NoError(t, err)
	assert.Equal(t, usd(-2000), res.Adjustments[0].Amount)

	d.AllowNegativeLines = true
	res, err = NewEvaluator().Evaluate(input(line(1, 100, 2, 1000)), []Discount{d})
	require.NoError(t, err)
	assert.Equal(t, usd(-10000), res.Adjustments[0].Amount)
}

func TestEvaluate_BaseDiscountIsOrderLevel(t *testing.T) {
	d := automatic(1, "base")
	d.BaseDiscount = 700
	res, err := NewEvaluator().Evaluate(input(line(1, 100, 1, 500)), []Discount{d})
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 1)
	assert.Nil(t, res.Adjustments[0].LineItemID)
	assert.Equal(t, usd(-500), res.Adjustments[0].Amount)
	assert.Equal(t, usd(-500), res.OrderDiscount)
}

func TestEvaluate_Eligibility(t *testing.T) {
	customer := int64(7)
	cases := []struct {
		name    string
		mutate  func(d *Discount, in *Input)
		applies bool
	}{
		{name: "disabled", mutate: func(d *Discount, _ *Input) { d.Enabled = false }},
		{name: "coupon required", mutate: func(d *Discount, _ *Input) { d.Code = "SAVE10" }},
		{name: "coupon case insensitive", mutate: func(d *Discount, in *Input) { d.Code = "SAVE10"; in.CouponCode = " save10 " }, applies: true},
		{name: "not started", mutate: func(d *Discount, _ *Input) { from := now.Add(time.Hour); d.DateFrom = &from }},
		{name: "expired at boundary", mutate: func(d *Discount, _ *Input) { to := now; d.DateTo = &to }},
		{name: "total uses exhausted", mutate: func(d *Discount, _ *Input) { d.TotalUseLimit = 3; d.TotalUses = 3 }},
		{name: "per user needs customer", mutate: func(d *Discount, _ *Input) { d.PerUserLimit = 1 }},
		{name: "per user under limit", mutate: func(d *Discount, in *Input) {
			d.PerUserLimit = 2
			in.CustomerID = &customer
			in.Usage = Usage{ByCustomer: map[int64]int{1: 1}}
		}, applies: true},
		{name: "per email exhausted", mutate: func(d *Discount, in *Input) {
			d.PerEmailLimit = 1
			in.Email = "a@example.com"
			in.Usage = Usage{ByEmail: map[int64]int{1: 1}}
		}},
		{name: "group mismatch", mutate: func(d *Discount, in *Input) { d.Groups = types.Explicit(4); in.UserGroupIDs = []int64{5} }},
		{name: "category mismatch", mutate: func(d *Discount, _ *Input) { d.Categories = types.Explicit(99) }},
		{name: "purchase total unmet", mutate: func(d *Discount, _ *Input) { d.PurchaseTotal = 100000 }},
		{name: "purchase qty unmet", mutate: func(d *Discount, _ *Input) { d.PurchaseQty = 5 }},
		{name: "max qty exceeded", mutate: func(d *Discount, _ *Input) { d.MaxPurchaseQty = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := automatic(1, "rule")
			d.PerItemDiscount = 100
			in := input(line(1, 100, 2, 1000, 3))
			tc.mutate(&d, &in)

			res, err := NewEvaluator().Evaluate(in, []Discount{d})
			require.NoError(t, err)
			assert.Equal(t, tc.applies, len(res.Adjustments) == 1)
		})
	}
}

func TestEvaluate_ExcludeOnSaleSkipsSaleLines(t *testing.T) {
	d := automatic(1, "no sale items")
	d.PerItemDiscount = 100
	d.ExcludeOnSale = true

	sale := line(1, 100, 1, 1000)
	sale.SalePrice = usd(800)
	full := line(2, 200, 1, 1000)

	res, err := NewEvaluator().Evaluate(input(sale, full), []Discount{d})
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 1)
	assert.Equal(t, int64(2), *res.Adjustments[0].LineItemID)
}

func TestEvaluate_FreeShippingMarksApplied(t *testing.T) {
	d := automatic(1, "free ship")
	d.FreeShipping = true
	res, err := NewEvaluator().Evaluate(input(line(1, 100, 1, 1000)), []Discount{d})
	require.NoError(t, err)
	assert.True(t, res.FreeShipping)
	assert.Empty(t, res.Adjustments)
	assert.Equal(t, []int64{1}, res.AppliedDiscountIDs)
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	a := automatic(2, "a")
	a.PerItemDiscount = 50
	b := automatic(1, "b")
	b.PerItemDiscount = 75
	in := input(line(2, 200, 1, 1000), line(1, 100, 3, 400))

	first, err := NewEvaluator().Evaluate(in, []Discount{a, b})
	require.NoError(t, err)
	second, err := NewEvaluator().Evaluate(in, []Discount{b, a})
	require.NoError(t, err)
	assert.Equal(t, first.Adjustments, second.Adjustments)
	assert.Equal(t, "b", first.Adjustments[0].Name)
}

func TestEvaluate_RejectsMixedCurrencies(t *testing.T) {
	l := line(1, 100, 1, 1000)
	l.SalePrice = money.New(1000, "EUR")
	_, err := NewEvaluator().Evaluate(input(l), []Discount{automatic(1, "x")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestValidateCoupon(t *testing.T) {
	d := automatic(1, "coupon")
	d.Code = "WELCOME"
	d.PerItemDiscount = 100
	d.PurchaseTotal = 5000
	expired := automatic(2, "old")
	expired.Code = "OLD"
	to := now.Add(-time.Hour)
	expired.DateTo = &to

	in := input(line(1, 100, 1, 1000))
	all := []Discount{d, expired}

	require.NoError(t, ValidateCoupon("", in, all))

	err := ValidateCoupon("nope", in, all)
	require.Error(t, err)
	assert.Equal(t, "coupon not found", pkgerrors.As(err).Message())

	err = ValidateCoupon("old", in, all)
	assert.Equal(t, "coupon expired", pkgerrors.As(err).Message())

	err = ValidateCoupon("welcome", in, all)
	assert.Equal(t, "coupon requires a minimum purchase", pkgerrors.As(err).Message())

	require.NoError(t, ValidateCoupon("WELCOME", input(line(1, 100, 5, 1000)), all))
}
