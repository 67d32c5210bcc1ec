package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/internal/pricing"
	"github.com/angelmondragon/commerce-core/internal/zones"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

func id(v int64) *int64 {
	return &v
}

func usLine(qty int, unit int64) pricing.Line {
	return pricing.Line{
		ID:        1,
		Qty:       qty,
		Price:     money.New(unit, "USD"),
		SalePrice: money.New(unit, "USD"),
		Weight:    decimal.RequireFromString("2"),
	}
}

var portland = &types.Address{Country: "US", State: "OR"}

func baseCatalog() Catalog {
	return Catalog{
		Zones:   []zones.Zone{{ID: 1, Name: "USA", CountryBased: true, Countries: []string{"US"}}},
		Methods: []Method{{ID: 10, Name: "Ground", Handle: "ground", Enabled: true}},
	}
}

func TestQuote_FlatEverywhereRule(t *testing.T) {
	catalog := baseCatalog()
	catalog.Rules = []Rule{{ID: 1, MethodID: 10, Name: "Free Everywhere", Enabled: true, BaseRate: 500}}

	q, err := NewEngine().Quote(Input{Currency: "USD", Lines: []pricing.Line{usLine(2, 2500)}, Address: portland, MethodHandle: "ground"}, catalog)
	require.NoError(t, err)
	assert.Equal(t, enums.ShippingStatusResolved, q.Status)
	require.NotNil(t, q.Adjustment)
	assert.Equal(t, money.New(500, "USD"), q.Adjustment.Amount)
	assert.Equal(t, "Ground", q.Adjustment.Name)
	assert.Nil(t, q.Adjustment.LineItemID)
	assert.NoError(t, q.Err())
}

func TestQuote_UnresolvedAddress(t *testing.T) {
	catalog := baseCatalog()
	catalog.Rules = []Rule{{ID: 1, MethodID: 10, ZoneID: id(1), Enabled: true, BaseRate: 500}}

	q, err := NewEngine().Quote(Input{Currency: "USD", Lines: []pricing.Line{usLine(1, 100)}, MethodHandle: "ground"}, catalog)
	require.NoError(t, err)
	assert.Equal(t, enums.ShippingStatusUnresolved, q.Status)
	assert.Nil(t, q.Adjustment)
	assert.True(t, pkgerrors.IsCode(q.Err(), pkgerrors.CodeUnresolvedRate))

	q, err = NewEngine().Quote(Input{Currency: "USD", Lines: []pricing.Line{usLine(1, 100)}, Address: &types.Address{Country: "FR"}, MethodHandle: "ground"}, catalog)
	require.NoError(t, err)
	assert.Equal(t, enums.ShippingStatusUnresolved, q.Status)
}

func TestQuote_NoMethodAndUnavailable(t *testing.T) {
	catalog := baseCatalog()
	catalog.Rules = []Rule{{ID: 1, MethodID: 10, ZoneID: id(1), Enabled: true, BaseRate: 500, MaxQty: 1}}

	q, err := NewEngine().Quote(Input{Currency: "USD", Address: portland}, catalog)
	require.NoError(t, err)
	assert.Equal(t, enums.ShippingStatusNotRequested, q.Status)

	q, err = NewEngine().Quote(Input{Currency: "USD", Lines: []pricing.Line{usLine(3, 100)}, Address: portland, MethodHandle: "ground"}, catalog)
	require.NoError(t, err)
	assert.Equal(t, enums.ShippingStatusUnavailable, q.Status)
	require.NotNil(t, q.Adjustment)
	assert.True(t, q.Adjustment.Amount.IsZero())

	q, err = NewEngine().Quote(Input{Currency: "USD", Lines: []pricing.Line{usLine(1, 100)}, Address: portland, MethodHandle: "drone"}, catalog)
	require.NoError(t, err)
	assert.Equal(t, enums.ShippingStatusUnavailable, q.Status)
}

func TestQuote_SelectionIsDeterministicByPriorityThenID(t *testing.T) {
	catalog := baseCatalog()
	catalog.Rules = []Rule{
		{ID: 3, MethodID: 10, ZoneID: id(1), Enabled: true, Priority: 1, BaseRate: 300},
		{ID: 2, MethodID: 10, ZoneID: id(1), Enabled: true, Priority: 0, BaseRate: 200},
		{ID: 1, MethodID: 10, ZoneID: id(1), Enabled: true, Priority: 0, BaseRate: 100},
		{ID: 0, MethodID: 10, ZoneID: id(1), Enabled: false, Priority: -1, BaseRate: 1},
	}
	in := Input{Currency: "USD", Lines: []pricing.Line{usLine(1, 100)}, Address: portland, MethodHandle: "GROUND"}

	for i := 0; i < 3; i++ {
		q, err := NewEngine().Quote(in, catalog)
		require.NoError(t, err)
		require.NotNil(t, q.RuleID)
		assert.Equal(t, int64(1), *q.RuleID)
		assert.Equal(t, int64(100), q.Adjustment.Amount.Amount)
		catalog.Rules[0], catalog.Rules[2] = catalog.Rules[2], catalog.Rules[0]
	}
}

func TestQuote_RateComponentsAndClamp(t *testing.T) {
	catalog := baseCatalog()
	rule := Rule{
		ID:             1,
		MethodID:       10,
		Enabled:        true,
		BaseRate:       100,
		PerItemRate:    50,
		WeightRate:     25,
		PercentageRate: decimal.RequireFromString("0.1"),
	}
	catalog.Rules = []Rule{rule}
	in := Input{Currency: "USD", Lines: []pricing.Line{usLine(2, 1000)}, Address: portland, MethodHandle: "ground"}

	// 100 + 50*2 + 25*4 + 0.1*2000
	q, err := NewEngine().Quote(in, catalog)
	require.NoError(t, err)
	assert.Equal(t, int64(500), q.Adjustment.Amount.Amount)

	catalog.Rules[0].MaxRate = 450
	q, err = NewEngine().Quote(in, catalog)
	require.NoError(t, err)
	assert.Equal(t, int64(450), q.Adjustment.Amount.Amount)

	catalog.Rules[0].MaxRate = 0
	catalog.Rules[0].MinRate = 900
	q, err = NewEngine().Quote(in, catalog)
	require.NoError(t, err)
	assert.Equal(t, int64(900), q.Adjustment.Amount.Amount)

	in.FreeShipping = true
	q, err = NewEngine().Quote(in, catalog)
	require.NoError(t, err)
	assert.True(t, q.Adjustment.Amount.IsZero())
	assert.Equal(t, "free shipping", q.Adjustment.Description)
}

func TestQuote_CategoryConditions(t *testing.T) {
	hazmat := int64(7)
	catalog := baseCatalog()
	catalog.Rules = []Rule{
		{ID: 1, MethodID: 10, Enabled: true, BaseRate: 100, Categories: []CategoryRule{{CategoryID: hazmat, Condition: enums.CategoryConditionDisallow}}},
		{ID: 2, MethodID: 10, Enabled: true, BaseRate: 900, PerItemRate: 10, Categories: []CategoryRule{{CategoryID: hazmat, Condition: enums.CategoryConditionRequire, PerItemRate: id(300)}}},
	}

	plain := usLine(1, 1000)
	q, err := NewEngine().Quote(Input{Currency: "USD", Lines: []pricing.Line{plain}, Address: portland, MethodHandle: "ground"}, catalog)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *q.RuleID)

	dangerous := usLine(2, 1000)
	dangerous.ShippingCategoryID = &hazmat
	q, err = NewEngine().Quote(Input{Currency: "USD", Lines: []pricing.Line{dangerous}, Address: portland, MethodHandle: "ground"}, catalog)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *q.RuleID)
	assert.Equal(t, int64(900+600), q.Adjustment.Amount.Amount)
}
