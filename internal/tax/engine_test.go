package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/internal/pricing"
	"github.com/angelmondragon/commerce-core/internal/zones"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

func usd(v int64) money.Money {
	return money.New(v, "USD")
}

func rate(id int64, pct string, basis enums.TaxableBasis) Rate {
	return Rate{ID: id, ZoneID: 1, Name: "Sales tax", Rate: decimal.RequireFromString(pct), Taxable: basis}
}

var (
	usZone = zones.Zone{ID: 1, Name: "US", CountryBased: true, Countries: []string{"US"}}
	euZone = zones.Zone{ID: 2, Name: "EU", CountryBased: true, Countries: []string{"DE", "FR"}, Default: true}
	dest   = &types.Address{Country: "US", State: "OR"}
)

func orderLine(id int64, qty int, unit int64) pricing.Line {
	return pricing.Line{ID: id, Qty: qty, Price: usd(unit), SalePrice: usd(unit)}
}

func TestCalculate_AdditivePriceShipping(t *testing.T) {
	in := Input{
		Currency:      "USD",
		Lines:         []pricing.Line{orderLine(1, 2, 2500)},
		LineDiscounts: map[int64]money.Money{1: usd(-500)},
		Shipping:      usd(500),
		Destination:   dest,
	}
	catalog := Catalog{Zones: []zones.Zone{usZone}, Rates: []Rate{rate(1, "0.08", enums.TaxableBasisPriceShipping)}}

	adjs, err := NewEngine().Calculate(in, catalog)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, usd(400), adjs[0].Amount)
	assert.False(t, adjs[0].Included)
	assert.Nil(t, adjs[0].LineItemID)
	assert.Equal(t, "8%", adjs[0].Description)
}

func TestCalculate_PriceBasisIsPerLineAndRespectsCategory(t *testing.T) {
	food := int64(3)
	a := orderLine(1, 1, 1000)
	b := orderLine(2, 1, 2000)
	b.TaxCategoryID = &food

	general := rate(1, "0.10", enums.TaxableBasisPrice)
	foodRate := rate(2, "0.05", enums.TaxableBasisPrice)
	foodRate.CategoryID = &food

	adjs, err := NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{b, a}, Destination: dest},
		Catalog{Zones: []zones.Zone{usZone}, Rates: []Rate{foodRate, general}})
	require.NoError(t, err)
	require.Len(t, adjs, 3)
	assert.Equal(t, int64(1), *adjs[0].LineItemID)
	assert.Equal(t, usd(100), adjs[0].Amount)
	assert.Equal(t, int64(2), *adjs[1].LineItemID)
	assert.Equal(t, usd(200), adjs[1].Amount)
	assert.Equal(t, usd(100), adjs[2].Amount)
	assert.Equal(t, int64(2), *adjs[2].SourceID)
}

func TestCalculate_InclusiveBeforeAdditive(t *testing.T) {
	vat := rate(5, "0.20", enums.TaxableBasisPrice)
	vat.Include = true
	levy := rate(1, "0.01", enums.TaxableBasisOrderTotalPrice)

	adjs, err := NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1200)}, Destination: dest},
		Catalog{Zones: []zones.Zone{usZone}, Rates: []Rate{levy, vat}})
	require.NoError(t, err)
	require.Len(t, adjs, 2)
	assert.True(t, adjs[0].Included)
	assert.Equal(t, usd(200), adjs[0].Amount)
	assert.False(t, adjs[1].Included)
	assert.Equal(t, usd(12), adjs[1].Amount)
}

func TestCalculate_DefaultZoneWithoutDestination(t *testing.T) {
	r := Rate{ID: 1, ZoneID: 2, Name: "EU", Rate: decimal.RequireFromString("0.1"), Taxable: enums.TaxableBasisOrderTotalShipping}
	adjs, err := NewEngine().Calculate(Input{Currency: "USD", Shipping: usd(1000)},
		Catalog{Zones: []zones.Zone{usZone, euZone}, Rates: []Rate{r}})
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, usd(100), adjs[0].Amount)

	adjs, err = NewEngine().Calculate(Input{Currency: "USD", Shipping: usd(1000), Destination: dest},
		Catalog{Zones: []zones.Zone{usZone, euZone}, Rates: []Rate{r}})
	require.NoError(t, err)
	assert.Empty(t, adjs)
}

func TestCalculate_RemovesDefaultZoneIncludedTaxOutsideZone(t *testing.T) {
	vat := Rate{ID: 1, ZoneID: 2, Name: "VAT", Rate: decimal.RequireFromString("0.25"), Include: true, IsVat: true, Taxable: enums.TaxableBasisPrice}
	catalog := Catalog{Zones: []zones.Zone{usZone, euZone}, Rates: []Rate{vat}}

	adjs, err := NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1250)}, Destination: dest}, catalog)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.False(t, adjs[0].Included)
	assert.Equal(t, usd(-250), adjs[0].Amount)

	germany := &types.Address{Country: "DE"}
	adjs, err = NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1250)}, Destination: germany, BusinessTaxID: "DE123"}, catalog)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, usd(-250), adjs[0].Amount)

	adjs, err = NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1250)}, Destination: germany}, catalog)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.True(t, adjs[0].Included)
	assert.Equal(t, usd(250), adjs[0].Amount)
}

func TestCalculate_ExclusiveRateWins(t *testing.T) {
	state := rate(1, "0.05", enums.TaxableBasisPrice)
	city := rate(2, "0.02", enums.TaxableBasisPrice)
	special := rate(3, "0.07", enums.TaxableBasisPrice)
	special.Exclusive = true

	adjs, err := NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1000)}, Destination: dest},
		Catalog{Zones: []zones.Zone{usZone}, Rates: []Rate{state, city, special}})
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, usd(70), adjs[0].Amount)
}

func TestCalculate_RoundsHalfUpPerAdjustment(t *testing.T) {
	adjs, err := NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1250)}, Destination: dest},
		Catalog{Zones: []zones.Zone{usZone}, Rates: []Rate{rate(1, "0.0625", enums.TaxableBasisPrice)}})
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	// 1250 * 0.0625 = 78.125
	assert.Equal(t, usd(78), adjs[0].Amount)

	adjs, err = NewEngine().Calculate(Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1000)}, Destination: dest},
		Catalog{Zones: []zones.Zone{usZone}, Rates: []Rate{rate(1, "0.0125", enums.TaxableBasisPrice)}})
	require.NoError(t, err)
	assert.Equal(t, usd(13), adjs[0].Amount)
}

func TestCalculate_UnknownBasisIsTyped(t *testing.T) {
	in := Input{Currency: "USD", Lines: []pricing.Line{orderLine(1, 1, 1000)}, Destination: dest}
	catalog := Catalog{Zones: []zones.Zone{usZone}, Rates: []Rate{rate(9, "0.05", enums.TaxableBasis("bogus"))}}

	_, err := NewEngine().Calculate(in, catalog)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]any{"rate_id": int64(9), "taxable": "bogus"}, typed.Details())
}
