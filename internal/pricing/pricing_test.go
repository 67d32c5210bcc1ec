package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
)

func TestLineTotals(t *testing.T) {
	line := Line{
		ID:        1,
		Qty:       3,
		Price:     money.New(1000, "USD"),
		SalePrice: money.New(800, "USD"),
		Weight:    decimal.RequireFromString("1.5"),
	}
	assert.Equal(t, int64(2400), line.Subtotal().Amount)
	assert.True(t, line.OnSale())
	assert.True(t, line.TotalWeight().Equal(decimal.RequireFromString("4.5")))

	subtotal, err := ItemSubtotal("USD", []Line{line, {Qty: 1, SalePrice: money.New(100, "USD")}})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), subtotal.Amount)
	assert.Equal(t, 3, TotalQty([]Line{line}))

	_, err = ItemSubtotal("EUR", []Line{line})
	require.Error(t, err)
}

func TestSortStableGroupsByStage(t *testing.T) {
	adjs := []Adjustment{
		{Type: enums.AdjustmentTypeTax, Name: "tax"},
		{Type: enums.AdjustmentTypeDiscount, Name: "d1"},
		{Type: enums.AdjustmentTypeShipping, Name: "ship"},
		{Type: enums.AdjustmentTypeDiscount, Name: "d2"},
	}
	SortStable(adjs)
	names := []string{adjs[0].Name, adjs[1].Name, adjs[2].Name, adjs[3].Name}
	assert.Equal(t, []string{"d1", "d2", "ship", "tax"}, names)

	rows := ToModels(9, adjs)
	require.Len(t, rows, 4)
	assert.Equal(t, 3, rows[3].SortIndex)
	assert.Equal(t, int64(9), rows[0].OrderID)
	assert.Equal(t, "d1", FromModel(rows[0]).Name)
}
