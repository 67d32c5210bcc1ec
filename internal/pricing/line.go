// Package pricing holds the value types that flow between the adjustment
// pipeline stages: priced lines in, adjustments out.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/money"
)

// Line is the pricing view of a line item.
type Line struct {
	ID                 int64
	PurchasableID      int64
	Description        string
	Qty                int
	Price              money.Money
	SalePrice          money.Money
	Weight             decimal.Decimal
	CategoryIDs        []int64
	TaxCategoryID      *int64
	ShippingCategoryID *int64
}

// Subtotal is the sale price times quantity.
func (l Line) Subtotal() money.Money {
	return l.SalePrice.MulInt(int64(l.Qty))
}

// OnSale reports whether a sale lowered the unit price.
func (l Line) OnSale() bool {
	return l.SalePrice.Amount < l.Price.Amount
}

// TotalWeight is weight times quantity.
func (l Line) TotalWeight() decimal.Decimal {
	return l.Weight.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// LineFromModel maps a persisted line item into the pricing view.
func LineFromModel(m models.LineItem, currency string) Line {
	return Line{
		ID:                 m.ID,
		PurchasableID:      m.PurchasableID,
		Description:        m.Description,
		Qty:                m.Qty,
		Price:              money.New(m.Price, currency),
		SalePrice:          money.New(m.SalePrice, currency),
		Weight:             m.Weight,
		CategoryIDs:        []int64(m.CategoryIDs),
		TaxCategoryID:      m.TaxCategoryID,
		ShippingCategoryID: m.ShippingCategoryID,
	}
}

// ItemSubtotal sums Subtotal over lines.
func ItemSubtotal(currency string, lines []Line) (money.Money, error) {
	total := money.Zero(currency)
	for _, l := range lines {
		var err error
		total, err = total.Add(l.Subtotal())
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

// TotalQty sums line quantities.
func TotalQty(lines []Line) int {
	qty := 0
	for _, l := range lines {
		qty += l.Qty
	}
	return qty
}
