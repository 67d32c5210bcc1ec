package orders

import (
	"github.com/angelmondragon/commerce-core/internal/pricing"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
)

// Totals is the order-level summary produced by a recalculation.
type Totals struct {
	OrderID          int64                `json:"order_id"`
	Currency         string               `json:"currency"`
	ItemTotal        money.Money          `json:"item_total"`
	TotalDiscount    money.Money          `json:"total_discount"`
	TotalShipping    money.Money          `json:"total_shipping"`
	TotalTax         money.Money          `json:"total_tax"`
	TotalTaxIncluded money.Money          `json:"total_tax_included"`
	TotalAdjustments money.Money          `json:"total_adjustments"`
	TotalPrice       money.Money          `json:"total_price"`
	TotalPaid        money.Money          `json:"total_paid"`
	Outstanding      money.Money          `json:"outstanding"`
	ShippingStatus   enums.ShippingStatus `json:"shipping_status"`
	CouponCode       string               `json:"coupon_code,omitempty"`
	IsCompleted      bool                 `json:"is_completed"`
	Adjustments      []pricing.Adjustment `json:"adjustments"`
}

// Balance is the payment view of an order.
type Balance struct {
	OrderID        int64                `json:"order_id"`
	TotalPrice     money.Money          `json:"total_price"`
	Paid           money.Money          `json:"paid"`
	Outstanding    money.Money          `json:"outstanding"`
	ShippingStatus enums.ShippingStatus `json:"shipping_status"`
	IsCompleted    bool                 `json:"is_completed"`
}

// TotalsOptions tunes ComputeTotals.
type TotalsOptions struct {
	AllowNegative  bool
	ShippingStatus enums.ShippingStatus
}

// ComputeTotals folds lines, adjustments and ledger entries into order totals.
// Included adjustments are reported but never change the total.
func ComputeTotals(currency string, lines []pricing.Line, adjustments []pricing.Adjustment, transactions []models.Transaction, opts TotalsOptions) (Totals, error) {
	t := Totals{
		Currency:         currency,
		TotalDiscount:    money.Zero(currency),
		TotalShipping:    money.Zero(currency),
		TotalTax:         money.Zero(currency),
		TotalTaxIncluded: money.Zero(currency),
		TotalAdjustments: money.Zero(currency),
		ShippingStatus:   opts.ShippingStatus,
		Adjustments:      adjustments,
	}
	if t.ShippingStatus == "" {
		t.ShippingStatus = enums.ShippingStatusNotRequested
	}
	if t.Adjustments == nil {
		t.Adjustments = []pricing.Adjustment{}
	}

	var err error
	if t.ItemTotal, err = pricing.ItemSubtotal(currency, lines); err != nil {
		return Totals{}, err
	}

	for _, adj := range adjustments {
		if adj.Included {
			if adj.Type == enums.AdjustmentTypeTax {
				if t.TotalTaxIncluded, err = t.TotalTaxIncluded.Add(adj.Amount); err != nil {
					return Totals{}, err
				}
			}
			continue
		}
		if t.TotalAdjustments, err = t.TotalAdjustments.Add(adj.Amount); err != nil {
			return Totals{}, err
		}
		bucket := bucketFor(&t, adj.Type)
		if bucket == nil {
			continue
		}
		if *bucket, err = bucket.Add(adj.Amount); err != nil {
			return Totals{}, err
		}
	}

	if t.TotalPrice, err = t.ItemTotal.Add(t.TotalAdjustments); err != nil {
		return Totals{}, err
	}
	if t.TotalPrice.IsNegative() && !opts.AllowNegative {
		t.TotalPrice = money.Zero(currency)
	}

	if t.TotalPaid, err = PaidFromTransactions(currency, transactions); err != nil {
		return Totals{}, err
	}
	if t.Outstanding, err = t.TotalPrice.Sub(t.TotalPaid); err != nil {
		return Totals{}, err
	}
	return t, nil
}

func bucketFor(t *Totals, kind enums.AdjustmentType) *money.Money {
	switch kind {
	case enums.AdjustmentTypeDiscount:
		return &t.TotalDiscount
	case enums.AdjustmentTypeShipping:
		return &t.TotalShipping
	case enums.AdjustmentTypeTax:
		return &t.TotalTax
	}
	return nil
}

// PaidFromTransactions sums successful captures and purchases and subtracts
// successful refunds.
func PaidFromTransactions(currency string, transactions []models.Transaction) (money.Money, error) {
	paid := money.Zero(currency)
	for _, tx := range transactions {
		if tx.Status != enums.TransactionStatusSuccess {
			continue
		}
		amount := money.New(tx.Amount, tx.Currency)
		var err error
		switch tx.Type {
		case enums.TransactionTypeCapture, enums.TransactionTypePurchase:
			paid, err = paid.Add(amount)
		case enums.TransactionTypeRefund:
			paid, err = paid.Sub(amount)
		}
		if err != nil {
			return money.Money{}, err
		}
	}
	return paid, nil
}

// BalanceOf combines the persisted total price with the ledger-derived paid
// amount.
func BalanceOf(order *models.Order, paid money.Money) Balance {
	total := money.New(order.TotalPrice, order.Currency)
	return Balance{
		OrderID:        order.ID,
		TotalPrice:     total,
		Paid:           paid,
		Outstanding:    money.New(total.Amount-paid.Amount, order.Currency),
		ShippingStatus: order.ShippingStatus,
		IsCompleted:    order.IsCompleted,
	}
}
