// Package discounts evaluates promotion rules against an order and produces
// discount adjustments.
package discounts

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/internal/pricing"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
)

const sourceType = "discount"

// Input is everything the evaluator reads from the order.
type Input struct {
	Currency     string
	CouponCode   string
	CustomerID   *int64
	Email        string
	UserGroupIDs []int64
	Lines        []pricing.Line
	Now          time.Time
	Usage        Usage
}

// Result is the evaluator output consumed by the shipping and tax stages.
type Result struct {
	Adjustments []pricing.Adjustment
	// FreeShipping is set when a matching discount waives shipping.
	FreeShipping bool
	// AppliedDiscountIDs lists discounts that changed an amount or waived
	// shipping, in evaluation order.
	AppliedDiscountIDs []int64
	// LineDiscounts holds the cumulative (negative) discount per line id.
	LineDiscounts map[int64]money.Money
	// OrderDiscount is the cumulative (negative) order-level discount.
	OrderDiscount money.Money
}

// Evaluator is stateless; it is a struct so services can take it as a
// dependency.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate applies discounts in ascending sort order (ties by id).
func (e *Evaluator) Evaluate(in Input, discounts []Discount) (Result, error) {
	res := Result{
		LineDiscounts: make(map[int64]money.Money, len(in.Lines)),
		OrderDiscount: money.Zero(in.Currency),
	}
	for _, line := range in.Lines {
		res.LineDiscounts[line.ID] = money.Zero(in.Currency)
	}

	itemSubtotal, err := pricing.ItemSubtotal(in.Currency, in.Lines)
	if err != nil {
		return Result{}, err
	}

	ordered := make([]Discount, len(discounts))
	copy(ordered, discounts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SortOrder != ordered[j].SortOrder {
			return ordered[i].SortOrder < ordered[j].SortOrder
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, d := range ordered {
		if rejectReason(d, in) != "" {
			continue
		}
		matched := matchingLines(d, in.Lines)
		if len(matched) == 0 {
			continue
		}
		if thresholdReason(d, itemSubtotal, matched) != "" {
			continue
		}

		applied, err := e.apply(d, in.Currency, matched, &res)
		if err != nil {
			return Result{}, err
		}
		if d.FreeShipping {
			res.FreeShipping = true
			applied = true
		}
		if applied {
			res.AppliedDiscountIDs = append(res.AppliedDiscountIDs, d.ID)
		}
		if d.StopProcessing {
			break
		}
	}

	return res, nil
}

func (e *Evaluator) apply(d Discount, currency string, matched []pricing.Line, res *Result) (bool, error) {
	applied := false
	snapshot := pricing.Snapshot(d)

	for _, line := range matched {
		subtotal := line.Subtotal()
		soFar := res.LineDiscounts[line.ID]

		raw := decimal.NewFromInt(d.PerItemDiscount * int64(line.Qty))
		if d.PercentDiscount.IsPositive() {
			subject := subtotal
			if d.PercentageOffSubject == enums.PercentageOffSubjectDiscounted {
				var err error
				if subject, err = subtotal.Add(soFar); err != nil {
					return false, err
				}
			}
			if subject.IsPositive() {
				raw = raw.Add(subject.MinorDecimal().Mul(d.PercentDiscount))
			}
		}

		amount := money.FromMinorDecimal(raw, currency)
		if !d.AllowNegativeLines {
			remaining, err := subtotal.Add(soFar)
			if err != nil {
				return false, err
			}
			if remaining.IsNegative() {
				remaining = money.Zero(currency)
			}
			if amount, err = money.Min(amount, remaining); err != nil {
				return false, err
			}
		}
		if !amount.IsPositive() {
			continue
		}

		next, err := soFar.Sub(amount)
		if err != nil {
			return false, err
		}
		res.LineDiscounts[line.ID] = next
		res.Adjustments = append(res.Adjustments, pricing.Adjustment{
			Type:           enums.AdjustmentTypeDiscount,
			Name:           d.Name,
			Description:    describe(d),
			Amount:         amount.Neg(),
			LineItemID:     pricing.Ref(line.ID),
			SourceType:     sourceType,
			SourceID:       pricing.Ref(d.ID),
			SourceSnapshot: snapshot,
		})
		applied = true
	}

	if d.BaseDiscount > 0 {
		amount := money.New(d.BaseDiscount, currency)
		if !d.AllowNegativeLines {
			remaining := money.Zero(currency)
			for _, line := range matched {
				lineRemaining, err := line.Subtotal().Add(res.LineDiscounts[line.ID])
				if err != nil {
					return false, err
				}
				if remaining, err = remaining.Add(lineRemaining); err != nil {
					return false, err
				}
			}
			remaining, err := remaining.Add(res.OrderDiscount)
			if err != nil {
				return false, err
			}
			if remaining.IsNegative() {
				remaining = money.Zero(currency)
			}
			if amount, err = money.Min(amount, remaining); err != nil {
				return false, err
			}
		}
		if amount.IsPositive() {
			next, err := res.OrderDiscount.Sub(amount)
			if err != nil {
				return false, err
			}
			res.OrderDiscount = next
			res.Adjustments = append(res.Adjustments, pricing.Adjustment{
				Type:           enums.AdjustmentTypeDiscount,
				Name:           d.Name,
				Description:    describe(d),
				Amount:         amount.Neg(),
				SourceType:     sourceType,
				SourceID:       pricing.Ref(d.ID),
				SourceSnapshot: snapshot,
			})
			applied = true
		}
	}

	return applied, nil
}

func describe(d Discount) string {
	if d.Description != "" {
		return d.Description
	}
	if !d.IsAutomatic() {
		return "coupon " + strings.ToUpper(strings.TrimSpace(d.Code))
	}
	return ""
}

// rejectReason returns why the discount is not a candidate for this order,
// or "" when it is.
func rejectReason(d Discount, in Input) string {
	if !d.Enabled {
		return reasonNotFound
	}
	if !d.IsAutomatic() && !d.MatchesCode(in.CouponCode) {
		return reasonNotFound
	}
	if d.DateFrom != nil && in.Now.Before(*d.DateFrom) {
		return reasonNotStarted
	}
	if d.DateTo != nil && !in.Now.Before(*d.DateTo) {
		return reasonExpired
	}
	if d.TotalUseLimit > 0 && d.TotalUses >= d.TotalUseLimit {
		return reasonUsageReached
	}
	if d.PerUserLimit > 0 {
		if in.CustomerID == nil {
			return reasonNeedsCustomer
		}
		if in.Usage.ByCustomer[d.ID] >= d.PerUserLimit {
			return reasonUsageReached
		}
	}
	if d.PerEmailLimit > 0 {
		if strings.TrimSpace(in.Email) == "" {
			return reasonNeedsEmail
		}
		if in.Usage.ByEmail[d.ID] >= d.PerEmailLimit {
			return reasonUsageReached
		}
	}
	if !d.Groups.Matches(in.UserGroupIDs...) {
		return reasonGroup
	}
	return ""
}

func matchingLines(d Discount, lines []pricing.Line) []pricing.Line {
	var out []pricing.Line
	for _, line := range lines {
		if !d.Purchasables.Contains(line.PurchasableID) {
			continue
		}
		if !d.Categories.Matches(line.CategoryIDs...) {
			continue
		}
		if d.ExcludeOnSale && line.OnSale() {
			continue
		}
		out = append(out, line)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func thresholdReason(d Discount, itemSubtotal money.Money, matched []pricing.Line) string {
	if d.PurchaseTotal > 0 && itemSubtotal.Amount < d.PurchaseTotal {
		return reasonMinimumTotal
	}
	qty := pricing.TotalQty(matched)
	if d.PurchaseQty > 0 && qty < d.PurchaseQty {
		return reasonMinimumQty
	}
	if d.MaxPurchaseQty > 0 && qty > d.MaxPurchaseQty {
		return reasonMaximumQty
	}
	return ""
}
