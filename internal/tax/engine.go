// Package tax computes tax adjustments from zone-scoped rates once all
// discount and shipping adjustments are known.
package tax

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/internal/pricing"
	"github.com/angelmondragon/commerce-core/internal/zones"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

const sourceType = "tax_rate"

var hundred = decimal.NewFromInt(100)

// Rate is a fractional tax rate bound to a zone and optionally a category.
type Rate struct {
	ID         int64              `json:"id"`
	ZoneID     int64              `json:"zone_id"`
	CategoryID *int64             `json:"category_id,omitempty"`
	Name       string             `json:"name"`
	Rate       decimal.Decimal    `json:"rate"`
	Include    bool               `json:"include"`
	IsVat      bool               `json:"is_vat"`
	Exclusive  bool               `json:"exclusive"`
	Taxable    enums.TaxableBasis `json:"taxable"`
}

func (r Rate) appliesToCategory(categoryID *int64) bool {
	if r.CategoryID == nil {
		return true
	}
	return categoryID != nil && *categoryID == *r.CategoryID
}

type Catalog struct {
	Zones []zones.Zone
	Rates []Rate
}

// Input carries the order state after discounts and shipping.
type Input struct {
	Currency      string
	Lines         []pricing.Line
	LineDiscounts map[int64]money.Money
	OrderDiscount money.Money
	Shipping      money.Money
	Destination   *types.Address
	BusinessTaxID string
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// application is one rate applied to one target (a line or an order-level
// basis) before exclusivity filtering.
type application struct {
	rate    Rate
	target  string
	lineID  *int64
	basis   money.Money
	removal bool
}

// Calculate runs inclusive rates before additive ones, each ordered by id.
// Inclusive amounts are informational; a removal (default-zone inclusive tax
// that does not apply at the destination, or VAT waived by a business tax
// id) lowers the total.
func (e *Engine) Calculate(in Input, catalog Catalog) ([]pricing.Adjustment, error) {
	dest := zones.Defaults(catalog.Zones)
	if in.Destination != nil {
		dest = zones.Resolve(catalog.Zones, in.Destination)
	}
	destIDs := zones.IDs(dest)
	defaultIDs := zones.IDs(zones.Defaults(catalog.Zones))
	vatExempt := strings.TrimSpace(in.BusinessTaxID) != ""

	rates := make([]Rate, len(catalog.Rates))
	copy(rates, catalog.Rates)
	sort.SliceStable(rates, func(i, j int) bool {
		if rates[i].Include != rates[j].Include {
			return rates[i].Include
		}
		return rates[i].ID < rates[j].ID
	})

	lineBases, err := e.lineBases(in)
	if err != nil {
		return nil, err
	}

	var apps []application
	for _, r := range rates {
		_, inDest := destIDs[r.ZoneID]
		exempt := r.IsVat && vatExempt
		removal := false
		if !inDest || exempt {
			_, isDefault := defaultIDs[r.ZoneID]
			if !r.Include || !isDefault {
				continue
			}
			removal = true
		}

		targets, err := e.targets(r, in, lineBases)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			t.removal = removal
			apps = append(apps, t)
		}
	}

	apps = applyExclusivity(apps)

	out := make([]pricing.Adjustment, 0, len(apps))
	for _, a := range apps {
		adj, ok := e.adjustment(a, in.Currency)
		if ok {
			out = append(out, adj)
		}
	}
	return out, nil
}

// lineBases returns each line's discounted subtotal, floored at zero.
func (e *Engine) lineBases(in Input) (map[int64]money.Money, error) {
	bases := make(map[int64]money.Money, len(in.Lines))
	for _, l := range in.Lines {
		basis := l.Subtotal()
		if d, ok := in.LineDiscounts[l.ID]; ok {
			var err error
			if basis, err = basis.Add(d); err != nil {
				return nil, err
			}
		}
		if basis.IsNegative() {
			basis = money.Zero(in.Currency)
		}
		bases[l.ID] = basis
	}
	return bases, nil
}

func (e *Engine) targets(r Rate, in Input, bases map[int64]money.Money) ([]application, error) {
	matching := money.Zero(in.Currency)
	all := money.Zero(in.Currency)
	anyMatch := false
	var lineApps []application

	for _, l := range sortedLines(in.Lines) {
		basis := bases[l.ID]
		var err error
		if all, err = all.Add(basis); err != nil {
			return nil, err
		}
		if !r.appliesToCategory(l.TaxCategoryID) {
			continue
		}
		anyMatch = true
		if matching, err = matching.Add(basis); err != nil {
			return nil, err
		}
		lineApps = append(lineApps, application{
			rate:   r,
			target: fmt.Sprintf("line:%d", l.ID),
			lineID: pricing.Ref(l.ID),
			basis:  basis,
		})
	}

	orderApp := func(basis money.Money) []application {
		return []application{{rate: r, target: "order:" + string(r.Taxable), basis: basis}}
	}

	switch r.Taxable {
	case enums.TaxableBasisPrice:
		return lineApps, nil
	case enums.TaxableBasisShipping:
		if !anyMatch {
			return nil, nil
		}
		return orderApp(in.Shipping), nil
	case enums.TaxableBasisPriceShipping:
		if !anyMatch {
			return nil, nil
		}
		basis, err := matching.Add(in.Shipping)
		if err != nil {
			return nil, err
		}
		return orderApp(basis), nil
	case enums.TaxableBasisOrderTotalPrice:
		basis, err := all.Add(orderDiscount(in))
		if err != nil {
			return nil, err
		}
		if basis.IsNegative() {
			basis = money.Zero(in.Currency)
		}
		return orderApp(basis), nil
	case enums.TaxableBasisOrderTotalShipping:
		return orderApp(in.Shipping), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("tax rate %d has unknown taxable basis %q", r.ID, r.Taxable)).
			WithDetails(map[string]any{"rate_id": r.ID, "taxable": string(r.Taxable)})
	}
}

func orderDiscount(in Input) money.Money {
	if in.OrderDiscount.Currency == "" {
		return money.Zero(in.Currency)
	}
	return in.OrderDiscount
}

func sortedLines(lines []pricing.Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// applyExclusivity keeps only the first exclusive rate for any target that
// has one, preserving order otherwise.
func applyExclusivity(apps []application) []application {
	winner := make(map[string]int64)
	for _, a := range apps {
		if !a.rate.Exclusive || a.removal {
			continue
		}
		if current, ok := winner[a.target]; !ok || a.rate.ID < current {
			winner[a.target] = a.rate.ID
		}
	}
	if len(winner) == 0 {
		return apps
	}
	out := apps[:0:0]
	for _, a := range apps {
		if id, ok := winner[a.target]; ok && !a.removal && a.rate.ID != id {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (e *Engine) adjustment(a application, currency string) (pricing.Adjustment, bool) {
	basis := a.basis.MinorDecimal()
	var raw decimal.Decimal
	if a.rate.Include {
		raw = basis.Sub(basis.Div(decimal.NewFromInt(1).Add(a.rate.Rate)))
	} else {
		raw = basis.Mul(a.rate.Rate)
	}
	amount := money.FromMinorDecimal(raw, currency)
	if amount.IsZero() {
		return pricing.Adjustment{}, false
	}

	description := a.rate.Rate.Mul(hundred).String() + "%"
	included := a.rate.Include
	if a.rate.Include {
		description += " inc"
	}
	if a.removal {
		amount = amount.Neg()
		included = false
		description += " removed"
	}

	return pricing.Adjustment{
		Type:           enums.AdjustmentTypeTax,
		Name:           a.rate.Name,
		Description:    description,
		Amount:         amount,
		Included:       included,
		LineItemID:     a.lineID,
		SourceType:     sourceType,
		SourceID:       pricing.Ref(a.rate.ID),
		SourceSnapshot: pricing.Snapshot(a.rate),
	}, true
}
