// Package shipping selects a shipping rule for an order and prices it.
package shipping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/internal/pricing"
	"github.com/angelmondragon/commerce-core/internal/zones"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

const sourceType = "shipping_rule"

// Method is a selectable shipping option.
type Method struct {
	ID      int64
	Name    string
	Handle  string
	Enabled bool
}

// CategoryRule constrains a rule by shipping category and optionally
// overrides the per-line rates for lines in that category.
type CategoryRule struct {
	CategoryID     int64
	Condition      enums.CategoryCondition
	PerItemRate    *int64
	WeightRate     *int64
	PercentageRate *decimal.Decimal
}

// Rule prices one method inside one zone. ZoneID nil means everywhere.
// Zero bounds are unbounded; zero min/max rate disables clamping.
type Rule struct {
	ID             int64           `json:"id"`
	MethodID       int64           `json:"method_id"`
	ZoneID         *int64          `json:"zone_id,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Priority       int             `json:"priority"`
	Enabled        bool            `json:"enabled"`
	MinQty         int             `json:"min_qty"`
	MaxQty         int             `json:"max_qty"`
	MinTotal       int64           `json:"min_total"`
	MaxTotal       int64           `json:"max_total"`
	MinWeight      decimal.Decimal `json:"min_weight"`
	MaxWeight      decimal.Decimal `json:"max_weight"`
	BaseRate       int64           `json:"base_rate"`
	PerItemRate    int64           `json:"per_item_rate"`
	WeightRate     int64           `json:"weight_rate"`
	PercentageRate decimal.Decimal `json:"percentage_rate"`
	MinRate        int64           `json:"min_rate"`
	MaxRate        int64           `json:"max_rate"`
	Categories     []CategoryRule  `json:"categories,omitempty"`
}

// Catalog is the rule set the engine selects from.
type Catalog struct {
	Zones   []zones.Zone
	Methods []Method
	Rules   []Rule
}

// Input describes the order being shipped. Bounds and percentage rates use
// the undiscounted item subtotal.
type Input struct {
	Currency     string
	Lines        []pricing.Line
	Address      *types.Address
	MethodHandle string
	FreeShipping bool
}

// Quote is the engine outcome.
type Quote struct {
	Status     enums.ShippingStatus
	Adjustment *pricing.Adjustment
	RuleID     *int64
}

// Err returns an UNRESOLVED_RATE error when the address could not be
// resolved, and nil otherwise.
func (q Quote) Err() error {
	if q.Status != enums.ShippingStatusUnresolved {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeUnresolvedRate, "shipping address does not resolve to a shipping zone")
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Quote picks the first enabled rule (by priority, then id) whose zone and
// bounds match, and computes its rate.
func (e *Engine) Quote(in Input, catalog Catalog) (Quote, error) {
	handle := strings.TrimSpace(in.MethodHandle)
	if handle == "" {
		return Quote{Status: enums.ShippingStatusNotRequested}, nil
	}

	method, ok := findMethod(catalog.Methods, handle)
	candidates := rulesFor(catalog.Rules, method.ID, ok)

	resolved := zones.IDs(zones.Resolve(catalog.Zones, in.Address))
	if in.Address == nil || (len(resolved) == 0 && !hasZonelessRule(candidates)) {
		return Quote{Status: enums.ShippingStatusUnresolved}, nil
	}

	if !ok || !method.Enabled {
		return e.unavailable(in.Currency, handle), nil
	}

	itemTotal, err := pricing.ItemSubtotal(in.Currency, in.Lines)
	if err != nil {
		return Quote{}, err
	}
	qty := pricing.TotalQty(in.Lines)
	weight := totalWeight(in.Lines)

	for _, rule := range candidates {
		if rule.ZoneID != nil {
			if _, inZone := resolved[*rule.ZoneID]; !inZone {
				continue
			}
		}
		if !withinBounds(rule, qty, itemTotal.Amount, weight) {
			continue
		}
		if !categoriesSatisfied(rule, in.Lines) {
			continue
		}

		amount, err := rate(rule, in.Currency, in.Lines)
		if err != nil {
			return Quote{}, err
		}
		description := rule.Description
		if in.FreeShipping {
			amount = money.Zero(in.Currency)
			description = "free shipping"
		}
		adj := pricing.Adjustment{
			Type:           enums.AdjustmentTypeShipping,
			Name:           method.Name,
			Description:    description,
			Amount:         amount,
			SourceType:     sourceType,
			SourceID:       pricing.Ref(rule.ID),
			SourceSnapshot: pricing.Snapshot(rule),
		}
		return Quote{Status: enums.ShippingStatusResolved, Adjustment: &adj, RuleID: pricing.Ref(rule.ID)}, nil
	}

	return e.unavailable(in.Currency, method.Name), nil
}

func (e *Engine) unavailable(currency, name string) Quote {
	adj := pricing.Adjustment{
		Type:        enums.AdjustmentTypeShipping,
		Name:        name,
		Description: "shipping method unavailable for this order",
		Amount:      money.Zero(currency),
		SourceType:  sourceType,
	}
	return Quote{Status: enums.ShippingStatusUnavailable, Adjustment: &adj}
}

func findMethod(methods []Method, handle string) (Method, bool) {
	for _, m := range methods {
		if strings.EqualFold(m.Handle, handle) {
			return m, true
		}
	}
	return Method{}, false
}

func rulesFor(rules []Rule, methodID int64, methodKnown bool) []Rule {
	if !methodKnown {
		return nil
	}
	var out []Rule
	for _, r := range rules {
		if r.Enabled && r.MethodID == methodID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func hasZonelessRule(rules []Rule) bool {
	for _, r := range rules {
		if r.ZoneID == nil {
			return true
		}
	}
	return false
}

func totalWeight(lines []pricing.Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalWeight())
	}
	return total
}

func withinBounds(r Rule, qty int, itemTotal int64, weight decimal.Decimal) bool {
	if r.MinQty > 0 && qty < r.MinQty {
		return false
	}
	if r.MaxQty > 0 && qty > r.MaxQty {
		return false
	}
	if r.MinTotal > 0 && itemTotal < r.MinTotal {
		return false
	}
	if r.MaxTotal > 0 && itemTotal > r.MaxTotal {
		return false
	}
	if r.MinWeight.IsPositive() && weight.LessThan(r.MinWeight) {
		return false
	}
	if r.MaxWeight.IsPositive() && weight.GreaterThan(r.MaxWeight) {
		return false
	}
	return true
}

func categoriesSatisfied(r Rule, lines []pricing.Line) bool {
	present := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if l.ShippingCategoryID != nil {
			present[*l.ShippingCategoryID] = struct{}{}
		}
	}
	for _, c := range r.Categories {
		_, has := present[c.CategoryID]
		switch c.Condition {
		case enums.CategoryConditionDisallow:
			if has {
				return false
			}
		case enums.CategoryConditionRequire:
			if !has {
				return false
			}
		}
	}
	return true
}

func categoryOverride(r Rule, l pricing.Line) *CategoryRule {
	if l.ShippingCategoryID == nil {
		return nil
	}
	for i := range r.Categories {
		if r.Categories[i].CategoryID == *l.ShippingCategoryID {
			return &r.Categories[i]
		}
	}
	return nil
}

// rate = base + Σ(perItem×qty + weightRate×weight + pct×subtotal), clamped
// to [minRate, maxRate] when those are set.
func rate(r Rule, currency string, lines []pricing.Line) (money.Money, error) {
	total := decimal.NewFromInt(r.BaseRate)
	for _, l := range lines {
		perItem := r.PerItemRate
		weightRate := r.WeightRate
		pct := r.PercentageRate
		if o := categoryOverride(r, l); o != nil {
			if o.PerItemRate != nil {
				perItem = *o.PerItemRate
			}
			if o.WeightRate != nil {
				weightRate = *o.WeightRate
			}
			if o.PercentageRate != nil {
				pct = *o.PercentageRate
			}
		}
		total = total.
			Add(decimal.NewFromInt(perItem * int64(l.Qty))).
			Add(decimal.NewFromInt(weightRate).Mul(l.TotalWeight())).
			Add(l.Subtotal().MinorDecimal().Mul(pct))
	}

	amount := money.FromMinorDecimal(total, currency)
	if r.MinRate > 0 && amount.Amount < r.MinRate {
		amount = money.New(r.MinRate, currency)
	}
	if r.MaxRate > 0 && amount.Amount > r.MaxRate {
		amount = money.New(r.MaxRate, currency)
	}
	if amount.IsNegative() {
		return money.Money{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("shipping rule %d produced a negative rate", r.ID))
	}
	return amount, nil
}
