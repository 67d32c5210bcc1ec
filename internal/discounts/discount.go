package discounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// Discount is the evaluator's view of a promotion rule. Monetary fields are
// minor units of the order currency.
type Discount struct {
	ID                   int64                      `json:"id"`
	Name                 string                     `json:"name"`
	Description          string                     `json:"description,omitempty"`
	Code                 string                     `json:"code,omitempty"`
	PerUserLimit         int                        `json:"per_user_limit"`
	PerEmailLimit        int                        `json:"per_email_limit"`
	TotalUseLimit        int                        `json:"total_use_limit"`
	TotalUses            int                        `json:"total_uses"`
	DateFrom             *time.Time                 `json:"date_from,omitempty"`
	DateTo               *time.Time                 `json:"date_to,omitempty"`
	PurchaseTotal        int64                      `json:"purchase_total"`
	PurchaseQty          int                        `json:"purchase_qty"`
	MaxPurchaseQty       int                        `json:"max_purchase_qty"`
	BaseDiscount         int64                      `json:"base_discount"`
	PerItemDiscount      int64                      `json:"per_item_discount"`
	PercentDiscount      decimal.Decimal            `json:"percent_discount"`
	PercentageOffSubject enums.PercentageOffSubject `json:"percentage_off_subject"`
	ExcludeOnSale        bool                       `json:"exclude_on_sale"`
	FreeShipping         bool                       `json:"free_shipping"`
	Groups               types.Scope                `json:"-"`
	Purchasables         types.Scope                `json:"-"`
	Categories           types.Scope                `json:"-"`
	AllowNegativeLines   bool                       `json:"allow_negative_lines"`
	Enabled              bool                       `json:"enabled"`
	StopProcessing       bool                       `json:"stop_processing"`
	SortOrder            int                        `json:"sort_order"`
}

// IsAutomatic reports whether the discount applies without a coupon.
func (d Discount) IsAutomatic() bool {
	return strings.TrimSpace(d.Code) == ""
}

// MatchesCode compares coupon codes case-insensitively.
func (d Discount) MatchesCode(code string) bool {
	return !d.IsAutomatic() && strings.EqualFold(strings.TrimSpace(d.Code), strings.TrimSpace(code))
}

// ActiveAt reports whether now falls in [DateFrom, DateTo).
func (d Discount) ActiveAt(now time.Time) bool {
	if d.DateFrom != nil && now.Before(*d.DateFrom) {
		return false
	}
	if d.DateTo != nil && !now.Before(*d.DateTo) {
		return false
	}
	return true
}

func FromModel(m models.Discount) Discount {
	code := ""
	if m.Code != nil {
		code = *m.Code
	}
	subject := m.PercentageOffSubject
	if !subject.IsValid() {
		subject = enums.PercentageOffSubjectOriginal
	}
	return Discount{
		ID:                   m.ID,
		Name:                 m.Name,
		Description:          m.Description,
		Code:                 code,
		PerUserLimit:         m.PerUserLimit,
		PerEmailLimit:        m.PerEmailLimit,
		TotalUseLimit:        m.TotalUseLimit,
		TotalUses:            m.TotalUses,
		DateFrom:             m.DateFrom,
		DateTo:               m.DateTo,
		PurchaseTotal:        m.PurchaseTotal,
		PurchaseQty:          m.PurchaseQty,
		MaxPurchaseQty:       m.MaxPurchaseQty,
		BaseDiscount:         m.BaseDiscount,
		PerItemDiscount:      m.PerItemDiscount,
		PercentDiscount:      m.PercentDiscount,
		PercentageOffSubject: subject,
		ExcludeOnSale:        m.ExcludeOnSale,
		FreeShipping:         m.FreeShipping,
		Groups:               types.ScopeOf(m.AllGroups, m.UserGroupIDs),
		Purchasables:         types.ScopeOf(m.AllPurchasables, m.PurchasableIDs),
		Categories:           types.ScopeOf(m.AllCategories, m.CategoryIDs),
		AllowNegativeLines:   m.AllowNegativeLines,
		Enabled:              m.Enabled,
		StopProcessing:       m.StopProcessing,
		SortOrder:            m.SortOrder,
	}
}

// Usage is a snapshot of redemption counters for the order's customer and
// email, keyed by discount id.
type Usage struct {
	ByCustomer map[int64]int
	ByEmail    map[int64]int
}
