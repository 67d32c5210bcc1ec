package lineitems

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// SaleTarget identifies what a sale is matched against.
type SaleTarget struct {
	PurchasableID int64
	CategoryIDs   []int64
	UserGroupIDs  []int64
}

// ApplySales returns the sale price for a purchasable. Every matching sale
// takes its reduction from the original price; reductions are summed and the
// result never drops below zero.
func ApplySales(price money.Money, target SaleTarget, sales []models.Sale, now time.Time) money.Money {
	takeoff := decimal.Zero
	for _, s := range sales {
		if !saleActive(s, now) {
			continue
		}
		if !types.ScopeOf(s.AllPurchasables, s.PurchasableIDs).Contains(target.PurchasableID) {
			continue
		}
		if !types.ScopeOf(s.AllCategories, s.CategoryIDs).Matches(target.CategoryIDs...) {
			continue
		}
		if !types.ScopeOf(s.AllGroups, s.UserGroupIDs).Matches(target.UserGroupIDs...) {
			continue
		}
		switch s.DiscountType {
		case enums.SaleDiscountTypePercent:
			takeoff = takeoff.Add(price.MinorDecimal().Mul(s.PercentOff))
		case enums.SaleDiscountTypeFlat:
			takeoff = takeoff.Add(decimal.NewFromInt(s.FlatOff))
		}
	}

	sale := money.FromMinorDecimal(price.MinorDecimal().Sub(takeoff), price.Currency)
	if sale.IsNegative() {
		return money.Zero(price.Currency)
	}
	return sale
}

func saleActive(s models.Sale, now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.DateFrom != nil && now.Before(*s.DateFrom) {
		return false
	}
	if s.DateTo != nil && !now.Before(*s.DateTo) {
		return false
	}
	return true
}
