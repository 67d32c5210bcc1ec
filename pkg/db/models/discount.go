package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// Discount is a promotion rule. Monetary fields are minor units of the
// order currency; PercentDiscount is a fraction (0.10 = 10%).
type Discount struct {
	ID                   int64                      `gorm:"column:id;primaryKey;autoIncrement"`
	Name                 string                     `gorm:"column:name;not null"`
	Description          string                     `gorm:"column:description"`
	Code                 *string                    `gorm:"column:code;uniqueIndex"`
	PerUserLimit         int                        `gorm:"column:per_user_limit;not null;default:0"`
	PerEmailLimit        int                        `gorm:"column:per_email_limit;not null;default:0"`
	TotalUseLimit        int                        `gorm:"column:total_use_limit;not null;default:0"`
	TotalUses            int                        `gorm:"column:total_uses;not null;default:0"`
	DateFrom             *time.Time                 `gorm:"column:date_from"`
	DateTo               *time.Time                 `gorm:"column:date_to"`
	PurchaseTotal        int64                      `gorm:"column:purchase_total;not null;default:0"`
	PurchaseQty          int                        `gorm:"column:purchase_qty;not null;default:0"`
	MaxPurchaseQty       int                        `gorm:"column:max_purchase_qty;not null;default:0"`
	BaseDiscount         int64                      `gorm:"column:base_discount;not null;default:0"`
	PerItemDiscount      int64                      `gorm:"column:per_item_discount;not null;default:0"`
	PercentDiscount      decimal.Decimal            `gorm:"column:percent_discount;type:numeric(14,6);not null;default:0"`
	PercentageOffSubject enums.PercentageOffSubject `gorm:"column:percentage_off_subject;type:varchar(16);not null;default:'original'"`
	ExcludeOnSale        bool                       `gorm:"column:exclude_on_sale;not null;default:false"`
	FreeShipping         bool                       `gorm:"column:free_shipping;not null;default:false"`
	AllGroups            bool                       `gorm:"column:all_groups;not null"`
	UserGroupIDs         types.IDList               `gorm:"column:user_group_ids;type:jsonb"`
	AllPurchasables      bool                       `gorm:"column:all_purchasables;not null"`
	PurchasableIDs       types.IDList               `gorm:"column:purchasable_ids;type:jsonb"`
	AllCategories        bool                       `gorm:"column:all_categories;not null"`
	CategoryIDs          types.IDList               `gorm:"column:category_ids;type:jsonb"`
	AllowNegativeLines   bool                       `gorm:"column:allow_negative_lines;not null;default:false"`
	Enabled              bool                       `gorm:"column:enabled;not null"`
	StopProcessing       bool                       `gorm:"column:stop_processing;not null;default:false"`
	SortOrder            int                        `gorm:"column:sort_order;not null;default:0"`
	CreatedAt            time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomerDiscountUse counts redemptions of a discount by one customer.
type CustomerDiscountUse struct {
	ID         int64 `gorm:"column:id;primaryKey;autoIncrement"`
	DiscountID int64 `gorm:"column:discount_id;not null;uniqueIndex:ux_customer_discount_uses,priority:1"`
	CustomerID int64 `gorm:"column:customer_id;not null;uniqueIndex:ux_customer_discount_uses,priority:2"`
	Uses       int   `gorm:"column:uses;not null;default:0"`
}

// EmailDiscountUse counts redemptions of a discount by one email address.
type EmailDiscountUse struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	DiscountID int64  `gorm:"column:discount_id;not null;uniqueIndex:ux_email_discount_uses,priority:1"`
	Email      string `gorm:"column:email;not null;uniqueIndex:ux_email_discount_uses,priority:2"`
	Uses       int    `gorm:"column:uses;not null;default:0"`
}

// Sale lowers purchasable prices before discounts are evaluated.
type Sale struct {
	ID              int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	Name            string                 `gorm:"column:name;not null"`
	DateFrom        *time.Time             `gorm:"column:date_from"`
	DateTo          *time.Time             `gorm:"column:date_to"`
	DiscountType    enums.SaleDiscountType `gorm:"column:discount_type;type:varchar(16);not null"`
	PercentOff      decimal.Decimal        `gorm:"column:percent_off;type:numeric(14,6);not null;default:0"`
	FlatOff         int64                  `gorm:"column:flat_off;not null;default:0"`
	AllGroups       bool                   `gorm:"column:all_groups;not null"`
	UserGroupIDs    types.IDList           `gorm:"column:user_group_ids;type:jsonb"`
	AllPurchasables bool                   `gorm:"column:all_purchasables;not null"`
	PurchasableIDs  types.IDList           `gorm:"column:purchasable_ids;type:jsonb"`
	AllCategories   bool                   `gorm:"column:all_categories;not null"`
	CategoryIDs     types.IDList           `gorm:"column:category_ids;type:jsonb"`
	Enabled         bool                   `gorm:"column:enabled;not null"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
