package models

import (
	"time"

	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// Order is the cart/order aggregate whose totals are owned by the pricing
// pipeline. Version guards concurrent recalculations.
type Order struct {
	ID                   int64                `gorm:"column:id;primaryKey;autoIncrement"`
	Number               string               `gorm:"column:number;type:varchar(32);uniqueIndex;not null"`
	Currency             string               `gorm:"column:currency;type:char(3);not null"`
	CustomerID           *int64               `gorm:"column:customer_id"`
	Email                string               `gorm:"column:email"`
	UserGroupIDs         types.IDList         `gorm:"column:user_group_ids;type:jsonb"`
	CouponCode           *string              `gorm:"column:coupon_code"`
	ShippingMethodHandle *string              `gorm:"column:shipping_method_handle"`
	ShippingAddress      *types.Address       `gorm:"column:shipping_address;type:jsonb"`
	BillingAddress       *types.Address       `gorm:"column:billing_address;type:jsonb"`
	BusinessTaxID        *string              `gorm:"column:business_tax_id"`
	ItemTotal            int64                `gorm:"column:item_total;not null;default:0"`
	TotalDiscount        int64                `gorm:"column:total_discount;not null;default:0"`
	TotalShipping        int64                `gorm:"column:total_shipping;not null;default:0"`
	TotalTax             int64                `gorm:"column:total_tax;not null;default:0"`
	TotalTaxIncluded     int64                `gorm:"column:total_tax_included;not null;default:0"`
	TotalPrice           int64                `gorm:"column:total_price;not null;default:0"`
	TotalPaid            int64                `gorm:"column:total_paid;not null;default:0"`
	ShippingStatus       enums.ShippingStatus `gorm:"column:shipping_status;type:varchar(32);not null;default:'not_requested'"`
	IsCompleted          bool                 `gorm:"column:is_completed;not null;default:false"`
	DateCompleted        *time.Time           `gorm:"column:date_completed"`
	Version              int64                `gorm:"column:version;not null;default:0"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
