package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/types"
)

// LineItem is one purchasable+options combination on an order. The
// (order, purchasable, options signature) triple is unique.
type LineItem struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID            int64           `gorm:"column:order_id;not null;uniqueIndex:ux_line_items_signature,priority:1"`
	PurchasableID      int64           `gorm:"column:purchasable_id;not null;uniqueIndex:ux_line_items_signature,priority:2"`
	OptionsSignature   string          `gorm:"column:options_signature;type:char(32);not null;uniqueIndex:ux_line_items_signature,priority:3"`
	Options            json.RawMessage `gorm:"column:options;type:jsonb"`
	SKU                string          `gorm:"column:sku"`
	Description        string          `gorm:"column:description"`
	Price              int64           `gorm:"column:price;not null"`
	SalePrice          int64           `gorm:"column:sale_price;not null"`
	SaleAmount         int64           `gorm:"column:sale_amount;not null;default:0"`
	Qty                int             `gorm:"column:qty;not null"`
	Weight             decimal.Decimal `gorm:"column:weight;type:numeric(14,4);not null;default:0"`
	Length             decimal.Decimal `gorm:"column:length;type:numeric(14,4);not null;default:0"`
	Width              decimal.Decimal `gorm:"column:width;type:numeric(14,4);not null;default:0"`
	Height             decimal.Decimal `gorm:"column:height;type:numeric(14,4);not null;default:0"`
	CategoryIDs        types.IDList    `gorm:"column:category_ids;type:jsonb"`
	TaxCategoryID      *int64          `gorm:"column:tax_category_id"`
	ShippingCategoryID *int64          `gorm:"column:shipping_category_id"`
	Snapshot           json.RawMessage `gorm:"column:snapshot;type:jsonb"`
	Note               string          `gorm:"column:note"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Purchasable is the catalog entry a line item is priced from.
type Purchasable struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SKU                string          `gorm:"column:sku;uniqueIndex;not null"`
	Description        string          `gorm:"column:description;not null"`
	Price              int64           `gorm:"column:price;not null"`
	Currency           string          `gorm:"column:currency;type:char(3);not null"`
	Weight             decimal.Decimal `gorm:"column:weight;type:numeric(14,4);not null;default:0"`
	Length             decimal.Decimal `gorm:"column:length;type:numeric(14,4);not null;default:0"`
	Width              decimal.Decimal `gorm:"column:width;type:numeric(14,4);not null;default:0"`
	Height             decimal.Decimal `gorm:"column:height;type:numeric(14,4);not null;default:0"`
	CategoryIDs        types.IDList    `gorm:"column:category_ids;type:jsonb"`
	TaxCategoryID      *int64          `gorm:"column:tax_category_id"`
	ShippingCategoryID *int64          `gorm:"column:shipping_category_id"`
	Available          bool            `gorm:"column:available;not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
