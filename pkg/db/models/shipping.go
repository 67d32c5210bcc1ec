package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// ShippingZone groups countries (or country-states) a rule applies to.
type ShippingZone struct {
	ID           int64            `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string           `gorm:"column:name;not null"`
	CountryBased bool             `gorm:"column:country_based;not null"`
	Countries    types.StringList `gorm:"column:countries;type:jsonb"`
	States       types.StringList `gorm:"column:states;type:jsonb"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

type ShippingMethod struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	Handle    string    `gorm:"column:handle;uniqueIndex;not null"`
	Enabled   bool      `gorm:"column:enabled;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ShippingRule prices a method inside a zone. A nil ZoneID applies
// everywhere. Bounds of zero are unbounded.
type ShippingRule struct {
	ID             int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	MethodID       int64                  `gorm:"column:method_id;not null;index"`
	ZoneID         *int64                 `gorm:"column:zone_id"`
	Name           string                 `gorm:"column:name;not null"`
	Description    string                 `gorm:"column:description"`
	Priority       int                    `gorm:"column:priority;not null;default:0"`
	Enabled        bool                   `gorm:"column:enabled;not null"`
	MinQty         int                    `gorm:"column:min_qty;not null;default:0"`
	MaxQty         int                    `gorm:"column:max_qty;not null;default:0"`
	MinTotal       int64                  `gorm:"column:min_total;not null;default:0"`
	MaxTotal       int64                  `gorm:"column:max_total;not null;default:0"`
	MinWeight      decimal.Decimal        `gorm:"column:min_weight;type:numeric(14,4);not null;default:0"`
	MaxWeight      decimal.Decimal        `gorm:"column:max_weight;type:numeric(14,4);not null;default:0"`
	BaseRate       int64                  `gorm:"column:base_rate;not null;default:0"`
	PerItemRate    int64                  `gorm:"column:per_item_rate;not null;default:0"`
	WeightRate     int64                  `gorm:"column:weight_rate;not null;default:0"`
	PercentageRate decimal.Decimal        `gorm:"column:percentage_rate;type:numeric(14,6);not null;default:0"`
	MinRate        int64                  `gorm:"column:min_rate;not null;default:0"`
	MaxRate        int64                  `gorm:"column:max_rate;not null;default:0"`
	CategoryRules  []ShippingRuleCategory `gorm:"foreignKey:ShippingRuleID"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// ShippingRuleCategory constrains a rule by shipping category and can
// override its per-line rates.
type ShippingRuleCategory struct {
	ID                 int64                   `gorm:"column:id;primaryKey;autoIncrement"`
	ShippingRuleID     int64                   `gorm:"column:shipping_rule_id;not null;index"`
	ShippingCategoryID int64                   `gorm:"column:shipping_category_id;not null"`
	Condition          enums.CategoryCondition `gorm:"column:condition;type:varchar(16);not null"`
	PerItemRate        *int64                  `gorm:"column:per_item_rate"`
	WeightRate         *int64                  `gorm:"column:weight_rate"`
	PercentageRate     *decimal.Decimal        `gorm:"column:percentage_rate;type:numeric(14,6)"`
}
