package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// TaxZone groups destinations that share tax rates. Exactly one zone may be
// the default, used when no destination is known.
type TaxZone struct {
	ID           int64            `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string           `gorm:"column:name;not null"`
	CountryBased bool             `gorm:"column:country_based;not null"`
	Countries    types.StringList `gorm:"column:countries;type:jsonb"`
	States       types.StringList `gorm:"column:states;type:jsonb"`
	IsDefault    bool             `gorm:"column:is_default;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

type TaxCategory struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	Handle    string    `gorm:"column:handle;uniqueIndex;not null"`
	IsDefault bool      `gorm:"column:is_default;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TaxRate is a fractional rate (0.08 = 8%) applied to a taxable basis.
type TaxRate struct {
	ID         int64              `gorm:"column:id;primaryKey;autoIncrement"`
	ZoneID     int64              `gorm:"column:zone_id;not null;index"`
	CategoryID *int64             `gorm:"column:category_id"`
	Name       string             `gorm:"column:name;not null"`
	Rate       decimal.Decimal    `gorm:"column:rate;type:numeric(14,10);not null"`
	Include    bool               `gorm:"column:include;not null"`
	IsVat      bool               `gorm:"column:is_vat;not null"`
	Exclusive  bool               `gorm:"column:exclusive;not null"`
	Taxable    enums.TaxableBasis `gorm:"column:taxable;type:varchar(32);not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
