package models

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// OrderAdjustment is a signed modification to an order total. Rows are
// regenerated wholesale on every recalculation.
type OrderAdjustment struct {
	ID             int64                `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID        int64                `gorm:"column:order_id;not null;index"`
	LineItemID     *int64               `gorm:"column:line_item_id"`
	Type           enums.AdjustmentType `gorm:"column:type;type:varchar(16);not null"`
	Name           string               `gorm:"column:name;not null"`
	Description    string               `gorm:"column:description"`
	Amount         int64                `gorm:"column:amount;not null"`
	Currency       string               `gorm:"column:currency;type:char(3);not null"`
	Included       bool                 `gorm:"column:included;not null;default:false"`
	SourceType     string               `gorm:"column:source_type;not null"`
	SourceID       *int64               `gorm:"column:source_id"`
	SourceSnapshot json.RawMessage      `gorm:"column:source_snapshot;type:jsonb"`
	SortIndex      int                  `gorm:"column:sort_index;not null"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}
