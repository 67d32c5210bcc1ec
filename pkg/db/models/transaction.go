package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// Transaction is an append-only ledger entry for one payment attempt.
// Captures and refunds reference their parent through ParentID.
type Transaction struct {
	ID              int64                   `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID         int64                   `gorm:"column:order_id;not null;index"`
	ParentID        *int64                  `gorm:"column:parent_id;index"`
	Gateway         string                  `gorm:"column:gateway;not null"`
	Hash            string                  `gorm:"column:hash;type:char(32);uniqueIndex;not null"`
	Type            enums.TransactionType   `gorm:"column:type;type:varchar(16);not null"`
	Status          enums.TransactionStatus `gorm:"column:status;type:varchar(16);not null"`
	Amount          int64                   `gorm:"column:amount;not null"`
	Currency        string                  `gorm:"column:currency;type:char(3);not null"`
	PaymentAmount   int64                   `gorm:"column:payment_amount;not null"`
	PaymentCurrency string                  `gorm:"column:payment_currency;type:char(3);not null"`
	PaymentRate     decimal.Decimal         `gorm:"column:payment_rate;type:numeric(14,6);not null"`
	Reference       string                  `gorm:"column:reference"`
	Code            string                  `gorm:"column:code"`
	Message         string                  `gorm:"column:message"`
	Response        json.RawMessage         `gorm:"column:response;type:jsonb"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentCurrency is an accepted settlement currency with its rate against
// the primary store currency.
type PaymentCurrency struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ISO       string          `gorm:"column:iso;type:char(3);uniqueIndex;not null"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(14,6);not null"`
	IsPrimary bool            `gorm:"column:is_primary;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
