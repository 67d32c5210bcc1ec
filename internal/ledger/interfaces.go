package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists ledger transactions. Rows are never deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id int64) (*models.Transaction, error)
	FindByHash(ctx context.Context, hash string) (*models.Transaction, error)
	// LockByID loads the row with a FOR UPDATE lock for the rest of the
	// surrounding transaction.
	LockByID(ctx context.Context, id int64) (*models.Transaction, error)
	ListByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error)
	ListChildren(ctx context.Context, parentID int64, txnType enums.TransactionType) ([]models.Transaction, error)
	// UpdateStatus applies update only while the row is still in status from.
	UpdateStatus(ctx context.Context, id int64, from enums.TransactionStatus, update StatusUpdate) (bool, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error)
}

// StatusUpdate carries the fields written on a status transition. Empty
// Reference keeps the stored one.
type StatusUpdate struct {
	Status    enums.TransactionStatus
	Reference string
	Code      string
	Message   string
	Response  json.RawMessage
	At        time.Time
}

// Balances is the slice of the order service the ledger depends on.
type Balances interface {
	GetBalance(ctx context.Context, orderID int64) (*orders.Balance, error)
	RefreshPaid(ctx context.Context, orderID int64) (*orders.Balance, error)
	WithOrderLock(ctx context.Context, orderID int64, fn func(ctx context.Context) error) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
