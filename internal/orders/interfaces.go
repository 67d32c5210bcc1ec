package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists orders, their adjustment sets and denormalized totals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	ListAdjustments(ctx context.Context, orderID int64) ([]models.OrderAdjustment, error)
	ListTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error)
	// ReplaceAdjustments deletes every adjustment on the order and inserts rows.
	ReplaceAdjustments(ctx context.Context, orderID int64, rows []models.OrderAdjustment) error
	// SaveTotals writes totals when the order is still at expectedVersion and
	// bumps the version. It reports whether a row was updated.
	SaveTotals(ctx context.Context, orderID, expectedVersion int64, totals Totals) (bool, error)
	UpdatePaid(ctx context.Context, orderID, paid int64) error
	// Touch applies field updates and bumps the version.
	Touch(ctx context.Context, orderID int64, fields map[string]any) error
	MarkCompleted(ctx context.Context, orderID, expectedVersion int64, at time.Time) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderLocker interface {
	Lock(ctx context.Context, orderID int64) (func(), error)
}
