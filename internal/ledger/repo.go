package ledger

import (
	"context"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStatuses = []enums.TransactionStatus{
	enums.TransactionStatusPending,
	enums.TransactionStatusRedirect,
	enums.TransactionStatusProcessing,
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) LockByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListChildren(ctx context.Context, parentID int64, txnType enums.TransactionType) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND type = ?", parentID, txnType).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, from enums.TransactionStatus, update StatusUpdate) (bool, error) {
	fields := map[string]any{
		"status":     update.Status,
		"code":       update.Code,
		"message":    update.Message,
		"updated_at": update.At,
	}
	if update.Reference != "" {
		fields["reference"] = update.Reference
	}
	if len(update.Response) > 0 {
		fields["response"] = update.Response
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListStale(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	q := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", openStatuses, before).
		Order("updated_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
