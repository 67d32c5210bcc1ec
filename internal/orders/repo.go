package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListAdjustments(ctx context.Context, orderID int64) ([]models.OrderAdjustment, error) {
	var rows []models.OrderAdjustment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sort_index ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ReplaceAdjustments(ctx context.Context, orderID int64, rows []models.OrderAdjustment) error {
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.OrderAdjustment{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) SaveTotals(ctx context.Context, orderID, expectedVersion int64, totals Totals) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", orderID, expectedVersion).
		Updates(map[string]any{
			"item_total":         totals.ItemTotal.Amount,
			"total_discount":     totals.TotalDiscount.Amount,
			"total_shipping":     totals.TotalShipping.Amount,
			"total_tax":          totals.TotalTax.Amount,
			"total_tax_included": totals.TotalTaxIncluded.Amount,
			"total_price":        totals.TotalPrice.Amount,
			"total_paid":         totals.TotalPaid.Amount,
			"shipping_status":    totals.ShippingStatus,
			"coupon_code":        nullableString(totals.CouponCode),
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdatePaid(ctx context.Context, orderID, paid int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total_paid", paid).Error
}

func (r *repository) Touch(ctx context.Context, orderID int64, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MarkCompleted(ctx context.Context, orderID, expectedVersion int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ? AND is_completed = ?", orderID, expectedVersion, false).
		Updates(map[string]any{
			"is_completed":   true,
			"date_completed": at,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
