package lineitems

import (
	"context"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages line item persistence and the catalog reads pricing
// needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByOrder(ctx context.Context, orderID int64) ([]models.LineItem, error)
	FindByID(ctx context.Context, orderID, id int64) (*models.LineItem, error)
	// Insert creates the row unless one with the same signature exists; it
	// reports whether a row was written.
	Insert(ctx context.Context, item *models.LineItem) (bool, error)
	IncrementQty(ctx context.Context, orderID, purchasableID int64, signature string, delta int) (*models.LineItem, error)
	SetQty(ctx context.Context, orderID, id int64, qty int) error
	SetSalePrice(ctx context.Context, orderID, id, salePrice, saleAmount int64) error
	Delete(ctx context.Context, orderID, id int64) error
	FindPurchasable(ctx context.Context, id int64) (*models.Purchasable, error)
	ListSales(ctx context.Context) ([]models.Sale, error)
}

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

func (r *repository) ListByOrder(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	var items []models.LineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) FindByID(ctx context.Context, orderID, id int64) (*models.LineItem, error) {
	var item models.LineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND id = ?", orderID, id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Insert(ctx context.Context, item *models.LineItem) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementQty(ctx context.Context, orderID, purchasableID int64, signature string, delta int) (*models.LineItem, error) {
	err := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("order_id = ? AND purchasable_id = ? AND options_signature = ?", orderID, purchasableID, signature).
		Updates(map[string]any{"qty": gorm.Expr("qty + ?", delta)}).Error
	if err != nil {
		return nil, err
	}

	var item models.LineItem
	err = r.db.WithContext(ctx).
		Where("order_id = ? AND purchasable_id = ? AND options_signature = ?", orderID, purchasableID, signature).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) SetQty(ctx context.Context, orderID, id int64, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("order_id = ? AND id = ?", orderID, id).
		Update("qty", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SetSalePrice(ctx context.Context, orderID, id, salePrice, saleAmount int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("order_id = ? AND id = ?", orderID, id).
		Updates(map[string]any{"sale_price": salePrice, "sale_amount": saleAmount})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orderID, id int64) error {
	res := r.db.WithContext(ctx).
		Where("order_id = ? AND id = ?", orderID, id).
		Delete(&models.LineItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindPurchasable(ctx context.Context, id int64) (*models.Purchasable, error) {
	var p models.Purchasable
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListSales(ctx context.Context) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("id ASC").
		Find(&sales).Error
	return sales, err
}
