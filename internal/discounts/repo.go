package discounts

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Redemption identifies one use of a discount by an order.
type Redemption struct {
	DiscountID int64
	CustomerID *int64
	Email      string
}

// Repository manages discount rules and their usage counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListEnabled(ctx context.Context) ([]models.Discount, error)
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	UsageFor(ctx context.Context, customerID *int64, email string) (Usage, error)
	RecordUse(ctx context.Context, use Redemption) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discount repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListEnabled(ctx context.Context) ([]models.Discount, error) {
	var rows []models.Discount
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var row models.Discount
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UsageFor(ctx context.Context, customerID *int64, email string) (Usage, error) {
	usage := Usage{ByCustomer: map[int64]int{}, ByEmail: map[int64]int{}}

	if customerID != nil {
		var rows []models.CustomerDiscountUse
		if err := r.db.WithContext(ctx).Where("customer_id = ?", *customerID).Find(&rows).Error; err != nil {
			return Usage{}, err
		}
		for _, row := range rows {
			usage.ByCustomer[row.DiscountID] = row.Uses
		}
	}

	email = normalizeEmail(email)
	if email != "" {
		var rows []models.EmailDiscountUse
		if err := r.db.WithContext(ctx).Where("email = ?", email).Find(&rows).Error; err != nil {
			return Usage{}, err
		}
		for _, row := range rows {
			usage.ByEmail[row.DiscountID] = row.Uses
		}
	}

	return usage, nil
}

// RecordUse increments the total, per-customer and per-email counters. Each
// increment is guarded by its limit in the UPDATE itself so concurrent
// completions cannot overshoot; an exhausted limit returns a conflict.
func (r *repository) RecordUse(ctx context.Context, use Redemption) error {
	var discount models.Discount
	if err := r.db.WithContext(ctx).First(&discount, use.DiscountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
		}
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ? AND (total_use_limit = 0 OR total_uses < total_use_limit)", use.DiscountID).
		UpdateColumn("total_uses", gorm.Expr("total_uses + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return usageExhausted(use.DiscountID)
	}

	if use.CustomerID != nil {
		if err := r.bumpCustomer(ctx, discount, *use.CustomerID); err != nil {
			return err
		}
	}
	if email := normalizeEmail(use.Email); email != "" {
		if err := r.bumpEmail(ctx, discount, email); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) bumpCustomer(ctx context.Context, discount models.Discount, customerID int64) error {
	return r.bump(ctx, &models.CustomerDiscountUse{}, "customer_id", customerID, discount.ID, discount.PerUserLimit,
		&models.CustomerDiscountUse{DiscountID: discount.ID, CustomerID: customerID, Uses: 1})
}

func (r *repository) bumpEmail(ctx context.Context, discount models.Discount, email string) error {
	return r.bump(ctx, &models.EmailDiscountUse{}, "email", email, discount.ID, discount.PerEmailLimit,
		&models.EmailDiscountUse{DiscountID: discount.ID, Email: email, Uses: 1})
}

// bump increments an existing counter row below limit (0 = unlimited), or
// inserts the first use. A concurrent first insert falls through to the
// guarded update on the next attempt.
func (r *repository) bump(ctx context.Context, model any, keyColumn string, key any, discountID int64, limit int, first any) error {
	guard := "discount_id = ? AND " + keyColumn + " = ?"
	args := []any{discountID, key}
	if limit > 0 {
		guard += " AND uses < ?"
		args = append(args, limit)
	}

	for attempt := 0; attempt < 2; attempt++ {
		res := r.db.WithContext(ctx).
			Model(model).
			Where(guard, args...).
			UpdateColumn("uses", gorm.Expr("uses + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var existing int64
		if err := r.db.WithContext(ctx).
			Model(model).
			Where("discount_id = ? AND "+keyColumn+" = ?", discountID, key).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return usageExhausted(discountID)
		}

		ins := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(first)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 1 {
			return nil
		}
	}
	return usageExhausted(discountID)
}

func usageExhausted(discountID int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "discount usage limit reached").
		WithDetails(map[string]any{"discount_id": discountID})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
