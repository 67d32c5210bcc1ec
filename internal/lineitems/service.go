// Package lineitems owns the purchasable+options rows on an order.
package lineitems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"gorm.io/gorm"
)

// Service exposes line item mutations. Callers recalculate the order after
// any successful mutation.
type Service interface {
	Add(ctx context.Context, input AddInput) (*models.LineItem, error)
	UpdateQty(ctx context.Context, input UpdateInput) (*models.LineItem, error)
	Remove(ctx context.Context, orderID, lineItemID int64) error
	List(ctx context.Context, orderID int64) ([]models.LineItem, error)
	WithTx(tx *gorm.DB) Service
}

// AddInput captures a request to put a purchasable on an order.
type AddInput struct {
	OrderID       int64
	Currency      string
	UserGroupIDs  []int64
	PurchasableID int64
	Qty           int
	Options       map[string]any
	Note          string
}

// UpdateInput changes the quantity of an existing line. Currency and
// UserGroupIDs come from the order and drive the sale reprice.
type UpdateInput struct {
	OrderID      int64
	LineItemID   int64
	Qty          int
	Currency     string
	UserGroupIDs []int64
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a line item service backed by the provided repository.
func NewService(repo Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("line item repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

// Add inserts a new line or merges the quantity into the existing line with
// the same purchasable and options.
func (s *service) Add(ctx context.Context, input AddInput) (*models.LineItem, error) {
	if input.OrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.PurchasableID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchasable id is required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	signature, err := OptionsSignature(input.Options)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line item options")
	}

	purchasable, err := s.repo.FindPurchasable(ctx, input.PurchasableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchasable not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchasable")
	}
	if !purchasable.Available {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchasable is not available")
	}
	if !strings.EqualFold(purchasable.Currency, input.Currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchasable currency does not match order currency").
			WithDetails(map[string]any{"purchasable_currency": purchasable.Currency, "order_currency": input.Currency})
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales")
	}
	price := money.New(purchasable.Price, input.Currency)
	salePrice := ApplySales(price, SaleTarget{
		PurchasableID: purchasable.ID,
		CategoryIDs:   purchasable.CategoryIDs,
		UserGroupIDs:  input.UserGroupIDs,
	}, sales, s.now())

	options, err := json.Marshal(normalizeOptions(input.Options))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line item options")
	}
	snapshot, err := json.Marshal(purchasable)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "snapshot purchasable")
	}

	item := &models.LineItem{
		OrderID:            input.OrderID,
		PurchasableID:      purchasable.ID,
		OptionsSignature:   signature,
		Options:            options,
		SKU:                purchasable.SKU,
		Description:        purchasable.Description,
		Price:              price.Amount,
		SalePrice:          salePrice.Amount,
		SaleAmount:         salePrice.Amount - price.Amount,
		Qty:                input.Qty,
		Weight:             purchasable.Weight,
		Length:             purchasable.Length,
		Width:              purchasable.Width,
		Height:             purchasable.Height,
		CategoryIDs:        purchasable.CategoryIDs,
		TaxCategoryID:      purchasable.TaxCategoryID,
		ShippingCategoryID: purchasable.ShippingCategoryID,
		Snapshot:           snapshot,
		Note:               strings.TrimSpace(input.Note),
	}

	inserted, err := s.repo.Insert(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert line item")
	}
	if inserted {
		return item, nil
	}

	merged, err := s.repo.IncrementQty(ctx, input.OrderID, purchasable.ID, signature, input.Qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge line item")
	}
	if err := s.reprice(ctx, merged, input.Currency, input.UserGroupIDs); err != nil {
		return nil, err
	}
	return merged, nil
}

// UpdateQty sets a line's quantity and reprices it against the sales active
// now. Zero removes the line and returns nil.
func (s *service) UpdateQty(ctx context.Context, input UpdateInput) (*models.LineItem, error) {
	if input.Qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must not be negative")
	}
	if input.Qty == 0 {
		return nil, s.Remove(ctx, input.OrderID, input.LineItemID)
	}

	if err := s.repo.SetQty(ctx, input.OrderID, input.LineItemID, input.Qty); err != nil {
		return nil, mapLookupErr(err, "update line item")
	}
	item, err := s.repo.FindByID(ctx, input.OrderID, input.LineItemID)
	if err != nil {
		return nil, mapLookupErr(err, "load line item")
	}
	if err := s.reprice(ctx, item, input.Currency, input.UserGroupIDs); err != nil {
		return nil, err
	}
	return item, nil
}

// reprice recomputes the sale price from the line's stored price and writes it
// back when it moved.
func (s *service) reprice(ctx context.Context, item *models.LineItem, currency string, userGroupIDs []int64) error {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales")
	}
	salePrice := ApplySales(money.New(item.Price, currency), SaleTarget{
		PurchasableID: item.PurchasableID,
		CategoryIDs:   item.CategoryIDs,
		UserGroupIDs:  userGroupIDs,
	}, sales, s.now())
	if salePrice.Amount == item.SalePrice {
		return nil
	}
	saleAmount := salePrice.Amount - item.Price
	if err := s.repo.SetSalePrice(ctx, item.OrderID, item.ID, salePrice.Amount, saleAmount); err != nil {
		return mapLookupErr(err, "reprice line item")
	}
	item.SalePrice = salePrice.Amount
	item.SaleAmount = saleAmount
	return nil
}

func (s *service) Remove(ctx context.Context, orderID, lineItemID int64) error {
	if err := s.repo.Delete(ctx, orderID, lineItemID); err != nil {
		return mapLookupErr(err, "delete line item")
	}
	return nil
}

func (s *service) List(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	items, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list line items")
	}
	return items, nil
}

func normalizeOptions(options map[string]any) map[string]any {
	if options == nil {
		return map[string]any{}
	}
	return options
}

func mapLookupErr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
