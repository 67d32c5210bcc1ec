// Package orders recalculates order totals and serializes cart mutations per
// order.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/commerce-core/internal/discounts"
	"github.com/angelmondragon/commerce-core/internal/lineitems"
	"github.com/angelmondragon/commerce-core/internal/pricing"
	"github.com/angelmondragon/commerce-core/internal/shipping"
	"github.com/angelmondragon/commerce-core/internal/tax"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/money"
	"gorm.io/gorm"
)

// Service owns order pricing. Every mutation is followed by a full
// recalculation under the order lock.
type Service interface {
	Recalculate(ctx context.Context, orderID int64) (*Totals, error)
	GetTotals(ctx context.Context, orderID int64) (*Totals, error)
	GetBalance(ctx context.Context, orderID int64) (*Balance, error)
	RefreshPaid(ctx context.Context, orderID int64) (*Balance, error)
	AddLineItem(ctx context.Context, orderID int64, input LineItemInput) (*Totals, error)
	UpdateLineItemQty(ctx context.Context, orderID, lineItemID int64, qty int) (*Totals, error)
	RemoveLineItem(ctx context.Context, orderID, lineItemID int64) (*Totals, error)
	ApplyCoupon(ctx context.Context, orderID int64, code string) (*Totals, error)
	SetAddresses(ctx context.Context, orderID int64, input AddressesInput) (*Totals, error)
	SetShippingMethod(ctx context.Context, orderID int64, handle string) (*Totals, error)
	Complete(ctx context.Context, orderID int64) (*Totals, error)
	// WithOrderLock runs fn inside the order's critical section. fn must not
	// call back into locking methods of this service.
	WithOrderLock(ctx context.Context, orderID int64, fn func(ctx context.Context) error) error
}

// ServiceParams bundles the dependencies required to build an order service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Locker    orderLocker
	LineItems lineitems.Service
	Discounts discounts.Repository
	Shipping  shipping.Repository
	Tax       tax.Repository
	Pricing   config.PricingConfig
	Logger    *logger.Logger
	Metrics   *metrics.PricingMetrics
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	locker    orderLocker
	lines     lineitems.Service
	discounts discounts.Repository
	shipping  shipping.Repository
	tax       tax.Repository
	cfg       config.PricingConfig
	logg      *logger.Logger
	metrics   *metrics.PricingMetrics
	now       func() time.Time

	evaluator      *discounts.Evaluator
	shippingEngine *shipping.Engine
	taxEngine      *tax.Engine
}

// NewService constructs an order service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("order locker required")
	}
	if params.LineItems == nil {
		return nil, fmt.Errorf("line item service required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if params.Tax == nil {
		return nil, fmt.Errorf("tax repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:           params.Repo,
		tx:             params.Tx,
		locker:         params.Locker,
		lines:          params.LineItems,
		discounts:      params.Discounts,
		shipping:       params.Shipping,
		tax:            params.Tax,
		cfg:            params.Pricing,
		logg:           params.Logger,
		metrics:        params.Metrics,
		now:            now,
		evaluator:      discounts.NewEvaluator(),
		shippingEngine: shipping.NewEngine(),
		taxEngine:      tax.NewEngine(),
	}, nil
}

// plan is the output of one pipeline run, not yet persisted.
type plan struct {
	totals             Totals
	appliedDiscountIDs []int64
}

// pipeline holds every repository a mutation and its recalculation touch,
// bound to one database transaction.
type pipeline struct {
	orders    Repository
	lines     lineitems.Service
	discounts discounts.Repository
	shipping  shipping.Repository
	tax       tax.Repository
}

func (s *service) bind(tx *gorm.DB) pipeline {
	return pipeline{
		orders:    s.repo.WithTx(tx),
		lines:     s.lines.WithTx(tx),
		discounts: s.discounts.WithTx(tx),
		shipping:  s.shipping.WithTx(tx),
		tax:       s.tax.WithTx(tx),
	}
}

func (s *service) Recalculate(ctx context.Context, orderID int64) (*Totals, error) {
	var out *Totals
	err := s.locked(ctx, orderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			totals, _, err := s.recalculate(ctx, s.bind(tx), orderID)
			out = totals
			return err
		})
	})
	return out, err
}

// GetTotals returns the persisted totals without recalculating.
func (s *service) GetTotals(ctx context.Context, orderID int64) (*Totals, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	return s.storedTotals(ctx, s.repo, order)
}

// GetBalance reads paid from the ledger rather than the denormalized column.
func (s *service) GetBalance(ctx context.Context, orderID int64) (*Balance, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	paid, err := s.paid(ctx, s.repo, order)
	if err != nil {
		return nil, err
	}
	balance := BalanceOf(order, paid)
	return &balance, nil
}

func (s *service) RefreshPaid(ctx context.Context, orderID int64) (*Balance, error) {
	var out *Balance
	err := s.locked(ctx, orderID, func(ctx context.Context) error {
		order, err := s.loadOrder(ctx, s.repo, orderID)
		if err != nil {
			return err
		}
		paid, err := s.paid(ctx, s.repo, order)
		if err != nil {
			return err
		}
		if err := s.repo.UpdatePaid(ctx, orderID, paid.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update total paid")
		}
		balance := BalanceOf(order, paid)
		out = &balance
		return nil
	})
	return out, err
}

func (s *service) AddLineItem(ctx context.Context, orderID int64, input LineItemInput) (*Totals, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, p pipeline, order *models.Order) error {
		_, err := p.lines.Add(ctx, lineitems.AddInput{
			OrderID:       order.ID,
			Currency:      order.Currency,
			UserGroupIDs:  order.UserGroupIDs,
			PurchasableID: input.PurchasableID,
			Qty:           input.Qty,
			Options:       input.Options,
			Note:          input.Note,
		})
		if err != nil {
			return err
		}
		return s.touch(ctx, p.orders, order.ID, nil)
	})
}

func (s *service) UpdateLineItemQty(ctx context.Context, orderID, lineItemID int64, qty int) (*Totals, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, p pipeline, order *models.Order) error {
		_, err := p.lines.UpdateQty(ctx, lineitems.UpdateInput{
			OrderID:      order.ID,
			LineItemID:   lineItemID,
			Qty:          qty,
			Currency:     order.Currency,
			UserGroupIDs: order.UserGroupIDs,
		})
		if err != nil {
			return err
		}
		return s.touch(ctx, p.orders, order.ID, nil)
	})
}

func (s *service) RemoveLineItem(ctx context.Context, orderID, lineItemID int64) (*Totals, error) {
	return s.mutate(ctx, orderID, func(ctx context.Context, p pipeline, order *models.Order) error {
		if err := p.lines.Remove(ctx, order.ID, lineItemID); err != nil {
			return err
		}
		return s.touch(ctx, p.orders, order.ID, nil)
	})
}

// ApplyCoupon validates the code against the current cart before storing it.
// An empty code clears the coupon.
func (s *service) ApplyCoupon(ctx context.Context, orderID int64, code string) (*Totals, error) {
	code = strings.TrimSpace(code)
	return s.mutate(ctx, orderID, func(ctx context.Context, p pipeline, order *models.Order) error {
		if code == "" {
			return s.touch(ctx, p.orders, order.ID, map[string]any{"coupon_code": nil})
		}
		in, rules, err := s.discountInput(ctx, order, p.lines, p.discounts)
		if err != nil {
			return err
		}
		if err := discounts.ValidateCoupon(code, in, rules); err != nil {
			return err
		}
		return s.touch(ctx, p.orders, order.ID, map[string]any{"coupon_code": code})
	})
}

func (s *service) SetAddresses(ctx context.Context, orderID int64, input AddressesInput) (*Totals, error) {
	if input.ShippingAddress != nil && input.ShippingAddress.CountryCode() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address requires a country")
	}
	if input.BillingAddress != nil && input.BillingAddress.CountryCode() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing address requires a country")
	}

	fields := map[string]any{
		"shipping_address": nil,
		"billing_address":  nil,
		"business_tax_id":  nil,
	}
	if input.ShippingAddress != nil {
		fields["shipping_address"] = *input.ShippingAddress
	}
	if input.BillingAddress != nil {
		fields["billing_address"] = *input.BillingAddress
	}
	if input.BusinessTaxID != nil && strings.TrimSpace(*input.BusinessTaxID) != "" {
		fields["business_tax_id"] = strings.TrimSpace(*input.BusinessTaxID)
	}

	return s.mutate(ctx, orderID, func(ctx context.Context, p pipeline, order *models.Order) error {
		return s.touch(ctx, p.orders, order.ID, fields)
	})
}

// SetShippingMethod stores the requested method handle. An empty handle
// clears it.
func (s *service) SetShippingMethod(ctx context.Context, orderID int64, handle string) (*Totals, error) {
	handle = strings.TrimSpace(handle)
	var value any
	if handle != "" {
		value = handle
	}
	return s.mutate(ctx, orderID, func(ctx context.Context, p pipeline, order *models.Order) error {
		return s.touch(ctx, p.orders, order.ID, map[string]any{"shipping_method_handle": value})
	})
}

// Complete reprices the order, marks it complete and consumes discount usage
// in one transaction. Exhausted usage rolls everything back.
func (s *service) Complete(ctx context.Context, orderID int64) (*Totals, error) {
	var out *Totals
	err := s.locked(ctx, orderID, func(ctx context.Context) error {
		var (
			totals *Totals
			p      *plan
		)
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			b := s.bind(tx)
			order, err := s.loadOrder(ctx, b.orders, orderID)
			if err != nil {
				return err
			}
			if order.IsCompleted {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already completed")
			}

			items, err := b.lines.List(ctx, orderID)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "cannot complete an order without line items")
			}

			totals, p, err = s.recalculate(ctx, b, orderID)
			if err != nil {
				return err
			}
			if totals.ShippingStatus == enums.ShippingStatusUnresolved {
				return pkgerrors.New(pkgerrors.CodeUnresolvedRate, "shipping could not be quoted for this address")
			}

			ok, err := b.orders.MarkCompleted(ctx, orderID, order.Version+1, s.now().UTC())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
			}
			if !ok {
				return staleOrder(orderID)
			}
			for _, id := range p.appliedDiscountIDs {
				if err := b.discounts.RecordUse(ctx, discounts.Redemption{
					DiscountID: id,
					CustomerID: order.CustomerID,
					Email:      order.Email,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		totals.IsCompleted = true
		out = totals
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"total_price": totals.TotalPrice.Amount,
			"discounts":   len(p.appliedDiscountIDs),
		}), "orders.completed")
		return nil
	})
	return out, err
}

func (s *service) locked(ctx context.Context, orderID int64, fn func(ctx context.Context) error) error {
	if orderID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	release, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return err
	}
	defer release()
	return fn(s.logg.WithOrderID(ctx, orderID))
}

func (s *service) WithOrderLock(ctx context.Context, orderID int64, fn func(ctx context.Context) error) error {
	return s.locked(ctx, orderID, fn)
}

// mutate applies fn and the recalculation it triggers in one transaction, so
// a failing pipeline stage leaves the order untouched.
func (s *service) mutate(ctx context.Context, orderID int64, fn func(ctx context.Context, p pipeline, order *models.Order) error) (*Totals, error) {
	var out *Totals
	err := s.locked(ctx, orderID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			p := s.bind(tx)
			order, err := s.loadOrder(ctx, p.orders, orderID)
			if err != nil {
				return err
			}
			if order.IsCompleted {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "completed orders cannot be modified")
			}
			if err := fn(ctx, p, order); err != nil {
				return err
			}
			totals, _, err := s.recalculate(ctx, p, orderID)
			if err != nil {
				return err
			}
			out = totals
			return nil
		})
	})
	return out, err
}

func (s *service) touch(ctx context.Context, repo Repository, orderID int64, fields map[string]any) error {
	if err := repo.Touch(ctx, orderID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return nil
}

// recalculate must run under the order lock inside the caller's transaction.
// Completed orders keep their adjustments; only the paid amount is refreshed.
func (s *service) recalculate(ctx context.Context, p pipeline, orderID int64) (*Totals, *plan, error) {
	start := time.Now()
	order, err := s.loadOrder(ctx, p.orders, orderID)
	if err != nil {
		s.metrics.ObserveRecalculation("error", time.Since(start))
		return nil, nil, err
	}

	if order.IsCompleted {
		paid, err := s.paid(ctx, p.orders, order)
		if err != nil {
			return nil, nil, err
		}
		if err := p.orders.UpdatePaid(ctx, order.ID, paid.Amount); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update total paid")
		}
		order.TotalPaid = paid.Amount
		totals, err := s.storedTotals(ctx, p.orders, order)
		s.metrics.ObserveRecalculation("completed", time.Since(start))
		return totals, &plan{}, err
	}

	result, err := s.price(ctx, p, order)
	if err != nil {
		s.metrics.ObserveRecalculation(outcomeFor(err), time.Since(start))
		return nil, nil, err
	}

	if err := p.orders.ReplaceAdjustments(ctx, order.ID, pricing.ToModels(order.ID, result.totals.Adjustments)); err != nil {
		s.metrics.ObserveRecalculation("error", time.Since(start))
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace adjustments")
	}
	ok, err := p.orders.SaveTotals(ctx, order.ID, order.Version, result.totals)
	if err != nil {
		s.metrics.ObserveRecalculation("error", time.Since(start))
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save totals")
	}
	if !ok {
		s.metrics.ObserveRecalculation("conflict", time.Since(start))
		return nil, nil, staleOrder(order.ID)
	}

	s.metrics.ObserveRecalculation("ok", time.Since(start))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"total_price":     result.totals.TotalPrice.Amount,
		"adjustments":     len(result.totals.Adjustments),
		"shipping_status": string(result.totals.ShippingStatus),
	}), "orders.recalculated")

	totals := result.totals
	return &totals, &result, nil
}

// price runs discounts, shipping, tax and aggregation in sequence. Nothing is
// written here.
func (s *service) price(ctx context.Context, p pipeline, order *models.Order) (plan, error) {
	in, rules, err := s.discountInput(ctx, order, p.lines, p.discounts)
	if err != nil {
		return plan{}, err
	}

	if in.CouponCode != "" {
		if err := discounts.ValidateCoupon(in.CouponCode, in, rules); err != nil {
			reason := err.Error()
			if typed := pkgerrors.As(err); typed != nil {
				reason = typed.Message()
			}
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"coupon_code": in.CouponCode,
				"reason":      reason,
			}), "orders.coupon_dropped")
			in.CouponCode = ""
		}
	}

	result, err := s.evaluator.Evaluate(in, rules)
	if err != nil {
		return plan{}, err
	}

	shipCatalog, err := p.shipping.LoadCatalog(ctx)
	if err != nil {
		return plan{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping rules")
	}
	quote, err := s.shippingEngine.Quote(shipping.Input{
		Currency:     order.Currency,
		Lines:        in.Lines,
		Address:      order.ShippingAddress,
		MethodHandle: deref(order.ShippingMethodHandle),
		FreeShipping: result.FreeShipping,
	}, shipCatalog)
	if err != nil {
		return plan{}, err
	}

	adjustments := make([]pricing.Adjustment, 0, len(result.Adjustments)+2)
	adjustments = append(adjustments, result.Adjustments...)
	shippingAmount := money.Zero(order.Currency)
	if quote.Adjustment != nil {
		adjustments = append(adjustments, *quote.Adjustment)
		shippingAmount = quote.Adjustment.Amount
	}

	taxCatalog, err := p.tax.LoadCatalog(ctx)
	if err != nil {
		return plan{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tax rates")
	}
	destination := order.ShippingAddress
	if s.cfg.TaxUsesBillingAddress && order.BillingAddress != nil {
		destination = order.BillingAddress
	}
	taxes, err := s.taxEngine.Calculate(tax.Input{
		Currency:      order.Currency,
		Lines:         in.Lines,
		LineDiscounts: result.LineDiscounts,
		OrderDiscount: result.OrderDiscount,
		Shipping:      shippingAmount,
		Destination:   destination,
		BusinessTaxID: deref(order.BusinessTaxID),
	}, taxCatalog)
	if err != nil {
		return plan{}, err
	}
	adjustments = append(adjustments, taxes...)
	pricing.SortStable(adjustments)

	transactions, err := p.orders.ListTransactions(ctx, order.ID)
	if err != nil {
		return plan{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transactions")
	}
	totals, err := ComputeTotals(order.Currency, in.Lines, adjustments, transactions, TotalsOptions{
		AllowNegative:  s.cfg.AllowNegativeTotals,
		ShippingStatus: quote.Status,
	})
	if err != nil {
		return plan{}, err
	}
	totals.OrderID = order.ID
	totals.CouponCode = in.CouponCode

	return plan{totals: totals, appliedDiscountIDs: result.AppliedDiscountIDs}, nil
}

func (s *service) discountInput(ctx context.Context, order *models.Order, lines lineitems.Service, repo discounts.Repository) (discounts.Input, []discounts.Discount, error) {
	items, err := lines.List(ctx, order.ID)
	if err != nil {
		return discounts.Input{}, nil, err
	}
	priced := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		priced = append(priced, pricing.LineFromModel(item, order.Currency))
	}

	rows, err := repo.ListEnabled(ctx)
	if err != nil {
		return discounts.Input{}, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discounts")
	}
	rules := make([]discounts.Discount, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, discounts.FromModel(row))
	}

	usage, err := repo.UsageFor(ctx, order.CustomerID, order.Email)
	if err != nil {
		return discounts.Input{}, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount usage")
	}

	return discounts.Input{
		Currency:     order.Currency,
		CouponCode:   strings.TrimSpace(deref(order.CouponCode)),
		CustomerID:   order.CustomerID,
		Email:        order.Email,
		UserGroupIDs: order.UserGroupIDs,
		Lines:        priced,
		Now:          s.now(),
		Usage:        usage,
	}, rules, nil
}

func (s *service) storedTotals(ctx context.Context, repo Repository, order *models.Order) (*Totals, error) {
	rows, err := repo.ListAdjustments(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load adjustments")
	}
	adjustments := make([]pricing.Adjustment, 0, len(rows))
	for _, row := range rows {
		adjustments = append(adjustments, pricing.FromModel(row))
	}

	c := order.Currency
	price := money.New(order.TotalPrice, c)
	paid := money.New(order.TotalPaid, c)
	adjTotal := money.New(order.TotalPrice-order.ItemTotal, c)
	return &Totals{
		OrderID:          order.ID,
		Currency:         c,
		ItemTotal:        money.New(order.ItemTotal, c),
		TotalDiscount:    money.New(order.TotalDiscount, c),
		TotalShipping:    money.New(order.TotalShipping, c),
		TotalTax:         money.New(order.TotalTax, c),
		TotalTaxIncluded: money.New(order.TotalTaxIncluded, c),
		TotalAdjustments: adjTotal,
		TotalPrice:       price,
		TotalPaid:        paid,
		Outstanding:      money.New(price.Amount-paid.Amount, c),
		ShippingStatus:   order.ShippingStatus,
		CouponCode:       deref(order.CouponCode),
		IsCompleted:      order.IsCompleted,
		Adjustments:      adjustments,
	}, nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID int64) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) paid(ctx context.Context, repo Repository, order *models.Order) (money.Money, error) {
	transactions, err := repo.ListTransactions(ctx, order.ID)
	if err != nil {
		return money.Money{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transactions")
	}
	return PaidFromTransactions(order.Currency, transactions)
}

func staleOrder(orderID int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "order changed during recalculation, retry").
		WithDetails(map[string]any{"order_id": orderID})
}

func outcomeFor(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		return "conflict"
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return "invalid"
	default:
		return "error"
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
