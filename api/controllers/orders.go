package controllers

import (
	"net/http"

	"github.com/angelmondragon/commerce-core/api/responses"
	"github.com/angelmondragon/commerce-core/api/validators"
	"github.com/angelmondragon/commerce-core/internal/orders"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

type addLineItemRequest struct {
	PurchasableID int64          `json:"purchasable_id" validate:"required,gt=0"`
	Qty           int            `json:"qty" validate:"required,gt=0"`
	Options       map[string]any `json:"options"`
	Note          string         `json:"note" validate:"max=1024"`
}

type updateLineItemRequest struct {
	Qty int `json:"qty" validate:"min=0"`
}

type couponRequest struct {
	Code string `json:"code" validate:"max=64"`
}

type shippingMethodRequest struct {
	Handle string `json:"handle" validate:"max=64"`
}

type addressesRequest struct {
	ShippingAddress *types.Address `json:"shipping_address"`
	BillingAddress  *types.Address `json:"billing_address"`
	BusinessTaxID   *string        `json:"business_tax_id" validate:"omitempty,max=64"`
}

// totalsHandler resolves the order id and writes the Totals produced by fn.
func totalsHandler(svc orders.Service, logg *logger.Logger, status int, fn func(r *http.Request, orderID int64) (*orders.Totals, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		totals, err := fn(r.WithContext(ctx), orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, totals)
	}
}

// OrderTotals returns the stored totals without recalculating.
func OrderTotals(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		return svc.GetTotals(r.Context(), orderID)
	})
}

func OrderRecalculate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		return svc.Recalculate(r.Context(), orderID)
	})
}

func OrderBalance(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.GetBalance(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func OrderAddLineItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusCreated, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		var req addLineItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.AddLineItem(r.Context(), orderID, orders.LineItemInput{
			PurchasableID: req.PurchasableID,
			Qty:           req.Qty,
			Options:       req.Options,
			Note:          validators.SanitizeString(req.Note, 1024),
		})
	})
}

// OrderUpdateLineItem sets a line quantity. A quantity of zero removes the line.
func OrderUpdateLineItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		lineItemID, err := validators.ParseIDParam(r, "lineItemId")
		if err != nil {
			return nil, err
		}
		var req updateLineItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		if req.Qty == 0 {
			return svc.RemoveLineItem(r.Context(), orderID, lineItemID)
		}
		return svc.UpdateLineItemQty(r.Context(), orderID, lineItemID, req.Qty)
	})
}

func OrderRemoveLineItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		lineItemID, err := validators.ParseIDParam(r, "lineItemId")
		if err != nil {
			return nil, err
		}
		return svc.RemoveLineItem(r.Context(), orderID, lineItemID)
	})
}

// OrderApplyCoupon sets the coupon code. An empty code clears it.
func OrderApplyCoupon(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		var req couponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.ApplyCoupon(r.Context(), orderID, validators.SanitizeString(req.Code, 64))
	})
}

func OrderSetShippingMethod(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		var req shippingMethodRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.SetShippingMethod(r.Context(), orderID, validators.SanitizeString(req.Handle, 64))
	})
}

func OrderSetAddresses(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		var req addressesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.SetAddresses(r.Context(), orderID, orders.AddressesInput{
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			BusinessTaxID:   req.BusinessTaxID,
		})
	})
}

func OrderComplete(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return totalsHandler(svc, logg, http.StatusOK, func(r *http.Request, orderID int64) (*orders.Totals, error) {
		return svc.Complete(r.Context(), orderID)
	})
}
