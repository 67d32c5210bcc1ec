package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/api/responses"
	"github.com/angelmondragon/commerce-core/api/validators"
	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

type paymentRequest struct {
	Gateway         string            `json:"gateway" validate:"required,max=64"`
	Type            string            `json:"type" validate:"omitempty,oneof=authorize purchase"`
	Amount          int64             `json:"amount" validate:"required,gt=0"`
	Details         map[string]string `json:"details"`
	PaymentCurrency string            `json:"payment_currency" validate:"omitempty,iso4217"`
	PaymentRate     *decimal.Decimal  `json:"payment_rate"`
}

type followUpRequest struct {
	Amount int64 `json:"amount" validate:"min=0"`
}

// OrderRequestPayment starts an authorize or purchase. Declines are written
// as GATEWAY_ERROR with the transaction hash in the details.
func OrderRequestPayment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req paymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.PaymentInput{
			OrderID:         orderID,
			Amount:          req.Amount,
			Type:            enums.TransactionTypePurchase,
			GatewayHandle:   req.Gateway,
			Details:         req.Details,
			PaymentCurrency: req.PaymentCurrency,
		}
		if req.Type != "" {
			input.Type = enums.TransactionType(req.Type)
		}
		if req.PaymentRate != nil {
			input.PaymentRate = *req.PaymentRate
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		txn, err := svc.RequestPayment(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ledger.NewTransactionDTO(*txn))
	}
}

func OrderTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger.NewTransactionDTOs(rows))
	}
}

func TransactionDetail(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger.NewTransactionDTO(*txn))
	}
}

// TransactionCapture captures against an authorization. A zero or omitted
// amount captures the remainder.
func TransactionCapture(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return followUpHandler(svc, logg, func(r *http.Request, parentID, amount int64) (*models.Transaction, error) {
		return svc.Capture(r.Context(), parentID, amount)
	})
}

// TransactionRefund refunds a capture or purchase. A zero or omitted amount
// refunds the remainder.
func TransactionRefund(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return followUpHandler(svc, logg, func(r *http.Request, parentID, amount int64) (*models.Transaction, error) {
		return svc.Refund(r.Context(), parentID, amount)
	})
}

func followUpHandler(svc ledger.Service, logg *logger.Logger, fn func(r *http.Request, parentID, amount int64) (*models.Transaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		parentID, err := validators.ParseIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req followUpRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		txn, err := fn(r, parentID, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ledger.NewTransactionDTO(*txn))
	}
}
