package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

// TransactionDTO is the API view of a ledger entry.
type TransactionDTO struct {
	ID              int64                   `json:"id"`
	OrderID         int64                   `json:"order_id"`
	ParentID        *int64                  `json:"parent_id,omitempty"`
	Gateway         string                  `json:"gateway"`
	Hash            string                  `json:"hash"`
	Type            enums.TransactionType   `json:"type"`
	Status          enums.TransactionStatus `json:"status"`
	Amount          int64                   `json:"amount"`
	Currency        string                  `json:"currency"`
	PaymentAmount   int64                   `json:"payment_amount"`
	PaymentCurrency string                  `json:"payment_currency"`
	PaymentRate     decimal.Decimal         `json:"payment_rate"`
	Reference       string                  `json:"reference,omitempty"`
	Code            string                  `json:"code,omitempty"`
	Message         string                  `json:"message,omitempty"`
	Response        json.RawMessage         `json:"response,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func NewTransactionDTO(txn models.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:              txn.ID,
		OrderID:         txn.OrderID,
		ParentID:        txn.ParentID,
		Gateway:         txn.Gateway,
		Hash:            txn.Hash,
		Type:            txn.Type,
		Status:          txn.Status,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		PaymentAmount:   txn.PaymentAmount,
		PaymentCurrency: txn.PaymentCurrency,
		PaymentRate:     txn.PaymentRate,
		Reference:       txn.Reference,
		Code:            txn.Code,
		Message:         txn.Message,
		Response:        txn.Response,
		CreatedAt:       txn.CreatedAt,
		UpdatedAt:       txn.UpdatedAt,
	}
}

func NewTransactionDTOs(rows []models.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewTransactionDTO(row))
	}
	return out
}
