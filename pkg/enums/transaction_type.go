package enums

import "fmt"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeAuthorize TransactionType = "authorize"
	TransactionTypeCapture   TransactionType = "capture"
	TransactionTypePurchase  TransactionType = "purchase"
	TransactionTypeRefund    TransactionType = "refund"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeAuthorize,
	TransactionTypeCapture,
	TransactionTypePurchase,
	TransactionTypeRefund,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// MovesFunds reports whether a successful transaction of this type changes
// the amount paid on an order.
func (t TransactionType) MovesFunds() bool {
	return t == TransactionTypeCapture || t == TransactionTypePurchase || t == TransactionTypeRefund
}
