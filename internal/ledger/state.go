package ledger

import (
	"github.com/angelmondragon/commerce-core/internal/gateway"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

var transitions = map[enums.TransactionStatus][]enums.TransactionStatus{
	enums.TransactionStatusPending: {
		enums.TransactionStatusRedirect,
		enums.TransactionStatusProcessing,
		enums.TransactionStatusSuccess,
		enums.TransactionStatusFailed,
	},
	enums.TransactionStatusRedirect: {
		enums.TransactionStatusProcessing,
		enums.TransactionStatusSuccess,
		enums.TransactionStatusFailed,
	},
	enums.TransactionStatusProcessing: {
		enums.TransactionStatusSuccess,
		enums.TransactionStatusFailed,
	},
}

// CanTransition reports whether a transaction may move from one status to
// another. Terminal statuses have no outgoing edges.
func CanTransition(from, to enums.TransactionStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// StatusFor maps a gateway result to the ledger status it represents.
func StatusFor(res gateway.Result) enums.TransactionStatus {
	switch {
	case res.Success:
		return enums.TransactionStatusSuccess
	case res.Redirect:
		return enums.TransactionStatusRedirect
	case res.Processing:
		return enums.TransactionStatusProcessing
	default:
		return enums.TransactionStatusFailed
	}
}
