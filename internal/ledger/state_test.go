package ledger

import (
	"testing"

	"github.com/angelmondragon/commerce-core/internal/gateway"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	all := []enums.TransactionStatus{
		enums.TransactionStatusPending,
		enums.TransactionStatusRedirect,
		enums.TransactionStatusProcessing,
		enums.TransactionStatusSuccess,
		enums.TransactionStatusFailed,
	}
	allowed := map[[2]enums.TransactionStatus]bool{
		{enums.TransactionStatusPending, enums.TransactionStatusRedirect}:    true,
		{enums.TransactionStatusPending, enums.TransactionStatusProcessing}:  true,
		{enums.TransactionStatusPending, enums.TransactionStatusSuccess}:     true,
		{enums.TransactionStatusPending, enums.TransactionStatusFailed}:      true,
		{enums.TransactionStatusRedirect, enums.TransactionStatusProcessing}: true,
		{enums.TransactionStatusRedirect, enums.TransactionStatusSuccess}:    true,
		{enums.TransactionStatusRedirect, enums.TransactionStatusFailed}:     true,
		{enums.TransactionStatusProcessing, enums.TransactionStatusSuccess}:  true,
		{enums.TransactionStatusProcessing, enums.TransactionStatusFailed}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]enums.TransactionStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		res  gateway.Result
		want enums.TransactionStatus
	}{
		{gateway.Result{Success: true}, enums.TransactionStatusSuccess},
		{gateway.Result{Redirect: true, RedirectURL: "https://pay.example/3ds"}, enums.TransactionStatusRedirect},
		{gateway.Result{Processing: true}, enums.TransactionStatusProcessing},
		{gateway.Result{Message: "insufficient funds"}, enums.TransactionStatusFailed},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.res); got != tc.want {
			t.Errorf("StatusFor(%+v) = %s, want %s", tc.res, got, tc.want)
		}
	}
}
