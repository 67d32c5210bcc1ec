package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/commerce-core/api/responses"
	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/internal/webhooks"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const maxCallbackBytes = 1 << 20

type GatewayCallbackService interface {
	Handle(ctx context.Context, handle string, payload []byte, signature string) (*webhooks.Outcome, error)
}

// GatewayWebhook accepts asynchronous gateway outcomes for one gateway handle.
func GatewayWebhook(svc GatewayCallbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		handle := chi.URLParam(r, "handle")
		if logg != nil {
			ctx = logg.WithField(ctx, "gateway", handle)
		}
		outcome, err := svc.Handle(ctx, handle, payload, r.Header.Get(webhooks.SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"duplicate":   outcome.Duplicate,
			"transaction": ledger.NewTransactionDTO(*outcome.Transaction),
		})
	}
}
