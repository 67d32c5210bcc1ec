// Package webhooks verifies and applies asynchronous gateway callbacks.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/commerce-core/internal/gateway"
	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

// Callback is the JSON body a gateway posts for one transaction.
type Callback struct {
	Hash        string          `json:"hash" validate:"required,len=32,hexadecimal"`
	Success     bool            `json:"success"`
	Reference   string          `json:"reference" validate:"max=255"`
	Code        string          `json:"code" validate:"max=64"`
	Message     string          `json:"message" validate:"max=1024"`
	Redirect    bool            `json:"redirect"`
	RedirectURL string          `json:"redirect_url" validate:"omitempty,url"`
	Processing  bool            `json:"processing"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

func (c Callback) result(payload []byte) gateway.Result {
	raw := c.Raw
	if len(raw) == 0 {
		raw = json.RawMessage(payload)
	}
	return gateway.Result{
		Success:     c.Success,
		Reference:   c.Reference,
		Code:        c.Code,
		Message:     c.Message,
		Redirect:    c.Redirect,
		RedirectURL: c.RedirectURL,
		Processing:  c.Processing,
		RawResponse: raw,
	}
}

// Outcome reports what happened to a delivery.
type Outcome struct {
	Transaction *models.Transaction
	Duplicate   bool
}

type callbackLedger interface {
	GetByHash(ctx context.Context, hash string) (*models.Transaction, error)
	HandleGatewayCallback(ctx context.Context, hash string, result gateway.Result) (*models.Transaction, error)
}

type callbackGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type ServiceParams struct {
	Ledger callbackLedger
	Guard  callbackGuard
	Secret string
	Logger *logger.Logger
}

type Service struct {
	ledger   callbackLedger
	guard    callbackGuard
	secret   string
	logg     *logger.Logger
	validate *validator.Validate
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if strings.TrimSpace(params.Secret) == "" {
		return nil, fmt.Errorf("webhook secret required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		ledger:   params.Ledger,
		guard:    params.Guard,
		secret:   params.Secret,
		logg:     params.Logger,
		validate: validator.New(),
	}, nil
}

// Handle verifies the signature, drops redeliveries already applied and
// forwards the callback to the ledger. The dedupe claim is released when
// the ledger rejects the callback so a corrected retry can go through.
func (s *Service) Handle(ctx context.Context, handle string, payload []byte, signature string) (*Outcome, error) {
	if err := VerifySignature(payload, signature, s.secret); err != nil {
		return nil, err
	}

	var cb Callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback body")
	}
	cb.Hash = strings.ToLower(strings.TrimSpace(cb.Hash))
	if err := s.validate.Struct(cb); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback").
			WithDetails(map[string]any{"error": err.Error()})
	}

	txn, err := s.ledger.GetByHash(ctx, cb.Hash)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(txn.Gateway, strings.TrimSpace(handle)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	ctx = s.logg.WithTransactionHash(ctx, txn.Hash)

	result := cb.result(payload)
	key := CallbackKey(cb.Hash, cb.Reference, string(ledger.StatusFor(result)))
	first, err := s.guard.Claim(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check callback idempotency")
	}
	if !first {
		s.logg.Info(ctx, "webhooks.callback_duplicate")
		return &Outcome{Transaction: txn, Duplicate: true}, nil
	}

	updated, err := s.ledger.HandleGatewayCallback(ctx, cb.Hash, result)
	if err != nil {
		if relErr := s.guard.Release(ctx, key); relErr != nil {
			s.logg.Error(ctx, "webhooks.guard_release_failed", relErr)
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"gateway": txn.Gateway,
		"status":  updated.Status,
	}), "webhooks.callback_applied")
	return &Outcome{Transaction: updated}, nil
}
