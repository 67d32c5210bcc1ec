// Package ledger records every payment attempt against an order and moves
// transactions through their gateway-driven lifecycle.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/internal/gateway"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/metrics"
	"github.com/angelmondragon/commerce-core/pkg/money"
)

const (
	timeoutMessage        = "gateway timeout; outcome unknown"
	defaultDeclineMessage = "payment was declined"
)

// Service is the only writer of transaction status.
type Service interface {
	RequestPayment(ctx context.Context, input PaymentInput) (*models.Transaction, error)
	Capture(ctx context.Context, parentID, amount int64) (*models.Transaction, error)
	Refund(ctx context.Context, parentID, amount int64) (*models.Transaction, error)
	HandleGatewayCallback(ctx context.Context, hash string, result gateway.Result) (*models.Transaction, error)
	Transition(ctx context.Context, id int64, from, to enums.TransactionStatus, result gateway.Result) (*models.Transaction, error)
	Reconcile(ctx context.Context, staleBefore time.Time) (ReconcileReport, error)
	ListByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error)
	Get(ctx context.Context, id int64) (*models.Transaction, error)
	GetByHash(ctx context.Context, hash string) (*models.Transaction, error)
}

// PaymentInput starts a new authorize or purchase. Amount is in the minor
// units of the order currency. PaymentCurrency and PaymentRate are optional
// and must be given together.
type PaymentInput struct {
	OrderID         int64
	Amount          int64
	Type            enums.TransactionType
	GatewayHandle   string
	Details         map[string]string
	PaymentCurrency string
	PaymentRate     decimal.Decimal
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked   int
	Resolved  int
	Unchanged int
	Skipped   int
}

// ServiceParams bundles the dependencies required to build a ledger service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Gateways *gateway.Registry
	Orders   Balances
	Gateway  config.GatewayConfig
	Ledger   config.LedgerConfig
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
	Now      func() time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	gateways    *gateway.Registry
	orders      Balances
	callTimeout time.Duration
	batchSize   int
	logg        *logger.Logger
	metrics     *metrics.LedgerMetrics
	now         func() time.Time
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order balances required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Gateway.CallTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		gateways:    params.Gateways,
		orders:      params.Orders,
		callTimeout: timeout,
		batchSize:   params.Ledger.ReconcileBatchSize,
		logg:        params.Logger,
		metrics:     params.Metrics,
		now:         now,
	}, nil
}

func (s *service) RequestPayment(ctx context.Context, input PaymentInput) (*models.Transaction, error) {
	if input.OrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Type != enums.TransactionTypeAuthorize && input.Type != enums.TransactionTypePurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment type must be authorize or purchase, got %q", input.Type))
	}
	gw, ok := s.gateways.Get(input.GatewayHandle)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown gateway %q", input.GatewayHandle))
	}

	var txn *models.Transaction
	var paymentAmount money.Money
	err := s.orders.WithOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		balance, err := s.orders.GetBalance(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if balance.ShippingStatus == enums.ShippingStatusUnresolved {
			return pkgerrors.New(pkgerrors.CodeUnresolvedRate, "shipping could not be quoted for this address")
		}
		existing, err := s.repo.ListByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order transactions")
		}
		available, err := balance.Outstanding.Sub(reserved(balance.TotalPrice.Currency, existing))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "compute available balance")
		}
		amount := money.New(input.Amount, balance.TotalPrice.Currency)
		over, err := amount.Cmp(available)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "compare amount")
		}
		if over > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("amount %s exceeds available balance %s", amount, available)).
				WithDetails(map[string]any{"outstanding": balance.Outstanding.Amount, "available": available.Amount})
		}

		var rate decimal.Decimal
		paymentAmount, rate, err = settlement(amount, input.PaymentCurrency, input.PaymentRate)
		if err != nil {
			return err
		}
		txn = s.newTransaction(input.OrderID, nil, gw.Handle(), input.Type, amount, paymentAmount, rate)
		if err := s.repo.Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	req := gateway.Request{TransactionHash: txn.Hash, Amount: paymentAmount, Details: input.Details}
	call := gw.Authorize
	if input.Type == enums.TransactionTypePurchase {
		call = gw.Purchase
	}
	return s.dispatch(ctx, gw.Handle(), string(input.Type), txn, func(ctx context.Context) (gateway.Result, error) {
		return call(ctx, req)
	})
}

// reserved sums what earlier payments hold against the order without yet
// counting as paid: attempts still awaiting an outcome and the uncaptured
// remainder of successful authorizations.
func reserved(currency string, txns []models.Transaction) money.Money {
	captured := make(map[int64]int64)
	for _, t := range txns {
		if t.Type == enums.TransactionTypeCapture && t.ParentID != nil && t.Status == enums.TransactionStatusSuccess {
			captured[*t.ParentID] += t.Amount
		}
	}
	var held int64
	for _, t := range txns {
		if t.Type != enums.TransactionTypeAuthorize && t.Type != enums.TransactionTypePurchase {
			continue
		}
		switch {
		case !t.Status.IsTerminal():
			held += t.Amount
		case t.Type == enums.TransactionTypeAuthorize && t.Status == enums.TransactionStatusSuccess:
			if rest := t.Amount - captured[t.ID]; rest > 0 {
				held += rest
			}
		}
	}
	return money.New(held, currency)
}

func (s *service) Capture(ctx context.Context, parentID, amount int64) (*models.Transaction, error) {
	return s.followUp(ctx, parentID, amount, enums.TransactionTypeCapture)
}

func (s *service) Refund(ctx context.Context, parentID, amount int64) (*models.Transaction, error) {
	return s.followUp(ctx, parentID, amount, enums.TransactionTypeRefund)
}

// followUp creates a capture or refund against a successful parent. The
// remaining-amount check and the pending insert share one database
// transaction with the parent row locked.
func (s *service) followUp(ctx context.Context, parentID, amount int64, txnType enums.TransactionType) (*models.Transaction, error) {
	if parentID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent transaction id is required")
	}
	if amount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}

	var (
		txn    *models.Transaction
		parent *models.Transaction
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		parent, err = repo.LockByID(ctx, parentID)
		if err != nil {
			return mapLookupErr(err, "parent transaction")
		}
		if err := checkParent(parent, txnType); err != nil {
			return err
		}

		children, err := repo.ListChildren(ctx, parent.ID, txnType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load child transactions")
		}
		remaining := parent.Amount
		for _, child := range children {
			if child.Status != enums.TransactionStatusFailed {
				remaining -= child.Amount
			}
		}
		if amount == 0 {
			amount = remaining
		}
		if remaining <= 0 || amount > remaining {
			return pkgerrors.New(pkgerrors.CodeIntegrity, fmt.Sprintf("%s of %d exceeds remaining %d on transaction %d", txnType, amount, remaining, parent.ID)).
				WithDetails(map[string]any{"remaining": remaining})
		}

		value := money.New(amount, parent.Currency)
		paymentAmount, rate, err := settlement(value, parent.PaymentCurrency, parent.PaymentRate)
		if err != nil {
			return err
		}
		txn = s.newTransaction(parent.OrderID, &parent.ID, parent.Gateway, txnType, value, paymentAmount, rate)
		if err := repo.Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	gw, ok := s.gateways.Get(parent.Gateway)
	if !ok {
		// The row stays pending until the gateway is registered again.
		return txn, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("gateway %q is not registered", parent.Gateway))
	}
	req := gateway.Request{
		TransactionHash: txn.Hash,
		Amount:          money.New(txn.PaymentAmount, txn.PaymentCurrency),
		Reference:       parent.Reference,
	}
	call := gw.Capture
	if txnType == enums.TransactionTypeRefund {
		call = gw.Refund
	}
	return s.dispatch(ctx, gw.Handle(), string(txnType), txn, func(ctx context.Context) (gateway.Result, error) {
		return call(ctx, req)
	})
}

func checkParent(parent *models.Transaction, txnType enums.TransactionType) error {
	if parent.Status != enums.TransactionStatusSuccess {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("parent transaction %d is %s, not success", parent.ID, parent.Status))
	}
	switch txnType {
	case enums.TransactionTypeCapture:
		if parent.Type != enums.TransactionTypeAuthorize {
			return pkgerrors.New(pkgerrors.CodeValidation, "only authorizations can be captured")
		}
	case enums.TransactionTypeRefund:
		if parent.Type != enums.TransactionTypePurchase && parent.Type != enums.TransactionTypeCapture {
			return pkgerrors.New(pkgerrors.CodeValidation, "only purchases and captures can be refunded")
		}
	}
	return nil
}

// dispatch calls the gateway under the configured timeout and records the
// outcome on txn.
func (s *service) dispatch(ctx context.Context, handle, operation string, txn *models.Transaction, call func(context.Context) (gateway.Result, error)) (*models.Transaction, error) {
	ctx = s.logg.WithTransactionHash(s.logg.WithOrderID(ctx, txn.OrderID), txn.Hash)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	started := time.Now()
	res, callErr := call(callCtx)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	s.metrics.ObserveGatewayCall(handle, operation, time.Since(started))

	switch {
	case callErr != nil && timedOut:
		s.logg.Warn(ctx, "ledger.gateway_timeout")
		updated, err := s.Transition(ctx, txn.ID, txn.Status, enums.TransactionStatusProcessing, gateway.Result{Processing: true, Message: timeoutMessage})
		if err != nil {
			return txn, err
		}
		return updated, nil
	case callErr != nil:
		s.logg.Error(ctx, "ledger.gateway_error", callErr)
		failure := gateway.Result{Message: callErr.Error(), RawResponse: errorResponse(callErr)}
		updated, err := s.Transition(ctx, txn.ID, txn.Status, enums.TransactionStatusFailed, failure)
		if err != nil {
			return txn, err
		}
		return updated, pkgerrors.Wrap(pkgerrors.CodeGateway, callErr, "gateway request failed").
			WithDetails(map[string]any{"hash": updated.Hash})
	}

	target := StatusFor(res)
	updated, err := s.Transition(ctx, txn.ID, txn.Status, target, res)
	if err != nil {
		return txn, err
	}
	if target == enums.TransactionStatusFailed {
		msg := strings.TrimSpace(res.Message)
		if msg == "" {
			msg = defaultDeclineMessage
		}
		return updated, pkgerrors.New(pkgerrors.CodeGateway, msg).
			WithDetails(map[string]any{"hash": updated.Hash, "code": res.Code})
	}
	if target == enums.TransactionStatusSuccess {
		s.refreshPaid(ctx, updated)
	}
	return updated, nil
}

func (s *service) HandleGatewayCallback(ctx context.Context, hash string, result gateway.Result) (*models.Transaction, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction hash is required")
	}
	txn, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		return nil, mapLookupErr(err, "transaction")
	}
	ctx = s.logg.WithTransactionHash(s.logg.WithOrderID(ctx, txn.OrderID), txn.Hash)

	target := StatusFor(result)
	if txn.Status.IsTerminal() {
		sameReference := result.Reference == "" || result.Reference == txn.Reference
		if target == txn.Status && sameReference {
			s.logg.Info(ctx, "ledger.callback_duplicate")
			return txn, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("transaction already finalized as %s", txn.Status)).
			WithDetails(map[string]any{"hash": txn.Hash, "status": txn.Status})
	}
	if target == txn.Status {
		return txn, nil
	}

	updated, err := s.Transition(ctx, txn.ID, txn.Status, target, result)
	if err != nil {
		return nil, err
	}
	if target == enums.TransactionStatusSuccess {
		s.refreshPaid(ctx, updated)
	}
	return updated, nil
}

func (s *service) Transition(ctx context.Context, id int64, from, to enums.TransactionStatus, result gateway.Result) (*models.Transaction, error) {
	if !CanTransition(from, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("transaction cannot move from %s to %s", from, to))
	}
	ok, err := s.repo.UpdateStatus(ctx, id, from, StatusUpdate{
		Status:    to,
		Reference: result.Reference,
		Code:      result.Code,
		Message:   result.Message,
		Response:  result.RawResponse,
		At:        s.now().UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction already processed").
			WithDetails(map[string]any{"transaction_id": id, "expected_status": from})
	}

	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "transaction")
	}
	s.metrics.IncTransition(string(txn.Type), string(from), string(to))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"transaction_id": txn.ID,
		"type":           txn.Type,
		"from":           from,
		"to":             to,
	}), "ledger.transition")
	return txn, nil
}

// Reconcile asks gateways for the outcome of transactions that have been
// open since before staleBefore. Gateways that cannot be polled are skipped
// and their transactions stay untouched.
func (s *service) Reconcile(ctx context.Context, staleBefore time.Time) (ReconcileReport, error) {
	var report ReconcileReport
	stale, err := s.repo.ListStale(ctx, staleBefore.UTC(), s.batchSize)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale transactions")
	}

	var errs error
	for _, txn := range stale {
		report.Checked++
		gw, ok := s.gateways.Get(txn.Gateway)
		if !ok {
			report.Skipped++
			continue
		}
		checker, ok := gw.(gateway.StatusChecker)
		if !ok {
			report.Skipped++
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		started := time.Now()
		res, err := checker.Lookup(callCtx, gateway.LookupQuery{TransactionHash: txn.Hash, Reference: txn.Reference})
		cancel()
		s.metrics.ObserveGatewayCall(gw.Handle(), "lookup", time.Since(started))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("lookup transaction %d: %w", txn.ID, err))
			continue
		}
		if StatusFor(res) == txn.Status {
			report.Unchanged++
			continue
		}
		if _, err := s.HandleGatewayCallback(ctx, txn.Hash, res); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("apply transaction %d: %w", txn.ID, err))
			continue
		}
		report.Resolved++
	}
	return report, errs
}

func (s *service) ListByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Transaction, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "transaction")
	}
	return txn, nil
}

func (s *service) GetByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction hash is required")
	}
	txn, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		return nil, mapLookupErr(err, "transaction")
	}
	return txn, nil
}

func (s *service) newTransaction(orderID int64, parentID *int64, handle string, txnType enums.TransactionType, amount, paymentAmount money.Money, rate decimal.Decimal) *models.Transaction {
	now := s.now().UTC()
	return &models.Transaction{
		OrderID:         orderID,
		ParentID:        parentID,
		Gateway:         handle,
		Hash:            newHash(),
		Type:            txnType,
		Status:          enums.TransactionStatusPending,
		Amount:          amount.Amount,
		Currency:        amount.Currency,
		PaymentAmount:   paymentAmount.Amount,
		PaymentCurrency: paymentAmount.Currency,
		PaymentRate:     rate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// refreshPaid keeps the order's denormalized total paid in step with the
// ledger. The transaction is already recorded, so failures are only logged.
func (s *service) refreshPaid(ctx context.Context, txn *models.Transaction) {
	if txn.Type == enums.TransactionTypeAuthorize {
		return
	}
	if _, err := s.orders.RefreshPaid(ctx, txn.OrderID); err != nil {
		s.logg.Error(ctx, "ledger.refresh_paid_failed", err)
	}
}

// settlement converts amount into the payment currency. An empty currency
// settles in the order currency at rate 1.
func settlement(amount money.Money, currency string, rate decimal.Decimal) (money.Money, decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || (strings.EqualFold(currency, amount.Currency) && rate.IsZero()) {
		return amount, decimal.NewFromInt(1), nil
	}
	if !rate.IsPositive() {
		return money.Money{}, decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "payment rate is required with a payment currency")
	}
	converted, err := amount.Convert(rate, currency)
	if err != nil {
		return money.Money{}, decimal.Decimal{}, err
	}
	return converted, rate, nil
}

func newHash() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func errorResponse(err error) json.RawMessage {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return payload
}

func mapLookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
