package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/commerce-core/internal/gateway"
	"github.com/angelmondragon/commerce-core/internal/ledger"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/internal/webhooks"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/money"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubOrders struct {
	orders.Service
	recalculated []int64
	added        []orders.LineItemInput
	removed      []int64
	coupon       string
}

func (s *stubOrders) totals(orderID int64) *orders.Totals {
	return &orders.Totals{
		OrderID:    orderID,
		Currency:   "USD",
		ItemTotal:  money.New(5000, "USD"),
		TotalPrice: money.New(5400, "USD"),
	}
}

func (s *stubOrders) Recalculate(_ context.Context, orderID int64) (*orders.Totals, error) {
	s.recalculated = append(s.recalculated, orderID)
	return s.totals(orderID), nil
}

func (s *stubOrders) AddLineItem(_ context.Context, orderID int64, input orders.LineItemInput) (*orders.Totals, error) {
	s.added = append(s.added, input)
	return s.totals(orderID), nil
}

func (s *stubOrders) RemoveLineItem(_ context.Context, orderID, lineItemID int64) (*orders.Totals, error) {
	s.removed = append(s.removed, lineItemID)
	return s.totals(orderID), nil
}

func (s *stubOrders) ApplyCoupon(_ context.Context, orderID int64, code string) (*orders.Totals, error) {
	s.coupon = code
	return s.totals(orderID), nil
}

func (s *stubOrders) Complete(context.Context, int64) (*orders.Totals, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnresolvedRate, "shipping could not be quoted for this address")
}

type stubLedger struct {
	ledger.Service
	payments []ledger.PaymentInput
	decline  bool
}

func (s *stubLedger) RequestPayment(_ context.Context, input ledger.PaymentInput) (*models.Transaction, error) {
	s.payments = append(s.payments, input)
	txn := &models.Transaction{
		ID:      1,
		OrderID: input.OrderID,
		Gateway: input.GatewayHandle,
		Hash:    "0123456789abcdef0123456789abcdef",
		Type:    input.Type,
		Status:  enums.TransactionStatusSuccess,
		Amount:  input.Amount,
	}
	if s.decline {
		txn.Status = enums.TransactionStatusFailed
		return txn, pkgerrors.New(pkgerrors.CodeGateway, "Your card was declined.").
			WithDetails(map[string]any{"hash": txn.Hash, "code": "card_declined"})
	}
	return txn, nil
}

func (s *stubLedger) Capture(_ context.Context, parentID, amount int64) (*models.Transaction, error) {
	if amount > 5000 {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "capture exceeds remaining authorization")
	}
	return &models.Transaction{ID: 2, ParentID: &parentID, Type: enums.TransactionTypeCapture, Amount: amount}, nil
}

type stubWebhooks struct{}

func (stubWebhooks) Handle(_ context.Context, handle string, _ []byte, signature string) (*webhooks.Outcome, error) {
	if signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature missing")
	}
	return &webhooks.Outcome{Transaction: &models.Transaction{ID: 1, Gateway: handle}}, nil
}

type memStore struct {
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memStore) Claim(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	return m.SetNX(ctx, m.IdempotencyKey(scope, id), "1", ttl)
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

type testEnv struct {
	router http.Handler
	orders *stubOrders
	ledger *stubLedger
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}}}
}

func newTestEnv(t *testing.T, redisErr error) testEnv {
	t.Helper()
	env := testEnv{orders: &stubOrders{}, ledger: &stubLedger{}}
	env.router = NewRouter(Dependencies{
		Config:      testConfig(),
		Logger:      logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard}),
		DB:          stubPinger{},
		Redis:       stubPinger{err: redisErr},
		Idempotency: &memStore{data: map[string]string{}},
		Orders:      env.orders,
		Ledger:      env.ledger,
		Webhooks:    stubWebhooks{},
		Metrics:     prometheus.NewRegistry(),
	})
	return env
}

func serve(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestHealthReady(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := serve(env.router, http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	down := newTestEnv(t, errors.New("connection refused"))
	rec := serve(down.router, http.MethodGet, "/health/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if got := errorCode(t, rec); got != string(pkgerrors.CodeDependency) {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestRecalculateRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPost, "/api/v1/orders/42/recalculate", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.orders.recalculated) != 1 || env.orders.recalculated[0] != 42 {
		t.Fatalf("expected order 42 recalculated, got %v", env.orders.recalculated)
	}

	rec = serve(env.router, http.MethodPost, "/api/v1/orders/abc/recalculate", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id got %d", rec.Code)
	}
}

func TestAddLineItemRequiresIdempotencyKey(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"purchasable_id":7,"qty":2}`

	rec := serve(env.router, http.MethodPost, "/api/v1/orders/42/line-items", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", rec.Code)
	}

	headers := map[string]string{"Idempotency-Key": "add-1"}
	for i := 0; i < 2; i++ {
		rec = serve(env.router, http.MethodPost, "/api/v1/orders/42/line-items", body, headers)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	if len(env.orders.added) != 1 {
		t.Fatalf("expected one add, got %d", len(env.orders.added))
	}
}

func TestAddLineItemValidatesBody(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPost, "/api/v1/orders/42/line-items", `{"purchasable_id":7,"qty":0}`, map[string]string{"Idempotency-Key": "bad"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(env.orders.added) != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestUpdateLineItemZeroQtyRemoves(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPatch, "/api/v1/orders/42/line-items/9", `{"qty":0}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(env.orders.removed) != 1 || env.orders.removed[0] != 9 {
		t.Fatalf("expected line 9 removed, got %v", env.orders.removed)
	}
}

func TestApplyCouponTrimsCode(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPut, "/api/v1/orders/42/coupon", `{"code":"  SAVE10 "}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if env.orders.coupon != "SAVE10" {
		t.Fatalf("expected trimmed code, got %q", env.orders.coupon)
	}
}

func TestCompleteSurfacesUnresolvedRate(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPost, "/api/v1/orders/42/complete", "", map[string]string{"Idempotency-Key": "c-1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if got := errorCode(t, rec); got != string(pkgerrors.CodeUnresolvedRate) {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestPaymentRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"gateway":"dummy","amount":5400,"payment_currency":"EUR","payment_rate":"0.9"}`
	rec := serve(env.router, http.MethodPost, "/api/v1/orders/42/payments", body, map[string]string{"Idempotency-Key": "p-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.ledger.payments) != 1 {
		t.Fatalf("expected one payment request")
	}
	got := env.ledger.payments[0]
	if got.Type != enums.TransactionTypePurchase || got.OrderID != 42 || got.GatewayHandle != gateway.DummyHandle {
		t.Fatalf("unexpected payment input %+v", got)
	}
	if got.PaymentRate.String() != "0.9" {
		t.Fatalf("expected rate 0.9, got %s", got.PaymentRate)
	}

	var payload struct {
		Data ledger.TransactionDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Data.Hash == "" || payload.Data.Status != enums.TransactionStatusSuccess {
		t.Fatalf("unexpected transaction %+v", payload.Data)
	}
}

func TestPaymentDeclineReturnsHash(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.decline = true
	rec := serve(env.router, http.MethodPost, "/api/v1/orders/42/payments", `{"gateway":"dummy","amount":100}`, map[string]string{"Idempotency-Key": "p-2"})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", rec.Code)
	}
	var payload struct {
		Error struct {
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Message != "Your card was declined." {
		t.Fatalf("unexpected message %q", payload.Error.Message)
	}
	if payload.Error.Details["hash"] != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected hash in details, got %v", payload.Error.Details)
	}
}

func TestPaymentRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPost, "/api/v1/orders/42/payments", `{"gateway":"dummy","amount":100,"type":"refund"}`, map[string]string{"Idempotency-Key": "p-3"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCaptureRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPost, "/api/v1/transactions/1/capture", `{"amount":4000}`, map[string]string{"Idempotency-Key": "cap-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(env.router, http.MethodPost, "/api/v1/transactions/1/capture", `{"amount":6000}`, map[string]string{"Idempotency-Key": "cap-2"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if got := errorCode(t, rec); got != string(pkgerrors.CodeIntegrity) {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestGatewayWebhookRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodPost, "/api/v1/webhooks/gateways/dummy", `{}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature got %d", rec.Code)
	}

	rec = serve(env.router, http.MethodPost, "/api/v1/webhooks/gateways/dummy", `{}`, map[string]string{webhooks.SignatureHeader: "sha256=00"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := serve(env.router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
