package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	DummyHandle = "dummy"

	// Test card numbers understood by the dummy gateway.
	DummyCardDeclined   = "4000000000000002"
	DummyCardProcessing = "4000000000000259"
	DummyCardTimeout    = "4000000000000119"

	dummyDeclineMessage = "Your card was declined."
)

// Dummy is an in-memory gateway for development and tests. Payments settle
// instantly unless the card number in Details["number"] is one of the dummy
// test cards. Processing payments settle the first time they are looked up.
type Dummy struct {
	mu       sync.Mutex
	payments map[string]Result
}

func NewDummy() *Dummy {
	return &Dummy{payments: make(map[string]Result)}
}

func (d *Dummy) Handle() string {
	return DummyHandle
}

func (d *Dummy) Authorize(ctx context.Context, req Request) (Result, error) {
	return d.charge(ctx, "authorize", req)
}

func (d *Dummy) Purchase(ctx context.Context, req Request) (Result, error) {
	return d.charge(ctx, "purchase", req)
}

func (d *Dummy) Capture(ctx context.Context, req Request) (Result, error) {
	return d.followUp(ctx, "capture", req)
}

func (d *Dummy) Refund(ctx context.Context, req Request) (Result, error) {
	return d.followUp(ctx, "refund", req)
}

// Lookup reports the recorded outcome for a payment.
func (d *Dummy) Lookup(ctx context.Context, query LookupQuery) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	res, ok := d.payments[query.TransactionHash]
	if !ok {
		return Result{}, ErrUnknownReference
	}
	if res.Processing {
		res.Processing = false
		res.Success = true
		res.RawResponse = rawResponse("settled", res.Reference, "")
		d.payments[query.TransactionHash] = res
	}
	return res, nil
}

func (d *Dummy) charge(ctx context.Context, operation string, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	reference := newReference(operation)
	number := strings.ReplaceAll(req.Details["number"], " ", "")

	var res Result
	switch number {
	case DummyCardDeclined:
		res = Result{Reference: reference, Code: "card_declined", Message: dummyDeclineMessage, RawResponse: rawResponse("declined", reference, "card_declined")}
	case DummyCardProcessing:
		res = Result{Processing: true, Reference: reference, RawResponse: rawResponse("processing", reference, "")}
	case DummyCardTimeout:
		// The payment goes through but the response never arrives.
		d.record(req.TransactionHash, Result{Success: true, Reference: reference, RawResponse: rawResponse("succeeded", reference, "")})
		<-ctx.Done()
		return Result{}, ctx.Err()
	default:
		res = Result{Success: true, Reference: reference, RawResponse: rawResponse("succeeded", reference, "")}
	}
	d.record(req.TransactionHash, res)
	return res, nil
}

func (d *Dummy) followUp(ctx context.Context, operation string, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.Reference) == "" {
		reference := newReference(operation)
		res := Result{Reference: reference, Code: "missing_reference", Message: "parent reference is required", RawResponse: rawResponse("rejected", reference, "missing_reference")}
		d.record(req.TransactionHash, res)
		return res, nil
	}
	reference := newReference(operation)
	res := Result{Success: true, Reference: reference, RawResponse: rawResponse("succeeded", reference, "")}
	d.record(req.TransactionHash, res)
	return res, nil
}

func (d *Dummy) record(hash string, res Result) {
	if hash == "" {
		return
	}
	d.mu.Lock()
	d.payments[hash] = res
	d.mu.Unlock()
}

func newReference(operation string) string {
	return operation + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func rawResponse(status, reference, code string) json.RawMessage {
	payload, _ := json.Marshal(map[string]string{
		"status":    status,
		"reference": reference,
		"code":      code,
	})
	return payload
}
