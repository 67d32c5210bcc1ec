package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/redis"
)

const guardScope = "gateway_callback"

// IdempotencyGuard remembers which callbacks were already applied. A
// callback is identified by transaction hash, gateway reference and the
// status it reports, so a retry with a different outcome still reaches the
// ledger and is rejected there.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// Claim reports whether this delivery is the first one seen.
func (g *IdempotencyGuard) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("callback key is required")
	}
	ok, err := g.store.Claim(ctx, guardScope, key, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim callback: %w", err)
	}
	return ok, nil
}

// Release forgets a claim so the sender's retry is processed.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("callback key is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(guardScope, key))
}

// CallbackKey builds the dedupe key for one callback delivery.
func CallbackKey(hash, reference, status string) string {
	return strings.Join([]string{hash, reference, status}, "|")
}
