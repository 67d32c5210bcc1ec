package orders

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/google/uuid"
)

const (
	lockScope       = "order"
	defaultLeaseTTL = 30 * time.Second
	leasePoll       = 50 * time.Millisecond
)

// leaseStore is the subset of the redis client used for cross-process leases.
type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

// Locker serializes work on a single order. An in-process keyed mutex guards
// goroutines; an optional Redis lease guards other processes. The version
// column on orders remains the final arbiter.
type Locker struct {
	mu    sync.Mutex
	slots map[int64]*slot
	store leaseStore
	ttl   time.Duration
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocker builds a locker. store may be nil for single-process setups.
func NewLocker(store leaseStore, ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if wait <= 0 {
		wait = ttl
	}
	return &Locker{
		slots: make(map[int64]*slot),
		store: store,
		ttl:   ttl,
		wait:  wait,
	}
}

// Lock blocks until the order is held or the wait budget runs out. The
// returned release func must be called exactly once.
func (l *Locker) Lock(ctx context.Context, orderID int64) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	s := l.acquireSlot(orderID)
	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.releaseSlot(orderID, s, false)
		return nil, lockBusy(orderID)
	}

	owner, err := l.acquireLease(waitCtx, orderID)
	if err != nil {
		l.releaseSlot(orderID, s, true)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.releaseLease(orderID, owner)
			l.releaseSlot(orderID, s, true)
		})
	}, nil
}

func (l *Locker) acquireSlot(orderID int64) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[orderID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[orderID] = s
	}
	s.refs++
	return s
}

func (l *Locker) releaseSlot(orderID int64, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, orderID)
	}
}

func (l *Locker) acquireLease(ctx context.Context, orderID int64) (string, error) {
	if l.store == nil {
		return "", nil
	}
	key := l.store.LockKey(lockScope, strconv.FormatInt(orderID, 10))
	owner := uuid.NewString()
	ticker := time.NewTicker(leasePoll)
	defer ticker.Stop()
	for {
		ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return "", lockBusy(orderID)
			}
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire order lease")
		}
		if ok {
			return owner, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", lockBusy(orderID)
		}
	}
}

func (l *Locker) releaseLease(orderID int64, owner string) {
	if l.store == nil || owner == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := l.store.LockKey(lockScope, strconv.FormatInt(orderID, 10))
	current, err := l.store.Get(ctx, key)
	if err != nil || current != owner {
		return
	}
	_ = l.store.Del(ctx, key)
}

func lockBusy(orderID int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order %d is being updated, retry shortly", orderID))
}
