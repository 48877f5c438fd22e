package service

import (
	"context"
	"sync"
	"time"

	"travelfund-backend/internal/domain"
)

// FundLocks serializes mutations per fund id. Both the fund service and the
// reimbursement workflow share one table so an approval cannot interleave
// with a renewal or block on the same fund. Acquisition is bounded: a caller
// that cannot get the lock within the budget receives ErrTransientConflict
// instead of queueing indefinitely.
type FundLocks struct {
	locks    sync.Map // fund id -> *sync.Mutex
	waitSlot time.Duration
	budget   time.Duration
}

func NewFundLocks(budget time.Duration) *FundLocks {
	return &FundLocks{
		waitSlot: 5 * time.Millisecond,
		budget:   budget,
	}
}

// acquire returns an unlock func, or ErrTransientConflict when the budget is
// exhausted or the context is cancelled first.
func (t *FundLocks) acquire(ctx context.Context, key string) (func(), error) {
	v, _ := t.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)

	deadline := time.Now().Add(t.budget)
	for {
		if mu.TryLock() {
			return mu.Unlock, nil
		}
		if time.Now().After(deadline) {
			return nil, domain.NewError(domain.CodeTransientConflict, "fund %s is busy", key)
		}
		select {
		case <-ctx.Done():
			return nil, domain.NewError(domain.CodeTransientConflict, "cancelled waiting for fund %s", key)
		case <-time.After(t.waitSlot):
		}
	}
}
