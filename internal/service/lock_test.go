package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelfund-backend/internal/domain"
)

func TestFundLocks_BudgetExhausted(t *testing.T) {
	locks := NewFundLocks(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := locks.acquire(ctx, "fund-1")
	require.NoError(t, err)

	_, err = locks.acquire(ctx, "fund-1")
	assert.ErrorIs(t, err, domain.ErrTransientConflict)

	unlock()
	unlock2, err := locks.acquire(ctx, "fund-1")
	require.NoError(t, err)
	unlock2()
}

func TestFundLocks_IndependentKeys(t *testing.T) {
	locks := NewFundLocks(20 * time.Millisecond)
	ctx := context.Background()

	unlockA, err := locks.acquire(ctx, "fund-a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locks.acquire(ctx, "fund-b")
	require.NoError(t, err)
	unlockB()
}

func TestFundLocks_ContextCancelled(t *testing.T) {
	locks := NewFundLocks(5 * time.Second)

	unlock, err := locks.acquire(context.Background(), "fund-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err = locks.acquire(ctx, "fund-1")
	assert.ErrorIs(t, err, domain.ErrTransientConflict)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFundLocks_Contention(t *testing.T) {
	locks := NewFundLocks(2 * time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	var inside int
	var maxInside int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.acquire(ctx, "fund-1")
			if err != nil {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "lock must serialize access per fund")
}
