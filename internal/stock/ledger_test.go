package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "transfer-router/internal/common/errors"
	"transfer-router/internal/locks"
)

func newTestLedger(t *testing.T) (*Ledger, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewLedger(repo, locks.NewKeyedMutex(), nil), repo
}

func seed(t *testing.T, repo *MemoryRepository, gateway, country string, balance int64) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), &Stock{
		Gateway: gateway,
		Country: country,
		Balance: balance,
	}))
}

func TestLedger_DebitAndCredit(t *testing.T) {
	ledger, repo := newTestLedger(t)
	ctx := context.Background()
	seed(t, repo, "mtn_momo", "CM", 1_000_000)

	require.NoError(t, ledger.Debit(ctx, "mtn_momo", "CM", 300_000))
	assert.Equal(t, int64(700_000), ledger.Available(ctx, "mtn_momo", "CM"))

	require.NoError(t, ledger.Credit(ctx, "mtn_momo", "CM", 100_000))
	assert.Equal(t, int64(800_000), ledger.Available(ctx, "mtn_momo", "CM"))
}

func TestLedger_DebitBeyondBalanceAborts(t *testing.T) {
	ledger, repo := newTestLedger(t)
	ctx := context.Background()
	seed(t, repo, "wave", "SN", 50_000)

	err := ledger.Debit(ctx, "wave", "SN", 60_000)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStockViolation))

	// Nothing committed.
	assert.Equal(t, int64(50_000), ledger.Available(ctx, "wave", "SN"))
}

func TestLedger_UnknownRowReadsZero(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), ledger.Available(ctx, "nobody", "XX"))
	assert.False(t, ledger.Covers(ctx, "nobody", "XX", 1))
}

func TestLedger_ConcurrentDebitsNeverGoNegative(t *testing.T) {
	ledger, repo := newTestLedger(t)
	ctx := context.Background()
	seed(t, repo, "mtn_momo", "CM", 1_000_000)

	const workers = 40
	const amount = 50_000 // 40 * 50k = 2M, twice the balance

	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Debit(ctx, "mtn_momo", "CM", amount); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	remaining := ledger.Available(ctx, "mtn_momo", "CM")
	assert.GreaterOrEqual(t, remaining, int64(0), "balance must never go negative")
	assert.Equal(t, int64(1_000_000)-successes*amount, remaining,
		"cumulative debit must equal the sum of successful amounts")
	assert.Equal(t, int64(20), successes)
}

func TestLedger_ParallelRowsDoNotInterfere(t *testing.T) {
	ledger, repo := newTestLedger(t)
	ctx := context.Background()
	seed(t, repo, "mtn_momo", "CM", 500_000)
	seed(t, repo, "wave", "SN", 500_000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = ledger.Debit(ctx, "mtn_momo", "CM", 10_000)
		}()
		go func() {
			defer wg.Done()
			_ = ledger.Debit(ctx, "wave", "SN", 10_000)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(400_000), ledger.Available(ctx, "mtn_momo", "CM"))
	assert.Equal(t, int64(400_000), ledger.Available(ctx, "wave", "SN"))
}

func TestLedger_BelowThreshold(t *testing.T) {
	ledger, repo := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &Stock{Gateway: "mtn_momo", Country: "CM", Balance: 10_000, MinThreshold: 50_000}))
	require.NoError(t, repo.Upsert(ctx, &Stock{Gateway: "wave", Country: "SN", Balance: 90_000, MinThreshold: 50_000}))

	low, err := ledger.BelowThreshold(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "mtn_momo", low[0].Gateway)
}
