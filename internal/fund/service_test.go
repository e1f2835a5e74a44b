package fund

import (
	"context"
	"sync"
	"testing"

	"cargopay/internal/domain"
	"cargopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository with the same serialization guarantee
// the postgres implementation provides through row locking.
type memRepo struct {
	mu   sync.Mutex
	rows []*domain.FundTransaction
}

func (r *memRepo) Append(ctx context.Context, tx *domain.FundTransaction) (*domain.FundTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := decimal.Zero
	if n := len(r.rows); n > 0 {
		prev = r.rows[n-1].Balance
	}
	cp := *tx
	cp.Seq = int64(len(r.rows) + 1)
	cp.Balance = prev.Add(tx.Amount)
	r.rows = append(r.rows, &cp)
	return &cp, nil
}

func (r *memRepo) Latest(ctx context.Context) (*domain.FundTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) == 0 {
		return nil, nil
	}
	return r.rows[len(r.rows)-1], nil
}

func (r *memRepo) List(ctx context.Context, limit, offset int) ([]*domain.FundTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.FundTransaction, 0, limit)
	for i := len(r.rows) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.rows[i])
	}
	return out, nil
}

func (r *memRepo) VerifyChain(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	running := decimal.Zero
	for _, row := range r.rows {
		running = running.Add(row.Amount)
		if !row.Balance.Equal(running) {
			return false, nil
		}
	}
	return true, nil
}

func newTestService() (*Service, *memRepo) {
	repo := &memRepo{}
	return NewService(repo, logger.NewNop()), repo
}

func TestAppend_BalanceChaining(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	amounts := []int64{500, 1200, -300, 2500, -1000}
	for _, a := range amounts {
		typ := domain.FundPremiumIn
		if a < 0 {
			typ = domain.FundPayoutOut
		}
		_, err := svc.Append(ctx, typ, decimal.NewFromInt(a), uuid.New(), domain.FundRefInvoice, "test")
		require.NoError(t, err)
	}

	prev := decimal.Zero
	for i, row := range repo.rows {
		want := prev.Add(row.Amount)
		assert.True(t, row.Balance.Equal(want), "row %d: balance %s != %s", i, row.Balance, want)
		prev = row.Balance
	}

	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(2900)))
}

func TestAppend_ConcurrentChainingIsLossless(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	// Seed a starting balance.
	_, err := svc.Append(ctx, domain.FundPremiumIn, decimal.NewFromInt(10000), uuid.New(), domain.FundRefInvoice, "seed")
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		amount := int64(i + 1)
		go func() {
			defer wg.Done()
			_, err := svc.Append(ctx, domain.FundPremiumIn, decimal.NewFromInt(amount), uuid.New(), domain.FundRefInvoice, "concurrent")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, repo.rows, workers+1)

	// Every row chains off its predecessor. All amounts are positive, so a
	// lost update (two rows claiming the same prior balance) would show up as
	// a non-increasing balance.
	prev := decimal.Zero
	for i, row := range repo.rows {
		require.True(t, row.Balance.Equal(prev.Add(row.Amount)), "chain broken at row %d", i)
		require.True(t, row.Balance.GreaterThan(prev), "balance not strictly increasing at row %d", i)
		prev = row.Balance
	}

	// Final balance is permutation-independent: 10000 + sum(1..32).
	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10000+workers*(workers+1)/2)), "balance = %s", balance)
}

func TestAppend_SignConvention(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Append(ctx, domain.FundPremiumIn, decimal.NewFromInt(-5), uuid.New(), domain.FundRefInvoice, "bad")
	assert.Error(t, err)

	_, err = svc.Append(ctx, domain.FundPayoutOut, decimal.NewFromInt(5), uuid.New(), domain.FundRefReturn, "bad")
	assert.Error(t, err)

	_, err = svc.Append(ctx, domain.FundTransactionType("BOGUS"), decimal.NewFromInt(5), uuid.New(), domain.FundRefReturn, "bad")
	assert.Error(t, err)
}

func TestBalance_EmptyLedger(t *testing.T) {
	svc, _ := newTestService()
	balance, err := svc.Balance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestVerifyChain(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.Append(ctx, domain.FundPremiumIn, decimal.NewFromInt(2000), uuid.New(), domain.FundRefInvoice, "premium")
	require.NoError(t, err)
	_, err = svc.Append(ctx, domain.FundPayoutOut, decimal.NewFromInt(-500), uuid.New(), domain.FundRefReturn, "payout")
	require.NoError(t, err)

	ok, err := svc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Corrupt a balance and the replay must notice.
	repo.rows[1].Balance = decimal.NewFromInt(9999)
	ok, err = svc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
