package postgres

import (
	"context"
	"database/sql"
	"time"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// FundRepository implements the append-only risk-fund ledger. Each append
// runs in a SERIALIZABLE transaction so concurrent writers cannot chain off
// the same prior balance; the loser fails with a serialization error and is
// retried a bounded number of times.
type FundRepository struct {
	db *sqlx.DB
}

func NewFundRepository(db *sqlx.DB) *FundRepository {
	return &FundRepository{db: db}
}

const fundAppendRetries = 5

func (r *FundRepository) Append(ctx context.Context, tx *domain.FundTransaction) (*domain.FundTransaction, error) {
	var lastErr error
	for i := 0; i < fundAppendRetries; i++ {
		appended, err := r.tryAppend(ctx, tx)
		if err == nil {
			return appended, nil
		}
		if !retryableAppendError(err) {
			return nil, err
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	return nil, &pkgerrors.Error{
		Kind:    pkgerrors.KindStateConflict,
		Code:    "LEDGER_CONTENTION",
		Message: "failed to append fund transaction after retries",
		Err:     lastErr,
	}
}

func (r *FundRepository) tryAppend(ctx context.Context, entry *domain.FundTransaction) (*domain.FundTransaction, error) {
	// Serializable, not the default READ COMMITTED: a row lock on the head
	// alone does not help, because a writer that blocked on the old head
	// resumes with a snapshot that cannot see the newly committed head and
	// would chain off a stale balance. Under SERIALIZABLE that writer fails
	// with 40001 and the caller retries against the new head. The same goes
	// for two first appends into an empty ledger, where there is no row to
	// lock at all.
	dbtx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to begin fund transaction")
	}
	defer dbtx.Rollback()

	// Lock the chain head so the new balance is computed against it.
	var prev domain.FundTransaction
	queryLast := `SELECT * FROM fund_transactions ORDER BY seq DESC LIMIT 1 FOR UPDATE`
	err = dbtx.GetContext(ctx, &prev, queryLast)
	if err != nil && err != sql.ErrNoRows {
		return nil, pkgerrors.Wrap(err, "failed to read fund chain head")
	}

	entry.Balance = prev.Balance.Add(entry.Amount)

	insertQuery := `
		INSERT INTO fund_transactions (
			id, type, amount, balance, reference_id, reference_type, description, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING seq
	`
	err = dbtx.QueryRowxContext(ctx, insertQuery,
		entry.ID, entry.Type, entry.Amount, entry.Balance,
		entry.ReferenceID, entry.ReferenceType, entry.Description, entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to insert fund transaction")
	}

	if err := dbtx.Commit(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to commit fund transaction")
	}
	return entry, nil
}

// retryableAppendError reports serialization failures and unique violations,
// which a concurrent append can cause and a retry can resolve.
func retryableAppendError(err error) bool {
	cause := err
	for {
		if pqErr, ok := cause.(*pq.Error); ok {
			return pqErr.Code == "40001" || pqErr.Code == "23505"
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := cause.(unwrapper)
		if !ok {
			return false
		}
		cause = u.Unwrap()
		if cause == nil {
			return false
		}
	}
}

func (r *FundRepository) Latest(ctx context.Context) (*domain.FundTransaction, error) {
	var entry domain.FundTransaction
	query := `SELECT * FROM fund_transactions ORDER BY seq DESC LIMIT 1`

	err := r.db.GetContext(ctx, &entry, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read latest fund transaction")
	}
	return &entry, nil
}

func (r *FundRepository) List(ctx context.Context, limit, offset int) ([]*domain.FundTransaction, error) {
	var entries []*domain.FundTransaction
	query := `SELECT * FROM fund_transactions ORDER BY seq DESC LIMIT $1 OFFSET $2`

	err := r.db.SelectContext(ctx, &entries, query, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list fund transactions")
	}
	return entries, nil
}

// VerifyChain recomputes every running balance from the start of the ledger
// and reports the first row that breaks the chain.
func (r *FundRepository) VerifyChain(ctx context.Context) (bool, error) {
	var entries []domain.FundTransaction
	query := `SELECT * FROM fund_transactions ORDER BY seq ASC`

	err := r.db.SelectContext(ctx, &entries, query)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to read fund ledger")
	}

	running := decimal.Zero
	for _, entry := range entries {
		running = running.Add(entry.Amount)
		if !entry.Balance.Equal(running) {
			return false, pkgerrors.Invariantf("FUND_CHAIN_BROKEN",
				"fund chain broken at seq %d: expected balance %s, got %s",
				entry.Seq, running.String(), entry.Balance.String())
		}
	}
	return true, nil
}
