package postgres

import (
	"context"
	"database/sql"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// ActiveByOrder returns the order's active policy. A missing policy is a
// normal outcome, not an error.
func (r *PolicyRepository) ActiveByOrder(ctx context.Context, orderID uuid.UUID) (*domain.InsurancePolicy, error) {
	var policy domain.InsurancePolicy
	query := `SELECT * FROM insurance_policies WHERE order_id = $1 AND status = 'ACTIVE' ORDER BY created_at DESC LIMIT 1`

	err := r.db.GetContext(ctx, &policy, query, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find insurance policy")
	}
	return &policy, nil
}

func (r *PolicyRepository) MarkClaimed(ctx context.Context, policyID uuid.UUID) error {
	query := `UPDATE insurance_policies SET status = 'CLAIMED' WHERE id = $1 AND status = 'ACTIVE'`

	result, err := r.db.ExecContext(ctx, query, policyID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to mark policy claimed")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check policy update")
	}
	if rows == 0 {
		return pkgerrors.ErrPolicyNotFound
	}
	return nil
}

func (r *PolicyRepository) CreateClaim(ctx context.Context, claim *domain.InsuranceClaim) error {
	query := `
		INSERT INTO insurance_claims (
			id, policy_id, return_request_id, amount, fund_transaction_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		claim.ID, claim.PolicyID, claim.ReturnRequestID,
		claim.Amount, claim.FundTransactionID, claim.CreatedAt,
	)
	return pkgerrors.Wrap(err, "failed to create insurance claim")
}
