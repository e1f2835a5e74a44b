package postgres

import (
	"context"
	"database/sql"
	"time"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ReturnRepository struct {
	db *sqlx.DB
}

func NewReturnRepository(db *sqlx.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

func (r *ReturnRepository) Create(ctx context.Context, rr *domain.ReturnRequest) error {
	query := `
		INSERT INTO return_requests (
			id, package_id, order_id, opened_by, type, liable_party,
			liability_reason, status, approved_amount, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		rr.ID, rr.PackageID, rr.OrderID, rr.OpenedBy, rr.Type, rr.LiableParty,
		rr.LiabilityReason, rr.Status, rr.ApprovedAmount, rr.CreatedAt, rr.UpdatedAt,
	)
	return pkgerrors.Wrap(err, "failed to create return request")
}

func (r *ReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	var rr domain.ReturnRequest
	query := `SELECT * FROM return_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &rr, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrReturnNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find return request")
	}
	return &rr, nil
}

// UpdateReview compare-and-sets on the reviewable states so two reviewers
// cannot both decide the same request.
func (r *ReturnRepository) UpdateReview(ctx context.Context, rr *domain.ReturnRequest) error {
	query := `
		UPDATE return_requests SET
			status = $1, liable_party = $2, liability_reason = $3,
			approved_amount = $4, reviewed_by = $5, reviewed_at = $6, updated_at = $7
		WHERE id = $8 AND status IN ('OPENED', 'UNDER_REVIEW')
	`

	result, err := r.db.ExecContext(ctx, query,
		rr.Status, rr.LiableParty, rr.LiabilityReason, rr.ApprovedAmount,
		rr.ReviewedBy, rr.ReviewedAt, rr.UpdatedAt, rr.ID,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to update return review")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check return update")
	}
	if rows == 0 {
		return pkgerrors.ErrReturnNotReviewable
	}
	return nil
}

// BeginRefund inserts the refund decomposition and moves the return to
// REFUND_PROCESSING in one transaction.
func (r *ReturnRepository) BeginRefund(ctx context.Context, refund *domain.RefundTransaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin refund transaction")
	}
	defer tx.Rollback()

	refundQuery := `
		INSERT INTO refund_transactions (
			id, return_request_id, amount, shipping_refund, customs_refund,
			insurance_payout, compensation, charged_to, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`
	_, err = tx.ExecContext(ctx, refundQuery,
		refund.ID, refund.ReturnRequestID, refund.Amount,
		refund.ShippingRefund, refund.CustomsRefund, refund.InsurancePayout,
		refund.Compensation, refund.ChargedTo, refund.Status,
		refund.CreatedAt, refund.UpdatedAt,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to insert refund transaction")
	}

	statusQuery := `
		UPDATE return_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'APPROVED'
	`
	result, err := tx.ExecContext(ctx, statusQuery,
		domain.ReturnStatusRefundProcessing, time.Now().UTC(), refund.ReturnRequestID,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to transition return request")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check return transition")
	}
	if rows == 0 {
		return pkgerrors.ErrReturnNotReviewable
	}

	return pkgerrors.Wrap(tx.Commit(), "failed to commit refund")
}

// CompleteRefund marks a processing refund COMPLETED and closes its return
// request in one transaction. Settlement aggregation only counts COMPLETED
// refunds, so this is the transition that makes the charge visible.
func (r *ReturnRepository) CompleteRefund(ctx context.Context, refundID, returnID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin refund completion")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	refundQuery := `
		UPDATE refund_transactions SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'PROCESSING'
	`
	result, err := tx.ExecContext(ctx, refundQuery, domain.RefundStatusCompleted, now, refundID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to complete refund transaction")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check refund completion")
	}
	if rows == 0 {
		return pkgerrors.ErrRefundNotProcessing
	}

	returnQuery := `
		UPDATE return_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'REFUND_PROCESSING'
	`
	result, err = tx.ExecContext(ctx, returnQuery, domain.ReturnStatusClosed, now, returnID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to close return request")
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check return closure")
	}
	if rows == 0 {
		return pkgerrors.Invariantf("RETURN_REFUND_MISMATCH",
			"return %s is not in refund processing while its refund %s is", returnID, refundID)
	}

	return pkgerrors.Wrap(tx.Commit(), "failed to commit refund completion")
}

// ListByStatus returns requests in one status, oldest first so the review
// queue drains in order.
func (r *ReturnRepository) ListByStatus(ctx context.Context, status domain.ReturnStatus, limit, offset int) ([]*domain.ReturnRequest, error) {
	var requests []*domain.ReturnRequest
	query := `SELECT * FROM return_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &requests, query, status, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list return requests")
	}
	return requests, nil
}

type RefundRepository struct {
	db *sqlx.DB
}

func NewRefundRepository(db *sqlx.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RefundStatus) error {
	query := `UPDATE refund_transactions SET status = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	return pkgerrors.Wrap(err, "failed to update refund status")
}

func (r *RefundRepository) FindByReturn(ctx context.Context, returnRequestID uuid.UUID) (*domain.RefundTransaction, error) {
	var refund domain.RefundTransaction
	query := `SELECT * FROM refund_transactions WHERE return_request_id = $1 ORDER BY created_at DESC LIMIT 1`

	err := r.db.GetContext(ctx, &refund, query, returnRequestID)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrReturnNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find refund transaction")
	}
	return &refund, nil
}
