package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type SettlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create persists a draft settlement. The unique index on
// (company_id, role, period_start, period_end) makes regeneration idempotent.
func (r *SettlementRepository) Create(ctx context.Context, s *domain.Settlement) error {
	query := `
		INSERT INTO settlements (
			id, company_id, carrier_id, role, period_start, period_end,
			invoice_count, shipping_total, fee_total, qpay_fee_total,
			carrier_total, refund_total, original_amount, adjustment_amount,
			adjustment_note, net_amount, hub_approval_status,
			carrier_approval_status, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.CompanyID, s.CarrierID, s.Role, s.PeriodStart, s.PeriodEnd,
		s.InvoiceCount, s.ShippingTotal, s.FeeTotal, s.QPayFeeTotal,
		s.CarrierTotal, s.RefundTotal, s.OriginalAmount, s.AdjustmentAmount,
		s.AdjustmentNote, s.NetAmount, s.HubApprovalStatus,
		s.CarrierApprovalStatus, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrSettlementExists
		}
		return pkgerrors.Wrap(err, "failed to create settlement")
	}
	return nil
}

func (r *SettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	var s domain.Settlement
	query := `SELECT * FROM settlements WHERE id = $1`

	err := r.db.GetContext(ctx, &s, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrSettlementNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find settlement")
	}
	return &s, nil
}

func (r *SettlementRepository) List(ctx context.Context, companyID *uuid.UUID, status *domain.SettlementStatus, limit, offset int) ([]*domain.Settlement, error) {
	query := `SELECT * FROM settlements WHERE 1=1`
	args := []interface{}{}

	if companyID != nil {
		args = append(args, *companyID)
		query += ` AND company_id = $` + strconv.Itoa(len(args))
	}
	if status != nil {
		args = append(args, *status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY period_start DESC, created_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	var settlements []*domain.Settlement
	err := r.db.SelectContext(ctx, &settlements, query, args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list settlements")
	}
	return settlements, nil
}

// UpdateHubReview persists a hub decision guarded by the status the caller
// observed.
func (r *SettlementRepository) UpdateHubReview(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error {
	query := `
		UPDATE settlements SET
			status = $1, hub_approval_status = $2, adjustment_amount = $3,
			adjustment_note = $4, net_amount = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		s.Status, s.HubApprovalStatus, s.AdjustmentAmount,
		s.AdjustmentNote, s.NetAmount, s.UpdatedAt, s.ID, from,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to update hub review")
	}
	return r.requireRow(result, "settlement changed state during hub review")
}

func (r *SettlementRepository) UpdateCarrierReview(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error {
	query := `
		UPDATE settlements SET
			status = $1, carrier_approval_status = $2, hub_approval_status = $3,
			adjustment_note = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		s.Status, s.CarrierApprovalStatus, s.HubApprovalStatus,
		s.AdjustmentNote, s.UpdatedAt, s.ID, from,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to update carrier review")
	}
	return r.requireRow(result, "settlement changed state during carrier review")
}

func (r *SettlementRepository) MarkTransferred(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error {
	query := `
		UPDATE settlements SET
			status = $1, transfer_reference = $2, transfer_receipt = $3,
			transferred_at = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		s.Status, s.TransferReference, s.TransferReceipt,
		s.TransferredAt, s.UpdatedAt, s.ID, from,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to mark settlement transferred")
	}
	return r.requireRow(result, "settlement changed state during transfer")
}

func (r *SettlementRepository) requireRow(result sql.Result, conflictMessage string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check settlement update")
	}
	if rows == 0 {
		return pkgerrors.StateConflict("SETTLEMENT_STATE_CHANGED", conflictMessage)
	}
	return nil
}
