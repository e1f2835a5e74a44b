package postgres

import (
	"context"
	"time"

	"cargopay/internal/settlement"
	pkgerrors "cargopay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// FeeRepository aggregates platform fees and charged refunds for settlement
// generation. Periods are half-open: paid_at >= from AND paid_at < to.
type FeeRepository struct {
	db *sqlx.DB
}

func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

type hubTotalsRow struct {
	InvoiceCount int             `db:"invoice_count"`
	Shipping     decimal.Decimal `db:"shipping"`
	ShippingVat  decimal.Decimal `db:"shipping_vat"`
	StorageVat   decimal.Decimal `db:"storage_vat"`
	Fee          decimal.Decimal `db:"fee"`
	FeeVat       decimal.Decimal `db:"fee_vat"`
	QPay         decimal.Decimal `db:"qpay"`
	Carrier      decimal.Decimal `db:"carrier"`
}

func (r *FeeRepository) HubTotals(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*settlement.HubTotals, error) {
	var row hubTotalsRow
	query := `
		SELECT
			COUNT(*)                           AS invoice_count,
			COALESCE(SUM(pf.shipping_amount), 0) AS shipping,
			COALESCE(SUM(pf.shipping_vat), 0)    AS shipping_vat,
			COALESCE(SUM(pf.storage_vat), 0)     AS storage_vat,
			COALESCE(SUM(pf.fee_amount), 0)      AS fee,
			COALESCE(SUM(pf.fee_vat), 0)         AS fee_vat,
			COALESCE(SUM(pf.qpay_fee), 0)        AS qpay,
			COALESCE(SUM(pf.carrier_amount), 0)  AS carrier
		FROM platform_fees pf
		JOIN invoices i ON i.id = pf.invoice_id
		WHERE pf.company_id = $1
		  AND i.status = 'PAID'
		  AND i.paid_at >= $2 AND i.paid_at < $3
	`

	err := r.db.GetContext(ctx, &row, query, companyID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to aggregate hub totals")
	}

	totals := &settlement.HubTotals{
		InvoiceCount: row.InvoiceCount,
		Shipping:     row.Shipping,
		ShippingVat:  row.ShippingVat,
		StorageVat:   row.StorageVat,
		Fee:          row.Fee,
		FeeVat:       row.FeeVat,
		QPay:         row.QPay,
		Carrier:      row.Carrier,
	}
	if totals.InvoiceCount == 0 {
		return totals, nil
	}

	carrierQuery := `
		SELECT pf.carrier_id
		FROM platform_fees pf
		JOIN invoices i ON i.id = pf.invoice_id
		WHERE pf.company_id = $1
		  AND i.status = 'PAID'
		  AND i.paid_at >= $2 AND i.paid_at < $3
		GROUP BY pf.carrier_id
	`
	var carriers []*uuid.UUID
	if err := r.db.SelectContext(ctx, &carriers, carrierQuery, companyID, from, to); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to inspect period carriers")
	}
	if len(carriers) == 1 && carriers[0] != nil {
		totals.SoleCarrierID = carriers[0]
	}

	return totals, nil
}

func (r *FeeRepository) CarrierTotals(ctx context.Context, carrierID uuid.UUID, from, to time.Time) (*settlement.CarrierTotals, error) {
	var row struct {
		InvoiceCount int             `db:"invoice_count"`
		Amount       decimal.Decimal `db:"amount"`
	}
	query := `
		SELECT
			COUNT(*)                          AS invoice_count,
			COALESCE(SUM(pf.carrier_amount), 0) AS amount
		FROM platform_fees pf
		JOIN invoices i ON i.id = pf.invoice_id
		WHERE pf.carrier_id = $1
		  AND i.status = 'PAID'
		  AND i.paid_at >= $2 AND i.paid_at < $3
	`

	err := r.db.GetContext(ctx, &row, query, carrierID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to aggregate carrier totals")
	}

	return &settlement.CarrierTotals{
		InvoiceCount: row.InvoiceCount,
		Amount:       row.Amount,
	}, nil
}

// RefundChargedTotal sums completed refunds absorbed by the hub company, that
// is, refunds whose liability landed on a cargo-side role. The insurance
// payout slice is excluded: the risk fund already disbursed it, so only the
// remainder is charged to the hub.
func (r *FeeRepository) RefundChargedTotal(ctx context.Context, companyID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `
		SELECT COALESCE(SUM(rt.amount - rt.insurance_payout), 0)
		FROM refund_transactions rt
		JOIN return_requests rr ON rr.id = rt.return_request_id
		JOIN packages p ON p.id = rr.package_id
		WHERE p.company_id = $1
		  AND rt.status = 'COMPLETED'
		  AND rt.charged_to IN ('CARGO_TRANSIT', 'CARGO_MONGOLIA', 'CARGO_ERLIAN')
		  AND rt.updated_at >= $2 AND rt.updated_at < $3
	`

	err := r.db.GetContext(ctx, &total, query, companyID, from, to)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(err, "failed to aggregate charged refunds")
	}
	return total, nil
}
