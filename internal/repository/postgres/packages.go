package postgres

import (
	"context"
	"database/sql"
	"time"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PackageRepository reads the package/order/batch store and writes only the
// status transitions this engine owns.
type PackageRepository struct {
	db *sqlx.DB
}

func NewPackageRepository(db *sqlx.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Package, error) {
	var pkg domain.Package
	query := `SELECT * FROM packages WHERE id = $1`

	err := r.db.GetContext(ctx, &pkg, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrPackageNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find package")
	}
	return &pkg, nil
}

func (r *PackageRepository) FindOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	query := `SELECT * FROM orders WHERE id = $1`

	err := r.db.GetContext(ctx, &order, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.E(pkgerrors.KindNotFound, "ORDER_NOT_FOUND", "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find order")
	}
	return &order, nil
}

func (r *PackageRepository) FindBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	var batch domain.Batch
	query := `SELECT * FROM batches WHERE id = $1`

	err := r.db.GetContext(ctx, &batch, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.E(pkgerrors.KindNotFound, "BATCH_NOT_FOUND", "batch not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find batch")
	}
	return &batch, nil
}

func (r *PackageRepository) FindBid(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	var bid domain.Bid
	query := `SELECT * FROM bids WHERE id = $1`

	err := r.db.GetContext(ctx, &bid, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.E(pkgerrors.KindNotFound, "BID_NOT_FOUND", "bid not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find bid")
	}
	return &bid, nil
}

func (r *PackageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) error {
	query := `UPDATE packages SET status = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to update package status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check package update")
	}
	if rows == 0 {
		return pkgerrors.ErrPackageNotFound
	}
	return nil
}

// MarkDeliveredByInvoice delivers every package billed on the invoice and
// completes orders whose packages are all delivered, in one transaction.
func (r *PackageRepository) MarkDeliveredByInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to begin delivery transaction")
	}
	defer tx.Rollback()

	deliverQuery := `
		UPDATE packages SET status = $1
		WHERE id IN (
			SELECT package_id FROM invoice_items
			WHERE invoice_id = $2 AND package_id IS NOT NULL
		) AND status <> $1
	`
	result, err := tx.ExecContext(ctx, deliverQuery, domain.PackageStatusDelivered, invoiceID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to deliver packages")
	}
	delivered, err := result.RowsAffected()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to count delivered packages")
	}

	completeQuery := `
		UPDATE orders SET status = $1
		WHERE id IN (
			SELECT DISTINCT p.order_id FROM packages p
			JOIN invoice_items it ON it.package_id = p.id
			WHERE it.invoice_id = $2 AND p.order_id IS NOT NULL
		)
		AND NOT EXISTS (
			SELECT 1 FROM packages p2
			WHERE p2.order_id = orders.id AND p2.status <> $3
		)
	`
	_, err = tx.ExecContext(ctx, completeQuery,
		domain.OrderStatusCompleted, invoiceID, domain.PackageStatusDelivered)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to complete orders")
	}

	if err := tx.Commit(); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to commit delivery")
	}
	return int(delivered), nil
}

// PricingRepository serves the pricing configuration read models.
type PricingRepository struct {
	db *sqlx.DB
}

func NewPricingRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

func (r *PricingRepository) Settings(ctx context.Context) (*domain.PlatformSettings, error) {
	var settings domain.PlatformSettings
	query := `SELECT * FROM platform_settings LIMIT 1`

	err := r.db.GetContext(ctx, &settings, query)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Configuration("SETTINGS_MISSING", "platform settings not configured")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load platform settings")
	}
	return &settings, nil
}

// Rate returns the currently valid rate for a base currency. Pricing fails
// closed when no rate row covers the current instant.
func (r *PricingRepository) Rate(ctx context.Context, base domain.Currency) (decimal.Decimal, error) {
	var rate domain.ExchangeRate
	query := `
		SELECT * FROM exchange_rates
		WHERE base_currency = $1
		  AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY valid_from DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &rate, query, base, time.Now().UTC())
	if err == sql.ErrNoRows {
		return decimal.Zero, pkgerrors.ErrRateNotAvailable
	}
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(err, "failed to load exchange rate")
	}
	return rate.Rate, nil
}

// RuleFor resolves the most specific pricing rule: a category match first,
// then the company default. No rule is not an error.
func (r *PricingRepository) RuleFor(ctx context.Context, companyID uuid.UUID, categoryID *uuid.UUID) (*domain.PricingRule, error) {
	var rule domain.PricingRule

	if categoryID != nil {
		query := `SELECT * FROM pricing_rules WHERE company_id = $1 AND category_id = $2 ORDER BY created_at DESC LIMIT 1`
		err := r.db.GetContext(ctx, &rule, query, companyID, *categoryID)
		if err == nil {
			return &rule, nil
		}
		if err != sql.ErrNoRows {
			return nil, pkgerrors.Wrap(err, "failed to load category pricing rule")
		}
	}

	query := `SELECT * FROM pricing_rules WHERE company_id = $1 AND category_id IS NULL ORDER BY created_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &rule, query, companyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load pricing rule")
	}
	return &rule, nil
}
