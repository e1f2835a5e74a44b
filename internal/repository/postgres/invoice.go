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

type InvoiceRepository struct {
	db *sqlx.DB
}

func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// CreateWithItems writes the invoice, its line items, and the platform fee in
// one transaction.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, inv *domain.Invoice, items []*domain.InvoiceItem, fee *domain.PlatformFee) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin invoice transaction")
	}
	defer tx.Rollback()

	invoiceQuery := `
		INSERT INTO invoices (
			id, company_id, customer_id, code, shipping_amount, insurance_amount,
			customs_amount, storage_amount, vat_amount, total_amount, status,
			due_date, payment_method, pickup_token, ebarimt_status, premium_status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`
	_, err = tx.ExecContext(ctx, invoiceQuery,
		inv.ID, inv.CompanyID, inv.CustomerID, inv.Code,
		inv.ShippingAmount, inv.InsuranceAmount, inv.CustomsAmount, inv.StorageAmount,
		inv.VatAmount, inv.TotalAmount, inv.Status, inv.DueDate,
		inv.PaymentMethod, inv.PickupToken, inv.EbarimtStatus, inv.PremiumStatus,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to insert invoice")
	}

	itemQuery := `
		INSERT INTO invoice_items (
			id, invoice_id, package_id, description, unit_price, vat, amount, item_type, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`
	for _, item := range items {
		_, err = tx.ExecContext(ctx, itemQuery,
			item.ID, item.InvoiceID, item.PackageID, item.Description,
			item.UnitPrice, item.Vat, item.Amount, item.ItemType, item.CreatedAt,
		)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to insert invoice item")
		}
	}

	feeQuery := `
		INSERT INTO platform_fees (
			id, invoice_id, company_id, carrier_id, shipping_amount, shipping_vat,
			storage_vat, fee_amount, fee_vat, qpay_fee, carrier_amount, net_to_cargo, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`
	_, err = tx.ExecContext(ctx, feeQuery,
		fee.ID, fee.InvoiceID, fee.CompanyID, fee.CarrierID,
		fee.ShippingAmount, fee.ShippingVat, fee.StorageVat,
		fee.FeeAmount, fee.FeeVat, fee.QPayFee, fee.CarrierAmount, fee.NetToCargo, fee.CreatedAt,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to insert platform fee")
	}

	return pkgerrors.Wrap(tx.Commit(), "failed to commit invoice")
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	query := `SELECT * FROM invoices WHERE id = $1`

	err := r.db.GetContext(ctx, &inv, query, id)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find invoice")
	}
	return &inv, nil
}

func (r *InvoiceRepository) FindByPackage(ctx context.Context, packageID uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	query := `
		SELECT i.* FROM invoices i
		JOIN invoice_items it ON it.invoice_id = i.id
		WHERE it.package_id = $1 AND i.status <> 'REVOKED'
		ORDER BY i.created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &inv, query, packageID)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to find invoice by package")
	}
	return &inv, nil
}

func (r *InvoiceRepository) HasInvoiceForPackage(ctx context.Context, packageID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices i
			JOIN invoice_items it ON it.invoice_id = i.id
			WHERE it.package_id = $1 AND i.status <> 'REVOKED'
		)
	`

	err := r.db.GetContext(ctx, &exists, query, packageID)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to check invoice existence")
	}
	return exists, nil
}

// MarkPaid compare-and-sets on status so two concurrent payments cannot both
// succeed.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices SET
			status = $1, paid_at = $2, payment_method = $3, pickup_token = $4, updated_at = $5
		WHERE id = $6 AND status <> 'PAID' AND status <> 'REVOKED'
	`

	result, err := r.db.ExecContext(ctx, query,
		inv.Status, inv.PaidAt, inv.PaymentMethod, inv.PickupToken, inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to mark invoice paid")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check invoice update")
	}
	if rows == 0 {
		return pkgerrors.ErrInvoiceAlreadyPaid
	}
	return nil
}

func (r *InvoiceRepository) SetEbarimt(ctx context.Context, id uuid.UUID, status domain.EbarimtStatus, billID, lottery, qrData *string) error {
	query := `
		UPDATE invoices SET
			ebarimt_status = $1, ebarimt_bill_id = $2, ebarimt_lottery = $3,
			ebarimt_qr_data = $4, updated_at = $5
		WHERE id = $6
	`

	_, err := r.db.ExecContext(ctx, query, status, billID, lottery, qrData, time.Now().UTC(), id)
	return pkgerrors.Wrap(err, "failed to update ebarimt state")
}

func (r *InvoiceRepository) SetPremiumStatus(ctx context.Context, id uuid.UUID, status domain.PremiumStatus) error {
	query := `UPDATE invoices SET premium_status = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	return pkgerrors.Wrap(err, "failed to update premium state")
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) error {
	query := `UPDATE invoices SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to update invoice status")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check invoice update")
	}
	if rows == 0 {
		return pkgerrors.ErrInvoiceNotFound
	}
	return nil
}

// ListByCompany returns a company's invoices, newest first.
func (r *InvoiceRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	query := `SELECT * FROM invoices WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &invoices, query, companyID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list invoices")
	}
	return invoices, nil
}

// Items returns the line items of one invoice.
func (r *InvoiceRepository) Items(ctx context.Context, invoiceID uuid.UUID) ([]*domain.InvoiceItem, error) {
	var items []*domain.InvoiceItem
	query := `SELECT * FROM invoice_items WHERE invoice_id = $1 ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &items, query, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list invoice items")
	}
	return items, nil
}
