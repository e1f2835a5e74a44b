// Package invoice materializes per-package invoices with their line items and
// the linked platform-fee record, and drives payment and pickup.
package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cargopay/internal/domain"
	"cargopay/internal/pricing"
	pkgerrors "cargopay/pkg/errors"
	"cargopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const invoiceDueDays = 14

type Repository interface {
	// CreateWithItems persists the invoice, its items, and the platform fee
	// in one atomic unit.
	CreateWithItems(ctx context.Context, inv *domain.Invoice, items []*domain.InvoiceItem, fee *domain.PlatformFee) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	FindByPackage(ctx context.Context, packageID uuid.UUID) (*domain.Invoice, error)
	HasInvoiceForPackage(ctx context.Context, packageID uuid.UUID) (bool, error)
	// MarkPaid persists the payment transition; it must fail with a state
	// conflict when the invoice is already paid.
	MarkPaid(ctx context.Context, inv *domain.Invoice) error
	SetEbarimt(ctx context.Context, id uuid.UUID, status domain.EbarimtStatus, billID, lottery, qrData *string) error
	SetPremiumStatus(ctx context.Context, id uuid.UUID, status domain.PremiumStatus) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) error
	ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*domain.Invoice, error)
	Items(ctx context.Context, invoiceID uuid.UUID) ([]*domain.InvoiceItem, error)
}

type PackageStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Package, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	FindBid(ctx context.Context, id uuid.UUID) (*domain.Bid, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) error
	// MarkDeliveredByInvoice flips all packages linked to the invoice to
	// DELIVERED and completes their orders, returning the package count.
	MarkDeliveredByInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error)
}

type PricingStore interface {
	Settings(ctx context.Context) (*domain.PlatformSettings, error)
	// Rate returns the current rate from base currency to the settlement
	// currency, or ErrRateNotAvailable.
	Rate(ctx context.Context, base domain.Currency) (decimal.Decimal, error)
	// RuleFor returns the best matching pricing rule, or nil when none apply.
	RuleFor(ctx context.Context, companyID uuid.UUID, categoryID *uuid.UUID) (*domain.PricingRule, error)
}

// Bill is the tax authority's response for an issued receipt.
type Bill struct {
	BillID  string
	Lottery string
	QRData  string
}

// ReceiptIssuer is the external e-receipt (ebarimt) contract. Calls are
// idempotent per invoice; failures never roll back the payment.
type ReceiptIssuer interface {
	CreateBill(ctx context.Context, invoiceID uuid.UUID, amount, vat decimal.Decimal) (*Bill, error)
	RevokeBill(ctx context.Context, invoiceID uuid.UUID) error
}

type FundLedger interface {
	Append(ctx context.Context, typ domain.FundTransactionType, amount decimal.Decimal, referenceID uuid.UUID, referenceType, description string) (*domain.FundTransaction, error)
}

// Notifier is informed, never consulted.
type Notifier interface {
	Notify(ctx context.Context, event string, fields map[string]interface{})
}

type Service struct {
	invoices Repository
	packages PackageStore
	pricing  PricingStore
	fund     FundLedger
	issuer   ReceiptIssuer
	notifier Notifier
	logger   logger.Logger
}

func NewService(
	invoices Repository,
	packages PackageStore,
	pricingStore PricingStore,
	fund FundLedger,
	issuer ReceiptIssuer,
	notifier Notifier,
	log logger.Logger,
) *Service {
	return &Service{
		invoices: invoices,
		packages: packages,
		pricing:  pricingStore,
		fund:     fund,
		issuer:   issuer,
		notifier: notifier,
		logger:   log,
	}
}

// Generate computes and persists the invoice, items, and platform fee for a
// package at hand-off, then marks the package ready for pickup.
func (s *Service) Generate(ctx context.Context, packageID uuid.UUID) (*domain.Invoice, error) {
	pkg, err := s.packages.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.OrderID == nil {
		return nil, pkgerrors.ErrNotLinkedToOrder
	}

	invoiced, err := s.invoices.HasInvoiceForPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if invoiced {
		return nil, pkgerrors.ErrAlreadyInvoiced
	}

	order, err := s.packages.FindOrder(ctx, *pkg.OrderID)
	if err != nil {
		return nil, err
	}

	settings, err := s.pricing.Settings(ctx)
	if err != nil {
		return nil, err
	}

	rule, err := s.pricing.RuleFor(ctx, pkg.CompanyID, pkg.CategoryID)
	if err != nil {
		return nil, err
	}

	baseCurrency := domain.CNY
	if rule != nil {
		baseCurrency = rule.Currency
	}
	rate, err := s.pricing.Rate(ctx, baseCurrency)
	if err != nil {
		return nil, err
	}

	calc := pricing.NewCalculator(*settings)
	quote, err := calc.Quote(pricing.QuoteInput{
		Weight:           pkg.Weight,
		Length:           pkg.Length,
		Width:            pkg.Width,
		Height:           pkg.Height,
		Rule:             rule,
		CustomPrice:      pkg.CustomPrice,
		ExchangeRate:     rate,
		InsuranceAmount:  order.InsuranceAmount,
		CustomsAmount:    order.CustomsAmount,
		DaysSinceArrival: daysSince(pkg.ArrivedAt),
	})
	if err != nil {
		return nil, err
	}

	if quote.ShippingAmount.IsZero() {
		s.logger.Warn("Invoice generated with zero shipping amount", map[string]interface{}{
			"package_id": packageID,
			"company_id": pkg.CompanyID,
		})
	}

	now := time.Now().UTC()
	due := now.AddDate(0, 0, invoiceDueDays)

	inv, items := s.buildInvoice(pkg, order, settings, quote, now, due)
	fee, err := s.buildPlatformFee(ctx, pkg, inv, calc, settings, now)
	if err != nil {
		return nil, err
	}

	if err := s.invoices.CreateWithItems(ctx, inv, items, fee); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to persist invoice")
	}

	if err := s.packages.UpdateStatus(ctx, pkg.ID, domain.PackageStatusReadyForPickup); err != nil {
		s.logger.Error("Failed to transition package after invoicing", map[string]interface{}{
			"package_id": pkg.ID,
			"error":      err.Error(),
		})
	}

	s.notifier.Notify(ctx, "invoice.generated", map[string]interface{}{
		"invoice_id": inv.ID,
		"code":       inv.Code,
		"total":      inv.TotalAmount.String(),
	})

	return inv, nil
}

func (s *Service) buildInvoice(pkg *domain.Package, order *domain.Order, settings *domain.PlatformSettings, quote *pricing.Quote, now, due time.Time) (*domain.Invoice, []*domain.InvoiceItem) {
	// Amounts are carried at full precision through the quote and rounded to
	// the smallest currency unit only here, at persistence.
	shipping := roundMoney(quote.ShippingAmount)
	insurance := roundMoney(quote.InsuranceAmount)
	customs := roundMoney(quote.CustomsAmount)
	storage := roundMoney(quote.StorageAmount)

	shippingVat := decimal.Zero
	storageVat := decimal.Zero
	if settings.VatEnabled {
		shippingVat = roundMoney(shipping.Mul(settings.VatRate))
		storageVat = roundMoney(storage.Mul(settings.VatRate))
	}
	vat := shippingVat.Add(storageVat)
	total := shipping.Add(insurance).Add(customs).Add(storage).Add(vat)

	inv := &domain.Invoice{
		ID:              uuid.New(),
		CompanyID:       pkg.CompanyID,
		CustomerID:      order.CustomerID,
		Code:            newInvoiceCode(),
		ShippingAmount:  shipping,
		InsuranceAmount: insurance,
		CustomsAmount:   customs,
		StorageAmount:   storage,
		VatAmount:       vat,
		TotalAmount:     total,
		Status:          domain.InvoiceStatusSent,
		DueDate:         &due,
		EbarimtStatus:   domain.EbarimtStatusNone,
		PremiumStatus:   domain.PremiumStatusNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if insurance.IsPositive() {
		inv.PremiumStatus = domain.PremiumStatusPending
	}

	pkgID := pkg.ID
	items := []*domain.InvoiceItem{
		newItem(inv.ID, &pkgID, "International shipping", shipping, shippingVat, domain.ItemTypeShipping, now),
	}
	if insurance.IsPositive() {
		items = append(items, newItem(inv.ID, &pkgID, "Risk-fund premium", insurance, decimal.Zero, domain.ItemTypeInsurance, now))
	}
	if customs.IsPositive() {
		items = append(items, newItem(inv.ID, &pkgID, "Customs clearance", customs, decimal.Zero, domain.ItemTypeCustoms, now))
	}
	if storage.IsPositive() {
		items = append(items, newItem(inv.ID, &pkgID, "Warehouse storage", storage, storageVat, domain.ItemTypeStorage, now))
	}

	return inv, items
}

func (s *Service) buildPlatformFee(ctx context.Context, pkg *domain.Package, inv *domain.Invoice, calc *pricing.Calculator, settings *domain.PlatformSettings, now time.Time) (*domain.PlatformFee, error) {
	feeAmount, feeVat := calc.Commission(inv.ShippingAmount)
	qpayFee := calc.QPayFee(inv.TotalAmount)

	carrierAmount := decimal.Zero
	var carrierID *uuid.UUID
	if pkg.BatchID != nil {
		batch, err := s.packages.FindBatch(ctx, *pkg.BatchID)
		if err != nil {
			return nil, err
		}
		// The split applies only when an external carrier won the batch's bid.
		if batch.CarrierID != nil && *batch.CarrierID != pkg.CompanyID && batch.BidID != nil {
			bid, err := s.packages.FindBid(ctx, *batch.BidID)
			if err != nil {
				return nil, err
			}
			share, err := pricing.CarrierShare(bid.Amount, bid.Currency, batch.TotalWeight, pkg.Weight)
			if err != nil {
				return nil, pkgerrors.Configuration("BID_CURRENCY", err.Error())
			}
			carrierAmount = share
			carrierID = batch.CarrierID
		}
	}

	storageVat := decimal.Zero
	if settings.VatEnabled {
		storageVat = roundMoney(inv.StorageAmount.Mul(settings.VatRate))
	}

	fee := &domain.PlatformFee{
		ID:             uuid.New(),
		InvoiceID:      inv.ID,
		CompanyID:      pkg.CompanyID,
		CarrierID:      carrierID,
		ShippingAmount: inv.ShippingAmount,
		ShippingVat:    inv.VatAmount.Sub(storageVat),
		StorageVat:     storageVat,
		FeeAmount:      roundMoney(feeAmount),
		FeeVat:         roundMoney(feeVat),
		QPayFee:        roundMoney(qpayFee),
		CarrierAmount:  roundMoney(carrierAmount),
		CreatedAt:      now,
	}
	fee.NetToCargo = pricing.NetToCargo(fee)

	if fee.NetToCargo.IsNegative() {
		s.logger.Warn("Negative net-to-cargo on platform fee", map[string]interface{}{
			"invoice_id": inv.ID,
			"net":        fee.NetToCargo.String(),
		})
	}

	return fee, nil
}

// MarkPaid transitions a sent invoice to PAID, issues the pickup token,
// triggers the tax receipt, and credits the risk fund with the premium.
func (s *Service) MarkPaid(ctx context.Context, invoiceID uuid.UUID, paymentMethod string) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoiceStatusPaid {
		return nil, pkgerrors.ErrInvoiceAlreadyPaid
	}

	now := time.Now().UTC()
	inv.Status = domain.InvoiceStatusPaid
	inv.PaidAt = &now
	inv.PaymentMethod = paymentMethod
	inv.PickupToken = newPickupToken()
	inv.UpdatedAt = now

	if err := s.invoices.MarkPaid(ctx, inv); err != nil {
		return nil, err
	}

	settings, err := s.pricing.Settings(ctx)
	if err != nil {
		s.logger.Error("Failed to load platform settings, skipping receipt issuance", map[string]interface{}{
			"invoice_id": inv.ID,
			"error":      err.Error(),
		})
	} else if settings.VatEnabled {
		s.issueReceipt(ctx, inv)
	}

	if inv.InsuranceAmount.IsPositive() {
		s.creditPremium(ctx, inv)
	}

	s.notifier.Notify(ctx, "invoice.paid", map[string]interface{}{
		"invoice_id": inv.ID,
		"code":       inv.Code,
		"method":     paymentMethod,
	})

	return inv, nil
}

// creditPremium appends the paid premium to the risk-fund ledger. Like the
// tax receipt, it never unwinds the payment: a failed append leaves the
// invoice in premium_status FAILED so reconciliation can re-credit it.
func (s *Service) creditPremium(ctx context.Context, inv *domain.Invoice) {
	desc := fmt.Sprintf("insurance premium for invoice %s", inv.Code)
	_, err := s.fund.Append(ctx, domain.FundPremiumIn, inv.InsuranceAmount, inv.ID, domain.FundRefInvoice, desc)
	if err != nil {
		s.logger.Error("Premium credit failed", map[string]interface{}{
			"invoice_id": inv.ID,
			"amount":     inv.InsuranceAmount.String(),
			"error":      err.Error(),
		})
		if dbErr := s.invoices.SetPremiumStatus(ctx, inv.ID, domain.PremiumStatusFailed); dbErr != nil {
			s.logger.Error("Failed to record premium failure", map[string]interface{}{
				"invoice_id": inv.ID,
				"error":      dbErr.Error(),
			})
		}
		inv.PremiumStatus = domain.PremiumStatusFailed
		return
	}

	if err := s.invoices.SetPremiumStatus(ctx, inv.ID, domain.PremiumStatusCredited); err != nil {
		s.logger.Error("Failed to record credited premium", map[string]interface{}{
			"invoice_id": inv.ID,
			"error":      err.Error(),
		})
		return
	}
	inv.PremiumStatus = domain.PremiumStatusCredited
}

// issueReceipt is fire-and-confirm: a failed external call leaves a FAILED
// flag on the invoice and never unwinds the payment.
func (s *Service) issueReceipt(ctx context.Context, inv *domain.Invoice) {
	bill, err := s.issuer.CreateBill(ctx, inv.ID, inv.TotalAmount, inv.VatAmount)
	if err != nil {
		s.logger.Error("Tax receipt issuance failed", map[string]interface{}{
			"invoice_id": inv.ID,
			"error":      err.Error(),
		})
		if dbErr := s.invoices.SetEbarimt(ctx, inv.ID, domain.EbarimtStatusFailed, nil, nil, nil); dbErr != nil {
			s.logger.Error("Failed to record receipt failure", map[string]interface{}{
				"invoice_id": inv.ID,
				"error":      dbErr.Error(),
			})
		}
		inv.EbarimtStatus = domain.EbarimtStatusFailed
		return
	}

	if err := s.invoices.SetEbarimt(ctx, inv.ID, domain.EbarimtStatusIssued, &bill.BillID, &bill.Lottery, &bill.QRData); err != nil {
		s.logger.Error("Failed to record issued receipt", map[string]interface{}{
			"invoice_id": inv.ID,
			"error":      err.Error(),
		})
		return
	}
	inv.EbarimtStatus = domain.EbarimtStatusIssued
	inv.EbarimtBillID = &bill.BillID
	inv.EbarimtLottery = &bill.Lottery
	inv.EbarimtQRData = &bill.QRData
}

// ConfirmPickup checks the pickup token on a paid invoice and delivers all
// linked packages, returning how many were delivered.
func (s *Service) ConfirmPickup(ctx context.Context, invoiceID uuid.UUID, token string) (int, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return 0, err
	}
	if inv.Status != domain.InvoiceStatusPaid {
		return 0, pkgerrors.ErrInvoiceNotPaid
	}
	if inv.PickupToken == "" || !strings.EqualFold(inv.PickupToken, token) {
		return 0, pkgerrors.ErrPickupTokenMismatch
	}

	delivered, err := s.packages.MarkDeliveredByInvoice(ctx, invoiceID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to deliver packages")
	}

	s.notifier.Notify(ctx, "invoice.picked_up", map[string]interface{}{
		"invoice_id": inv.ID,
		"delivered":  delivered,
	})

	return delivered, nil
}

// Revoke voids a paid invoice after its return was approved and revokes the
// issued tax receipt. Revocation failure only flags the receipt state.
func (s *Service) Revoke(ctx context.Context, invoiceID uuid.UUID) error {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status != domain.InvoiceStatusPaid {
		return pkgerrors.ErrInvoiceNotPaid
	}

	if err := s.invoices.UpdateStatus(ctx, invoiceID, domain.InvoiceStatusRevoked); err != nil {
		return err
	}

	if inv.EbarimtStatus == domain.EbarimtStatusIssued {
		if err := s.issuer.RevokeBill(ctx, invoiceID); err != nil {
			s.logger.Error("Tax receipt revocation failed", map[string]interface{}{
				"invoice_id": invoiceID,
				"error":      err.Error(),
			})
		} else if err := s.invoices.SetEbarimt(ctx, invoiceID, domain.EbarimtStatusRevoked, inv.EbarimtBillID, inv.EbarimtLottery, inv.EbarimtQRData); err != nil {
			s.logger.Error("Failed to record revoked receipt", map[string]interface{}{
				"invoice_id": invoiceID,
				"error":      err.Error(),
			})
		}
	}

	return nil
}

// Get returns one invoice by id.
func (s *Service) Get(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.invoices.FindByID(ctx, invoiceID)
}

// FindByPackage returns the package's current (non-revoked) invoice.
func (s *Service) FindByPackage(ctx context.Context, packageID uuid.UUID) (*domain.Invoice, error) {
	return s.invoices.FindByPackage(ctx, packageID)
}

// List returns a page of the company's invoices, newest first.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*domain.Invoice, error) {
	return s.invoices.ListByCompany(ctx, companyID, limit, offset)
}

// Items returns the invoice's line items.
func (s *Service) Items(ctx context.Context, invoiceID uuid.UUID) ([]*domain.InvoiceItem, error) {
	return s.invoices.Items(ctx, invoiceID)
}

func newItem(invoiceID uuid.UUID, packageID *uuid.UUID, desc string, unitPrice, vat decimal.Decimal, typ domain.InvoiceItemType, now time.Time) *domain.InvoiceItem {
	return &domain.InvoiceItem{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		PackageID:   packageID,
		Description: desc,
		UnitPrice:   unitPrice,
		Vat:         vat,
		Amount:      unitPrice.Add(vat),
		ItemType:    typ,
		CreatedAt:   now,
	}
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func newInvoiceCode() string {
	return fmt.Sprintf("INV-%d-%s", time.Now().Unix(), strings.ToUpper(uuid.NewString()[:8]))
}

func newPickupToken() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func daysSince(t *time.Time) int {
	if t == nil {
		return 0
	}
	d := int(time.Since(*t).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
