package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"
	"cargopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInvoiceRepo struct{ mock.Mock }

func (m *mockInvoiceRepo) CreateWithItems(ctx context.Context, inv *domain.Invoice, items []*domain.InvoiceItem, fee *domain.PlatformFee) error {
	args := m.Called(ctx, inv, items, fee)
	return args.Error(0)
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) FindByPackage(ctx context.Context, packageID uuid.UUID) (*domain.Invoice, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) HasInvoiceForPackage(ctx context.Context, packageID uuid.UUID) (bool, error) {
	args := m.Called(ctx, packageID)
	return args.Bool(0), args.Error(1)
}

func (m *mockInvoiceRepo) MarkPaid(ctx context.Context, inv *domain.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *mockInvoiceRepo) SetEbarimt(ctx context.Context, id uuid.UUID, status domain.EbarimtStatus, billID, lottery, qrData *string) error {
	args := m.Called(ctx, id, status, billID, lottery, qrData)
	return args.Error(0)
}

func (m *mockInvoiceRepo) SetPremiumStatus(ctx context.Context, id uuid.UUID, status domain.PremiumStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockInvoiceRepo) ListByCompany(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]*domain.Invoice, error) {
	args := m.Called(ctx, companyID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) Items(ctx context.Context, invoiceID uuid.UUID) ([]*domain.InvoiceItem, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InvoiceItem), args.Error(1)
}

type mockPackageStore struct{ mock.Mock }

func (m *mockPackageStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Package, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Package), args.Error(1)
}

func (m *mockPackageStore) FindOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockPackageStore) FindBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Batch), args.Error(1)
}

func (m *mockPackageStore) FindBid(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bid), args.Error(1)
}

func (m *mockPackageStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockPackageStore) MarkDeliveredByInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	args := m.Called(ctx, invoiceID)
	return args.Int(0), args.Error(1)
}

type mockPricingStore struct{ mock.Mock }

func (m *mockPricingStore) Settings(ctx context.Context) (*domain.PlatformSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlatformSettings), args.Error(1)
}

func (m *mockPricingStore) Rate(ctx context.Context, base domain.Currency) (decimal.Decimal, error) {
	args := m.Called(ctx, base)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockPricingStore) RuleFor(ctx context.Context, companyID uuid.UUID, categoryID *uuid.UUID) (*domain.PricingRule, error) {
	args := m.Called(ctx, companyID, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricingRule), args.Error(1)
}

type mockFundLedger struct{ mock.Mock }

func (m *mockFundLedger) Append(ctx context.Context, typ domain.FundTransactionType, amount decimal.Decimal, referenceID uuid.UUID, referenceType, description string) (*domain.FundTransaction, error) {
	args := m.Called(ctx, typ, amount, referenceID, referenceType, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FundTransaction), args.Error(1)
}

type mockReceiptIssuer struct{ mock.Mock }

func (m *mockReceiptIssuer) CreateBill(ctx context.Context, invoiceID uuid.UUID, amount, vat decimal.Decimal) (*Bill, error) {
	args := m.Called(ctx, invoiceID, amount, vat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bill), args.Error(1)
}

func (m *mockReceiptIssuer) RevokeBill(ctx context.Context, invoiceID uuid.UUID) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, event string, fields map[string]interface{}) {
	m.Called(ctx, event, fields)
}

type invoiceMocks struct {
	invoices *mockInvoiceRepo
	packages *mockPackageStore
	pricing  *mockPricingStore
	fund     *mockFundLedger
	issuer   *mockReceiptIssuer
	notifier *mockNotifier
}

func newInvoiceService(t *testing.T) (*Service, *invoiceMocks) {
	t.Helper()
	m := &invoiceMocks{
		invoices: new(mockInvoiceRepo),
		packages: new(mockPackageStore),
		pricing:  new(mockPricingStore),
		fund:     new(mockFundLedger),
		issuer:   new(mockReceiptIssuer),
		notifier: new(mockNotifier),
	}
	svc := NewService(m.invoices, m.packages, m.pricing, m.fund, m.issuer, m.notifier, logger.NewNop())
	return svc, m
}

func testSettings() *domain.PlatformSettings {
	return &domain.PlatformSettings{
		VatEnabled:        true,
		VatRate:           decimal.NewFromFloat(0.10),
		FeeRate:           decimal.NewFromFloat(0.05),
		MinFee:            decimal.NewFromInt(500),
		MaxFee:            decimal.NewFromInt(100000),
		StorageFreeDays:   5,
		StoragePhase1Days: 10,
		StoragePhase1Rate: decimal.NewFromInt(500),
		StoragePhase2Rate: decimal.NewFromInt(1000),
		QPayFeeRate:       decimal.NewFromFloat(0.01),
	}
}

func TestGenerate_WeightRuleWithCarrierSplit(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	orderID := uuid.New()
	batchID := uuid.New()
	bidID := uuid.New()
	companyID := uuid.New()
	carrierID := uuid.New()
	pkg := &domain.Package{
		ID:        uuid.New(),
		CompanyID: companyID,
		OrderID:   &orderID,
		BatchID:   &batchID,
		Weight:    decimal.NewFromInt(10),
		Status:    domain.PackageStatusArrivedUB,
	}
	rule := &domain.PricingRule{
		Kind:       domain.RuleWeightVolume,
		PricePerKg: decimal.NewFromInt(12),
		MinPrice:   decimal.NewFromInt(10),
		Currency:   domain.CNY,
	}

	m.packages.On("FindByID", ctx, pkg.ID).Return(pkg, nil)
	m.invoices.On("HasInvoiceForPackage", ctx, pkg.ID).Return(false, nil)
	m.packages.On("FindOrder", ctx, orderID).Return(&domain.Order{
		ID:              orderID,
		CustomerID:      uuid.New(),
		InsuranceAmount: decimal.NewFromInt(2000),
		CustomsAmount:   decimal.Zero,
	}, nil)
	m.pricing.On("Settings", ctx).Return(testSettings(), nil)
	m.pricing.On("RuleFor", ctx, companyID, (*uuid.UUID)(nil)).Return(rule, nil)
	m.pricing.On("Rate", ctx, domain.CNY).Return(decimal.NewFromInt(485), nil)
	m.packages.On("FindBatch", ctx, batchID).Return(&domain.Batch{
		ID:          batchID,
		CompanyID:   companyID,
		CarrierID:   &carrierID,
		BidID:       &bidID,
		TotalWeight: decimal.NewFromInt(100),
	}, nil)
	m.packages.On("FindBid", ctx, bidID).Return(&domain.Bid{
		ID:        bidID,
		CarrierID: carrierID,
		Amount:    decimal.NewFromInt(1000),
		Currency:  domain.CNY,
	}, nil)

	var gotItems []*domain.InvoiceItem
	var gotFee *domain.PlatformFee
	m.invoices.On("CreateWithItems", ctx, mock.AnythingOfType("*domain.Invoice"), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotItems = args.Get(2).([]*domain.InvoiceItem)
			gotFee = args.Get(3).(*domain.PlatformFee)
		}).
		Return(nil)
	m.packages.On("UpdateStatus", ctx, pkg.ID, domain.PackageStatusReadyForPickup).Return(nil)
	m.notifier.On("Notify", ctx, "invoice.generated", mock.Anything).Return()

	inv, err := svc.Generate(ctx, pkg.ID)
	require.NoError(t, err)

	// 10 kg x 12 CNY x 485 = 58,200; VAT 5,820; plus 2,000 premium.
	assert.True(t, inv.ShippingAmount.Equal(decimal.NewFromInt(58200)), inv.ShippingAmount.String())
	assert.True(t, inv.VatAmount.Equal(decimal.NewFromInt(5820)), inv.VatAmount.String())
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(66020)), inv.TotalAmount.String())
	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
	assert.NotEmpty(t, inv.Code)

	require.Len(t, gotItems, 2)
	assert.Equal(t, domain.ItemTypeShipping, gotItems[0].ItemType)
	assert.True(t, gotItems[0].Amount.Equal(gotItems[0].UnitPrice.Add(gotItems[0].Vat)))
	assert.Equal(t, domain.ItemTypeInsurance, gotItems[1].ItemType)
	assert.True(t, gotItems[1].Vat.IsZero())

	require.NotNil(t, gotFee)
	// fee = 5% of 58,200 = 2,910; fee vat 291; qpay 1% of 66,020 = 660.20.
	assert.True(t, gotFee.FeeAmount.Equal(decimal.NewFromInt(2910)), gotFee.FeeAmount.String())
	assert.True(t, gotFee.FeeVat.Equal(decimal.NewFromInt(291)), gotFee.FeeVat.String())
	assert.True(t, gotFee.QPayFee.Equal(decimal.NewFromFloat(660.20)), gotFee.QPayFee.String())
	// carrier: 1,000 CNY x 485 = 485,000 MNT, weighted 10/100 = 48,500.
	assert.True(t, gotFee.CarrierAmount.Equal(decimal.NewFromInt(48500)), gotFee.CarrierAmount.String())
	require.NotNil(t, gotFee.CarrierID)
	assert.Equal(t, carrierID, *gotFee.CarrierID)

	wantNet := gotFee.ShippingAmount.
		Add(gotFee.ShippingVat).
		Add(gotFee.StorageVat).
		Sub(gotFee.FeeAmount).
		Sub(gotFee.FeeVat).
		Sub(gotFee.QPayFee).
		Sub(gotFee.CarrierAmount)
	assert.True(t, gotFee.NetToCargo.Equal(wantNet))
}

func TestGenerate_PackageNotLinkedToOrder(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	pkg := &domain.Package{ID: uuid.New(), CompanyID: uuid.New()}
	m.packages.On("FindByID", ctx, pkg.ID).Return(pkg, nil)

	_, err := svc.Generate(ctx, pkg.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotLinkedToOrder)
	m.invoices.AssertNotCalled(t, "CreateWithItems", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerate_AlreadyInvoiced(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	orderID := uuid.New()
	pkg := &domain.Package{ID: uuid.New(), CompanyID: uuid.New(), OrderID: &orderID}
	m.packages.On("FindByID", ctx, pkg.ID).Return(pkg, nil)
	m.invoices.On("HasInvoiceForPackage", ctx, pkg.ID).Return(true, nil)

	_, err := svc.Generate(ctx, pkg.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyInvoiced)
}

func TestGenerate_MissingRateFailsClosed(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	orderID := uuid.New()
	pkg := &domain.Package{ID: uuid.New(), CompanyID: uuid.New(), OrderID: &orderID}
	m.packages.On("FindByID", ctx, pkg.ID).Return(pkg, nil)
	m.invoices.On("HasInvoiceForPackage", ctx, pkg.ID).Return(false, nil)
	m.packages.On("FindOrder", ctx, orderID).Return(&domain.Order{ID: orderID, CustomerID: uuid.New()}, nil)
	m.pricing.On("Settings", ctx).Return(testSettings(), nil)
	m.pricing.On("RuleFor", ctx, pkg.CompanyID, (*uuid.UUID)(nil)).Return(nil, nil)
	m.pricing.On("Rate", ctx, domain.CNY).Return(decimal.Zero, pkgerrors.ErrRateNotAvailable)

	_, err := svc.Generate(ctx, pkg.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrRateNotAvailable)
}

func TestMarkPaid_IssuesTokenReceiptAndPremium(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{
		ID:              uuid.New(),
		Code:            "INV-1-TEST",
		Status:          domain.InvoiceStatusSent,
		InsuranceAmount: decimal.NewFromInt(2000),
		TotalAmount:     decimal.NewFromInt(66020),
		VatAmount:       decimal.NewFromInt(5820),
		EbarimtStatus:   domain.EbarimtStatusNone,
	}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
	m.invoices.On("MarkPaid", ctx, inv).Return(nil)
	m.pricing.On("Settings", ctx).Return(testSettings(), nil)
	m.issuer.On("CreateBill", ctx, inv.ID, mock.Anything, mock.Anything).Return(&Bill{
		BillID:  "EB-123",
		Lottery: "AA 12345678",
		QRData:  "qr-payload",
	}, nil)
	m.invoices.On("SetEbarimt", ctx, inv.ID, domain.EbarimtStatusIssued, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.fund.On("Append", ctx, domain.FundPremiumIn,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromInt(2000)) }),
		inv.ID, domain.FundRefInvoice, mock.Anything).
		Return(&domain.FundTransaction{ID: uuid.New()}, nil)
	m.invoices.On("SetPremiumStatus", ctx, inv.ID, domain.PremiumStatusCredited).Return(nil)
	m.notifier.On("Notify", ctx, "invoice.paid", mock.Anything).Return()

	paid, err := svc.MarkPaid(ctx, inv.ID, "qpay")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.Len(t, paid.PickupToken, 8)
	assert.Equal(t, domain.EbarimtStatusIssued, paid.EbarimtStatus)
	assert.Equal(t, domain.PremiumStatusCredited, paid.PremiumStatus)
	m.fund.AssertExpectations(t)
}

func TestMarkPaid_AlreadyPaidConflict(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{ID: uuid.New(), Status: domain.InvoiceStatusPaid}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)

	_, err := svc.MarkPaid(ctx, inv.ID, "qpay")
	assert.ErrorIs(t, err, pkgerrors.ErrInvoiceAlreadyPaid)
	m.invoices.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestMarkPaid_ReceiptFailureDoesNotUnwindPayment(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{
		ID:            uuid.New(),
		Status:        domain.InvoiceStatusSent,
		TotalAmount:   decimal.NewFromInt(1000),
		VatAmount:     decimal.NewFromInt(100),
		EbarimtStatus: domain.EbarimtStatusNone,
	}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
	m.invoices.On("MarkPaid", ctx, inv).Return(nil)
	m.pricing.On("Settings", ctx).Return(testSettings(), nil)
	m.issuer.On("CreateBill", ctx, inv.ID, mock.Anything, mock.Anything).
		Return(nil, errors.New("upstream timeout"))
	m.invoices.On("SetEbarimt", ctx, inv.ID, domain.EbarimtStatusFailed,
		(*string)(nil), (*string)(nil), (*string)(nil)).Return(nil)
	m.notifier.On("Notify", ctx, "invoice.paid", mock.Anything).Return()

	paid, err := svc.MarkPaid(ctx, inv.ID, "card")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, domain.EbarimtStatusFailed, paid.EbarimtStatus)
	m.invoices.AssertExpectations(t)
}

func TestMarkPaid_PremiumFailureKeepsPaymentAndMarksIt(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{
		ID:              uuid.New(),
		Code:            "INV-2-TEST",
		Status:          domain.InvoiceStatusSent,
		InsuranceAmount: decimal.NewFromInt(2000),
		TotalAmount:     decimal.NewFromInt(66020),
		PremiumStatus:   domain.PremiumStatusPending,
	}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
	m.invoices.On("MarkPaid", ctx, inv).Return(nil)
	m.pricing.On("Settings", ctx).Return(&domain.PlatformSettings{VatEnabled: false}, nil)
	m.fund.On("Append", ctx, domain.FundPremiumIn, mock.Anything, inv.ID, domain.FundRefInvoice, mock.Anything).
		Return(nil, pkgerrors.ErrLedgerConflict)
	m.invoices.On("SetPremiumStatus", ctx, inv.ID, domain.PremiumStatusFailed).Return(nil)
	m.notifier.On("Notify", ctx, "invoice.paid", mock.Anything).Return()

	paid, err := svc.MarkPaid(ctx, inv.ID, "qpay")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, domain.PremiumStatusFailed, paid.PremiumStatus)
	m.fund.AssertNumberOfCalls(t, "Append", 1)
	m.invoices.AssertExpectations(t)
}

func TestMarkPaid_SettingsErrorSkipsReceiptButKeepsPayment(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{
		ID:          uuid.New(),
		Status:      domain.InvoiceStatusSent,
		TotalAmount: decimal.NewFromInt(1000),
	}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
	m.invoices.On("MarkPaid", ctx, inv).Return(nil)
	m.pricing.On("Settings", ctx).Return(nil, errors.New("settings table unavailable"))
	m.notifier.On("Notify", ctx, "invoice.paid", mock.Anything).Return()

	paid, err := svc.MarkPaid(ctx, inv.ID, "card")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	m.issuer.AssertNotCalled(t, "CreateBill", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkPaid_NoPremiumSkipsFund(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{
		ID:          uuid.New(),
		Status:      domain.InvoiceStatusSent,
		TotalAmount: decimal.NewFromInt(500),
	}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
	m.invoices.On("MarkPaid", ctx, inv).Return(nil)
	m.pricing.On("Settings", ctx).Return(&domain.PlatformSettings{VatEnabled: false}, nil)
	m.notifier.On("Notify", ctx, "invoice.paid", mock.Anything).Return()

	_, err := svc.MarkPaid(ctx, inv.ID, "cash")
	require.NoError(t, err)
	m.fund.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.issuer.AssertNotCalled(t, "CreateBill", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPickup_TokenMismatch(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{ID: uuid.New(), Status: domain.InvoiceStatusPaid, PickupToken: "A1B2C3D4"}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)

	_, err := svc.ConfirmPickup(ctx, inv.ID, "WRONGTOK")
	assert.ErrorIs(t, err, pkgerrors.ErrPickupTokenMismatch)
	m.packages.AssertNotCalled(t, "MarkDeliveredByInvoice", mock.Anything, mock.Anything)
}

func TestConfirmPickup_RequiresPaidInvoice(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{ID: uuid.New(), Status: domain.InvoiceStatusSent}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)

	_, err := svc.ConfirmPickup(ctx, inv.ID, "A1B2C3D4")
	assert.ErrorIs(t, err, pkgerrors.ErrInvoiceNotPaid)
}

func TestConfirmPickup_DeliversLinkedPackages(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{ID: uuid.New(), Status: domain.InvoiceStatusPaid, PickupToken: "A1B2C3D4"}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
	m.packages.On("MarkDeliveredByInvoice", ctx, inv.ID).Return(2, nil)
	m.notifier.On("Notify", ctx, "invoice.picked_up", mock.Anything).Return()

	// Token comparison is case-insensitive.
	delivered, err := svc.ConfirmPickup(ctx, inv.ID, "a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
}

func TestRevoke_RequiresPaidInvoice(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	inv := &domain.Invoice{ID: uuid.New(), Status: domain.InvoiceStatusSent}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)

	err := svc.Revoke(ctx, inv.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInvoiceNotPaid)
}

func TestRevoke_RevokesIssuedReceipt(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	billID := "EB-123"
	inv := &domain.Invoice{
		ID:            uuid.New(),
		Status:        domain.InvoiceStatusPaid,
		EbarimtStatus: domain.EbarimtStatusIssued,
		EbarimtBillID: &billID,
	}
	m.invoices.On("FindByID", ctx, inv.ID).Return(inv, nil)
	m.invoices.On("UpdateStatus", ctx, inv.ID, domain.InvoiceStatusRevoked).Return(nil)
	m.issuer.On("RevokeBill", ctx, inv.ID).Return(nil)
	m.invoices.On("SetEbarimt", ctx, inv.ID, domain.EbarimtStatusRevoked, &billID, (*string)(nil), (*string)(nil)).Return(nil)

	err := svc.Revoke(ctx, inv.ID)
	require.NoError(t, err)
	m.issuer.AssertExpectations(t)
}

func TestStorageChargeAppearsAfterFreeWindow(t *testing.T) {
	svc, m := newInvoiceService(t)
	ctx := context.Background()

	orderID := uuid.New()
	arrived := time.Now().Add(-8 * 24 * time.Hour)
	pkg := &domain.Package{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		OrderID:   &orderID,
		Weight:    decimal.NewFromInt(1),
		ArrivedAt: &arrived,
	}
	rule := &domain.PricingRule{
		Kind:       domain.RuleWeightVolume,
		PricePerKg: decimal.NewFromInt(10),
		Currency:   domain.CNY,
	}

	m.packages.On("FindByID", ctx, pkg.ID).Return(pkg, nil)
	m.invoices.On("HasInvoiceForPackage", ctx, pkg.ID).Return(false, nil)
	m.packages.On("FindOrder", ctx, orderID).Return(&domain.Order{ID: orderID, CustomerID: uuid.New()}, nil)
	m.pricing.On("Settings", ctx).Return(testSettings(), nil)
	m.pricing.On("RuleFor", ctx, pkg.CompanyID, (*uuid.UUID)(nil)).Return(rule, nil)
	m.pricing.On("Rate", ctx, domain.CNY).Return(decimal.NewFromInt(485), nil)
	m.invoices.On("CreateWithItems", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.packages.On("UpdateStatus", ctx, pkg.ID, domain.PackageStatusReadyForPickup).Return(nil)
	m.notifier.On("Notify", ctx, "invoice.generated", mock.Anything).Return()

	inv, err := svc.Generate(ctx, pkg.ID)
	require.NoError(t, err)
	// 8 days since arrival, 5 free: 3 chargeable days x 500.
	assert.True(t, inv.StorageAmount.Equal(decimal.NewFromInt(1500)), inv.StorageAmount.String())
}
