package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency represents ISO 4217 currency codes used across the corridor.
type Currency string

const (
	MNT Currency = "MNT" // Mongolian Tögrög (settlement currency)
	CNY Currency = "CNY" // Chinese Yuan (warehouse-side pricing)
	USD Currency = "USD"
)

// Invoice is the per-package bill issued at hand-off. All amounts are in the
// settlement currency. total = shipping + insurance + customs + storage + vat.
type Invoice struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	CompanyID       uuid.UUID       `json:"company_id" db:"company_id"`
	CustomerID      uuid.UUID       `json:"customer_id" db:"customer_id"`
	Code            string          `json:"code" db:"code"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount" db:"shipping_amount"`
	InsuranceAmount decimal.Decimal `json:"insurance_amount" db:"insurance_amount"`
	CustomsAmount   decimal.Decimal `json:"customs_amount" db:"customs_amount"`
	StorageAmount   decimal.Decimal `json:"storage_amount" db:"storage_amount"`
	VatAmount       decimal.Decimal `json:"vat_amount" db:"vat_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          InvoiceStatus   `json:"status" db:"status"`
	DueDate         *time.Time      `json:"due_date,omitempty" db:"due_date"`
	PaidAt          *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	PaymentMethod   string          `json:"payment_method" db:"payment_method"`
	PickupToken     string          `json:"-" db:"pickup_token"`
	EbarimtBillID   *string         `json:"ebarimt_bill_id,omitempty" db:"ebarimt_bill_id"`
	EbarimtLottery  *string         `json:"ebarimt_lottery,omitempty" db:"ebarimt_lottery"`
	EbarimtQRData   *string         `json:"ebarimt_qr_data,omitempty" db:"ebarimt_qr_data"`
	EbarimtStatus   EbarimtStatus   `json:"ebarimt_status" db:"ebarimt_status"`
	PremiumStatus   PremiumStatus   `json:"premium_status" db:"premium_status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusRevoked InvoiceStatus = "REVOKED"
)

// EbarimtStatus tracks the external tax-receipt call outcome. A FAILED receipt
// never rolls back the payment that triggered it.
type EbarimtStatus string

const (
	EbarimtStatusNone    EbarimtStatus = "NONE"
	EbarimtStatusIssued  EbarimtStatus = "ISSUED"
	EbarimtStatusFailed  EbarimtStatus = "FAILED"
	EbarimtStatusRevoked EbarimtStatus = "REVOKED"
)

// PremiumStatus tracks whether the paid insurance premium has landed in the
// risk-fund ledger. A FAILED credit never rolls back the payment; it stays
// visible for reconciliation.
type PremiumStatus string

const (
	PremiumStatusNone     PremiumStatus = "NONE"
	PremiumStatusPending  PremiumStatus = "PENDING"
	PremiumStatusCredited PremiumStatus = "CREDITED"
	PremiumStatusFailed   PremiumStatus = "FAILED"
)

// InvoiceItem is a single line on an invoice. amount = unit_price + vat.
type InvoiceItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	PackageID   *uuid.UUID      `json:"package_id,omitempty" db:"package_id"`
	Description string          `json:"description" db:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Vat         decimal.Decimal `json:"vat" db:"vat"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	ItemType    InvoiceItemType `json:"item_type" db:"item_type"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type InvoiceItemType string

const (
	ItemTypeShipping  InvoiceItemType = "SHIPPING"
	ItemTypeInsurance InvoiceItemType = "INSURANCE"
	ItemTypeCustoms   InvoiceItemType = "CUSTOMS"
	ItemTypeStorage   InvoiceItemType = "STORAGE"
)

// PlatformFee records, one-to-one with an invoice, what the platform keeps and
// what flows onward. net_to_cargo = shipping + shipping_vat + storage_vat
// - fee - fee_vat - qpay_fee - carrier_amount. A negative value is a defect
// signal, not a business state.
type PlatformFee struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id" db:"invoice_id"`
	CompanyID      uuid.UUID       `json:"company_id" db:"company_id"`
	CarrierID      *uuid.UUID      `json:"carrier_id,omitempty" db:"carrier_id"`
	ShippingAmount decimal.Decimal `json:"shipping_amount" db:"shipping_amount"`
	ShippingVat    decimal.Decimal `json:"shipping_vat" db:"shipping_vat"`
	StorageVat     decimal.Decimal `json:"storage_vat" db:"storage_vat"`
	FeeAmount      decimal.Decimal `json:"fee_amount" db:"fee_amount"`
	FeeVat         decimal.Decimal `json:"fee_vat" db:"fee_vat"`
	QPayFee        decimal.Decimal `json:"qpay_fee" db:"qpay_fee"`
	CarrierAmount  decimal.Decimal `json:"carrier_amount" db:"carrier_amount"`
	NetToCargo     decimal.Decimal `json:"net_to_cargo" db:"net_to_cargo"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
