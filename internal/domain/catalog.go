package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Read models for the external package/order store. This engine reads weight,
// volume, category and batch linkage, and writes only status transitions.

type PackageStatus string

const (
	PackageStatusAtWarehouse    PackageStatus = "AT_WAREHOUSE"
	PackageStatusInTransit      PackageStatus = "IN_TRANSIT"
	PackageStatusArrivedUB      PackageStatus = "ARRIVED_UB"
	PackageStatusReadyForPickup PackageStatus = "READY_FOR_PICKUP"
	PackageStatusDelivered      PackageStatus = "DELIVERED"
)

type Package struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	CompanyID   uuid.UUID        `json:"company_id" db:"company_id"`
	OrderID     *uuid.UUID       `json:"order_id,omitempty" db:"order_id"`
	BatchID     *uuid.UUID       `json:"batch_id,omitempty" db:"batch_id"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty" db:"category_id"`
	Weight      decimal.Decimal  `json:"weight" db:"weight"`
	Length      decimal.Decimal  `json:"length" db:"length"`
	Width       decimal.Decimal  `json:"width" db:"width"`
	Height      decimal.Decimal  `json:"height" db:"height"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty" db:"custom_price"`
	Status      PackageStatus    `json:"status" db:"status"`
	ArrivedAt   *time.Time       `json:"arrived_at,omitempty" db:"arrived_at"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	CustomerID      uuid.UUID       `json:"customer_id" db:"customer_id"`
	Status          OrderStatus     `json:"status" db:"status"`
	InsuranceAmount decimal.Decimal `json:"insurance_amount" db:"insurance_amount"`
	CustomsAmount   decimal.Decimal `json:"customs_amount" db:"customs_amount"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Batch links packages to the transport leg they travelled on. A batch carries
// a winning bid when an external carrier transported it.
type Batch struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	CompanyID   uuid.UUID       `json:"company_id" db:"company_id"`
	CarrierID   *uuid.UUID      `json:"carrier_id,omitempty" db:"carrier_id"`
	BidID       *uuid.UUID      `json:"bid_id,omitempty" db:"bid_id"`
	TotalWeight decimal.Decimal `json:"total_weight" db:"total_weight"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Bid is the won transport bid backing a batch's carrier split.
type Bid struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	CarrierID uuid.UUID       `json:"carrier_id" db:"carrier_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  Currency        `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type PricingRuleKind string

const (
	RuleFixed        PricingRuleKind = "FIXED"
	RuleCategory     PricingRuleKind = "CATEGORY"
	RuleWeightVolume PricingRuleKind = "WEIGHT_VOLUME"
)

// PricingRule is supplied by the external pricing provider. Prices are in the
// source currency (per kg / per cbm for weight-volume rules).
type PricingRule struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	CompanyID   uuid.UUID        `json:"company_id" db:"company_id"`
	Kind        PricingRuleKind  `json:"kind" db:"kind"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty" db:"category_id"`
	PricePerKg  decimal.Decimal  `json:"price_per_kg" db:"price_per_kg"`
	PricePerCbm *decimal.Decimal `json:"price_per_cbm,omitempty" db:"price_per_cbm"`
	MinPrice    decimal.Decimal  `json:"min_price" db:"min_price"`
	FixedPrice  decimal.Decimal  `json:"fixed_price" db:"fixed_price"`
	Currency    Currency         `json:"currency" db:"currency"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// PlatformSettings is the platform-wide fee configuration snapshot.
type PlatformSettings struct {
	VatEnabled        bool            `json:"vat_enabled" db:"vat_enabled"`
	VatRate           decimal.Decimal `json:"vat_rate" db:"vat_rate"`
	FeeRate           decimal.Decimal `json:"fee_rate" db:"fee_rate"`
	MinFee            decimal.Decimal `json:"min_fee" db:"min_fee"`
	MaxFee            decimal.Decimal `json:"max_fee" db:"max_fee"`
	StorageFreeDays   int             `json:"storage_free_days" db:"storage_free_days"`
	StoragePhase1Days int             `json:"storage_phase1_days" db:"storage_phase1_days"`
	StoragePhase1Rate decimal.Decimal `json:"storage_phase1_rate" db:"storage_phase1_rate"`
	StoragePhase2Rate decimal.Decimal `json:"storage_phase2_rate" db:"storage_phase2_rate"`
	QPayFeeRate       decimal.Decimal `json:"qpay_fee_rate" db:"qpay_fee_rate"`
}

// ExchangeRate is a source-to-settlement currency rate row.
type ExchangeRate struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	BaseCurrency Currency        `json:"base_currency" db:"base_currency"`
	Rate         decimal.Decimal `json:"rate" db:"rate"`
	ValidFrom    time.Time       `json:"valid_from" db:"valid_from"`
	ValidTo      *time.Time      `json:"valid_to,omitempty" db:"valid_to"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
