package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundTransaction is one immutable row of the insurance risk-fund ledger.
// balance carries the running total: balance = previous balance + amount.
// Rows are only ever appended; seq breaks timestamp ties.
type FundTransaction struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Seq           int64               `json:"seq" db:"seq"`
	Type          FundTransactionType `json:"type" db:"type"`
	Amount        decimal.Decimal     `json:"amount" db:"amount"`
	Balance       decimal.Decimal     `json:"balance" db:"balance"`
	ReferenceID   uuid.UUID           `json:"reference_id" db:"reference_id"`
	ReferenceType string              `json:"reference_type" db:"reference_type"`
	Description   string              `json:"description" db:"description"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

type FundTransactionType string

const (
	FundPremiumIn   FundTransactionType = "PREMIUM_IN"
	FundClaimPayout FundTransactionType = "CLAIM_PAYOUT"
	FundPayoutOut   FundTransactionType = "PAYOUT_OUT"
	// FundPayoutReversal re-credits a payout whose claim bookkeeping failed
	// after the debit landed. The ledger stays append-only; the pair of
	// entries nets to zero.
	FundPayoutReversal FundTransactionType = "PAYOUT_REVERSAL"
)

// Reference types stored alongside fund transactions.
const (
	FundRefInvoice = "INVOICE"
	FundRefReturn  = "RETURN_REQUEST"
	FundRefClaim   = "INSURANCE_CLAIM"
)

// InsurancePolicy is the per-order risk-fund cover read model.
type InsurancePolicy struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	Status    PolicyStatus    `json:"status" db:"status"`
	Premium   decimal.Decimal `json:"premium" db:"premium"`
	MaxPayout decimal.Decimal `json:"max_payout" db:"max_payout"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type PolicyStatus string

const (
	PolicyStatusActive  PolicyStatus = "ACTIVE"
	PolicyStatusClaimed PolicyStatus = "CLAIMED"
	PolicyStatusExpired PolicyStatus = "EXPIRED"
)

// InsuranceClaim cross-references a fund payout with the return that caused it.
type InsuranceClaim struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	PolicyID          uuid.UUID       `json:"policy_id" db:"policy_id"`
	ReturnRequestID   uuid.UUID       `json:"return_request_id" db:"return_request_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	FundTransactionID uuid.UUID       `json:"fund_transaction_id" db:"fund_transaction_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}
