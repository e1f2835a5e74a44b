package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementRole distinguishes the capacity a company is paid in.
type SettlementRole string

const (
	RoleHub     SettlementRole = "HUB"
	RoleCarrier SettlementRole = "CARRIER"
)

type SettlementStatus string

const (
	SettlementStatusPending         SettlementStatus = "PENDING"
	SettlementStatusHubApproved     SettlementStatus = "HUB_APPROVED"
	SettlementStatusCarrierAccepted SettlementStatus = "CARRIER_ACCEPTED"
	SettlementStatusDisputed        SettlementStatus = "DISPUTED"
	SettlementStatusCompleted       SettlementStatus = "COMPLETED"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalAccepted ApprovalStatus = "ACCEPTED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Settlement is a periodic statement of what the platform owes a company in
// one role. net_amount = original_amount + adjustment_amount. One active
// settlement per (company, role, period).
type Settlement struct {
	ID                    uuid.UUID        `json:"id" db:"id"`
	CompanyID             uuid.UUID        `json:"company_id" db:"company_id"`
	CarrierID             *uuid.UUID       `json:"carrier_id,omitempty" db:"carrier_id"`
	Role                  SettlementRole   `json:"role" db:"role"`
	PeriodStart           time.Time        `json:"period_start" db:"period_start"`
	PeriodEnd             time.Time        `json:"period_end" db:"period_end"`
	InvoiceCount          int              `json:"invoice_count" db:"invoice_count"`
	ShippingTotal         decimal.Decimal  `json:"shipping_total" db:"shipping_total"`
	FeeTotal              decimal.Decimal  `json:"fee_total" db:"fee_total"`
	QPayFeeTotal          decimal.Decimal  `json:"qpay_fee_total" db:"qpay_fee_total"`
	CarrierTotal          decimal.Decimal  `json:"carrier_total" db:"carrier_total"`
	RefundTotal           decimal.Decimal  `json:"refund_total" db:"refund_total"`
	OriginalAmount        decimal.Decimal  `json:"original_amount" db:"original_amount"`
	AdjustmentAmount      decimal.Decimal  `json:"adjustment_amount" db:"adjustment_amount"`
	AdjustmentNote        string           `json:"adjustment_note" db:"adjustment_note"`
	NetAmount             decimal.Decimal  `json:"net_amount" db:"net_amount"`
	HubApprovalStatus     ApprovalStatus   `json:"hub_approval_status" db:"hub_approval_status"`
	CarrierApprovalStatus ApprovalStatus   `json:"carrier_approval_status" db:"carrier_approval_status"`
	Status                SettlementStatus `json:"status" db:"status"`
	TransferReference     *string          `json:"transfer_reference,omitempty" db:"transfer_reference"`
	TransferReceipt       *string          `json:"transfer_receipt,omitempty" db:"transfer_receipt"`
	TransferredAt         *time.Time       `json:"transferred_at,omitempty" db:"transferred_at"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
}

// SelfSettled reports whether the settlement has no distinct carrier
// counterpart, which permits a direct transfer without carrier acceptance.
func (s *Settlement) SelfSettled() bool {
	return s.CarrierID == nil || *s.CarrierID == s.CompanyID
}
