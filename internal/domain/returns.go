package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnType enumerates the dispute categories a claimant can open.
type ReturnType string

const (
	ReturnProhibitedItem   ReturnType = "PROHIBITED_ITEM"
	ReturnNotArrivedErlian ReturnType = "NOT_ARRIVED_ERLIAN"
	ReturnDamagedAtErlian  ReturnType = "DAMAGED_AT_ERLIAN"
	ReturnDamagedInTransit ReturnType = "DAMAGED_IN_TRANSIT"
	ReturnLostInTransit    ReturnType = "LOST_IN_TRANSIT"
	ReturnNotArrivedUB     ReturnType = "NOT_ARRIVED_UB"
	ReturnDamagedAtUB      ReturnType = "DAMAGED_AT_UB"
	ReturnWrongDelivery    ReturnType = "WRONG_DELIVERY"
	ReturnWrongItem        ReturnType = "WRONG_ITEM"
	ReturnQualityIssue     ReturnType = "QUALITY_ISSUE"
)

// LiableParty is the actor held responsible for a loss or damage.
type LiableParty string

const (
	LiableCustomer      LiableParty = "CUSTOMER"
	LiableSeller        LiableParty = "SELLER"
	LiableIntlCarrier   LiableParty = "INTL_CARRIER"
	LiableCargoTransit  LiableParty = "CARGO_TRANSIT"
	LiableCargoMongolia LiableParty = "CARGO_MONGOLIA"
	LiableCargoErlian   LiableParty = "CARGO_ERLIAN"
	LiableUndetermined  LiableParty = "UNDETERMINED"
)

// IsCargoRole reports whether the party is a cargo-side transport role, which
// entitles the claimant to a full shipping and customs refund.
func (p LiableParty) IsCargoRole() bool {
	switch p {
	case LiableCargoTransit, LiableCargoMongolia, LiableCargoErlian:
		return true
	}
	return false
}

type ReturnStatus string

const (
	ReturnStatusOpened           ReturnStatus = "OPENED"
	ReturnStatusUnderReview      ReturnStatus = "UNDER_REVIEW"
	ReturnStatusApproved         ReturnStatus = "APPROVED"
	ReturnStatusRejected         ReturnStatus = "REJECTED"
	ReturnStatusRefundProcessing ReturnStatus = "REFUND_PROCESSING"
	ReturnStatusClosed           ReturnStatus = "CLOSED"
)

// ReturnRequest is a damage/loss dispute opened by a claimant. liable_party
// starts as the classifier's advisory default and may be overridden by the
// reviewer at approval time.
type ReturnRequest struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	PackageID       uuid.UUID       `json:"package_id" db:"package_id"`
	OrderID         uuid.UUID       `json:"order_id" db:"order_id"`
	OpenedBy        uuid.UUID       `json:"opened_by" db:"opened_by"`
	Type            ReturnType      `json:"type" db:"type"`
	LiableParty     LiableParty     `json:"liable_party" db:"liable_party"`
	LiabilityReason string          `json:"liability_reason" db:"liability_reason"`
	Status          ReturnStatus    `json:"status" db:"status"`
	ApprovedAmount  decimal.Decimal `json:"approved_amount" db:"approved_amount"`
	ReviewedBy      *uuid.UUID      `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type RefundStatus string

const (
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

// RefundTransaction decomposes an approved payout. Invariant:
// shipping_refund + customs_refund + insurance_payout + compensation = amount.
type RefundTransaction struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ReturnRequestID uuid.UUID       `json:"return_request_id" db:"return_request_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	ShippingRefund  decimal.Decimal `json:"shipping_refund" db:"shipping_refund"`
	CustomsRefund   decimal.Decimal `json:"customs_refund" db:"customs_refund"`
	InsurancePayout decimal.Decimal `json:"insurance_payout" db:"insurance_payout"`
	Compensation    decimal.Decimal `json:"compensation" db:"compensation"`
	ChargedTo       LiableParty     `json:"charged_to" db:"charged_to"`
	Status          RefundStatus    `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
