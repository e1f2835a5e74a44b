// Package refund resolves approved return disputes into a refund waterfall:
// shipping refund, customs refund, insurance-fund payout, and residual
// compensation charged to the liable party.
package refund

import (
	"context"
	"fmt"
	"time"

	"cargopay/internal/domain"
	"cargopay/internal/liability"
	pkgerrors "cargopay/pkg/errors"
	"cargopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// payoutShare is the fraction of the uncovered net loss the risk fund absorbs.
var payoutShare = decimal.NewFromFloat(0.5)

type ReturnRepository interface {
	Create(ctx context.Context, rr *domain.ReturnRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error)
	// UpdateReview persists a reviewer transition; it must fail with a state
	// conflict when the request is no longer reviewable.
	UpdateReview(ctx context.Context, rr *domain.ReturnRequest) error
	// BeginRefund inserts the refund transaction and moves the return to
	// REFUND_PROCESSING in one atomic unit.
	BeginRefund(ctx context.Context, refund *domain.RefundTransaction) error
	// CompleteRefund marks the refund COMPLETED and closes the return in one
	// atomic unit; it must fail with a state conflict when the refund is no
	// longer processing.
	CompleteRefund(ctx context.Context, refundID, returnID uuid.UUID) error
	ListByStatus(ctx context.Context, status domain.ReturnStatus, limit, offset int) ([]*domain.ReturnRequest, error)
}

type RefundRepository interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RefundStatus) error
	FindByReturn(ctx context.Context, returnRequestID uuid.UUID) (*domain.RefundTransaction, error)
}

type InvoiceReader interface {
	FindByPackage(ctx context.Context, packageID uuid.UUID) (*domain.Invoice, error)
}

type PolicyRepository interface {
	// ActiveByOrder returns the order's active policy, or nil when none exists.
	ActiveByOrder(ctx context.Context, orderID uuid.UUID) (*domain.InsurancePolicy, error)
	MarkClaimed(ctx context.Context, policyID uuid.UUID) error
	CreateClaim(ctx context.Context, claim *domain.InsuranceClaim) error
}

type FundLedger interface {
	Append(ctx context.Context, typ domain.FundTransactionType, amount decimal.Decimal, referenceID uuid.UUID, referenceType, description string) (*domain.FundTransaction, error)
}

type Service struct {
	returns  ReturnRepository
	refunds  RefundRepository
	invoices InvoiceReader
	policies PolicyRepository
	fund     FundLedger
	logger   logger.Logger
}

func NewService(
	returns ReturnRepository,
	refunds RefundRepository,
	invoices InvoiceReader,
	policies PolicyRepository,
	fund FundLedger,
	log logger.Logger,
) *Service {
	return &Service{
		returns:  returns,
		refunds:  refunds,
		invoices: invoices,
		policies: policies,
		fund:     fund,
		logger:   log,
	}
}

type OpenRequest struct {
	PackageID uuid.UUID         `json:"package_id" validate:"required"`
	OrderID   uuid.UUID         `json:"order_id" validate:"required"`
	OpenedBy  uuid.UUID         `json:"-"`
	Type      domain.ReturnType `json:"type" validate:"required"`
}

// Open files a new return request with the classifier's advisory ruling.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*domain.ReturnRequest, error) {
	party, reason := liability.Classify(req.Type)
	now := time.Now().UTC()

	rr := &domain.ReturnRequest{
		ID:              uuid.New(),
		PackageID:       req.PackageID,
		OrderID:         req.OrderID,
		OpenedBy:        req.OpenedBy,
		Type:            req.Type,
		LiableParty:     party,
		LiabilityReason: reason,
		Status:          domain.ReturnStatusOpened,
		ApprovedAmount:  decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.returns.Create(ctx, rr); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create return request")
	}
	return rr, nil
}

type ReviewRequest struct {
	ReturnID       uuid.UUID
	ReviewerID     uuid.UUID
	Decision       string // APPROVED or REJECTED
	ApprovedAmount decimal.Decimal
	// LiableParty overrides the classifier's default when set.
	LiableParty domain.LiableParty
}

// Review applies a reviewer's decision. An approval with a positive amount
// immediately runs the refund waterfall.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (*domain.ReturnRequest, error) {
	rr, err := s.returns.FindByID(ctx, req.ReturnID)
	if err != nil {
		return nil, err
	}

	if rr.Status != domain.ReturnStatusOpened && rr.Status != domain.ReturnStatusUnderReview {
		return nil, pkgerrors.ErrReturnNotReviewable
	}

	now := time.Now().UTC()
	rr.ReviewedBy = &req.ReviewerID
	rr.ReviewedAt = &now
	rr.UpdatedAt = now

	switch req.Decision {
	case "REJECTED":
		rr.Status = domain.ReturnStatusRejected
		if err := s.returns.UpdateReview(ctx, rr); err != nil {
			return nil, err
		}
		return rr, nil

	case "APPROVED":
		if req.ApprovedAmount.IsNegative() {
			return nil, pkgerrors.Validation("APPROVED_AMOUNT", "approved amount must not be negative")
		}
		rr.Status = domain.ReturnStatusApproved
		rr.ApprovedAmount = req.ApprovedAmount
		if req.LiableParty != "" {
			rr.LiableParty = req.LiableParty
		}
		if err := s.returns.UpdateReview(ctx, rr); err != nil {
			return nil, err
		}

		if rr.ApprovedAmount.IsPositive() {
			if _, err := s.Allocate(ctx, rr); err != nil {
				return nil, err
			}
			rr.Status = domain.ReturnStatusRefundProcessing
		}
		return rr, nil

	default:
		return nil, pkgerrors.Validation("REVIEW_DECISION", "decision must be APPROVED or REJECTED")
	}
}

// Allocate runs the refund waterfall for an approved return and persists the
// resulting refund transaction. The four components always sum exactly to the
// approved amount; any remainder from the payout split folds into
// compensation.
func (s *Service) Allocate(ctx context.Context, rr *domain.ReturnRequest) (*domain.RefundTransaction, error) {
	approved := rr.ApprovedAmount
	if !approved.IsPositive() {
		return nil, pkgerrors.Validation("APPROVED_AMOUNT", "nothing to allocate for a zero approval")
	}

	shippingRefund := decimal.Zero
	customsRefund := decimal.Zero
	if rr.LiableParty.IsCargoRole() {
		inv, err := s.invoices.FindByPackage(ctx, rr.PackageID)
		if err != nil {
			return nil, err
		}
		// Cap each component at what remains of the approved amount so the
		// decomposition cannot exceed it.
		shippingRefund = decimal.Min(inv.ShippingAmount, approved)
		customsRefund = decimal.Min(inv.CustomsAmount, approved.Sub(shippingRefund))
	}

	netLoss := approved.Sub(shippingRefund).Sub(customsRefund)
	if netLoss.IsNegative() {
		netLoss = decimal.Zero
	}

	insurancePayout := decimal.Zero
	var policy *domain.InsurancePolicy
	if rr.LiableParty != domain.LiableCustomer && netLoss.IsPositive() {
		p, err := s.policies.ActiveByOrder(ctx, rr.OrderID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			insurancePayout = decimal.Min(netLoss.Mul(payoutShare), p.MaxPayout)
			policy = p
		}
	}

	compensation := approved.Sub(shippingRefund).Sub(customsRefund).Sub(insurancePayout)
	if compensation.IsNegative() {
		compensation = decimal.Zero
	}

	sum := shippingRefund.Add(customsRefund).Add(insurancePayout).Add(compensation)
	if !sum.Equal(approved) {
		return nil, pkgerrors.Invariantf("REFUND_DECOMPOSITION",
			"refund components %s do not sum to approved amount %s (return %s)",
			sum, approved, rr.ID)
	}

	now := time.Now().UTC()
	refund := &domain.RefundTransaction{
		ID:              uuid.New(),
		ReturnRequestID: rr.ID,
		Amount:          approved,
		ShippingRefund:  shippingRefund,
		CustomsRefund:   customsRefund,
		InsurancePayout: insurancePayout,
		Compensation:    compensation,
		ChargedTo:       rr.LiableParty,
		Status:          domain.RefundStatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.returns.BeginRefund(ctx, refund); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to persist refund")
	}

	if insurancePayout.IsPositive() && policy != nil {
		if err := s.payOutOfFund(ctx, rr, refund, policy); err != nil {
			// The refund row stays visible in FAILED state for reconciliation.
			if markErr := s.refunds.UpdateStatus(ctx, refund.ID, domain.RefundStatusFailed); markErr != nil {
				s.logger.Error("Failed to mark refund as failed", map[string]interface{}{
					"refund_id": refund.ID,
					"error":     markErr.Error(),
				})
			}
			return nil, err
		}
	}

	s.logger.Info("Refund allocated", map[string]interface{}{
		"return_id":        rr.ID,
		"amount":           approved.String(),
		"shipping_refund":  shippingRefund.String(),
		"customs_refund":   customsRefund.String(),
		"insurance_payout": insurancePayout.String(),
		"compensation":     compensation.String(),
		"charged_to":       string(rr.LiableParty),
	})

	return refund, nil
}

func (s *Service) payOutOfFund(ctx context.Context, rr *domain.ReturnRequest, refund *domain.RefundTransaction, policy *domain.InsurancePolicy) error {
	desc := fmt.Sprintf("risk-fund payout for return %s", rr.ID)
	fundTx, err := s.fund.Append(ctx, domain.FundPayoutOut, refund.InsurancePayout.Neg(), rr.ID, domain.FundRefReturn, desc)
	if err != nil {
		return err
	}

	if err := s.policies.MarkClaimed(ctx, policy.ID); err != nil {
		s.reversePayout(ctx, rr, refund)
		return pkgerrors.Wrap(err, "failed to mark policy claimed")
	}

	claim := &domain.InsuranceClaim{
		ID:                uuid.New(),
		PolicyID:          policy.ID,
		ReturnRequestID:   rr.ID,
		Amount:            refund.InsurancePayout,
		FundTransactionID: fundTx.ID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.policies.CreateClaim(ctx, claim); err != nil {
		s.reversePayout(ctx, rr, refund)
		return pkgerrors.Wrap(err, "failed to create insurance claim")
	}

	return nil
}

// reversePayout re-credits the fund after claim bookkeeping failed past the
// debit. The ledger is append-only, so the debit is undone with a matching
// reversal entry instead of being removed.
func (s *Service) reversePayout(ctx context.Context, rr *domain.ReturnRequest, refund *domain.RefundTransaction) {
	desc := fmt.Sprintf("reversal of risk-fund payout for return %s", rr.ID)
	if _, err := s.fund.Append(ctx, domain.FundPayoutReversal, refund.InsurancePayout, rr.ID, domain.FundRefReturn, desc); err != nil {
		s.logger.Error("Failed to reverse fund payout", map[string]interface{}{
			"return_id": rr.ID,
			"refund_id": refund.ID,
			"amount":    refund.InsurancePayout.String(),
			"error":     err.Error(),
		})
	}
}

// Get returns one return request by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ReturnRequest, error) {
	return s.returns.FindByID(ctx, id)
}

// Complete settles a processing refund once the money has actually moved:
// the refund becomes COMPLETED, the return closes, and the charge starts
// counting against the liable party's settlement.
func (s *Service) Complete(ctx context.Context, returnID uuid.UUID) (*domain.RefundTransaction, error) {
	refund, err := s.refunds.FindByReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if refund.Status != domain.RefundStatusProcessing {
		return nil, pkgerrors.ErrRefundNotProcessing
	}

	if err := s.returns.CompleteRefund(ctx, refund.ID, returnID); err != nil {
		return nil, err
	}
	refund.Status = domain.RefundStatusCompleted
	refund.UpdatedAt = time.Now().UTC()

	s.logger.Info("Refund completed", map[string]interface{}{
		"return_id":  returnID,
		"refund_id":  refund.ID,
		"amount":     refund.Amount.String(),
		"charged_to": string(refund.ChargedTo),
	})

	return refund, nil
}

// List returns a page of return requests in the given status, oldest first.
func (s *Service) List(ctx context.Context, status domain.ReturnStatus, limit, offset int) ([]*domain.ReturnRequest, error) {
	return s.returns.ListByStatus(ctx, status, limit, offset)
}

// RefundFor returns the latest refund transaction of a return request, or
// ErrReturnNotFound when no refund has been started yet.
func (s *Service) RefundFor(ctx context.Context, returnID uuid.UUID) (*domain.RefundTransaction, error) {
	return s.refunds.FindByReturn(ctx, returnID)
}
