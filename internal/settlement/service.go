// Package settlement rolls paid invoices and charged refunds into periodic
// statements and drives them through the hub/carrier approval state machine.
package settlement

import (
	"context"
	"time"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"
	"cargopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create persists a draft; a duplicate (company, role, period) must
	// surface as ErrSettlementExists.
	Create(ctx context.Context, s *domain.Settlement) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error)
	List(ctx context.Context, companyID *uuid.UUID, status *domain.SettlementStatus, limit, offset int) ([]*domain.Settlement, error)
	// The Update methods compare-and-set on the status the service observed;
	// a lost race must surface as a state conflict.
	UpdateHubReview(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error
	UpdateCarrierReview(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error
	MarkTransferred(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error
}

// HubTotals aggregates a hub company's platform fees over one period.
// SoleCarrierID is set when every fee row in the period shares one external
// carrier, which makes that carrier a counterparty on the statement.
type HubTotals struct {
	InvoiceCount  int
	Shipping      decimal.Decimal
	ShippingVat   decimal.Decimal
	StorageVat    decimal.Decimal
	Fee           decimal.Decimal
	FeeVat        decimal.Decimal
	QPay          decimal.Decimal
	Carrier       decimal.Decimal
	SoleCarrierID *uuid.UUID
}

// CarrierTotals aggregates what one carrier earned across all batches in a
// period.
type CarrierTotals struct {
	InvoiceCount int
	Amount       decimal.Decimal
}

type FeeAggregator interface {
	HubTotals(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*HubTotals, error)
	CarrierTotals(ctx context.Context, carrierID uuid.UUID, from, to time.Time) (*CarrierTotals, error)
	// RefundChargedTotal sums completed refunds whose liable party is one of
	// the cargo roles, which the hub company absorbs. The insurance payout
	// slice stays out of the sum; the risk fund already paid it.
	RefundChargedTotal(ctx context.Context, companyID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

type Service struct {
	repo   Repository
	fees   FeeAggregator
	logger logger.Logger
}

func NewService(repo Repository, fees FeeAggregator, log logger.Logger) *Service {
	return &Service{repo: repo, fees: fees, logger: log}
}

// GenerateForCompany builds one draft settlement for a company in one role
// over a closed period. Periods with no activity produce no settlement.
func (s *Service) GenerateForCompany(ctx context.Context, companyID uuid.UUID, role domain.SettlementRole, periodStart, periodEnd time.Time) (*domain.Settlement, error) {
	if !periodEnd.After(periodStart) {
		return nil, pkgerrors.Validation("INVALID_PERIOD", "period end must be after period start")
	}

	now := time.Now().UTC()
	st := &domain.Settlement{
		ID:                    uuid.New(),
		CompanyID:             companyID,
		Role:                  role,
		PeriodStart:           periodStart,
		PeriodEnd:             periodEnd,
		HubApprovalStatus:     domain.ApprovalPending,
		CarrierApprovalStatus: domain.ApprovalPending,
		Status:                domain.SettlementStatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	switch role {
	case domain.RoleHub:
		totals, err := s.fees.HubTotals(ctx, companyID, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
		refunds, err := s.fees.RefundChargedTotal(ctx, companyID, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
		if totals.InvoiceCount == 0 && refunds.IsZero() {
			return nil, pkgerrors.Validation("EMPTY_PERIOD", "no settleable activity in period")
		}

		st.InvoiceCount = totals.InvoiceCount
		st.ShippingTotal = totals.Shipping.Add(totals.ShippingVat).Add(totals.StorageVat)
		st.FeeTotal = totals.Fee.Add(totals.FeeVat)
		st.QPayFeeTotal = totals.QPay
		st.CarrierTotal = totals.Carrier
		st.RefundTotal = refunds
		st.CarrierID = totals.SoleCarrierID
		st.OriginalAmount = st.ShippingTotal.
			Sub(st.FeeTotal).
			Sub(st.QPayFeeTotal).
			Sub(st.CarrierTotal).
			Sub(st.RefundTotal)

	case domain.RoleCarrier:
		totals, err := s.fees.CarrierTotals(ctx, companyID, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
		if totals.InvoiceCount == 0 {
			return nil, pkgerrors.Validation("EMPTY_PERIOD", "no settleable activity in period")
		}

		st.InvoiceCount = totals.InvoiceCount
		st.CarrierTotal = totals.Amount
		st.OriginalAmount = totals.Amount
		// The carrier is its own counterparty; hub approval alone releases it.
		st.CarrierID = &companyID

	default:
		return nil, pkgerrors.Validation("INVALID_ROLE", "unknown settlement role")
	}

	st.NetAmount = st.OriginalAmount

	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}

	s.logger.Info("Settlement draft created", map[string]interface{}{
		"settlement_id": st.ID,
		"company_id":    companyID,
		"role":          role,
		"net_amount":    st.NetAmount.String(),
	})

	return st, nil
}

// HubReview records the platform operator's decision. Approval may carry an
// adjustment; a rejected draft keeps its status and can be reviewed again.
// A disputed settlement loops back through hub review.
func (s *Service) HubReview(ctx context.Context, id uuid.UUID, approve bool, adjustment decimal.Decimal, note string) (*domain.Settlement, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != domain.SettlementStatusPending && st.Status != domain.SettlementStatusDisputed {
		return nil, pkgerrors.StateConflict("SETTLEMENT_NOT_REVIEWABLE", "settlement is not awaiting hub review")
	}

	from := st.Status
	if approve {
		st.HubApprovalStatus = domain.ApprovalApproved
		st.AdjustmentAmount = adjustment
		st.AdjustmentNote = note
		st.NetAmount = st.OriginalAmount.Add(adjustment)
		st.Status = domain.SettlementStatusHubApproved
	} else {
		// A rejected draft stays where it is and remains re-reviewable.
		st.HubApprovalStatus = domain.ApprovalRejected
		st.AdjustmentNote = note
	}
	st.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateHubReview(ctx, st, from); err != nil {
		return nil, err
	}
	return st, nil
}

// CarrierReview records the carrier counterparty's decision on a hub-approved
// settlement. Rejection moves it to DISPUTED and reopens hub review.
func (s *Service) CarrierReview(ctx context.Context, id, carrierID uuid.UUID, accept bool, note string) (*domain.Settlement, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != domain.SettlementStatusHubApproved {
		return nil, pkgerrors.StateConflict("SETTLEMENT_NOT_REVIEWABLE", "settlement is not awaiting carrier review")
	}
	if st.CarrierID == nil || *st.CarrierID != carrierID {
		return nil, pkgerrors.Validation("NOT_SETTLEMENT_CARRIER", "company is not the settlement's carrier counterparty")
	}

	from := st.Status
	if accept {
		st.CarrierApprovalStatus = domain.ApprovalAccepted
		st.Status = domain.SettlementStatusCarrierAccepted
	} else {
		st.CarrierApprovalStatus = domain.ApprovalRejected
		st.HubApprovalStatus = domain.ApprovalPending
		st.AdjustmentNote = note
		st.Status = domain.SettlementStatusDisputed
	}
	st.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateCarrierReview(ctx, st, from); err != nil {
		return nil, err
	}
	return st, nil
}

// Transfer marks the statement paid out. A carrier-accepted settlement is
// always transferable; a self-settled one needs no carrier acceptance.
// Disputed and completed settlements are never transferable.
func (s *Service) Transfer(ctx context.Context, id uuid.UUID, reference, receipt string) (*domain.Settlement, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	transferable := st.Status == domain.SettlementStatusCarrierAccepted ||
		(st.SelfSettled() &&
			(st.Status == domain.SettlementStatusPending || st.Status == domain.SettlementStatusHubApproved))
	if !transferable {
		return nil, pkgerrors.StateConflict("SETTLEMENT_NOT_TRANSFERABLE", "settlement is not in a transferable state")
	}

	now := time.Now().UTC()
	from := st.Status
	st.Status = domain.SettlementStatusCompleted
	st.TransferReference = &reference
	if receipt != "" {
		st.TransferReceipt = &receipt
	}
	st.TransferredAt = &now
	st.UpdatedAt = now

	if err := s.repo.MarkTransferred(ctx, st, from); err != nil {
		return nil, err
	}

	s.logger.Info("Settlement transferred", map[string]interface{}{
		"settlement_id": st.ID,
		"net_amount":    st.NetAmount.String(),
		"reference":     reference,
	})

	return st, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, companyID *uuid.UUID, status *domain.SettlementStatus, limit, offset int) ([]*domain.Settlement, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, companyID, status, limit, offset)
}
