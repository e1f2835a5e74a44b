package settlement

import (
	"context"
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

type mockSettlementRepo struct{ mock.Mock }

func (m *mockSettlementRepo) Create(ctx context.Context, s *domain.Settlement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSettlementRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}

func (m *mockSettlementRepo) List(ctx context.Context, companyID *uuid.UUID, status *domain.SettlementStatus, limit, offset int) ([]*domain.Settlement, error) {
	args := m.Called(ctx, companyID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Settlement), args.Error(1)
}

func (m *mockSettlementRepo) UpdateHubReview(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error {
	args := m.Called(ctx, s, from)
	return args.Error(0)
}

func (m *mockSettlementRepo) UpdateCarrierReview(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error {
	args := m.Called(ctx, s, from)
	return args.Error(0)
}

func (m *mockSettlementRepo) MarkTransferred(ctx context.Context, s *domain.Settlement, from domain.SettlementStatus) error {
	args := m.Called(ctx, s, from)
	return args.Error(0)
}

type mockFeeAggregator struct{ mock.Mock }

func (m *mockFeeAggregator) HubTotals(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*HubTotals, error) {
	args := m.Called(ctx, companyID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*HubTotals), args.Error(1)
}

func (m *mockFeeAggregator) CarrierTotals(ctx context.Context, carrierID uuid.UUID, from, to time.Time) (*CarrierTotals, error) {
	args := m.Called(ctx, carrierID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CarrierTotals), args.Error(1)
}

func (m *mockFeeAggregator) RefundChargedTotal(ctx context.Context, companyID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, companyID, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func newSettlementService(t *testing.T) (*Service, *mockSettlementRepo, *mockFeeAggregator) {
	t.Helper()
	repo := new(mockSettlementRepo)
	fees := new(mockFeeAggregator)
	return NewService(repo, fees, logger.NewNop()), repo, fees
}

func period() (time.Time, time.Time) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func TestGenerateForCompany_HubRollup(t *testing.T) {
	svc, repo, fees := newSettlementService(t)
	ctx := context.Background()
	companyID := uuid.New()
	carrierID := uuid.New()
	from, to := period()

	fees.On("HubTotals", ctx, companyID, from, to).Return(&HubTotals{
		InvoiceCount:  12,
		Shipping:      decimal.NewFromInt(580000),
		ShippingVat:   decimal.NewFromInt(58000),
		StorageVat:    decimal.NewFromInt(2000),
		Fee:           decimal.NewFromInt(29000),
		FeeVat:        decimal.NewFromInt(2900),
		QPay:          decimal.NewFromInt(6500),
		Carrier:       decimal.NewFromInt(97000),
		SoleCarrierID: &carrierID,
	}, nil)
	fees.On("RefundChargedTotal", ctx, companyID, from, to).Return(decimal.NewFromInt(40000), nil)
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Settlement")).Return(nil)

	st, err := svc.GenerateForCompany(ctx, companyID, domain.RoleHub, from, to)
	require.NoError(t, err)

	assert.Equal(t, 12, st.InvoiceCount)
	assert.True(t, st.ShippingTotal.Equal(decimal.NewFromInt(640000)))
	assert.True(t, st.FeeTotal.Equal(decimal.NewFromInt(31900)))
	assert.True(t, st.RefundTotal.Equal(decimal.NewFromInt(40000)))
	// 640,000 - 31,900 - 6,500 - 97,000 - 40,000 = 464,600.
	assert.True(t, st.OriginalAmount.Equal(decimal.NewFromInt(464600)), st.OriginalAmount.String())
	assert.True(t, st.NetAmount.Equal(st.OriginalAmount))
	assert.Equal(t, domain.SettlementStatusPending, st.Status)
	assert.Equal(t, domain.ApprovalPending, st.HubApprovalStatus)
	require.NotNil(t, st.CarrierID)
	assert.Equal(t, carrierID, *st.CarrierID)
	assert.False(t, st.SelfSettled())
}

func TestGenerateForCompany_CarrierRollup(t *testing.T) {
	svc, repo, fees := newSettlementService(t)
	ctx := context.Background()
	carrierID := uuid.New()
	from, to := period()

	fees.On("CarrierTotals", ctx, carrierID, from, to).Return(&CarrierTotals{
		InvoiceCount: 4,
		Amount:       decimal.NewFromInt(194000),
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Settlement")).Return(nil)

	st, err := svc.GenerateForCompany(ctx, carrierID, domain.RoleCarrier, from, to)
	require.NoError(t, err)

	assert.True(t, st.OriginalAmount.Equal(decimal.NewFromInt(194000)))
	assert.True(t, st.SelfSettled())
}

func TestGenerateForCompany_EmptyPeriod(t *testing.T) {
	svc, repo, fees := newSettlementService(t)
	ctx := context.Background()
	companyID := uuid.New()
	from, to := period()

	fees.On("HubTotals", ctx, companyID, from, to).Return(&HubTotals{}, nil)
	fees.On("RefundChargedTotal", ctx, companyID, from, to).Return(decimal.Zero, nil)

	_, err := svc.GenerateForCompany(ctx, companyID, domain.RoleHub, from, to)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindValidation, pkgerrors.KindOf(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGenerateForCompany_DuplicatePeriod(t *testing.T) {
	svc, repo, fees := newSettlementService(t)
	ctx := context.Background()
	companyID := uuid.New()
	from, to := period()

	fees.On("HubTotals", ctx, companyID, from, to).Return(&HubTotals{
		InvoiceCount: 1,
		Shipping:     decimal.NewFromInt(1000),
	}, nil)
	fees.On("RefundChargedTotal", ctx, companyID, from, to).Return(decimal.Zero, nil)
	repo.On("Create", ctx, mock.Anything).Return(pkgerrors.ErrSettlementExists)

	_, err := svc.GenerateForCompany(ctx, companyID, domain.RoleHub, from, to)
	assert.ErrorIs(t, err, pkgerrors.ErrSettlementExists)
}

func TestGenerateForCompany_InvalidPeriod(t *testing.T) {
	svc, _, _ := newSettlementService(t)
	from, _ := period()

	_, err := svc.GenerateForCompany(context.Background(), uuid.New(), domain.RoleHub, from, from)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindValidation, pkgerrors.KindOf(err))
}

func TestHubReview_ApproveWithAdjustment(t *testing.T) {
	svc, repo, _ := newSettlementService(t)
	ctx := context.Background()

	st := &domain.Settlement{
		ID:             uuid.New(),
		Status:         domain.SettlementStatusPending,
		OriginalAmount: decimal.NewFromInt(464600),
		NetAmount:      decimal.NewFromInt(464600),
	}
	repo.On("FindByID", ctx, st.ID).Return(st, nil)
	repo.On("UpdateHubReview", ctx, st, domain.SettlementStatusPending).Return(nil)

	got, err := svc.HubReview(ctx, st.ID, true, decimal.NewFromInt(-4600), "damaged pallet deduction")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusHubApproved, got.Status)
	assert.Equal(t, domain.ApprovalApproved, got.HubApprovalStatus)
	assert.True(t, got.NetAmount.Equal(decimal.NewFromInt(460000)), got.NetAmount.String())
}

func TestHubReview_RejectStaysPending(t *testing.T) {
	svc, repo, _ := newSettlementService(t)
	ctx := context.Background()

	st := &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusPending}
	repo.On("FindByID", ctx, st.ID).Return(st, nil)
	repo.On("UpdateHubReview", ctx, st, domain.SettlementStatusPending).Return(nil)

	got, err := svc.HubReview(ctx, st.ID, false, decimal.Zero, "wrong period")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusPending, got.Status)
	assert.Equal(t, domain.ApprovalRejected, got.HubApprovalStatus)
}

func TestHubReview_DisputedLoopsBack(t *testing.T) {
	svc, repo, _ := newSettlementService(t)
	ctx := context.Background()

	st := &domain.Settlement{
		ID:             uuid.New(),
		Status:         domain.SettlementStatusDisputed,
		OriginalAmount: decimal.NewFromInt(100000),
	}
	repo.On("FindByID", ctx, st.ID).Return(st, nil)
	repo.On("UpdateHubReview", ctx, st, domain.SettlementStatusDisputed).Return(nil)

	got, err := svc.HubReview(ctx, st.ID, true, decimal.NewFromInt(-10000), "agreed after dispute")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusHubApproved, got.Status)
	assert.True(t, got.NetAmount.Equal(decimal.NewFromInt(90000)))
}

func TestHubReview_CompletedNotReviewable(t *testing.T) {
	svc, repo, _ := newSettlementService(t)
	ctx := context.Background()

	st := &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusCompleted}
	repo.On("FindByID", ctx, st.ID).Return(st, nil)

	_, err := svc.HubReview(ctx, st.ID, true, decimal.Zero, "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindStateConflict, pkgerrors.KindOf(err))
}

func TestCarrierReview_AcceptAndReject(t *testing.T) {
	ctx := context.Background()
	carrierID := uuid.New()

	t.Run("accept", func(t *testing.T) {
		svc, repo, _ := newSettlementService(t)
		st := &domain.Settlement{
			ID:        uuid.New(),
			Status:    domain.SettlementStatusHubApproved,
			CarrierID: &carrierID,
		}
		repo.On("FindByID", ctx, st.ID).Return(st, nil)
		repo.On("UpdateCarrierReview", ctx, st, domain.SettlementStatusHubApproved).Return(nil)

		got, err := svc.CarrierReview(ctx, st.ID, carrierID, true, "")
		require.NoError(t, err)
		assert.Equal(t, domain.SettlementStatusCarrierAccepted, got.Status)
		assert.Equal(t, domain.ApprovalAccepted, got.CarrierApprovalStatus)
	})

	t.Run("reject reopens hub review", func(t *testing.T) {
		svc, repo, _ := newSettlementService(t)
		st := &domain.Settlement{
			ID:                uuid.New(),
			Status:            domain.SettlementStatusHubApproved,
			HubApprovalStatus: domain.ApprovalApproved,
			CarrierID:         &carrierID,
		}
		repo.On("FindByID", ctx, st.ID).Return(st, nil)
		repo.On("UpdateCarrierReview", ctx, st, domain.SettlementStatusHubApproved).Return(nil)

		got, err := svc.CarrierReview(ctx, st.ID, carrierID, false, "short paid on batch 7")
		require.NoError(t, err)
		assert.Equal(t, domain.SettlementStatusDisputed, got.Status)
		assert.Equal(t, domain.ApprovalRejected, got.CarrierApprovalStatus)
		assert.Equal(t, domain.ApprovalPending, got.HubApprovalStatus)
	})

	t.Run("wrong carrier", func(t *testing.T) {
		svc, repo, _ := newSettlementService(t)
		st := &domain.Settlement{
			ID:        uuid.New(),
			Status:    domain.SettlementStatusHubApproved,
			CarrierID: &carrierID,
		}
		repo.On("FindByID", ctx, st.ID).Return(st, nil)

		_, err := svc.CarrierReview(ctx, st.ID, uuid.New(), true, "")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.KindValidation, pkgerrors.KindOf(err))
	})
}

func TestTransfer_Rules(t *testing.T) {
	ctx := context.Background()
	carrierID := uuid.New()

	cases := []struct {
		name    string
		st      *domain.Settlement
		allowed bool
	}{
		{
			name:    "carrier accepted always transferable",
			st:      &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusCarrierAccepted, CarrierID: &carrierID},
			allowed: true,
		},
		{
			name:    "self settled pending transferable",
			st:      &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusPending},
			allowed: true,
		},
		{
			name:    "self settled hub approved transferable",
			st:      &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusHubApproved},
			allowed: true,
		},
		{
			name:    "external carrier pending blocked",
			st:      &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusPending, CarrierID: &carrierID},
			allowed: false,
		},
		{
			name:    "disputed never transferable",
			st:      &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusDisputed},
			allowed: false,
		},
		{
			name:    "completed never transferable",
			st:      &domain.Settlement{ID: uuid.New(), Status: domain.SettlementStatusCompleted},
			allowed: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newSettlementService(t)
			from := tc.st.Status
			repo.On("FindByID", ctx, tc.st.ID).Return(tc.st, nil)
			if tc.allowed {
				repo.On("MarkTransferred", ctx, tc.st, from).Return(nil)
			}

			got, err := svc.Transfer(ctx, tc.st.ID, "BANK-REF-001", "receipt.pdf")
			if !tc.allowed {
				require.Error(t, err)
				assert.Equal(t, pkgerrors.KindStateConflict, pkgerrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.SettlementStatusCompleted, got.Status)
			require.NotNil(t, got.TransferReference)
			assert.Equal(t, "BANK-REF-001", *got.TransferReference)
			assert.NotNil(t, got.TransferredAt)
		})
	}
}
