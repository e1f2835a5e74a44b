// Package fund maintains the insurance risk-fund ledger: an append-only
// transaction log with a derived running balance. The balance is never stored
// independently; it always equals the last appended row's balance.
package fund

import (
	"context"
	"time"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"
	"cargopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository persists ledger rows. Append must compute the new row's balance
// from the latest row inside one atomic unit; concurrent appends must never
// chain off the same prior balance.
type Repository interface {
	Append(ctx context.Context, tx *domain.FundTransaction) (*domain.FundTransaction, error)
	Latest(ctx context.Context) (*domain.FundTransaction, error)
	List(ctx context.Context, limit, offset int) ([]*domain.FundTransaction, error)
	VerifyChain(ctx context.Context) (bool, error)
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// Append records one ledger movement. Inflows must be positive, payouts
// negative; the sign convention is enforced here so call sites cannot drift.
func (s *Service) Append(ctx context.Context, typ domain.FundTransactionType, amount decimal.Decimal, referenceID uuid.UUID, referenceType, description string) (*domain.FundTransaction, error) {
	switch typ {
	case domain.FundPremiumIn:
		if !amount.IsPositive() {
			return nil, pkgerrors.Validation("FUND_AMOUNT_SIGN", "premium inflow must be positive")
		}
	case domain.FundClaimPayout, domain.FundPayoutOut:
		if !amount.IsNegative() {
			return nil, pkgerrors.Validation("FUND_AMOUNT_SIGN", "payout must be negative")
		}
	default:
		return nil, pkgerrors.Validation("FUND_TYPE", "unknown fund transaction type")
	}

	tx := &domain.FundTransaction{
		ID:            uuid.New(),
		Type:          typ,
		Amount:        amount,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}

	appended, err := s.repo.Append(ctx, tx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to append fund transaction")
	}

	s.logger.Info("Fund transaction appended", map[string]interface{}{
		"type":    string(typ),
		"amount":  amount.String(),
		"balance": appended.Balance.String(),
		"ref":     referenceID.String(),
	})

	return appended, nil
}

// Balance returns the running balance of the most recent transaction, zero
// for an empty ledger.
func (s *Service) Balance(ctx context.Context) (decimal.Decimal, error) {
	latest, err := s.repo.Latest(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if latest == nil {
		return decimal.Zero, nil
	}
	return latest.Balance, nil
}

// VerifyChain replays the ledger from the first row and confirms every
// balance chains off its predecessor.
func (s *Service) VerifyChain(ctx context.Context) (bool, error) {
	return s.repo.VerifyChain(ctx)
}

// Transactions returns a page of ledger rows, newest first.
func (s *Service) Transactions(ctx context.Context, limit, offset int) ([]*domain.FundTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
