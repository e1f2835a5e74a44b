package postgres

import (
	"context"

	"cargopay/internal/domain"
	pkgerrors "cargopay/pkg/errors"

	"github.com/jmoiron/sqlx"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, action, entity_type, entity_id, ip_address,
			user_agent, status_code, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.Action, log.EntityType, log.EntityID,
		log.IPAddress, log.UserAgent, log.StatusCode, log.CreatedAt,
	)
	return pkgerrors.Wrap(err, "failed to create audit log")
}

func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	query := `SELECT * FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	err := r.db.SelectContext(ctx, &logs, query, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list audit logs")
	}
	return logs, nil
}
