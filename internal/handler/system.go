package handler

import (
	"context"
	"net/http"
	"time"

	"cargopay/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type SystemHandler struct {
	db     *sqlx.DB
	redis  *redis.Client
	logger Logger
}

func NewSystemHandler(db *sqlx.DB, redisClient *redis.Client, log Logger) *SystemHandler {
	return &SystemHandler{db: db, redis: redisClient, logger: log}
}

// Health is a liveness probe; it answers as long as the process runs.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is a readiness probe checking the backing stores.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}

// AuditStore is the read surface for recorded audit entries.
type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]*domain.AuditLog, error)
}

type AuditHandler struct {
	store AuditStore
}

func NewAuditHandler(store AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// List returns a page of audit entries, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	logs, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"audit_logs": logs,
		"limit":      limit,
		"offset":     offset,
	})
}
