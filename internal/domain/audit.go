package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one immutable record of a request or state change.
type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	IPAddress  *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string    `json:"user_agent,omitempty" db:"user_agent"`
	StatusCode *int       `json:"status_code,omitempty" db:"status_code"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
