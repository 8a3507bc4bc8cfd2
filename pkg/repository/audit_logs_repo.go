package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// AuditLogsRepository appends audit events to the audit_logs table.
type AuditLogsRepository struct {
	db *sql.DB
}

// NewAuditLogsRepository creates a new audit logs repository.
func NewAuditLogsRepository(db *sql.DB) *AuditLogsRepository {
	return &AuditLogsRepository{db: db}
}

// Create appends one audit event. The table is append-only; there are no
// update or delete operations.
func (r *AuditLogsRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO audit_logs (id, action, user_id, resource, resource_id,
		                        details, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Action, event.UserID, event.Resource, event.ResourceID,
		event.Details, event.IP, event.UserAgent, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}
	return nil
}
