package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// auditWriter is the persistence surface of the audit sink.
type auditWriter interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
}

// Auditor writes audit events inline with each state transition. A failed
// write is logged as a warning and never surfaces to the caller.
type Auditor struct {
	writer auditWriter
	logger *slog.Logger
}

// NewAuditor creates an audit sink backed by the given writer.
func NewAuditor(writer auditWriter, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{writer: writer, logger: logger}
}

// Record appends one audit event, filling ID and timestamp.
func (a *Auditor) Record(ctx context.Context, event domain.AuditEvent) {
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	if event.Resource == "" {
		event.Resource = "auth"
	}

	if err := a.writer.Create(ctx, &event); err != nil {
		a.logger.Warn("failed to write audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
