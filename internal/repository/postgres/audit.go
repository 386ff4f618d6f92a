package postgres

import (
	"context"

	"kycdoc/internal/domain"
	"kycdoc/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditRepository implements audit event persistence.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit event.
func (r *AuditRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO kyc.audit_events (
			id, event_type, severity, description,
			customer_id, session_id, details, created_at
		) VALUES (
			:id, :event_type, :severity, :description,
			:customer_id, :session_id, :details, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return errors.Wrap(err, "failed to create audit event")
	}

	return nil
}

// FindAll returns audit events with pagination, newest first.
func (r *AuditRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error) {
	var events []*domain.AuditEvent
	query := `
		SELECT
			id, event_type, severity, description,
			customer_id, session_id, details, created_at
		FROM kyc.audit_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	err := r.db.SelectContext(ctx, &events, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit events")
	}

	return events, nil
}

// FindBySessionID returns a session's audit trail in emission order.
func (r *AuditRepository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.AuditEvent, error) {
	var events []*domain.AuditEvent
	query := `
		SELECT
			id, event_type, severity, description,
			customer_id, session_id, details, created_at
		FROM kyc.audit_events
		WHERE session_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &events, query, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find session audit events")
	}

	return events, nil
}
