package postgres

import (
	"context"
	"database/sql"

	"kycdoc/internal/domain"
	"kycdoc/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SessionRepository implements KYC session and workflow step persistence.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts a new KYC session.
func (r *SessionRepository) CreateSession(ctx context.Context, session *domain.KYCSession) error {
	query := `
		INSERT INTO kyc.sessions (
			session_id, customer_id, status, risk_score,
			completion_percentage, decision_reason, created_at, updated_at
		) VALUES (
			:session_id, :customer_id, :status, :risk_score,
			:completion_percentage, :decision_reason, :created_at, :updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return errors.Wrap(err, "failed to create kyc session")
	}

	return nil
}

// CreateStep inserts one workflow step.
func (r *SessionRepository) CreateStep(ctx context.Context, step *domain.WorkflowStep) error {
	query := `
		INSERT INTO kyc.workflow_steps (
			step_id, session_id, action, step_order, status,
			input_data, output_data, error_message,
			started_at, completed_at, retry_count, max_retries, created_at
		) VALUES (
			:step_id, :session_id, :action, :step_order, :status,
			:input_data, :output_data, :error_message,
			:started_at, :completed_at, :retry_count, :max_retries, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, step)
	if err != nil {
		return errors.Wrap(err, "failed to create workflow step")
	}

	return nil
}

// UpdateStep persists a step's current state.
func (r *SessionRepository) UpdateStep(ctx context.Context, step *domain.WorkflowStep) error {
	query := `
		UPDATE kyc.workflow_steps
		SET status = :status,
			output_data = :output_data,
			error_message = :error_message,
			started_at = :started_at,
			completed_at = :completed_at,
			retry_count = :retry_count
		WHERE step_id = :step_id
	`

	result, err := r.db.NamedExecContext(ctx, query, step)
	if err != nil {
		return errors.Wrap(err, "failed to update workflow step")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrStepNotFound
	}

	return nil
}

// UpdateSessionProgress sets the session's completion percentage.
func (r *SessionRepository) UpdateSessionProgress(ctx context.Context, sessionID uuid.UUID, progress int) error {
	query := `
		UPDATE kyc.sessions
		SET completion_percentage = $2, updated_at = NOW()
		WHERE session_id = $1`

	result, err := r.db.ExecContext(ctx, query, sessionID, progress)
	if err != nil {
		return errors.Wrap(err, "failed to update session progress")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrSessionNotFound
	}

	return nil
}

// UpdateSessionStatus sets the session status and decision reason.
func (r *SessionRepository) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status domain.KYCStatus, reason string) error {
	query := `
		UPDATE kyc.sessions
		SET status = $2, decision_reason = $3, updated_at = NOW()
		WHERE session_id = $1`

	result, err := r.db.ExecContext(ctx, query, sessionID, status, reason)
	if err != nil {
		return errors.Wrap(err, "failed to update session status")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrSessionNotFound
	}

	return nil
}

// UpdateSessionRiskScore sets the session's final risk score.
func (r *SessionRepository) UpdateSessionRiskScore(ctx context.Context, sessionID uuid.UUID, score decimal.Decimal) error {
	query := `
		UPDATE kyc.sessions
		SET risk_score = $2, updated_at = NOW()
		WHERE session_id = $1`

	result, err := r.db.ExecContext(ctx, query, sessionID, score)
	if err != nil {
		return errors.Wrap(err, "failed to update session risk score")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrSessionNotFound
	}

	return nil
}

// FindSessionByID returns one session by id.
func (r *SessionRepository) FindSessionByID(ctx context.Context, sessionID uuid.UUID) (*domain.KYCSession, error) {
	var session domain.KYCSession
	query := `
		SELECT
			session_id, customer_id, status, risk_score,
			completion_percentage, decision_reason, created_at, updated_at
		FROM kyc.sessions WHERE session_id = $1`

	err := r.db.GetContext(ctx, &session, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find kyc session")
	}

	return &session, nil
}

// FindActiveSessionByCustomer returns the customer's non-terminal session,
// or ErrSessionNotFound when there is none.
func (r *SessionRepository) FindActiveSessionByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.KYCSession, error) {
	var session domain.KYCSession
	query := `
		SELECT
			session_id, customer_id, status, risk_score,
			completion_percentage, decision_reason, created_at, updated_at
		FROM kyc.sessions
		WHERE customer_id = $1 AND status IN ('pending', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &session, query, customerID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active kyc session")
	}

	return &session, nil
}

// FindStepsBySessionID returns a session's steps in execution order.
func (r *SessionRepository) FindStepsBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.WorkflowStep, error) {
	var steps []*domain.WorkflowStep
	query := `
		SELECT
			step_id, session_id, action, step_order, status,
			input_data, output_data, error_message,
			started_at, completed_at, retry_count, max_retries, created_at
		FROM kyc.workflow_steps
		WHERE session_id = $1
		ORDER BY step_order ASC`

	err := r.db.SelectContext(ctx, &steps, query, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find workflow steps")
	}

	return steps, nil
}
