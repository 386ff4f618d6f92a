package postgres

import (
	"context"
	"database/sql"

	"kycdoc/internal/domain"
	"kycdoc/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AssessmentRepository implements risk assessment persistence.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts a completed risk assessment.
func (r *AssessmentRepository) Create(ctx context.Context, record *domain.RiskAssessmentRecord) error {
	query := `
		INSERT INTO kyc.risk_assessments (
			id, customer_id, session_id, risk_score, risk_level,
			risk_factors, recommendations, confidence_score, created_at
		) VALUES (
			:id, :customer_id, :session_id, :risk_score, :risk_level,
			:risk_factors, :recommendations, :confidence_score, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return errors.Wrap(err, "failed to create risk assessment")
	}

	return nil
}

// FindByID returns one assessment record.
func (r *AssessmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RiskAssessmentRecord, error) {
	var record domain.RiskAssessmentRecord
	query := `
		SELECT
			id, customer_id, session_id, risk_score, risk_level,
			risk_factors, recommendations, confidence_score, created_at
		FROM kyc.risk_assessments WHERE id = $1`

	err := r.db.GetContext(ctx, &record, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find risk assessment")
	}

	return &record, nil
}

// FindByCustomerID returns a customer's assessments, newest first.
func (r *AssessmentRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*domain.RiskAssessmentRecord, error) {
	var records []*domain.RiskAssessmentRecord
	query := `
		SELECT
			id, customer_id, session_id, risk_score, risk_level,
			risk_factors, recommendations, confidence_score, created_at
		FROM kyc.risk_assessments
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &records, query, customerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list risk assessments")
	}

	return records, nil
}
