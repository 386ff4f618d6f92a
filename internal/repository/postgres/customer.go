// Package postgres implements the persistence layer on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"

	"kycdoc/internal/domain"
	"kycdoc/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CustomerRepository implements customer and document persistence.
type CustomerRepository struct {
	db *sqlx.DB
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(db *sqlx.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts a new customer.
func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO kyc.customers (
			id, first_name, last_name, email, date_of_birth, nationality,
			address_line1, address_line2, city, country, status,
			created_at, updated_at
		) VALUES (
			:id, :first_name, :last_name, :email, :date_of_birth, :nationality,
			:address_line1, :address_line2, :city, :country, :status,
			:created_at, :updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, customer)
	if err != nil {
		return errors.Wrap(err, "failed to create customer")
	}

	return nil
}

// FindByID returns one customer by id.
func (r *CustomerRepository) FindByID(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	query := `
		SELECT
			id, first_name, last_name, email, date_of_birth, nationality,
			address_line1, address_line2, city, country, status,
			created_at, updated_at
		FROM kyc.customers WHERE id = $1`

	err := r.db.GetContext(ctx, &customer, query, customerID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrCustomerNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find customer")
	}

	return &customer, nil
}

// UpdateKYCStatus propagates a session's terminal decision to the customer
// record.
func (r *CustomerRepository) UpdateKYCStatus(ctx context.Context, customerID uuid.UUID, status domain.KYCStatus, reason string) error {
	query := `
		UPDATE kyc.customers
		SET kyc_status = $2, kyc_status_reason = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, customerID, status, reason)
	if err != nil {
		return errors.Wrap(err, "failed to update customer kyc status")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrCustomerNotFound
	}

	return nil
}

// CreateDocument inserts document metadata for a customer.
func (r *CustomerRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO kyc.documents (
			id, customer_id, document_type, file_name, mime_type,
			file_size, storage_ref, created_at
		) VALUES (
			:id, :customer_id, :document_type, :file_name, :mime_type,
			:file_size, :storage_ref, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return errors.Wrap(err, "failed to create document")
	}

	return nil
}

// FindDocumentsByCustomerID returns all of a customer's documents, oldest
// first.
func (r *CustomerRepository) FindDocumentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Document, error) {
	var docs []domain.Document
	query := `
		SELECT
			id, customer_id, document_type, file_name, mime_type,
			file_size, storage_ref, created_at
		FROM kyc.documents
		WHERE customer_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &docs, query, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find customer documents")
	}

	return docs, nil
}
