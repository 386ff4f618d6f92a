package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kycdoc/internal/domain"
	kycerrors "kycdoc/pkg/errors"
	"kycdoc/pkg/logger"
	"kycdoc/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// CustomerStore is the persistence surface the customer endpoints need.
type CustomerStore interface {
	Create(ctx context.Context, customer *domain.Customer) error
	FindByID(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error)
	CreateDocument(ctx context.Context, doc *domain.Document) error
	FindDocumentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Document, error)
}

// CustomerHandler handles customer and document metadata endpoints.
type CustomerHandler struct {
	store     CustomerStore
	validator *validator.Validator
	logger    logger.Logger
}

// NewCustomerHandler creates a CustomerHandler with required dependencies.
func NewCustomerHandler(store CustomerStore, val *validator.Validator, log logger.Logger) *CustomerHandler {
	return &CustomerHandler{
		store:     store,
		validator: val,
		logger:    log,
	}
}

type createCustomerRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	Nationality  string `json:"nationality,omitempty" validate:"max=100"`
	AddressLine1 string `json:"address_line1,omitempty" validate:"max=255"`
	AddressLine2 string `json:"address_line2,omitempty" validate:"max=255"`
	City         string `json:"city,omitempty" validate:"max=100"`
	Country      string `json:"country,omitempty" validate:"max=100"`
}

// CreateCustomer registers a new onboarding applicant.
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if !parseAndValidate(w, r, h.logger, h.validator, &req) {
		return
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "Invalid date_of_birth, expected YYYY-MM-DD")
			return
		}
		dob = &parsed
	}

	now := time.Now().UTC()
	customer := &domain.Customer{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		DateOfBirth:  dob,
		Nationality:  req.Nationality,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		Country:      req.Country,
		Status:       domain.CustomerStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.Create(r.Context(), customer); err != nil {
		h.logger.Error("Failed to create customer", map[string]interface{}{"error": err.Error()})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to create customer")
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, customer)
}

// GetCustomer returns one customer by id.
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(mux.Vars(r)["customer_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	customer, err := h.store.FindByID(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, kycerrors.ErrCustomerNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "Customer not found")
			return
		}
		h.logger.Error("Failed to load customer", map[string]interface{}{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to load customer")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, customer)
}

type addDocumentRequest struct {
	DocumentType string `json:"document_type" validate:"required,oneof=passport drivers_license national_id utility_bill bank_statement selfie_with_id"`
	FileName     string `json:"file_name" validate:"required,max=255"`
	MimeType     string `json:"mime_type" validate:"required,max=100"`
	FileSize     int64  `json:"file_size" validate:"required,gt=0"`
	StorageRef   string `json:"storage_ref,omitempty" validate:"max=512"`
}

// AddDocument registers document metadata for a customer. Raw bytes are
// uploaded to blob storage out of band; only the reference lands here.
func (h *CustomerHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(mux.Vars(r)["customer_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	var req addDocumentRequest
	if !parseAndValidate(w, r, h.logger, h.validator, &req) {
		return
	}

	if _, err := h.store.FindByID(r.Context(), customerID); err != nil {
		if errors.Is(err, kycerrors.ErrCustomerNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "Customer not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to load customer")
		return
	}

	doc := &domain.Document{
		ID:           uuid.New(),
		CustomerID:   customerID,
		DocumentType: domain.DocumentType(req.DocumentType),
		FileName:     req.FileName,
		MimeType:     req.MimeType,
		FileSize:     req.FileSize,
		StorageRef:   req.StorageRef,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		h.logger.Error("Failed to create document", map[string]interface{}{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to create document")
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, doc)
}

// ListDocuments returns all document metadata for a customer.
func (h *CustomerHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(mux.Vars(r)["customer_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	docs, err := h.store.FindDocumentsByCustomerID(r.Context(), customerID)
	if err != nil {
		h.logger.Error("Failed to list documents", map[string]interface{}{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"customer_id": customerID,
		"documents":   docs,
	})
}
