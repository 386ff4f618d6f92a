package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"kycdoc/internal/domain"
	"kycdoc/internal/risk"
	kycerrors "kycdoc/pkg/errors"
	"kycdoc/pkg/logger"
	"kycdoc/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// AssessmentStore is the persistence surface the assessment endpoints need.
type AssessmentStore interface {
	Create(ctx context.Context, record *domain.RiskAssessmentRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RiskAssessmentRecord, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*domain.RiskAssessmentRecord, error)
}

// AssessmentHandler exposes ad-hoc risk assessments outside the workflow,
// plus read access to stored assessment records.
type AssessmentHandler struct {
	scorer      *risk.Scorer
	customers   CustomerStore
	assessments AssessmentStore
	validator   *validator.Validator
	logger      logger.Logger
}

// NewAssessmentHandler creates an AssessmentHandler with required dependencies.
func NewAssessmentHandler(scorer *risk.Scorer, customers CustomerStore, assessments AssessmentStore, val *validator.Validator, log logger.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		scorer:      scorer,
		customers:   customers,
		assessments: assessments,
		validator:   val,
		logger:      log,
	}
}

type assessRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid4"`
}

// Assess runs the risk scorer against a customer's current profile and
// documents, without the document-intelligence signals a full workflow run
// collects. The result is persisted and returned in full.
func (h *AssessmentHandler) Assess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if !parseAndValidate(w, r, h.logger, h.validator, &req) {
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	customer, err := h.customers.FindByID(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, kycerrors.ErrCustomerNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "Customer not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to load customer")
		return
	}

	documents, err := h.customers.FindDocumentsByCustomerID(r.Context(), customerID)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to load customer documents")
		return
	}

	result := h.scorer.Assess(customer, documents, risk.Signals{
		SubmittedAt: time.Now().UTC(),
	})

	factorsJSON, err := json.Marshal(result.RiskFactors)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to encode assessment")
		return
	}
	recommendationsJSON, err := json.Marshal(result.Recommendations)
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to encode assessment")
		return
	}

	record := &domain.RiskAssessmentRecord{
		ID:              uuid.New(),
		CustomerID:      customerID,
		RiskScore:       decimal.NewFromFloat(result.OverallRiskScore),
		RiskLevel:       result.RiskLevel,
		RiskFactors:     factorsJSON,
		Recommendations: recommendationsJSON,
		ConfidenceScore: decimal.NewFromFloat(result.ConfidenceScore),
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.assessments.Create(r.Context(), record); err != nil {
		h.logger.Error("Failed to persist risk assessment", map[string]interface{}{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to persist risk assessment")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"assessment_id": record.ID,
		"result":        result,
	})
}

// GetAssessment returns one stored assessment record.
func (h *AssessmentHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["assessment_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid assessment ID format")
		return
	}

	record, err := h.assessments.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, kycerrors.ErrAssessmentNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "Risk assessment not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to load risk assessment")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, record)
}

// ListCustomerAssessments returns a customer's assessment history, newest
// first.
func (h *AssessmentHandler) ListCustomerAssessments(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(mux.Vars(r)["customer_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	limit, offset := 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	records, err := h.assessments.FindByCustomerID(r.Context(), customerID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list risk assessments", map[string]interface{}{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to list risk assessments")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"customer_id": customerID,
		"assessments": records,
		"limit":       limit,
		"offset":      offset,
	})
}
