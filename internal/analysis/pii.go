package analysis

import (
	"context"

	"kycdoc/internal/domain"
)

// PIIResult holds the PII fields detected in one document.
type PIIResult struct {
	DocumentID        string             `json:"document_id"`
	DetectedFields    []string           `json:"detected_fields"`
	ConfidenceScores  map[string]float64 `json:"confidence_scores"`
	RedactionRequired bool               `json:"redaction_required"`
}

// PIIDetector extracts personally identifiable information from documents.
type PIIDetector interface {
	Detect(ctx context.Context, doc *domain.Document) (*PIIResult, error)
}

// StubPIIDetector reports a fixed field set with high confidence.
type StubPIIDetector struct{}

func NewStubPIIDetector() *StubPIIDetector {
	return &StubPIIDetector{}
}

func (d *StubPIIDetector) Detect(ctx context.Context, doc *domain.Document) (*PIIResult, error) {
	return &PIIResult{
		DocumentID:     doc.ID.String(),
		DetectedFields: []string{"name", "date_of_birth", "address", "id_number"},
		ConfidenceScores: map[string]float64{
			"name":          0.95,
			"date_of_birth": 0.88,
			"address":       0.92,
			"id_number":     0.97,
		},
		RedactionRequired: true,
	}, nil
}
