// Package analysis defines the contracts for the external document
// intelligence collaborators (document analysis, authenticity checks, PII
// detection) and deterministic stub implementations for local runs. The
// workflow engine treats collaborator failures as retryable.
package analysis

import (
	"context"

	"kycdoc/internal/domain"
)

// DocumentAnalysis is the per-document summary produced by the analysis
// collaborator and threaded through the workflow context.
type DocumentAnalysis struct {
	DocumentID   string              `json:"document_id"`
	DocumentType domain.DocumentType `json:"document_type"`
	FileName     string              `json:"file_name"`
	MimeType     string              `json:"mime_type"`
	FileSize     int64               `json:"file_size"`
	QualityScore float64             `json:"quality_score"`
	Confidence   float64             `json:"confidence"`
	Readable     bool                `json:"readable"`
	Complete     bool                `json:"complete"`
}

// DocumentAnalyzer analyzes a single uploaded document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, doc *domain.Document) (*DocumentAnalysis, error)
}

// StubDocumentAnalyzer produces deterministic quality scores from document
// metadata alone. Stands in for the real OCR/analysis service.
type StubDocumentAnalyzer struct{}

func NewStubDocumentAnalyzer() *StubDocumentAnalyzer {
	return &StubDocumentAnalyzer{}
}

func (a *StubDocumentAnalyzer) Analyze(ctx context.Context, doc *domain.Document) (*DocumentAnalysis, error) {
	return &DocumentAnalysis{
		DocumentID:   doc.ID.String(),
		DocumentType: doc.DocumentType,
		FileName:     doc.FileName,
		MimeType:     doc.MimeType,
		FileSize:     doc.FileSize,
		QualityScore: qualityScore(doc),
		Confidence:   0.9,
		Readable:     true,
		Complete:     true,
	}, nil
}

// qualityScore derives a heuristic quality score from file metadata.
func qualityScore(doc *domain.Document) float64 {
	score := 0.8

	if doc.FileSize < 100_000 {
		score -= 0.2
	} else if doc.FileSize > 10_000_000 {
		score -= 0.1
	}

	switch doc.MimeType {
	case "application/pdf", "image/jpeg", "image/png":
	default:
		score -= 0.3
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
