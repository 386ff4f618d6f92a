package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kycdoc/internal/analysis"
	"kycdoc/internal/domain"
	"kycdoc/internal/risk"
	kycerrors "kycdoc/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// runDocumentAnalysis fetches the customer's documents and analyzes each
// one. A customer with zero documents is not an error here; the scorer
// penalizes the missing evidence downstream.
func (e *Engine) runDocumentAnalysis(ctx context.Context, step *domain.WorkflowStep, execCtx *ExecutionContext) error {
	documents, err := e.customers.FindDocumentsByCustomerID(ctx, execCtx.CustomerID)
	if err != nil {
		return kycerrors.Wrap(err, "failed to load customer documents")
	}

	analyses := make([]analysis.DocumentAnalysis, 0, len(documents))
	var largeFiles []string
	for i := range documents {
		result, err := e.analyzer.Analyze(ctx, &documents[i])
		if err != nil {
			return kycerrors.Wrap(kycerrors.ErrAnalysisUnavailable, err.Error())
		}
		analyses = append(analyses, *result)
		if result.FileSize > 20_000_000 {
			largeFiles = append(largeFiles, result.FileName)
		}
	}

	execCtx.SourceDocuments = documents
	execCtx.Documents = analyses

	step.OutputData = domain.Metadata{
		"documents_analyzed": len(analyses),
		"large_files":        largeFiles,
	}
	return nil
}

// runPIIDetection extracts PII from each analyzed document.
func (e *Engine) runPIIDetection(ctx context.Context, step *domain.WorkflowStep, execCtx *ExecutionContext) error {
	results := make([]analysis.PIIResult, 0, len(execCtx.SourceDocuments))
	for i := range execCtx.SourceDocuments {
		result, err := e.pii.Detect(ctx, &execCtx.SourceDocuments[i])
		if err != nil {
			return kycerrors.Wrap(kycerrors.ErrPIIDetectionUnavailable, err.Error())
		}
		results = append(results, *result)
	}

	execCtx.PII = results

	step.OutputData = domain.Metadata{
		"documents_processed": len(results),
	}
	return nil
}

// runAuthenticityCheck verifies each document's authenticity.
func (e *Engine) runAuthenticityCheck(ctx context.Context, step *domain.WorkflowStep, execCtx *ExecutionContext) error {
	results := make([]analysis.AuthenticityResult, 0, len(execCtx.SourceDocuments))
	failed := 0
	for i := range execCtx.SourceDocuments {
		result, err := e.authenticity.Check(ctx, &execCtx.SourceDocuments[i])
		if err != nil {
			return kycerrors.Wrap(kycerrors.ErrAuthenticityUnavailable, err.Error())
		}
		if !result.Authentic {
			failed++
		}
		results = append(results, *result)
	}

	execCtx.Authenticity = results

	step.OutputData = domain.Metadata{
		"documents_checked": len(results),
		"failed_checks":     failed,
	}
	return nil
}

// runRiskAssessment runs the scorer over everything collected so far and
// persists the assessment record.
func (e *Engine) runRiskAssessment(ctx context.Context, step *domain.WorkflowStep, execCtx *ExecutionContext) error {
	customer, err := e.customers.FindByID(ctx, execCtx.CustomerID)
	if err != nil {
		return kycerrors.Wrap(err, "failed to load customer for assessment")
	}

	result := e.scorer.Assess(customer, execCtx.SourceDocuments, risk.Signals{
		Documents:    execCtx.Documents,
		Authenticity: execCtx.Authenticity,
		PII:          execCtx.PII,
		SubmittedAt:  execCtx.SubmittedAt,
	})

	factorsJSON, err := json.Marshal(result.RiskFactors)
	if err != nil {
		return kycerrors.Wrap(err, "failed to encode risk factors")
	}
	recommendationsJSON, err := json.Marshal(result.Recommendations)
	if err != nil {
		return kycerrors.Wrap(err, "failed to encode recommendations")
	}

	record := &domain.RiskAssessmentRecord{
		ID:              uuid.New(),
		CustomerID:      customer.ID,
		SessionID:       &execCtx.SessionID,
		RiskScore:       decimal.NewFromFloat(result.OverallRiskScore),
		RiskLevel:       result.RiskLevel,
		RiskFactors:     factorsJSON,
		Recommendations: recommendationsJSON,
		ConfidenceScore: decimal.NewFromFloat(result.ConfidenceScore),
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.assessments.Create(ctx, record); err != nil {
		return kycerrors.Wrap(err, "failed to persist risk assessment")
	}

	execCtx.RiskScore = result.OverallRiskScore
	execCtx.RiskLevel = result.RiskLevel
	execCtx.Recommendations = result.Recommendations
	execCtx.RiskFactors = execCtx.RiskFactors[:0]
	for _, factor := range result.RiskFactors {
		execCtx.RiskFactors = append(execCtx.RiskFactors, factor.Description)
	}

	e.auditor.Emit(&domain.AuditEvent{
		EventType:   domain.AuditEventRiskAssessmentCompleted,
		Severity:    domain.AuditSeverityInfo,
		Description: fmt.Sprintf("Risk assessment completed: %s (%.2f)", result.RiskLevel, result.OverallRiskScore),
		CustomerID:  &execCtx.CustomerID,
		SessionID:   &execCtx.SessionID,
		Details: domain.Metadata{
			"risk_score":    result.OverallRiskScore,
			"risk_level":    string(result.RiskLevel),
			"factors_count": len(result.RiskFactors),
		},
	})

	step.OutputData = domain.Metadata{
		"risk_score":       result.OverallRiskScore,
		"risk_level":       string(result.RiskLevel),
		"confidence_score": result.ConfidenceScore,
		"factors_count":    len(result.RiskFactors),
	}
	return nil
}

// runComplianceCheck derives the compliance flags and the manual-review
// requirement from the collected evidence.
func (e *Engine) runComplianceCheck(ctx context.Context, step *domain.WorkflowStep, execCtx *ExecutionContext) error {
	var flags []string

	hasPrimaryID := false
	for _, doc := range execCtx.SourceDocuments {
		if doc.DocumentType == domain.DocumentTypePassport || doc.DocumentType == domain.DocumentTypeDriversLicense {
			hasPrimaryID = true
			break
		}
	}
	if !hasPrimaryID {
		flags = append(flags, "Missing primary ID document")
	}

	if len(execCtx.PII) == 0 {
		flags = append(flags, "PII detection not completed")
	}

	if execCtx.RiskScore > riskThresholdHigh {
		flags = append(flags, "High risk customer requires additional verification")
	}

	execCtx.ComplianceFlags = flags
	execCtx.ManualReviewRequired = len(flags) > 0 || execCtx.RiskScore > riskThresholdMedium

	step.OutputData = domain.Metadata{
		"compliance_flags":       flags,
		"manual_review_required": execCtx.ManualReviewRequired,
	}
	return nil
}

// runDecisionMaking maps the accumulated evidence to the terminal decision.
// The priority order is fixed: compliance flags, then the manual-review
// requirement, then the score bands.
func (e *Engine) runDecisionMaking(ctx context.Context, step *domain.WorkflowStep, execCtx *ExecutionContext) error {
	var (
		decision domain.KYCStatus
		reason   string
	)

	switch {
	case len(execCtx.ComplianceFlags) > 0:
		decision = domain.KYCStatusRejected
		reason = "Compliance issues: " + strings.Join(execCtx.ComplianceFlags, ", ")
	case execCtx.ManualReviewRequired:
		decision = domain.KYCStatusUnderReview
		reason = "Manual review required due to risk factors"
	case execCtx.RiskScore > riskThresholdHigh:
		decision = domain.KYCStatusRejected
		reason = fmt.Sprintf("High risk score: %.2f", execCtx.RiskScore)
	case execCtx.RiskScore > riskThresholdMedium:
		decision = domain.KYCStatusUnderReview
		reason = fmt.Sprintf("Medium risk score requires review: %.2f", execCtx.RiskScore)
	default:
		decision = domain.KYCStatusApproved
		reason = "All checks passed successfully"
	}

	execCtx.Decision = decision
	execCtx.DecisionReason = reason

	step.OutputData = domain.Metadata{
		"decision":        string(decision),
		"decision_reason": reason,
		"risk_score":      execCtx.RiskScore,
	}
	return nil
}
