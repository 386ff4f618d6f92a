package workflow

import (
	"context"
	"testing"
	"time"

	"kycdoc/internal/analysis"
	"kycdoc/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingStep(action domain.StepAction) *domain.WorkflowStep {
	return &domain.WorkflowStep{
		Action:     action,
		Status:     domain.StepStatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestRunComplianceCheck_CleanProfile(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	execCtx := testExecContext(customer)
	execCtx.SourceDocuments = testDocuments(customer.ID)
	execCtx.PII = []analysis.PIIResult{{DocumentID: "d1"}}
	execCtx.RiskScore = 0.2

	step := pendingStep(domain.StepActionComplianceCheck)
	err := f.engine.runComplianceCheck(context.Background(), step, execCtx)
	require.NoError(t, err)

	assert.Empty(t, execCtx.ComplianceFlags)
	assert.False(t, execCtx.ManualReviewRequired)
}

func TestRunComplianceCheck_MissingPrimaryID(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	execCtx := testExecContext(customer)
	// A national ID alone does not satisfy the primary ID requirement.
	execCtx.SourceDocuments = []domain.Document{{DocumentType: domain.DocumentTypeNationalID}}
	execCtx.PII = []analysis.PIIResult{{DocumentID: "d1"}}

	step := pendingStep(domain.StepActionComplianceCheck)
	err := f.engine.runComplianceCheck(context.Background(), step, execCtx)
	require.NoError(t, err)

	assert.Equal(t, []string{"Missing primary ID document"}, execCtx.ComplianceFlags)
	assert.True(t, execCtx.ManualReviewRequired)
}

func TestRunComplianceCheck_HighRiskScoreFlag(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	execCtx := testExecContext(customer)
	execCtx.SourceDocuments = testDocuments(customer.ID)
	execCtx.PII = []analysis.PIIResult{{DocumentID: "d1"}}
	execCtx.RiskScore = 0.95

	step := pendingStep(domain.StepActionComplianceCheck)
	err := f.engine.runComplianceCheck(context.Background(), step, execCtx)
	require.NoError(t, err)

	assert.Equal(t, []string{"High risk customer requires additional verification"}, execCtx.ComplianceFlags)
	assert.True(t, execCtx.ManualReviewRequired)
}

func TestRunComplianceCheck_ElevatedScoreForcesReviewWithoutFlags(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	execCtx := testExecContext(customer)
	execCtx.SourceDocuments = testDocuments(customer.ID)
	execCtx.PII = []analysis.PIIResult{{DocumentID: "d1"}}
	execCtx.RiskScore = 0.75

	step := pendingStep(domain.StepActionComplianceCheck)
	err := f.engine.runComplianceCheck(context.Background(), step, execCtx)
	require.NoError(t, err)

	assert.Empty(t, execCtx.ComplianceFlags)
	assert.True(t, execCtx.ManualReviewRequired)
}

func TestRunDecisionMaking_Priority(t *testing.T) {
	tests := []struct {
		name         string
		flags        []string
		manualReview bool
		riskScore    float64
		wantDecision domain.KYCStatus
		wantReason   string
	}{
		{
			name:         "compliance flags reject regardless of score",
			flags:        []string{"Missing primary ID document", "PII detection not completed"},
			riskScore:    0.0,
			wantDecision: domain.KYCStatusRejected,
			wantReason:   "Compliance issues: Missing primary ID document, PII detection not completed",
		},
		{
			name:         "manual review outranks score bands",
			manualReview: true,
			riskScore:    0.95,
			wantDecision: domain.KYCStatusUnderReview,
			wantReason:   "Manual review required due to risk factors",
		},
		{
			name:         "very high score rejects",
			riskScore:    0.95,
			wantDecision: domain.KYCStatusRejected,
			wantReason:   "High risk score: 0.95",
		},
		{
			name:         "elevated score goes to review",
			riskScore:    0.75,
			wantDecision: domain.KYCStatusUnderReview,
			wantReason:   "Medium risk score requires review: 0.75",
		},
		{
			name:         "clean profile approves",
			riskScore:    0.1,
			wantDecision: domain.KYCStatusApproved,
			wantReason:   "All checks passed successfully",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			customer := testCustomer()

			execCtx := testExecContext(customer)
			execCtx.ComplianceFlags = tt.flags
			execCtx.ManualReviewRequired = tt.manualReview
			execCtx.RiskScore = tt.riskScore

			step := pendingStep(domain.StepActionDecisionMaking)
			err := f.engine.runDecisionMaking(context.Background(), step, execCtx)
			require.NoError(t, err)

			assert.Equal(t, tt.wantDecision, execCtx.Decision)
			assert.Equal(t, tt.wantReason, execCtx.DecisionReason)
			assert.Equal(t, string(tt.wantDecision), step.OutputData["decision"])
		})
	}
}

func TestRunDocumentAnalysis_TracksLargeFiles(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	docs := testDocuments(customer.ID)
	docs[0].FileSize = 25_000_000
	f.customers.On("FindDocumentsByCustomerID", mock.Anything, customer.ID).Return(docs, nil)

	execCtx := testExecContext(customer)
	step := pendingStep(domain.StepActionDocumentAnalysis)

	err := f.engine.runDocumentAnalysis(context.Background(), step, execCtx)
	require.NoError(t, err)

	assert.Len(t, execCtx.Documents, 2)
	assert.Equal(t, 2, step.OutputData["documents_analyzed"])
	assert.Equal(t, []string{"passport.pdf"}, step.OutputData["large_files"])
}

func TestRunDocumentAnalysis_ZeroDocumentsIsNotAnError(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	f.customers.On("FindDocumentsByCustomerID", mock.Anything, customer.ID).Return([]domain.Document{}, nil)

	execCtx := testExecContext(customer)
	step := pendingStep(domain.StepActionDocumentAnalysis)

	err := f.engine.runDocumentAnalysis(context.Background(), step, execCtx)
	require.NoError(t, err)
	assert.Empty(t, execCtx.Documents)
	assert.Equal(t, 0, step.OutputData["documents_analyzed"])
}

func TestRunRiskAssessment_PersistsRecordWithSession(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()
	docs := testDocuments(customer.ID)

	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil)

	var persisted *domain.RiskAssessmentRecord
	f.assessments.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(*domain.RiskAssessmentRecord)
		}).Return(nil)

	execCtx := testExecContext(customer)
	execCtx.SourceDocuments = docs
	step := pendingStep(domain.StepActionRiskAssessment)

	err := f.engine.runRiskAssessment(context.Background(), step, execCtx)
	require.NoError(t, err)

	require.NotNil(t, persisted)
	assert.Equal(t, customer.ID, persisted.CustomerID)
	require.NotNil(t, persisted.SessionID)
	assert.Equal(t, execCtx.SessionID, *persisted.SessionID)
	assert.Equal(t, execCtx.RiskScore, step.OutputData["risk_score"])
}
