package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kycdoc/internal/analysis"
	"kycdoc/internal/audit"
	"kycdoc/internal/domain"
	"kycdoc/internal/risk"
	"kycdoc/pkg/config"
	kycerrors "kycdoc/pkg/errors"
	"kycdoc/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) CreateSession(ctx context.Context, session *domain.KYCSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) CreateStep(ctx context.Context, step *domain.WorkflowStep) error {
	args := m.Called(ctx, step)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateStep(ctx context.Context, step *domain.WorkflowStep) error {
	args := m.Called(ctx, step)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateSessionProgress(ctx context.Context, sessionID uuid.UUID, progress int) error {
	args := m.Called(ctx, sessionID, progress)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status domain.KYCStatus, reason string) error {
	args := m.Called(ctx, sessionID, status, reason)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateSessionRiskScore(ctx context.Context, sessionID uuid.UUID, score decimal.Decimal) error {
	args := m.Called(ctx, sessionID, score)
	return args.Error(0)
}

func (m *MockSessionRepository) FindSessionByID(ctx context.Context, sessionID uuid.UUID) (*domain.KYCSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KYCSession), args.Error(1)
}

func (m *MockSessionRepository) FindActiveSessionByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.KYCSession, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KYCSession), args.Error(1)
}

func (m *MockSessionRepository) FindStepsBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.WorkflowStep, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.WorkflowStep), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindDocumentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Document, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockCustomerRepository) UpdateKYCStatus(ctx context.Context, customerID uuid.UUID, status domain.KYCStatus, reason string) error {
	args := m.Called(ctx, customerID, status, reason)
	return args.Error(0)
}

type MockAssessmentRepository struct {
	mock.Mock
}

func (m *MockAssessmentRepository) Create(ctx context.Context, record *domain.RiskAssessmentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// --- Fakes for collaborators and infrastructure ---

type fakeAnalyzer struct {
	failures int
	calls    int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, doc *domain.Document) (*analysis.DocumentAnalysis, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("analysis backend down")
	}
	return &analysis.DocumentAnalysis{
		DocumentID:   doc.ID.String(),
		DocumentType: doc.DocumentType,
		FileName:     doc.FileName,
		MimeType:     doc.MimeType,
		FileSize:     doc.FileSize,
		QualityScore: 0.8,
		Confidence:   0.9,
		Readable:     true,
		Complete:     true,
	}, nil
}

type fakePIIDetector struct {
	failures int
	calls    int
}

func (f *fakePIIDetector) Detect(ctx context.Context, doc *domain.Document) (*analysis.PIIResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("pii backend down")
	}
	return &analysis.PIIResult{
		DocumentID:       doc.ID.String(),
		DetectedFields:   []string{"name", "date_of_birth"},
		ConfidenceScores: map[string]float64{"name": 0.95, "date_of_birth": 0.9},
	}, nil
}

type fakeAuthenticityChecker struct {
	failures int
	calls    int
}

func (f *fakeAuthenticityChecker) Check(ctx context.Context, doc *domain.Document) (*analysis.AuthenticityResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("authenticity backend down")
	}
	return &analysis.AuthenticityResult{
		DocumentID:      doc.ID.String(),
		Authentic:       true,
		ConfidenceScore: 0.9,
	}, nil
}

type fakeLocker struct {
	acquired bool
	deleted  []string
}

func (f *fakeLocker) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return f.acquired, nil
}

func (f *fakeLocker) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type recordedEvent struct {
	EventType string
	Data      map[string]interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
	done   chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 1)}
}

func (f *fakeNotifier) SessionEvent(sessionID, customerID uuid.UUID, eventType string, data map[string]interface{}) {
	f.mu.Lock()
	f.events = append(f.events, recordedEvent{EventType: eventType, Data: data})
	f.mu.Unlock()
	if eventType == "session_completed" || eventType == "session_aborted" {
		select {
		case f.done <- struct{}{}:
		default:
		}
	}
}

func (f *fakeNotifier) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.EventType)
	}
	return types
}

// --- Fixtures ---

type engineFixture struct {
	engine       *Engine
	sessions     *MockSessionRepository
	customers    *MockCustomerRepository
	assessments  *MockAssessmentRepository
	analyzer     *fakeAnalyzer
	pii          *fakePIIDetector
	authenticity *fakeAuthenticityChecker
	locker       *fakeLocker
	notifier     *fakeNotifier
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	scorer, err := risk.NewScorer(risk.DefaultConfig(), logger.NewNop())
	require.NoError(t, err)

	f := &engineFixture{
		sessions:     new(MockSessionRepository),
		customers:    new(MockCustomerRepository),
		assessments:  new(MockAssessmentRepository),
		analyzer:     &fakeAnalyzer{},
		pii:          &fakePIIDetector{},
		authenticity: &fakeAuthenticityChecker{},
		locker:       &fakeLocker{acquired: true},
		notifier:     newFakeNotifier(),
	}

	f.engine = NewEngine(
		f.sessions,
		f.customers,
		f.assessments,
		f.analyzer,
		f.authenticity,
		f.pii,
		scorer,
		f.locker,
		audit.NewNop(),
		f.notifier,
		config.WorkflowConfig{
			StepTimeout:    time.Second,
			MaxStepRetries: 3,
			SessionLockTTL: time.Minute,
		},
		logger.NewNop(),
	)

	return f
}

func testCustomer() *domain.Customer {
	dob := time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC)
	return &domain.Customer{
		ID:           uuid.New(),
		FirstName:    "Maria",
		LastName:     "Gonzalez",
		Email:        "maria.gonzalez@example.com",
		DateOfBirth:  &dob,
		Nationality:  "Germany",
		AddressLine1: "5 River Road",
		City:         "Berlin",
		Country:      "Germany",
		Status:       domain.CustomerStatusActive,
		CreatedAt:    time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func testDocuments(customerID uuid.UUID) []domain.Document {
	return []domain.Document{
		{
			ID:           uuid.New(),
			CustomerID:   customerID,
			DocumentType: domain.DocumentTypePassport,
			FileName:     "passport.pdf",
			MimeType:     "application/pdf",
			FileSize:     600_000,
		},
		{
			ID:           uuid.New(),
			CustomerID:   customerID,
			DocumentType: domain.DocumentTypeDriversLicense,
			FileName:     "license.png",
			MimeType:     "image/png",
			FileSize:     400_000,
		},
	}
}

func testExecContext(customer *domain.Customer) *ExecutionContext {
	return &ExecutionContext{
		CustomerID:  customer.ID,
		SessionID:   uuid.New(),
		SubmittedAt: customer.CreatedAt.Add(time.Hour),
	}
}

// --- Failure policy ---

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name       string
		action     domain.StepAction
		retryCount int
		want       failureAction
	}{
		{"document analysis retries under budget", domain.StepActionDocumentAnalysis, 0, failureRetry},
		{"document analysis retries at 2 of 3", domain.StepActionDocumentAnalysis, 2, failureRetry},
		{"document analysis aborts when exhausted", domain.StepActionDocumentAnalysis, 3, failureAbort},
		{"pii detection retries under budget", domain.StepActionPIIDetection, 1, failureRetry},
		{"pii detection continues when exhausted", domain.StepActionPIIDetection, 3, failureContinue},
		{"authenticity continues when exhausted", domain.StepActionAuthenticityCheck, 3, failureContinue},
		{"risk assessment aborts immediately", domain.StepActionRiskAssessment, 0, failureAbort},
		{"compliance check continues immediately", domain.StepActionComplianceCheck, 0, failureContinue},
		{"decision making aborts immediately", domain.StepActionDecisionMaking, 0, failureAbort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFailure(tt.action, tt.retryCount, 3))
		})
	}
}

// --- StartWorkflow ---

func TestStartWorkflow_CustomerNotFound(t *testing.T) {
	f := newEngineFixture(t)
	customerID := uuid.New()

	f.customers.On("FindByID", mock.Anything, customerID).Return(nil, kycerrors.ErrCustomerNotFound)

	_, err := f.engine.StartWorkflow(context.Background(), customerID)
	assert.ErrorIs(t, err, kycerrors.ErrCustomerNotFound)
}

func TestStartWorkflow_InactiveCustomer(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()
	customer.Status = domain.CustomerStatusSuspended

	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil)

	_, err := f.engine.StartWorkflow(context.Background(), customer.ID)
	assert.ErrorIs(t, err, kycerrors.ErrCustomerInactive)
}

func TestStartWorkflow_ActiveSessionExists(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil)
	f.sessions.On("FindActiveSessionByCustomer", mock.Anything, customer.ID).Return(&domain.KYCSession{
		SessionID: uuid.New(),
		Status:    domain.KYCStatusInProgress,
	}, nil)

	_, err := f.engine.StartWorkflow(context.Background(), customer.ID)
	assert.ErrorIs(t, err, kycerrors.ErrActiveSessionExists)
}

func TestStartWorkflow_LockContention(t *testing.T) {
	f := newEngineFixture(t)
	f.locker.acquired = false
	customer := testCustomer()

	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil)
	f.sessions.On("FindActiveSessionByCustomer", mock.Anything, customer.ID).Return(nil, kycerrors.ErrSessionNotFound)

	_, err := f.engine.StartWorkflow(context.Background(), customer.ID)
	assert.ErrorIs(t, err, kycerrors.ErrActiveSessionExists)
}

func TestStartWorkflow_StepCreationFailureDiscardsSession(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()

	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil)
	f.sessions.On("FindActiveSessionByCustomer", mock.Anything, customer.ID).Return(nil, kycerrors.ErrSessionNotFound)
	f.sessions.On("CreateSession", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("CreateStep", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	var discardedID uuid.UUID
	f.sessions.On("UpdateSessionStatus", mock.Anything, mock.Anything, domain.KYCStatusFailed, "Session initialization failed").
		Run(func(args mock.Arguments) {
			discardedID = args.Get(1).(uuid.UUID)
		}).Return(nil)

	sessionID, err := f.engine.StartWorkflow(context.Background(), customer.ID)
	require.Error(t, err)
	assert.Equal(t, uuid.Nil, sessionID)

	// The half-initialized session must not remain active: left at
	// in_progress it would reject the customer's next start forever.
	f.sessions.AssertExpectations(t)
	assert.NotEqual(t, uuid.Nil, discardedID)
	assert.Equal(t, []string{sessionLockKey(customer.ID)}, f.locker.deleted)
}

func TestStartWorkflow_HappyPathRunsToApproval(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()
	docs := testDocuments(customer.ID)

	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil)
	f.customers.On("FindDocumentsByCustomerID", mock.Anything, customer.ID).Return(docs, nil)
	f.customers.On("UpdateKYCStatus", mock.Anything, customer.ID, domain.KYCStatusApproved, "All checks passed successfully").Return(nil)

	f.sessions.On("FindActiveSessionByCustomer", mock.Anything, customer.ID).Return(nil, kycerrors.ErrSessionNotFound)
	f.sessions.On("CreateSession", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("CreateStep", mock.Anything, mock.Anything).Return(nil).Times(6)
	f.sessions.On("UpdateStep", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("UpdateSessionProgress", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("UpdateSessionStatus", mock.Anything, mock.Anything, domain.KYCStatusApproved, "All checks passed successfully").Return(nil)
	f.sessions.On("UpdateSessionRiskScore", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.assessments.On("Create", mock.Anything, mock.Anything).Return(nil)

	sessionID, err := f.engine.StartWorkflow(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sessionID)

	select {
	case <-f.notifier.done:
	case <-time.After(5 * time.Second):
		t.Fatal("workflow did not complete in time")
	}

	assert.Contains(t, f.notifier.eventTypes(), "session_completed")
	f.sessions.AssertExpectations(t)
	f.customers.AssertExpectations(t)
	f.assessments.AssertExpectations(t)
	// Lock released after the run.
	assert.NotEmpty(t, f.locker.deleted)
}

// --- run ---

func setupRunMocks(f *engineFixture, customer *domain.Customer, docs []domain.Document) {
	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil).Maybe()
	f.customers.On("FindDocumentsByCustomerID", mock.Anything, customer.ID).Return(docs, nil).Maybe()
	f.customers.On("UpdateKYCStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.sessions.On("UpdateStep", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.sessions.On("UpdateSessionProgress", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.sessions.On("UpdateSessionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.sessions.On("UpdateSessionRiskScore", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.assessments.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func TestRun_RetryableStepRecoversInPlace(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()
	docs := testDocuments(customer.ID)
	setupRunMocks(f, customer, docs)

	// First two analysis calls fail, third succeeds.
	f.analyzer.failures = 2

	execCtx := testExecContext(customer)
	steps := f.engine.generateSteps(execCtx.SessionID, time.Now().UTC())

	f.engine.run(steps, execCtx)

	assert.Equal(t, domain.StepStatusCompleted, steps[0].Status)
	assert.Equal(t, 2, steps[0].RetryCount)
	assert.Equal(t, domain.KYCStatusApproved, execCtx.Decision)
}

func TestRun_CriticalStepAbortsWhenRetriesExhausted(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()
	docs := testDocuments(customer.ID)
	setupRunMocks(f, customer, docs)

	// Analysis never recovers: 1 initial attempt + 3 retries, then abort.
	f.analyzer.failures = 100

	execCtx := testExecContext(customer)
	steps := f.engine.generateSteps(execCtx.SessionID, time.Now().UTC())

	f.engine.run(steps, execCtx)

	assert.Equal(t, domain.StepStatusFailed, steps[0].Status)
	assert.Equal(t, 3, steps[0].RetryCount)
	// Later steps never started.
	assert.Equal(t, domain.StepStatusPending, steps[1].Status)

	f.sessions.AssertCalled(t, "UpdateSessionStatus", mock.Anything, execCtx.SessionID,
		domain.KYCStatusFailed, "Critical step failed: document_analysis")
	f.customers.AssertNotCalled(t, "UpdateKYCStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, f.notifier.eventTypes(), "session_aborted")
}

func TestRun_NonCriticalFailureContinuesDegraded(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()
	docs := testDocuments(customer.ID)
	setupRunMocks(f, customer, docs)

	// PII detection never recovers; the workflow continues without it and
	// the compliance check turns the gap into a rejection.
	f.pii.failures = 100

	execCtx := testExecContext(customer)
	steps := f.engine.generateSteps(execCtx.SessionID, time.Now().UTC())

	f.engine.run(steps, execCtx)

	assert.Equal(t, domain.StepStatusFailed, steps[1].Status)
	assert.Equal(t, domain.StepStatusCompleted, steps[5].Status)
	assert.Equal(t, domain.KYCStatusRejected, execCtx.Decision)
	assert.Equal(t, "Compliance issues: PII detection not completed", execCtx.DecisionReason)
	assert.Contains(t, f.notifier.eventTypes(), "session_completed")
}

func TestRun_ProgressAdvancesMonotonically(t *testing.T) {
	f := newEngineFixture(t)
	customer := testCustomer()
	docs := testDocuments(customer.ID)

	var progress []int
	f.customers.On("FindByID", mock.Anything, customer.ID).Return(customer, nil)
	f.customers.On("FindDocumentsByCustomerID", mock.Anything, customer.ID).Return(docs, nil)
	f.customers.On("UpdateKYCStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("UpdateStep", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("UpdateSessionProgress", mock.Anything, mock.Anything, mock.AnythingOfType("int")).
		Run(func(args mock.Arguments) {
			progress = append(progress, args.Int(2))
		}).Return(nil)
	f.sessions.On("UpdateSessionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("UpdateSessionRiskScore", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.assessments.On("Create", mock.Anything, mock.Anything).Return(nil)

	execCtx := testExecContext(customer)
	steps := f.engine.generateSteps(execCtx.SessionID, time.Now().UTC())

	f.engine.run(steps, execCtx)

	// One update per completed step, then the final 100 from finalize.
	require.Equal(t, []int{16, 33, 50, 66, 83, 100, 100}, progress)
}

// --- GetStatus ---

func TestGetStatus(t *testing.T) {
	f := newEngineFixture(t)
	sessionID := uuid.New()
	customerID := uuid.New()

	session := &domain.KYCSession{
		SessionID:            sessionID,
		CustomerID:           customerID,
		Status:               domain.KYCStatusInProgress,
		RiskScore:            decimal.Zero,
		CompletionPercentage: 33,
	}
	steps := []*domain.WorkflowStep{
		{Action: domain.StepActionDocumentAnalysis, Status: domain.StepStatusCompleted, StepOrder: 1},
		{Action: domain.StepActionPIIDetection, Status: domain.StepStatusInProgress, StepOrder: 2, RetryCount: 1},
	}

	f.sessions.On("FindSessionByID", mock.Anything, sessionID).Return(session, nil)
	f.sessions.On("FindStepsBySessionID", mock.Anything, sessionID).Return(steps, nil)

	status, err := f.engine.GetStatus(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Equal(t, sessionID, status.SessionID)
	assert.Equal(t, 33, status.Progress)
	require.Len(t, status.Steps, 2)
	assert.Equal(t, domain.StepActionDocumentAnalysis, status.Steps[0].Action)
	assert.Equal(t, 1, status.Steps[1].RetryCount)
}

func TestGetStatus_NotFound(t *testing.T) {
	f := newEngineFixture(t)
	sessionID := uuid.New()

	f.sessions.On("FindSessionByID", mock.Anything, sessionID).Return(nil, kycerrors.ErrSessionNotFound)

	_, err := f.engine.GetStatus(context.Background(), sessionID)
	assert.ErrorIs(t, err, kycerrors.ErrSessionNotFound)
}
