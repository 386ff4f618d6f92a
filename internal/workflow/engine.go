// ==============================================================================
// KYC WORKFLOW ENGINE - internal/workflow/engine.go
// ==============================================================================
// Sequential six-step KYC state machine with retry and abort semantics
// ==============================================================================

package workflow

import (
	"context"
	"errors"
	"fmt"
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
)

// ==============================================================================
// REPOSITORY INTERFACES
// ==============================================================================

// SessionRepository persists KYC sessions and their workflow steps. The
// engine persists after every step transition; the store must serialize
// writes per session record.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.KYCSession) error
	CreateStep(ctx context.Context, step *domain.WorkflowStep) error
	UpdateStep(ctx context.Context, step *domain.WorkflowStep) error
	UpdateSessionProgress(ctx context.Context, sessionID uuid.UUID, progress int) error
	UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status domain.KYCStatus, reason string) error
	UpdateSessionRiskScore(ctx context.Context, sessionID uuid.UUID, score decimal.Decimal) error
	FindSessionByID(ctx context.Context, sessionID uuid.UUID) (*domain.KYCSession, error)
	FindActiveSessionByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.KYCSession, error)
	FindStepsBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.WorkflowStep, error)
}

// CustomerRepository provides customer records and document metadata.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID uuid.UUID) (*domain.Customer, error)
	FindDocumentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Document, error)
	UpdateKYCStatus(ctx context.Context, customerID uuid.UUID, status domain.KYCStatus, reason string) error
}

// AssessmentRepository persists completed risk assessments.
type AssessmentRepository interface {
	Create(ctx context.Context, record *domain.RiskAssessmentRecord) error
}

// Locker guards the at-most-one-active-session-per-customer invariant
// across service instances. Backed by Redis SETNX in production.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Notifier receives session lifecycle events for live subscribers.
type Notifier interface {
	SessionEvent(sessionID, customerID uuid.UUID, eventType string, data map[string]interface{})
}

// ==============================================================================
// EXECUTION CONTEXT
// ==============================================================================

// ExecutionContext is the mutable accumulator threaded through one session
// run. It is owned exclusively by the executing session and never shared.
type ExecutionContext struct {
	CustomerID uuid.UUID
	SessionID  uuid.UUID

	SourceDocuments []domain.Document
	Documents       []analysis.DocumentAnalysis
	Authenticity    []analysis.AuthenticityResult
	PII             []analysis.PIIResult

	RiskScore       float64
	RiskLevel       domain.RiskLevel
	RiskFactors     []string
	Recommendations []string
	ComplianceFlags []string

	ManualReviewRequired bool
	Decision             domain.KYCStatus
	DecisionReason       string

	// SubmittedAt is the reference time for the scorer's behavioral and
	// age checks, fixed once at session start.
	SubmittedAt time.Time
}

// Decision-policy thresholds. Distinct from the scorer's level boundaries:
// scores above riskThresholdMedium force review, scores above
// riskThresholdHigh force rejection.
const (
	riskThresholdMedium = 0.7
	riskThresholdHigh   = 0.9
)

// ==============================================================================
// ENGINE
// ==============================================================================

// Engine drives KYC sessions through the six-step pipeline.
type Engine struct {
	sessions    SessionRepository
	customers   CustomerRepository
	assessments AssessmentRepository

	analyzer     analysis.DocumentAnalyzer
	authenticity analysis.AuthenticityChecker
	pii          analysis.PIIDetector
	scorer       *risk.Scorer

	locker   Locker
	auditor  audit.Sink
	notifier Notifier
	cfg      config.WorkflowConfig
	logger   logger.Logger
}

// NewEngine creates a workflow engine with all required dependencies.
func NewEngine(
	sessions SessionRepository,
	customers CustomerRepository,
	assessments AssessmentRepository,
	analyzer analysis.DocumentAnalyzer,
	authenticity analysis.AuthenticityChecker,
	pii analysis.PIIDetector,
	scorer *risk.Scorer,
	locker Locker,
	auditor audit.Sink,
	notifier Notifier,
	cfg config.WorkflowConfig,
	log logger.Logger,
) *Engine {
	return &Engine{
		sessions:     sessions,
		customers:    customers,
		assessments:  assessments,
		analyzer:     analyzer,
		authenticity: authenticity,
		pii:          pii,
		scorer:       scorer,
		locker:       locker,
		auditor:      auditor,
		notifier:     notifier,
		cfg:          cfg,
		logger:       log,
	}
}

// StartWorkflow validates the request, creates the session and its six
// pending steps, and launches the run asynchronously. Returns the session
// id. A customer with an active session is rejected, never queued.
func (e *Engine) StartWorkflow(ctx context.Context, customerID uuid.UUID) (uuid.UUID, error) {
	customer, err := e.customers.FindByID(ctx, customerID)
	if err != nil {
		return uuid.Nil, err
	}
	if customer.Status != domain.CustomerStatusActive {
		return uuid.Nil, kycerrors.ErrCustomerInactive
	}

	if _, err := e.sessions.FindActiveSessionByCustomer(ctx, customerID); err == nil {
		return uuid.Nil, kycerrors.ErrActiveSessionExists
	} else if !errors.Is(err, kycerrors.ErrSessionNotFound) {
		return uuid.Nil, kycerrors.Wrap(err, "failed to check for active session")
	}

	sessionID := uuid.New()

	acquired, err := e.locker.SetNX(ctx, sessionLockKey(customerID), sessionID.String(), e.cfg.SessionLockTTL)
	if err != nil {
		return uuid.Nil, kycerrors.Wrap(err, "failed to acquire session lock")
	}
	if !acquired {
		return uuid.Nil, kycerrors.ErrActiveSessionExists
	}

	now := time.Now().UTC()
	session := &domain.KYCSession{
		SessionID:            sessionID,
		CustomerID:           customerID,
		Status:               domain.KYCStatusInProgress,
		RiskScore:            decimal.Zero,
		CompletionPercentage: 0,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := e.sessions.CreateSession(ctx, session); err != nil {
		e.releaseLock(customerID)
		return uuid.Nil, kycerrors.Wrap(err, "failed to create kyc session")
	}

	steps := e.generateSteps(sessionID, now)
	for _, step := range steps {
		if err := e.sessions.CreateStep(ctx, step); err != nil {
			e.discardSession(sessionID)
			e.releaseLock(customerID)
			return uuid.Nil, kycerrors.Wrap(err, "failed to create workflow step")
		}
	}

	e.auditor.Emit(&domain.AuditEvent{
		EventType:   domain.AuditEventWorkflowStarted,
		Severity:    domain.AuditSeverityInfo,
		Description: fmt.Sprintf("KYC workflow started for customer: %s", customerID),
		CustomerID:  &customerID,
		SessionID:   &sessionID,
		Details: domain.Metadata{
			"steps_count": len(steps),
		},
	})

	execCtx := &ExecutionContext{
		CustomerID:  customerID,
		SessionID:   sessionID,
		SubmittedAt: now,
	}

	go e.run(steps, execCtx)

	return sessionID, nil
}

// generateSteps creates the fixed six-step sequence, all pending.
func (e *Engine) generateSteps(sessionID uuid.UUID, now time.Time) []*domain.WorkflowStep {
	steps := make([]*domain.WorkflowStep, 0, len(domain.StepActions))
	for i, action := range domain.StepActions {
		steps = append(steps, &domain.WorkflowStep{
			StepID:     uuid.New(),
			SessionID:  sessionID,
			Action:     action,
			StepOrder:  i + 1,
			Status:     domain.StepStatusPending,
			MaxRetries: e.cfg.MaxStepRetries,
			CreatedAt:  now,
		})
	}
	return steps
}

// run executes the steps strictly in order. Retried steps re-execute in
// place; later steps never start early.
func (e *Engine) run(steps []*domain.WorkflowStep, execCtx *ExecutionContext) {
	defer e.releaseLock(execCtx.CustomerID)

	ctx := context.Background()
	completed := 0

	for i := 0; i < len(steps); {
		step := steps[i]

		now := time.Now().UTC()
		step.Status = domain.StepStatusInProgress
		step.StartedAt = &now
		e.persistStep(ctx, step)

		err := e.executeStep(step, execCtx)
		if err == nil {
			finished := time.Now().UTC()
			step.Status = domain.StepStatusCompleted
			step.CompletedAt = &finished
			e.persistStep(ctx, step)

			completed++
			progress := completed * 100 / len(steps)
			if persistErr := e.sessions.UpdateSessionProgress(ctx, execCtx.SessionID, progress); persistErr != nil {
				e.logger.Error("failed to update session progress", map[string]interface{}{
					"session_id": execCtx.SessionID.String(),
					"error":      persistErr.Error(),
				})
			}

			e.auditor.Emit(&domain.AuditEvent{
				EventType:   domain.AuditEventWorkflowStepCompleted,
				Severity:    domain.AuditSeverityInfo,
				Description: fmt.Sprintf("Workflow step completed: %s", step.Action),
				CustomerID:  &execCtx.CustomerID,
				SessionID:   &execCtx.SessionID,
				Details: domain.Metadata{
					"step_action": string(step.Action),
					"progress":    progress,
				},
			})
			e.notifier.SessionEvent(execCtx.SessionID, execCtx.CustomerID, "step_completed", map[string]interface{}{
				"step_action": string(step.Action),
				"progress":    progress,
			})

			i++
			continue
		}

		step.ErrorMessage = err.Error()

		e.auditor.Emit(&domain.AuditEvent{
			EventType:   domain.AuditEventWorkflowStepFailed,
			Severity:    domain.AuditSeverityError,
			Description: fmt.Sprintf("Workflow step failed: %s", step.Action),
			CustomerID:  &execCtx.CustomerID,
			SessionID:   &execCtx.SessionID,
			Details: domain.Metadata{
				"step_action": string(step.Action),
				"error":       err.Error(),
				"retry_count": step.RetryCount,
			},
		})

		switch classifyFailure(step.Action, step.RetryCount, step.MaxRetries) {
		case failureRetry:
			step.RetryCount++
			step.Status = domain.StepStatusPending
			e.persistStep(ctx, step)
			// same index: the step re-executes in place

		case failureAbort:
			finished := time.Now().UTC()
			step.Status = domain.StepStatusFailed
			step.CompletedAt = &finished
			e.persistStep(ctx, step)
			e.abort(ctx, execCtx, fmt.Sprintf("Critical step failed: %s", step.Action))
			return

		case failureContinue:
			finished := time.Now().UTC()
			step.Status = domain.StepStatusFailed
			step.CompletedAt = &finished
			e.persistStep(ctx, step)
			i++
		}
	}

	e.finalize(ctx, execCtx)
}

// executeStep dispatches to the step implementation under the configured
// step timeout.
func (e *Engine) executeStep(step *domain.WorkflowStep, execCtx *ExecutionContext) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StepTimeout)
	defer cancel()

	switch step.Action {
	case domain.StepActionDocumentAnalysis:
		return e.runDocumentAnalysis(ctx, step, execCtx)
	case domain.StepActionPIIDetection:
		return e.runPIIDetection(ctx, step, execCtx)
	case domain.StepActionAuthenticityCheck:
		return e.runAuthenticityCheck(ctx, step, execCtx)
	case domain.StepActionRiskAssessment:
		return e.runRiskAssessment(ctx, step, execCtx)
	case domain.StepActionComplianceCheck:
		return e.runComplianceCheck(ctx, step, execCtx)
	case domain.StepActionDecisionMaking:
		return e.runDecisionMaking(ctx, step, execCtx)
	default:
		return kycerrors.ErrUnknownStepAction
	}
}

// ==============================================================================
// FAILURE POLICY
// ==============================================================================

type failureAction int

const (
	failureRetry failureAction = iota
	failureAbort
	failureContinue
)

// classifyFailure is the pure retry/abort policy: retryable steps with
// budget left are retried in place; critical steps abort the session;
// everything else fails the step and continues degraded.
func classifyFailure(action domain.StepAction, retryCount, maxRetries int) failureAction {
	if isRetryable(action) && retryCount < maxRetries {
		return failureRetry
	}
	if isCritical(action) {
		return failureAbort
	}
	return failureContinue
}

func isRetryable(action domain.StepAction) bool {
	switch action {
	case domain.StepActionDocumentAnalysis, domain.StepActionPIIDetection, domain.StepActionAuthenticityCheck:
		return true
	}
	return false
}

func isCritical(action domain.StepAction) bool {
	switch action {
	case domain.StepActionDocumentAnalysis, domain.StepActionRiskAssessment, domain.StepActionDecisionMaking:
		return true
	}
	return false
}

// ==============================================================================
// TERMINATION
// ==============================================================================

func (e *Engine) abort(ctx context.Context, execCtx *ExecutionContext, reason string) {
	if err := e.sessions.UpdateSessionStatus(ctx, execCtx.SessionID, domain.KYCStatusFailed, reason); err != nil {
		e.logger.Error("failed to mark session failed", map[string]interface{}{
			"session_id": execCtx.SessionID.String(),
			"error":      err.Error(),
		})
	}

	e.auditor.Emit(&domain.AuditEvent{
		EventType:   domain.AuditEventWorkflowAborted,
		Severity:    domain.AuditSeverityError,
		Description: fmt.Sprintf("KYC workflow aborted: %s", reason),
		CustomerID:  &execCtx.CustomerID,
		SessionID:   &execCtx.SessionID,
		Details: domain.Metadata{
			"reason": reason,
		},
	})
	e.notifier.SessionEvent(execCtx.SessionID, execCtx.CustomerID, "session_aborted", map[string]interface{}{
		"reason": reason,
	})
}

// finalize derives the session's terminal status from the decision step,
// persists the final risk score and 100% progress, and propagates the
// status to the customer record.
func (e *Engine) finalize(ctx context.Context, execCtx *ExecutionContext) {
	finalStatus := execCtx.Decision
	if finalStatus == "" {
		finalStatus = domain.KYCStatusApproved
	}

	if err := e.sessions.UpdateSessionStatus(ctx, execCtx.SessionID, finalStatus, execCtx.DecisionReason); err != nil {
		e.logger.Error("failed to update session status", map[string]interface{}{
			"session_id": execCtx.SessionID.String(),
			"error":      err.Error(),
		})
	}
	if err := e.sessions.UpdateSessionRiskScore(ctx, execCtx.SessionID, decimal.NewFromFloat(execCtx.RiskScore)); err != nil {
		e.logger.Error("failed to update session risk score", map[string]interface{}{
			"session_id": execCtx.SessionID.String(),
			"error":      err.Error(),
		})
	}
	if err := e.sessions.UpdateSessionProgress(ctx, execCtx.SessionID, 100); err != nil {
		e.logger.Error("failed to update session progress", map[string]interface{}{
			"session_id": execCtx.SessionID.String(),
			"error":      err.Error(),
		})
	}
	if err := e.customers.UpdateKYCStatus(ctx, execCtx.CustomerID, finalStatus, execCtx.DecisionReason); err != nil {
		e.logger.Error("failed to update customer kyc status", map[string]interface{}{
			"customer_id": execCtx.CustomerID.String(),
			"error":       err.Error(),
		})
	}

	e.auditor.Emit(&domain.AuditEvent{
		EventType:   domain.AuditEventWorkflowCompleted,
		Severity:    domain.AuditSeverityInfo,
		Description: fmt.Sprintf("KYC workflow completed with status: %s", finalStatus),
		CustomerID:  &execCtx.CustomerID,
		SessionID:   &execCtx.SessionID,
		Details: domain.Metadata{
			"final_status":    string(finalStatus),
			"risk_score":      execCtx.RiskScore,
			"decision_reason": execCtx.DecisionReason,
		},
	})
	e.notifier.SessionEvent(execCtx.SessionID, execCtx.CustomerID, "session_completed", map[string]interface{}{
		"final_status":    string(finalStatus),
		"risk_score":      execCtx.RiskScore,
		"decision_reason": execCtx.DecisionReason,
	})
}

func (e *Engine) persistStep(ctx context.Context, step *domain.WorkflowStep) {
	if err := e.sessions.UpdateStep(ctx, step); err != nil {
		e.logger.Error("failed to persist workflow step", map[string]interface{}{
			"step_id":     step.StepID.String(),
			"step_action": string(step.Action),
			"error":       err.Error(),
		})
	}
}

// discardSession marks a half-initialized session as failed. Left at
// in_progress, the row would count as active and block every future start
// for the customer. Uses a fresh context so the write survives a cancelled
// request.
func (e *Engine) discardSession(sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.sessions.UpdateSessionStatus(ctx, sessionID, domain.KYCStatusFailed, "Session initialization failed"); err != nil {
		e.logger.Error("failed to mark incomplete session as failed", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
}

func (e *Engine) releaseLock(customerID uuid.UUID) {
	if err := e.locker.Delete(context.Background(), sessionLockKey(customerID)); err != nil {
		e.logger.Warn("failed to release session lock", map[string]interface{}{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		})
	}
}

func sessionLockKey(customerID uuid.UUID) string {
	return "kyc:workflow:lock:" + customerID.String()
}

// ==============================================================================
// STATUS READ MODEL
// ==============================================================================

// StepStatusView is one step in the session status read model.
type StepStatusView struct {
	Action       domain.StepAction `json:"action"`
	Status       domain.StepStatus `json:"status"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	RetryCount   int               `json:"retry_count"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// SessionStatus is the full session status served to clients.
type SessionStatus struct {
	SessionID      uuid.UUID        `json:"session_id"`
	CustomerID     uuid.UUID        `json:"customer_id"`
	Status         domain.KYCStatus `json:"status"`
	Progress       int              `json:"progress"`
	RiskScore      decimal.Decimal  `json:"risk_score"`
	DecisionReason string           `json:"decision_reason,omitempty"`
	Steps          []StepStatusView `json:"steps"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// GetStatus returns the current session state with its ordered steps.
func (e *Engine) GetStatus(ctx context.Context, sessionID uuid.UUID) (*SessionStatus, error) {
	session, err := e.sessions.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	steps, err := e.sessions.FindStepsBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	views := make([]StepStatusView, 0, len(steps))
	for _, step := range steps {
		views = append(views, StepStatusView{
			Action:       step.Action,
			Status:       step.Status,
			StartedAt:    step.StartedAt,
			CompletedAt:  step.CompletedAt,
			RetryCount:   step.RetryCount,
			ErrorMessage: step.ErrorMessage,
		})
	}

	return &SessionStatus{
		SessionID:      session.SessionID,
		CustomerID:     session.CustomerID,
		Status:         session.Status,
		Progress:       session.CompletionPercentage,
		RiskScore:      session.RiskScore,
		DecisionReason: session.DecisionReason,
		Steps:          views,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
	}, nil
}
