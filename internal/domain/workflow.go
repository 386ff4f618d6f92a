package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KYCStatus is the terminal or in-flight status of a KYC session.
type KYCStatus string

const (
	KYCStatusPending     KYCStatus = "pending"
	KYCStatusInProgress  KYCStatus = "in_progress"
	KYCStatusApproved    KYCStatus = "approved"
	KYCStatusRejected    KYCStatus = "rejected"
	KYCStatusUnderReview KYCStatus = "under_review"
	KYCStatusFailed      KYCStatus = "failed"
)

// IsTerminal reports whether the session can no longer change state.
func (s KYCStatus) IsTerminal() bool {
	switch s {
	case KYCStatusApproved, KYCStatusRejected, KYCStatusUnderReview, KYCStatusFailed:
		return true
	}
	return false
}

// StepAction identifies one of the six workflow actions, executed in the
// declared order.
type StepAction string

const (
	StepActionDocumentAnalysis  StepAction = "document_analysis"
	StepActionPIIDetection      StepAction = "pii_detection"
	StepActionAuthenticityCheck StepAction = "authenticity_check"
	StepActionRiskAssessment    StepAction = "risk_assessment"
	StepActionComplianceCheck   StepAction = "compliance_check"
	StepActionDecisionMaking    StepAction = "decision_making"
)

// StepActions lists the workflow actions in execution order.
var StepActions = []StepAction{
	StepActionDocumentAnalysis,
	StepActionPIIDetection,
	StepActionAuthenticityCheck,
	StepActionRiskAssessment,
	StepActionComplianceCheck,
	StepActionDecisionMaking,
}

// StepStatus is the state of a single workflow step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// WorkflowStep is one step of a KYC session. Created when the session
// starts, mutated by the engine, terminal once completed/failed/skipped.
type WorkflowStep struct {
	StepID       uuid.UUID  `json:"step_id" db:"step_id"`
	SessionID    uuid.UUID  `json:"session_id" db:"session_id"`
	Action       StepAction `json:"action" db:"action"`
	StepOrder    int        `json:"step_order" db:"step_order"`
	Status       StepStatus `json:"status" db:"status"`
	InputData    Metadata   `json:"input_data,omitempty" db:"input_data"`
	OutputData   Metadata   `json:"output_data,omitempty" db:"output_data"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	RetryCount   int        `json:"retry_count" db:"retry_count"`
	MaxRetries   int        `json:"max_retries" db:"max_retries"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// KYCSession is one end-to-end run of the six-step pipeline for a customer.
type KYCSession struct {
	SessionID            uuid.UUID       `json:"session_id" db:"session_id"`
	CustomerID           uuid.UUID       `json:"customer_id" db:"customer_id"`
	Status               KYCStatus       `json:"status" db:"status"`
	RiskScore            decimal.Decimal `json:"risk_score" db:"risk_score"`
	CompletionPercentage int             `json:"completion_percentage" db:"completion_percentage"`
	DecisionReason       string          `json:"decision_reason,omitempty" db:"decision_reason"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}
