package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditSeverity classifies audit events.
type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "info"
	AuditSeverityWarning  AuditSeverity = "warning"
	AuditSeverityError    AuditSeverity = "error"
	AuditSeverityCritical AuditSeverity = "critical"
)

// Audit event types emitted by the workflow engine and risk scorer.
const (
	AuditEventWorkflowStarted         = "kyc_workflow_started"
	AuditEventWorkflowStepCompleted   = "workflow_step_completed"
	AuditEventWorkflowStepFailed      = "workflow_step_failed"
	AuditEventWorkflowAborted         = "kyc_workflow_aborted"
	AuditEventWorkflowCompleted       = "kyc_workflow_completed"
	AuditEventRiskAssessmentCompleted = "risk_assessment_completed"
)

// AuditEvent is a structured, write-only compliance event.
type AuditEvent struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	EventType   string        `json:"event_type" db:"event_type"`
	Severity    AuditSeverity `json:"severity" db:"severity"`
	Description string        `json:"description" db:"description"`
	CustomerID  *uuid.UUID    `json:"customer_id,omitempty" db:"customer_id"`
	SessionID   *uuid.UUID    `json:"session_id,omitempty" db:"session_id"`
	Details     Metadata      `json:"details,omitempty" db:"details"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
