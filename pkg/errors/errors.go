// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Customer errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerInactive = errors.New("customer is inactive")

	// Session errors
	ErrSessionNotFound     = errors.New("kyc session not found")
	ErrActiveSessionExists = errors.New("customer already has an active kyc session")
	ErrSessionTerminal     = errors.New("kyc session is already in a terminal state")

	// Workflow errors
	ErrStepNotFound      = errors.New("workflow step not found")
	ErrUnknownStepAction = errors.New("unknown workflow step action")

	// Risk assessment errors
	ErrAssessmentNotFound = errors.New("risk assessment not found")
	ErrInvalidRiskConfig  = errors.New("invalid risk scoring configuration")

	// Document errors
	ErrDocumentNotFound = errors.New("document not found")

	// Collaborator errors
	ErrAnalysisUnavailable     = errors.New("document analysis service unavailable")
	ErrPIIDetectionUnavailable = errors.New("pii detection service unavailable")
	ErrAuthenticityUnavailable = errors.New("authenticity check service unavailable")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
