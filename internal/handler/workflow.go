// ==============================================================================
// WORKFLOW HTTP HANDLER - internal/handler/workflow.go
// ==============================================================================
// KYC workflow endpoints: start a session, poll its status, stream progress
// over a websocket
// ==============================================================================

package handler

import (
	"errors"
	"net/http"

	"kycdoc/internal/notification"
	"kycdoc/internal/workflow"
	kycerrors "kycdoc/pkg/errors"
	"kycdoc/pkg/logger"
	"kycdoc/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (CORS)
	},
}

// WorkflowHandler handles KYC workflow endpoints.
type WorkflowHandler struct {
	engine    *workflow.Engine
	hub       *notification.Hub
	validator *validator.Validator
	logger    logger.Logger
}

// NewWorkflowHandler creates a WorkflowHandler with required dependencies.
func NewWorkflowHandler(engine *workflow.Engine, hub *notification.Hub, val *validator.Validator, log logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		engine:    engine,
		hub:       hub,
		validator: val,
		logger:    log,
	}
}

type startWorkflowRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid4"`
}

// StartWorkflow launches a new KYC session for a customer. The workflow runs
// asynchronously; the response only confirms acceptance.
func (h *WorkflowHandler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req startWorkflowRequest
	if !parseAndValidate(w, r, h.logger, h.validator, &req) {
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	sessionID, err := h.engine.StartWorkflow(r.Context(), customerID)
	if err != nil {
		h.handleWorkflowError(w, err, customerID)
		return
	}

	respondJSON(w, h.logger, http.StatusAccepted, map[string]interface{}{
		"session_id": sessionID,
		"status":     "in_progress",
	})
}

// GetSessionStatus returns the session with its ordered steps.
func (h *WorkflowHandler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["session_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	status, err := h.engine.GetStatus(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, kycerrors.ErrSessionNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "KYC session not found")
			return
		}
		h.logger.Error("Failed to load session status", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to load session status")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, status)
}

// StreamSession provides real-time workflow progress over a websocket. The
// current status is sent first, then hub events until the session reaches a
// terminal state or the client disconnects.
func (h *WorkflowHandler) StreamSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["session_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	status, err := h.engine.GetStatus(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, kycerrors.ErrSessionNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "KYC session not found")
			return
		}
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to load session status")
		return
	}

	events, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{
		"type":    "session_status",
		"session": status,
	}); err != nil {
		return
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("WebSocket client gone", map[string]interface{}{
					"session_id": sessionID.String(),
				})
				return
			}
			if event.EventType == "session_completed" || event.EventType == "session_aborted" {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (h *WorkflowHandler) handleWorkflowError(w http.ResponseWriter, err error, customerID uuid.UUID) {
	switch {
	case errors.Is(err, kycerrors.ErrCustomerNotFound):
		respondError(w, h.logger, http.StatusNotFound, "Customer not found")
	case errors.Is(err, kycerrors.ErrCustomerInactive):
		respondError(w, h.logger, http.StatusUnprocessableEntity, "Customer is not active")
	case errors.Is(err, kycerrors.ErrActiveSessionExists):
		respondError(w, h.logger, http.StatusConflict, "Customer already has an active KYC session")
	default:
		h.logger.Error("Failed to start KYC workflow", map[string]interface{}{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to start KYC workflow")
	}
}
