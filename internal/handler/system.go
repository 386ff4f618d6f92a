package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"kycdoc/internal/domain"
	"kycdoc/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// AuditQueryStore is the read surface over persisted audit events.
type AuditQueryStore interface {
	FindAll(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error)
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*domain.AuditEvent, error)
}

// SystemHandler serves operational endpoints: deep health and audit reads.
type SystemHandler struct {
	db          *sqlx.DB
	redisClient *redis.Client
	auditStore  AuditQueryStore
	logger      logger.Logger
	startTime   time.Time
}

// NewSystemHandler creates a SystemHandler with required dependencies.
func NewSystemHandler(db *sqlx.DB, redisClient *redis.Client, auditStore AuditQueryStore, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		db:          db,
		redisClient: redisClient,
		auditStore:  auditStore,
		logger:      log,
		startTime:   time.Now(),
	}
}

// Status reports component health for readiness probes and dashboards.
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{
		"database": "operational",
		"redis":    "operational",
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		components["database"] = "outage"
		status = http.StatusServiceUnavailable
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		components["redis"] = "outage"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, h.logger, status, map[string]interface{}{
		"components":     components,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// GetAuditEvents returns a page of audit events, newest first.
func (h *SystemHandler) GetAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	events, err := h.auditStore.FindAll(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to fetch audit events", map[string]interface{}{"error": err.Error()})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch audit events")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

// GetSessionAuditEvents returns the audit trail of one KYC session.
func (h *SystemHandler) GetSessionAuditEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["session_id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	events, err := h.auditStore.FindBySessionID(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to fetch session audit events", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch session audit events")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"events":     events,
	})
}
