// Package audit implements the write-only compliance event sink. Events are
// emitted fire-and-forget: callers never block on or inspect delivery.
package audit

import (
	"context"
	"time"

	"kycdoc/internal/domain"
	"kycdoc/pkg/logger"

	"github.com/google/uuid"
)

// Repository defines audit event persistence.
type Repository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
}

// Sink accepts structured audit events.
type Sink interface {
	Emit(event *domain.AuditEvent)
}

// Service is the asynchronous sink implementation: a buffered channel feeds
// a background worker that writes through the repository. A full buffer
// drops the event rather than blocking the workflow.
type Service struct {
	repo   Repository
	logger logger.Logger
	events chan *domain.AuditEvent
}

// NewService creates the sink and starts its worker.
func NewService(repo Repository, log logger.Logger) *Service {
	service := &Service{
		repo:   repo,
		logger: log,
		events: make(chan *domain.AuditEvent, 256),
	}

	go service.startWorker()

	return service
}

// Emit queues an event for persistence. Never blocks.
func (s *Service) Emit(event *domain.AuditEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	select {
	case s.events <- event:
	default:
		s.logger.Warn("audit event dropped, buffer full", map[string]interface{}{
			"event_type": event.EventType,
		})
	}
}

func (s *Service) startWorker() {
	for event := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, event); err != nil {
			s.logger.Error("failed to persist audit event", map[string]interface{}{
				"event_type": event.EventType,
				"error":      err.Error(),
			})
		}
		cancel()
	}
}

// NewNop returns a sink that discards everything. Used in tests.
func NewNop() Sink {
	return nopSink{}
}

type nopSink struct{}

func (nopSink) Emit(event *domain.AuditEvent) {}
