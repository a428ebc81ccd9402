package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/pkg/logger"
)

// Notifier receives workflow events after the state change has been committed.
type Notifier interface {
	Notify(ctx context.Context, event model.NotificationEvent)
}

type EventService struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewEventService(outboxRepo repository.OutboxRepository, log *logger.Logger) *EventService {
	return &EventService{
		outboxRepo: outboxRepo,
		logger:     log,
	}
}

// Emit stores the payload in the outbox for the worker to publish.
func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Notify emits a notification event. Failures are logged and never reach the
// caller, whose transition has already committed.
func (s *EventService) Notify(ctx context.Context, event model.NotificationEvent) {
	ctx = context.WithoutCancel(ctx)
	if err := s.Emit(ctx, event.Type, event); err != nil {
		s.logger.Warn("failed to emit notification event",
			"event_type", event.Type,
			"request_id", event.RequestID.String(),
			"error", err.Error(),
		)
	}
}

var _ Notifier = (*EventService)(nil)
