package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/messaging"
	"github.com/jwalitptl/office-portal/pkg/metrics"
	"github.com/jwalitptl/office-portal/pkg/notify"
)

// Consumer turns published workflow events into dispatcher sends. A failed
// send is logged and counted; it never affects the workflow that emitted it.
type Consumer struct {
	broker     messaging.Broker
	channel    string
	users      repository.UserRepository
	dispatcher notify.Dispatcher
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewConsumer(
	broker messaging.Broker,
	channel string,
	users repository.UserRepository,
	dispatcher notify.Dispatcher,
	log *logger.Logger,
	m *metrics.Metrics,
) *Consumer {
	return &Consumer{
		broker:     broker,
		channel:    channel,
		users:      users,
		dispatcher: dispatcher,
		logger:     log,
		metrics:    m,
	}
}

// Run consumes until ctx is cancelled or the subscription closes.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.broker.Subscribe(ctx, c.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}
	c.logger.Info("Notification consumer started", "channel", c.channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			if err := c.Handle(ctx, raw); err != nil {
				c.logger.Warn("Failed to handle notification", "error", err.Error())
			}
		}
	}
}

// Handle delivers one broker message to every recipient the dispatcher can
// address. Recipients without a usable destination are skipped.
func (c *Consumer) Handle(ctx context.Context, raw []byte) error {
	var msg messaging.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	var event model.NotificationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("failed to decode event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = msg.Type
	}

	var errs []error
	for _, id := range event.RecipientIDs {
		if err := c.deliver(ctx, id, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Consumer) deliver(ctx context.Context, userID uuid.UUID, event model.NotificationEvent) error {
	user, err := c.users.Get(ctx, userID)
	if err != nil {
		c.count(event.Type, "error")
		return fmt.Errorf("failed to get recipient %s: %w", userID, err)
	}
	destination := notify.Address(c.dispatcher, recipientOf(user))
	if destination == "" {
		c.count(event.Type, "skipped")
		return nil
	}

	if err := c.dispatcher.Send(ctx, destination, buildMessage(event)); err != nil {
		c.count(event.Type, "error")
		c.logger.Warn("Notification dispatch failed",
			"event_type", event.Type,
			"user_id", userID.String(),
			"error", err.Error())
		return err
	}
	c.count(event.Type, "sent")
	return nil
}

func (c *Consumer) count(eventType, result string) {
	if c.metrics != nil {
		c.metrics.NotificationsSent.WithLabelValues(eventType, result).Inc()
	}
}

func recipientOf(user *model.User) notify.Recipient {
	r := notify.Recipient{Phone: user.Phone}
	if user.Email != nil {
		r.Email = *user.Email
	}
	return r
}

func buildMessage(event model.NotificationEvent) notify.Message {
	subject := strings.ReplaceAll(strings.ReplaceAll(event.Type, ".", " "), "_", " ")
	body := fmt.Sprintf("Request %s: %s", event.RequestID, subject)
	if event.AppointmentID != nil {
		body = fmt.Sprintf("Appointment %s for request %s: %s", *event.AppointmentID, event.RequestID, subject)
	}
	if event.Note != nil && *event.Note != "" {
		body += "\n\n" + *event.Note
	}
	return notify.Message{Subject: subject, Body: body}
}
