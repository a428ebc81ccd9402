package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/messaging"
	"github.com/jwalitptl/office-portal/pkg/metrics"
)

type OutboxProcessorConfig struct {
	Channel       string
	BatchSize     int
	PollInterval  time.Duration
	Lease         time.Duration
	PublishTries  uint64        // publish attempts within one poll
	MaxAttempts   int           // polls before an event is marked failed
	RetryDelay    time.Duration // base delay between polls, doubled per attempt
	MaxRetryDelay time.Duration
	Retention     time.Duration // processed events older than this are purged
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.Channel == "" {
		panic("Channel must be set")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.Lease <= 0 {
		config.Lease = 30 * time.Second
	}
	if config.PublishTries == 0 {
		config.PublishTries = 1
	}
	if config.MaxRetryDelay <= 0 {
		config.MaxRetryDelay = 10 * time.Minute
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
			if err := p.cleanup(ctx); err != nil {
				p.logger.Error(err, "Failed to purge processed events")
			}
		}
	}
}

// ProcessBatch claims due events and publishes them, returning how many were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "error").Inc()
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "success").Inc()

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Warn("Failed to publish event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"attempt", event.RetryCount+1,
				"error", err.Error())
			continue
		}
		published++
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:      event.ID.String(),
		Type:    event.EventType,
		Payload: event.Payload,
	}
	err := retry(ctx, p.config.PublishTries, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, p.config.Channel, msg)
	})

	if err != nil {
		return p.handleFailure(ctx, event, err)
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	return nil
}

func (p *OutboxProcessor) handleFailure(ctx context.Context, event *model.OutboxEvent, cause error) error {
	errStr := cause.Error()
	if event.RetryCount+1 >= p.config.MaxAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if err := p.repo.MarkFailed(ctx, event.ID, errStr); err != nil {
			p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		}
		return cause
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.retryDelay(event.RetryCount))
	if err := p.repo.MarkRetry(ctx, event.ID, errStr, retryAt); err != nil {
		p.logger.Error(err, "Failed to schedule event retry", "event_id", event.ID.String())
	}
	return cause
}

// retryDelay doubles the base delay per prior attempt, capped at MaxRetryDelay.
func (p *OutboxProcessor) retryDelay(attempt int) time.Duration {
	delay := p.config.RetryDelay
	for i := 0; i < attempt && delay < p.config.MaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > p.config.MaxRetryDelay {
		delay = p.config.MaxRetryDelay
	}
	return delay
}

func (p *OutboxProcessor) cleanup(ctx context.Context) error {
	if p.config.Retention <= 0 {
		return nil
	}
	n, err := p.repo.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Debug("Purged processed events", "count", n)
	}
	return nil
}

// retry runs fn up to tries times with exponential backoff starting at delay.
func retry(ctx context.Context, tries uint64, delay time.Duration, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxElapsedTime = 0
	return backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(b, tries-1), ctx))
}
