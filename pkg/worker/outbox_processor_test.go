package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/messaging"
	"github.com/jwalitptl/office-portal/pkg/metrics"
)

type fakeOutbox struct {
	mu      sync.Mutex
	events  map[uuid.UUID]*model.OutboxEvent
	retryAt map[uuid.UUID]time.Time
	purged  time.Time
}

func newFakeOutbox(events ...*model.OutboxEvent) *fakeOutbox {
	f := &fakeOutbox{events: map[uuid.UUID]*model.OutboxEvent{}, retryAt: map[uuid.UUID]time.Time{}}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = event
	return nil
}

func (f *fakeOutbox) ClaimPending(_ context.Context, limit int, _ time.Duration) ([]*model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range f.events {
		if len(out) == limit {
			break
		}
		if e.Status == model.OutboxStatusPending || e.Status == model.OutboxStatusRetry {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkProcessed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id].Status = model.OutboxStatusProcessed
	return nil
}

func (f *fakeOutbox) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id]
	e.Status = model.OutboxStatusRetry
	e.ErrorMessage = &errMsg
	e.RetryCount++
	f.retryAt[id] = retryAt
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id]
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errMsg
	e.RetryCount++
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = before
	return 0, nil
}

func (f *fakeOutbox) get(id uuid.UUID) model.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.events[id]
}

var _ repository.OutboxRepository = (*fakeOutbox)(nil)

type fakeBroker struct {
	mu        sync.Mutex
	failures  int
	published []messaging.Message
}

func (b *fakeBroker) Publish(_ context.Context, _ string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

func pendingEvent(eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   json.RawMessage(`{"type":"` + eventType + `"}`),
		Status:    model.OutboxStatusPending,
	}
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		Channel:       "notifications",
		BatchSize:     10,
		PollInterval:  time.Second,
		MaxAttempts:   3,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 4 * time.Millisecond,
	}
}

func TestProcessBatchPublishes(t *testing.T) {
	event := pendingEvent(model.EventRequestCreated)
	repo := newFakeOutbox(event)
	broker := &fakeBroker{}
	m := metrics.NewNop()
	p := NewOutboxProcessor(repo, broker, testConfig(), logger.Nop(), m)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, broker.published, 1)
	assert.Equal(t, event.ID.String(), broker.published[0].ID)
	assert.Equal(t, model.EventRequestCreated, broker.published[0].Type)
	assert.JSONEq(t, string(event.Payload), string(broker.published[0].Payload))
	assert.Equal(t, model.OutboxStatusProcessed, repo.get(event.ID).Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestProcessBatchSchedulesRetry(t *testing.T) {
	event := pendingEvent(model.EventRequestCreated)
	repo := newFakeOutbox(event)
	p := NewOutboxProcessor(repo, &fakeBroker{failures: 1}, testConfig(), logger.Nop(), metrics.NewNop())
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got := repo.get(event.ID)
	assert.Equal(t, model.OutboxStatusRetry, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "broker unavailable", *got.ErrorMessage)
	assert.Equal(t, now.Add(time.Millisecond), repo.retryAt[event.ID])

	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, repo.get(event.ID).Status)
}

func TestProcessBatchMarksFailedAfterMaxAttempts(t *testing.T) {
	event := pendingEvent(model.EventRequestCreated)
	event.RetryCount = 2
	event.Status = model.OutboxStatusRetry
	repo := newFakeOutbox(event)
	m := metrics.NewNop()
	p := NewOutboxProcessor(repo, &fakeBroker{failures: 1}, testConfig(), logger.Nop(), m)

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	got := repo.get(event.ID)
	assert.Equal(t, model.OutboxStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestPublishTriesRetryWithinOnePoll(t *testing.T) {
	event := pendingEvent(model.EventRequestCreated)
	repo := newFakeOutbox(event)
	cfg := testConfig()
	cfg.PublishTries = 3
	p := NewOutboxProcessor(repo, &fakeBroker{failures: 2}, cfg, logger.Nop(), metrics.NewNop())

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, repo.get(event.ID).RetryCount)
}

func TestRetryDelayIsCapped(t *testing.T) {
	p := NewOutboxProcessor(newFakeOutbox(), &fakeBroker{}, testConfig(), logger.Nop(), metrics.NewNop())

	assert.Equal(t, time.Millisecond, p.retryDelay(0))
	assert.Equal(t, 2*time.Millisecond, p.retryDelay(1))
	assert.Equal(t, 4*time.Millisecond, p.retryDelay(2))
	assert.Equal(t, 4*time.Millisecond, p.retryDelay(10))
}

func TestCleanupUsesRetention(t *testing.T) {
	repo := newFakeOutbox()
	cfg := testConfig()
	cfg.Retention = time.Hour
	p := NewOutboxProcessor(repo, &fakeBroker{}, cfg, logger.Nop(), metrics.NewNop())
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	require.NoError(t, p.cleanup(context.Background()))
	assert.Equal(t, now.Add(-time.Hour), repo.purged)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Channel = ""
	assert.Panics(t, func() {
		NewOutboxProcessor(newFakeOutbox(), &fakeBroker{}, cfg, logger.Nop(), metrics.NewNop())
	})
}
