package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

func TestOutboxCreate(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewOutboxRepository(base)

	payload := json.RawMessage(`{"type":"request.created"}`)
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs(sqlmock.AnyArg(), "request.created", []byte(payload), "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &model.OutboxEvent{EventType: "request.created", Payload: payload}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, model.OutboxStatusPending, event.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxCreateRejectsEmptyPayload(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewOutboxRepository(base)

	assert.Error(t, repo.Create(context.Background(), nil))
	assert.Error(t, repo.Create(context.Background(), &model.OutboxEvent{EventType: "x"}))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxClaimPending(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewOutboxRepository(base)

	id := uuid.New()
	now := time.Now()
	leaseEnd := now.Add(30 * time.Second)
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "error_message", "retry_count",
		"retry_at", "created_at", "processed_at", "updated_at",
	}).AddRow(
		id.String(), "appointment.approved", []byte(`{"type":"appointment.approved"}`), "retry", "smtp down", int64(2),
		leaseEnd, now, nil, now,
	)
	mock.ExpectQuery(`UPDATE outbox_events\s+SET retry_at = NOW\(\) \+ make_interval\(secs => \$2\).*FOR UPDATE SKIP LOCKED`).
		WithArgs(10, float64(30)).
		WillReturnRows(rows)

	events, err := repo.ClaimPending(context.Background(), 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, id, event.ID)
	assert.Equal(t, model.OutboxStatusRetry, event.Status)
	assert.Equal(t, 2, event.RetryCount)
	require.NotNil(t, event.ErrorMessage)
	assert.Equal(t, "smtp down", *event.ErrorMessage)
	assert.JSONEq(t, `{"type":"appointment.approved"}`, string(event.Payload))
	assert.Nil(t, event.ProcessedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkers(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewOutboxRepository(base)
	ctx := context.Background()
	id := uuid.New()
	retryAt := time.Now().Add(time.Minute)

	mock.ExpectExec(`SET status = 'processed'`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET status = 'retry'.*retry_count = retry_count \+ 1`).
		WithArgs(id, "timeout", retryAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET status = 'failed'`).WithArgs(id, "gave up").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkProcessed(ctx, id))
	require.NoError(t, repo.MarkRetry(ctx, id, "timeout", retryAt))
	assert.ErrorIs(t, repo.MarkFailed(ctx, id, "gave up"), repository.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxDeleteProcessedBefore(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewOutboxRepository(base)
	before := time.Now().Add(-24 * time.Hour)

	mock.ExpectExec(`DELETE FROM outbox_events`).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteProcessedBefore(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	require.NoError(t, mock.ExpectationsWereMet())
}
