package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository/memstore"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/messaging"
	"github.com/jwalitptl/office-portal/pkg/metrics"
	"github.com/jwalitptl/office-portal/pkg/notify"
)

type sent struct {
	destination string
	msg         notify.Message
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (d *fakeDispatcher) Send(_ context.Context, destination string, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, sent{destination, msg})
	return nil
}

func encode(t *testing.T, event model.NotificationEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	raw, err := json.Marshal(messaging.Message{ID: uuid.NewString(), Type: event.Type, Payload: payload})
	require.NoError(t, err)
	return raw
}

func TestHandleDeliversToRecipientsWithEmail(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New().Repositories()

	email := "alice@example.com"
	alice := &model.User{Phone: "+15550001", Name: "Alice", Email: &email, IsActive: true}
	require.NoError(t, repos.Users.Create(ctx, alice))
	noEmail := &model.User{Phone: "+15550002", Name: "Bob", IsActive: true}
	require.NoError(t, repos.Users.Create(ctx, noEmail))

	dispatcher := &fakeDispatcher{}
	c := NewConsumer(nil, "notifications", repos.Users, dispatcher, logger.Nop(), metrics.NewNop())

	note := "bring your passport"
	err := c.Handle(ctx, encode(t, model.NotificationEvent{
		Type:         model.EventRequestFullyApproved,
		RecipientIDs: []uuid.UUID{alice.ID, noEmail.ID},
		RequestID:    uuid.New(),
		Note:         &note,
	}))
	require.NoError(t, err)

	require.Len(t, dispatcher.sent, 1)
	assert.Equal(t, email, dispatcher.sent[0].destination)
	assert.Equal(t, "request fully approved", dispatcher.sent[0].msg.Subject)
	assert.Contains(t, dispatcher.sent[0].msg.Body, note)
}

func TestHandleFallsBackToPhone(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New().Repositories()

	email := "alice@example.com"
	alice := &model.User{Phone: "+15550001", Name: "Alice", Email: &email, IsActive: true}
	require.NoError(t, repos.Users.Create(ctx, alice))
	bob := &model.User{Phone: "+15550002", Name: "Bob", IsActive: true}
	require.NoError(t, repos.Users.Create(ctx, bob))

	var buf bytes.Buffer
	dispatcher := notify.NewLogDispatcher(logger.New(&logger.Config{Level: logger.InfoLevel, Output: &buf}))
	m := metrics.NewNop()
	c := NewConsumer(nil, "notifications", repos.Users, dispatcher, logger.Nop(), m)

	err := c.Handle(ctx, encode(t, model.NotificationEvent{
		Type:         model.EventRequestCreated,
		RecipientIDs: []uuid.UUID{alice.ID, bob.ID},
		RequestID:    uuid.New(),
	}))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), email)
	assert.Contains(t, buf.String(), bob.Phone)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.NotificationsSent.WithLabelValues(model.EventRequestCreated, "sent")))
	assert.Zero(t, testutil.ToFloat64(m.NotificationsSent.WithLabelValues(model.EventRequestCreated, "skipped")))
}

func TestHandleReportsFailures(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New().Repositories()

	email := "alice@example.com"
	alice := &model.User{Phone: "+15550001", Email: &email, IsActive: true}
	require.NoError(t, repos.Users.Create(ctx, alice))

	dispatcher := &fakeDispatcher{err: errors.New("smtp down")}
	c := NewConsumer(nil, "notifications", repos.Users, dispatcher, logger.Nop(), metrics.NewNop())

	err := c.Handle(ctx, encode(t, model.NotificationEvent{
		Type:         model.EventRequestCreated,
		RecipientIDs: []uuid.UUID{alice.ID, uuid.New()},
	}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "smtp down")
	assert.ErrorContains(t, err, "failed to get recipient")

	assert.Error(t, c.Handle(ctx, []byte("not json")))
}

func TestBuildMessageForAppointment(t *testing.T) {
	appointmentID := uuid.New()
	msg := buildMessage(model.NotificationEvent{
		Type:          model.AppointmentEvent(model.AppointmentStatusCancelled),
		RequestID:     uuid.New(),
		AppointmentID: &appointmentID,
	})
	assert.Equal(t, "appointment cancelled", msg.Subject)
	assert.Contains(t, msg.Body, appointmentID.String())
}
