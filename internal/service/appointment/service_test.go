package appointment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/appointment"
	"github.com/jwalitptl/office-portal/internal/service/servicetest"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
)

type fixture struct {
	*servicetest.World
	svc      *appointment.Service
	notifier *servicetest.Notifier

	office   *model.Office
	service  *model.Service
	request  *model.Request
	alice    *model.User
	bob      *model.User
	bobStaff *model.Staff
	carol     *model.User
	dave      *model.User
	daveStaff *model.Staff
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := servicetest.New(t)
	f := &fixture{World: w, notifier: &servicetest.Notifier{}}
	f.svc = appointment.NewService(w.Repos.Appointments, w.Guard, w.Scope, f.notifier, w.Logger, w.Metrics)

	f.office = w.Office(t, "A")
	officeB := w.Office(t, "B")
	f.service = w.Service(t, f.office.ID, "passports")

	f.alice = w.User(t, "alice", model.RoleKindCustomer)
	f.bob = w.User(t, "bob", model.RoleKindStaff)
	f.bobStaff = w.Staff(t, f.bob.ID, f.office.ID)
	f.carol = w.User(t, "carol", model.RoleKindManager)
	w.Staff(t, f.carol.ID, f.office.ID)
	f.dave = w.User(t, "dave", model.RoleKindManager)
	f.daveStaff = w.Staff(t, f.dave.ID, officeB.ID)

	f.request = w.Request(t, f.alice.ID, f.service.ID)
	return f
}

func (f *fixture) approve(t *testing.T) {
	t.Helper()
	f.Approve(t, f.request, f.carol.ID)
}

func (f *fixture) book(t *testing.T, actorID uuid.UUID) *model.Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), actorID, model.CreateAppointmentRequest{
		RequestID: f.request.ID,
		Date:      time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		Time:      "09:30",
	})
	require.NoError(t, err)
	return a
}

func assertConflict(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, reason, apperrors.ReasonOf(err))
}

func assertForbidden(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, reason, apperrors.ReasonOf(err))
}

func TestCreateRequiresFullyApprovedRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := model.CreateAppointmentRequest{RequestID: f.request.ID, Date: time.Now()}
	_, err := f.svc.Create(ctx, f.alice.ID, req)
	assertConflict(t, err, apperrors.ReasonNotFullyApproved)

	f.request.StatusByStaff = model.TrackApproved
	require.NoError(t, f.Repos.Requests.OverrideApproval(ctx, f.request))
	_, err = f.svc.Create(ctx, f.alice.ID, req)
	assertConflict(t, err, apperrors.ReasonNotFullyApproved)

	f.approve(t)
	a, err := f.svc.Create(ctx, f.alice.ID, req)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, a.Status)
	assert.Equal(t, f.alice.ID, a.UserID)
	assert.Nil(t, a.StaffID)
	assert.Equal(t, []string{model.EventAppointmentCreated}, f.notifier.Types())
}

func TestCreateByStaffAssignsThemselves(t *testing.T) {
	f := newFixture(t)
	f.approve(t)

	a := f.book(t, f.bob.ID)
	require.NotNil(t, a.StaffID)
	assert.Equal(t, f.bobStaff.ID, *a.StaffID)
	assert.Equal(t, f.alice.ID, a.UserID)
}

func TestCreateOutOfScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approve(t)

	_, err := f.svc.Create(ctx, f.dave.ID, model.CreateAppointmentRequest{RequestID: f.request.ID, Date: time.Now()})
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	mallory := f.User(t, "mallory", model.RoleKindCustomer)
	_, err = f.svc.Create(ctx, mallory.ID, model.CreateAppointmentRequest{RequestID: f.request.ID, Date: time.Now()})
	assertForbidden(t, err, apperrors.ReasonOutOfScope)
}

func TestCreateWithExplicitStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approve(t)

	req := model.CreateAppointmentRequest{RequestID: f.request.ID, Date: time.Now(), StaffID: &f.daveStaff.ID}
	_, err := f.svc.Create(ctx, f.carol.ID, req)
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	_, err = f.svc.Create(ctx, f.alice.ID, req)
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	unknown := uuid.New()
	req.StaffID = &unknown
	_, err = f.svc.Create(ctx, f.carol.ID, req)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	list, err := f.svc.List(ctx, f.alice.ID, model.AppointmentFilter{RequestID: &f.request.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.notifier.Types())

	req.StaffID = &f.bobStaff.ID
	a, err := f.svc.Create(ctx, f.carol.ID, req)
	require.NoError(t, err)
	require.NotNil(t, a.StaffID)
	assert.Equal(t, f.bobStaff.ID, *a.StaffID)

	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.ElementsMatch(t, []uuid.UUID{f.alice.ID, f.bob.ID}, events[0].RecipientIDs)
}

func TestOneActiveAppointmentPerRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approve(t)

	first := f.book(t, f.alice.ID)

	_, err := f.svc.Create(ctx, f.alice.ID, model.CreateAppointmentRequest{RequestID: f.request.ID, Date: time.Now()})
	assertConflict(t, err, apperrors.ReasonActiveAppointment)

	_, err = f.svc.Cancel(ctx, f.alice.ID, first.ID)
	require.NoError(t, err)

	second := f.book(t, f.alice.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestConcurrentCreatesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approve(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, f.alice.ID, model.CreateAppointmentRequest{RequestID: f.request.ID, Date: time.Now()})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assertConflict(t, err, apperrors.ReasonActiveAppointment)
	}
	assert.Equal(t, 1, ok)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approve(t)
	a := f.book(t, f.alice.ID)

	_, err := f.svc.Decide(ctx, f.alice.ID, a.ID, model.DecideAppointmentRequest{Action: model.DecisionApprove})
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	_, err = f.svc.Complete(ctx, f.bob.ID, a.ID)
	assertConflict(t, err, apperrors.ReasonIllegalTransition)

	approved, err := f.svc.Decide(ctx, f.bob.ID, a.ID, model.DecideAppointmentRequest{Action: model.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusApproved, approved.Status)

	notes := "bring documents"
	_, err = f.svc.Update(ctx, f.alice.ID, a.ID, model.UpdateAppointmentRequest{Notes: &notes})
	assertConflict(t, err, apperrors.ReasonImmutable)
	assertConflict(t, f.svc.Delete(ctx, f.alice.ID, a.ID), apperrors.ReasonImmutable)

	completed, err := f.svc.Complete(ctx, f.carol.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)

	_, err = f.svc.Cancel(ctx, f.alice.ID, a.ID)
	assertConflict(t, err, apperrors.ReasonImmutable)

	assert.Equal(t, []string{
		model.EventAppointmentCreated,
		model.AppointmentEvent(model.AppointmentStatusApproved),
		model.AppointmentEvent(model.AppointmentStatusCompleted),
	}, f.notifier.Types())

	_, err = f.svc.Create(ctx, f.alice.ID, model.CreateAppointmentRequest{RequestID: f.request.ID, Date: time.Now()})
	assertConflict(t, err, apperrors.ReasonActiveAppointment)
}

func TestRejectedAppointmentStaysEditable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approve(t)
	a := f.book(t, f.alice.ID)

	rejected, err := f.svc.Decide(ctx, f.carol.ID, a.ID, model.DecideAppointmentRequest{Action: model.DecisionReject})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusRejected, rejected.Status)

	_, err = f.svc.Cancel(ctx, f.alice.ID, a.ID)
	assertConflict(t, err, apperrors.ReasonIllegalTransition)

	notes := "rebooked by phone"
	updated, err := f.svc.Update(ctx, f.alice.ID, a.ID, model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)

	require.NoError(t, f.svc.Delete(ctx, f.alice.ID, a.ID))
	_, err = f.svc.Get(ctx, f.alice.ID, a.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestReadAndListScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approve(t)
	a := f.book(t, f.alice.ID)

	for _, id := range []uuid.UUID{f.alice.ID, f.bob.ID, f.carol.ID} {
		_, err := f.svc.Get(ctx, id, a.ID)
		assert.NoError(t, err)
	}
	_, err := f.svc.Get(ctx, f.dave.ID, a.ID)
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	list, err := f.svc.List(ctx, f.dave.ID, model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.svc.List(ctx, f.carol.ID, model.AppointmentFilter{Status: model.AppointmentStatusPending})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.List(ctx, f.alice.ID, model.AppointmentFilter{RequestID: &f.request.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
