package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := map[AppointmentStatus][]AppointmentStatus{
		AppointmentStatusPending:  {AppointmentStatusApproved, AppointmentStatusRejected, AppointmentStatusCancelled},
		AppointmentStatusApproved: {AppointmentStatusCompleted, AppointmentStatusCancelled},
	}
	all := []AppointmentStatus{
		AppointmentStatusPending, AppointmentStatusApproved, AppointmentStatusRejected,
		AppointmentStatusCancelled, AppointmentStatusCompleted,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestAppointmentStatusFlags(t *testing.T) {
	assert.True(t, AppointmentStatusPending.Active())
	assert.True(t, AppointmentStatusApproved.Active())
	assert.True(t, AppointmentStatusCompleted.Active())
	assert.False(t, AppointmentStatusRejected.Active())
	assert.False(t, AppointmentStatusCancelled.Active())

	assert.True(t, AppointmentStatusApproved.Immutable())
	assert.True(t, AppointmentStatusCompleted.Immutable())
	for _, s := range []AppointmentStatus{AppointmentStatusPending, AppointmentStatusRejected, AppointmentStatusCancelled} {
		assert.False(t, s.Immutable(), string(s))
	}
}

func TestAppointmentEvent(t *testing.T) {
	assert.Equal(t, "appointment.cancelled", AppointmentEvent(AppointmentStatusCancelled))
}
