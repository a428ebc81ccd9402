package model

import (
	"github.com/google/uuid"
)

// Event types emitted by the workflow and lifecycle services.
const (
	EventRequestCreated         = "request.created"
	EventRequestStaffApproved   = "request.staff_approved"
	EventRequestStaffRejected   = "request.staff_rejected"
	EventRequestManagerApproved = "request.manager_approved"
	EventRequestManagerRejected = "request.manager_rejected"
	EventRequestFullyApproved   = "request.fully_approved"
	EventAppointmentCreated     = "appointment.created"
)

// AppointmentEvent names the event for a lifecycle transition.
func AppointmentEvent(status AppointmentStatus) string {
	return "appointment." + string(status)
}

// NotificationEvent is the outbox payload for every notification.
type NotificationEvent struct {
	Type          string         `json:"type"`
	RecipientIDs  []uuid.UUID    `json:"recipient_ids"`
	RequestID     uuid.UUID      `json:"request_id"`
	AppointmentID *uuid.UUID     `json:"appointment_id,omitempty"`
	ActorID       uuid.UUID      `json:"actor_id"`
	Status        CombinedStatus `json:"status,omitempty"`
	Note          *string        `json:"note,omitempty"`
}
