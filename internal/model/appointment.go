package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusApproved  AppointmentStatus = "approved"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Active appointments block the creation of another one for the same request.
func (s AppointmentStatus) Active() bool {
	return s != AppointmentStatusRejected && s != AppointmentStatusCancelled
}

// Immutable appointments accept no field updates and no deletion.
func (s AppointmentStatus) Immutable() bool {
	return s == AppointmentStatusApproved || s == AppointmentStatusCompleted
}

// transitionSources lists, per target status, the states it may be reached from.
var transitionSources = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusApproved:  {AppointmentStatusPending},
	AppointmentStatusRejected:  {AppointmentStatusPending},
	AppointmentStatusCompleted: {AppointmentStatusApproved},
	AppointmentStatusCancelled: {AppointmentStatusPending, AppointmentStatusApproved},
}

// TransitionSources returns the states from which target is reachable.
func TransitionSources(target AppointmentStatus) []AppointmentStatus {
	return transitionSources[target]
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to AppointmentStatus) bool {
	for _, s := range transitionSources[to] {
		if s == from {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	RequestID uuid.UUID         `db:"request_id" json:"request_id"`
	UserID    uuid.UUID         `db:"user_id" json:"user_id"`
	StaffID   *uuid.UUID        `db:"staff_id" json:"staff_id,omitempty"`
	Date      time.Time         `db:"date" json:"date"`
	Time      string            `db:"time" json:"time"`
	Notes     string            `db:"notes" json:"notes,omitempty"`
	Status    AppointmentStatus `db:"status" json:"status"`
}

type CreateAppointmentRequest struct {
	RequestID uuid.UUID  `json:"request_id" binding:"required" validate:"required"`
	StaffID   *uuid.UUID `json:"staff_id"`
	Date      time.Time  `json:"date" binding:"required" validate:"required"`
	Time      string     `json:"time" validate:"omitempty,len=5"`
	Notes     string     `json:"notes" validate:"max=1000"`
}

type UpdateAppointmentRequest struct {
	Date  *time.Time `json:"date"`
	Time  *string    `json:"time" validate:"omitempty,len=5"`
	Notes *string    `json:"notes" validate:"omitempty,max=1000"`
}

type DecideAppointmentRequest struct {
	Action Decision `json:"action" binding:"required" validate:"required,oneof=approve reject"`
}

type AppointmentFilter struct {
	RequestID *uuid.UUID
	UserID    *uuid.UUID
	OfficeID  *uuid.UUID
	Status    AppointmentStatus
	Pagination
}
