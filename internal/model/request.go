package model

import (
	"time"

	"github.com/google/uuid"
)

// TrackStatus is the state of one approval track.
type TrackStatus string

const (
	TrackPending  TrackStatus = "pending"
	TrackApproved TrackStatus = "approved"
	TrackRejected TrackStatus = "rejected"
)

func (s TrackStatus) Valid() bool {
	return s == TrackPending || s == TrackApproved || s == TrackRejected
}

// Track names one of the two independent approval dimensions.
type Track string

const (
	TrackStaff   Track = "staff"
	TrackManager Track = "manager"
)

// CombinedStatus is derived from both tracks and never stored.
type CombinedStatus string

const (
	CombinedPending       CombinedStatus = "pending"
	CombinedRejected      CombinedStatus = "rejected"
	CombinedFullyApproved CombinedStatus = "fully_approved"
)

// Combine derives the request status. Rejection on either track wins over approval.
func Combine(staff, manager TrackStatus) CombinedStatus {
	switch {
	case staff == TrackRejected || manager == TrackRejected:
		return CombinedRejected
	case staff == TrackApproved && manager == TrackApproved:
		return CombinedFullyApproved
	default:
		return CombinedPending
	}
}

// Decision is the outcome an approver asks for.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) TrackStatus() TrackStatus {
	if d == DecisionApprove {
		return TrackApproved
	}
	return TrackRejected
}

// Request is a citizen's service request with two approval tracks.
// ApprovingStaffID and ApprovingManagerID hold the approver's user id.
type Request struct {
	Base
	RequesterID        uuid.UUID   `db:"requester_id" json:"requester_id"`
	ServiceID          uuid.UUID   `db:"service_id" json:"service_id"`
	Address            string      `db:"address" json:"address"`
	RequestedDate      *time.Time  `db:"requested_date" json:"requested_date,omitempty"`
	StatusByStaff      TrackStatus `db:"status_by_staff" json:"status_by_staff"`
	ApprovingStaffID   *uuid.UUID  `db:"approving_staff_id" json:"approving_staff_id,omitempty"`
	StatusByManager    TrackStatus `db:"status_by_manager" json:"status_by_manager"`
	ApprovingManagerID *uuid.UUID  `db:"approving_manager_id" json:"approving_manager_id,omitempty"`
	ApproveNote        *string     `db:"approve_note" json:"approve_note,omitempty"`
}

func (r *Request) Status() CombinedStatus {
	return Combine(r.StatusByStaff, r.StatusByManager)
}

func (r *Request) FullyApproved() bool {
	return r.Status() == CombinedFullyApproved
}

// Editable reports whether the requester may still change the request.
func (r *Request) Editable() bool {
	return r.StatusByStaff == TrackPending && r.StatusByManager == TrackPending
}

// TrackState returns the status and approver of a track.
func (r *Request) TrackState(t Track) (TrackStatus, *uuid.UUID) {
	if t == TrackManager {
		return r.StatusByManager, r.ApprovingManagerID
	}
	return r.StatusByStaff, r.ApprovingStaffID
}

// RequestView is the read projection including the derived status.
type RequestView struct {
	*Request
	Status CombinedStatus `json:"status"`
}

func NewRequestView(r *Request) RequestView {
	return RequestView{Request: r, Status: r.Status()}
}

// TrackDecision is the atomic update applied to one track. ExpectServiceID
// pins the service the scope check was performed against.
type TrackDecision struct {
	RequestID       uuid.UUID
	Track           Track
	Decision        Decision
	ApproverID      uuid.UUID
	Note            *string
	ExpectServiceID uuid.UUID
}

// RequestFilter narrows list queries. Zero values mean "any".
type RequestFilter struct {
	RequesterID *uuid.UUID
	OfficeID    *uuid.UUID
	StaffID     *uuid.UUID // requests of services the staff member is assigned to
	Pagination
}

type CreateRequestRequest struct {
	ServiceID     uuid.UUID  `json:"service_id" binding:"required" validate:"required"`
	Address       string     `json:"address" validate:"max=500"`
	RequestedDate *time.Time `json:"requested_date"`
}

type UpdateRequestRequest struct {
	ServiceID     *uuid.UUID `json:"service_id"`
	Address       *string    `json:"address" validate:"omitempty,max=500"`
	RequestedDate *time.Time `json:"requested_date"`
}

type DecideRequestRequest struct {
	Action Decision `json:"action" binding:"required" validate:"required,oneof=approve reject"`
	Note   *string  `json:"note" validate:"omitempty,max=1000"`
}

// AdminUpdateRequest overrides approval fields directly.
type AdminUpdateRequest struct {
	StatusByStaff   *TrackStatus `json:"status_by_staff" validate:"omitempty,oneof=pending approved rejected"`
	StatusByManager *TrackStatus `json:"status_by_manager" validate:"omitempty,oneof=pending approved rejected"`
	ApproveNote     *string      `json:"approve_note" validate:"omitempty,max=1000"`
}
