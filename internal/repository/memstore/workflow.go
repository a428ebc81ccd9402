package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

// requests

type requestRepo Store

func (r *requestRepo) Create(_ context.Context, request *model.Request) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[request.ServiceID]; !ok {
		return notFound("create request")
	}
	s.stamp(&request.Base)
	request.StatusByStaff = model.TrackPending
	request.StatusByManager = model.TrackPending
	s.requests[request.ID] = *request
	return nil
}

func (r *requestRepo) Get(_ context.Context, id uuid.UUID) (*model.Request, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, notFound("get request")
	}
	return &req, nil
}

func (r *requestRepo) List(_ context.Context, filter model.RequestFilter) ([]*model.Request, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Request, 0)
	for _, req := range s.requests {
		if filter.RequesterID != nil && req.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.OfficeID != nil && s.services[req.ServiceID].OfficeID != *filter.OfficeID {
			continue
		}
		if filter.StaffID != nil {
			key := model.ServiceStaffAssignment{ServiceID: req.ServiceID, StaffID: *filter.StaffID}
			if _, ok := s.assignments[key]; !ok {
				continue
			}
		}
		out = append(out, ptr(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Pagination), nil
}

func (r *requestRepo) UpdateDetails(_ context.Context, request *model.Request) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[request.ID]
	if !ok || !current.Editable() {
		return stale("update request")
	}
	current.ServiceID = request.ServiceID
	current.Address = request.Address
	current.RequestedDate = request.RequestedDate
	current.UpdatedAt = s.now()
	s.requests[request.ID] = current
	request.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *requestRepo) Delete(_ context.Context, id, requesterID uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[id]
	if !ok || current.RequesterID != requesterID || !current.Editable() {
		return stale("delete request")
	}
	delete(s.requests, id)
	return nil
}

func (r *requestRepo) DecideTrack(_ context.Context, d model.TrackDecision) (*model.Request, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[d.RequestID]
	if !ok || current.ServiceID != d.ExpectServiceID {
		return nil, stale("decide request")
	}
	_, approver := current.TrackState(d.Track)
	if d.Decision == model.DecisionApprove && approver != nil {
		return nil, stale("decide request")
	}

	var approverID *uuid.UUID
	if d.Decision == model.DecisionApprove {
		approverID = ptr(d.ApproverID)
	}
	if d.Track == model.TrackManager {
		current.StatusByManager = d.Decision.TrackStatus()
		current.ApprovingManagerID = approverID
	} else {
		current.StatusByStaff = d.Decision.TrackStatus()
		current.ApprovingStaffID = approverID
	}
	if d.Note != nil {
		current.ApproveNote = ptr(*d.Note)
	}
	current.UpdatedAt = s.now()
	s.requests[d.RequestID] = current
	return &current, nil
}

func (r *requestRepo) OverrideApproval(_ context.Context, request *model.Request) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[request.ID]
	if !ok {
		return notFound("override approval")
	}
	current.StatusByStaff = request.StatusByStaff
	current.ApprovingStaffID = request.ApprovingStaffID
	current.StatusByManager = request.StatusByManager
	current.ApprovingManagerID = request.ApprovingManagerID
	current.ApproveNote = request.ApproveNote
	current.UpdatedAt = s.now()
	s.requests[request.ID] = current
	return nil
}

// appointments

type appointmentRepo Store

func (r *appointmentRepo) CreateIfNoActive(_ context.Context, appointment *model.Appointment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[appointment.RequestID]
	if !ok {
		return notFound("lock request")
	}
	if !req.FullyApproved() {
		return repository.ErrRequestNotApproved
	}
	for _, a := range s.appointments {
		if a.RequestID == appointment.RequestID && a.Status.Active() {
			return repository.ErrActiveAppointmentExists
		}
	}
	s.stamp(&appointment.Base)
	appointment.Status = model.AppointmentStatusPending
	s.appointments[appointment.ID] = *appointment
	return nil
}

func (r *appointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, notFound("get appointment")
	}
	return &a, nil
}

func (r *appointmentRepo) List(_ context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Appointment, 0)
	for _, a := range s.appointments {
		if filter.RequestID != nil && a.RequestID != *filter.RequestID {
			continue
		}
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.OfficeID != nil {
			req := s.requests[a.RequestID]
			if s.services[req.ServiceID].OfficeID != *filter.OfficeID {
				continue
			}
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, ptr(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Pagination), nil
}

func (r *appointmentRepo) UpdateDetails(_ context.Context, appointment *model.Appointment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.appointments[appointment.ID]
	if !ok || current.Status.Immutable() {
		return stale("update appointment")
	}
	current.Date = appointment.Date
	current.Time = appointment.Time
	current.Notes = appointment.Notes
	current.UpdatedAt = s.now()
	s.appointments[appointment.ID] = current
	appointment.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *appointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.appointments[id]
	if !ok || current.Status.Immutable() {
		return stale("delete appointment")
	}
	delete(s.appointments, id)
	return nil
}

func (r *appointmentRepo) Transition(_ context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.appointments[id]
	if !ok || !model.CanTransition(current.Status, status) {
		return nil, stale("transition appointment")
	}
	current.Status = status
	current.UpdatedAt = s.now()
	s.appointments[id] = current
	return &current, nil
}

// outbox

type outboxRepo Store

func (r *outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = uuid.New()
	event.CreatedAt = s.now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	s.outbox[event.ID] = *event
	return nil
}

func (r *outboxRepo) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	due := make([]model.OutboxEvent, 0)
	for _, e := range s.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.RetryAt = ptr(now.Add(lease))
		e.UpdatedAt = now
		s.outbox[e.ID] = e
		out = append(out, ptr(e))
	}
	return out, nil
}

func (r *outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.outbox[id]
	if !ok {
		return notFound("mark event processed")
	}
	now := s.now()
	e.Status = model.OutboxStatusProcessed
	e.ErrorMessage = nil
	e.ProcessedAt = &now
	e.UpdatedAt = now
	s.outbox[id] = e
	return nil
}

func (r *outboxRepo) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.outbox[id]
	if !ok {
		return notFound("schedule event retry")
	}
	e.Status = model.OutboxStatusRetry
	e.ErrorMessage = &errMsg
	e.RetryCount++
	e.RetryAt = &retryAt
	e.UpdatedAt = s.now()
	s.outbox[id] = e
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.outbox[id]
	if !ok {
		return notFound("mark event failed")
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errMsg
	e.RetryCount++
	e.UpdatedAt = s.now()
	s.outbox[id] = e
	return nil
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, e := range s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(s.outbox, id)
			n++
		}
	}
	return n, nil
}
