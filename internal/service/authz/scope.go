package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
)

// Scope resolves which office owns a resource and whether an actor may act on it.
// Out-of-scope access is always Forbidden; only a missing entity is NotFound.
type Scope struct {
	guard        *Guard
	offices      repository.OfficeRepository
	requests     repository.RequestRepository
	appointments repository.AppointmentRepository
}

func NewScope(
	guard *Guard,
	offices repository.OfficeRepository,
	requests repository.RequestRepository,
	appointments repository.AppointmentRepository,
) *Scope {
	return &Scope{
		guard:        guard,
		offices:      offices,
		requests:     requests,
		appointments: appointments,
	}
}

// ActorOffice returns the office of the user's first staff membership, nil if none.
func (s *Scope) ActorOffice(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	staff, err := s.offices.FirstStaffByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to get staff membership: %w", err))
	}
	return &staff.OfficeID, nil
}

func (s *Scope) Service(ctx context.Context, serviceID uuid.UUID) (*model.Service, error) {
	service, err := s.offices.GetService(ctx, serviceID)
	if err != nil {
		return nil, lookupError("service", err)
	}
	return service, nil
}

// Request loads a request together with the service that places it in an office.
func (s *Scope) Request(ctx context.Context, requestID uuid.UUID) (*model.Request, *model.Service, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, nil, lookupError("request", err)
	}
	service, err := s.Service(ctx, request.ServiceID)
	if err != nil {
		return nil, nil, err
	}
	return request, service, nil
}

// Appointment loads an appointment with its request and service.
func (s *Scope) Appointment(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, *model.Request, *model.Service, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, nil, nil, lookupError("appointment", err)
	}
	request, service, err := s.Request(ctx, appointment.RequestID)
	if err != nil {
		return nil, nil, nil, err
	}
	return appointment, request, service, nil
}

// Authorize requires the actor to act for officeID. Admins bypass the check.
func (s *Scope) Authorize(actor *Actor, officeID uuid.UUID) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Staff == nil || actor.Staff.OfficeID != officeID {
		return s.guard.deny(actor.ID(), apperrors.ReasonOutOfScope, "resource belongs to another office")
	}
	return nil
}

// AuthorizeAssigned additionally requires the actor's staff record to be
// assigned to service.
func (s *Scope) AuthorizeAssigned(ctx context.Context, actor *Actor, service *model.Service) error {
	if actor.IsAdmin() {
		return nil
	}
	if err := s.Authorize(actor, service.OfficeID); err != nil {
		return err
	}
	assigned, err := s.offices.IsStaffAssigned(ctx, service.ID, actor.Staff.ID)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to check staff assignment: %w", err))
	}
	if !assigned {
		return s.guard.deny(actor.ID(), apperrors.ReasonNotAssigned, "not assigned to this service")
	}
	return nil
}

// OfficeStaff resolves a staff record that must belong to officeID.
func (s *Scope) OfficeStaff(ctx context.Context, actor *Actor, staffID, officeID uuid.UUID) (*model.Staff, error) {
	staff, err := s.offices.GetStaff(ctx, staffID)
	if err != nil {
		return nil, lookupError("staff", err)
	}
	if staff.OfficeID != officeID {
		return nil, s.guard.deny(actor.ID(), apperrors.ReasonOutOfScope, "staff belongs to another office")
	}
	return staff, nil
}

func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(fmt.Errorf("failed to get %s: %w", resource, err))
}
