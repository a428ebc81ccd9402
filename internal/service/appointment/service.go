package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/internal/service/authz"
	"github.com/jwalitptl/office-portal/internal/service/event"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/metrics"
)

type Service struct {
	repo     repository.AppointmentRepository
	guard    *authz.Guard
	scope    *authz.Scope
	notifier event.Notifier
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	repo repository.AppointmentRepository,
	guard *authz.Guard,
	scope *authz.Scope,
	notifier event.Notifier,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		scope:    scope,
		notifier: notifier,
		logger:   log,
		metrics:  m,
	}
}

// Create schedules an appointment for a fully approved request. The
// requester or office staff may create it; staff default to assigning themselves.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req model.CreateAppointmentRequest) (*model.Appointment, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	request, service, err := s.scope.Request(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}

	isRequester := request.RequesterID == actor.ID()
	if !isRequester {
		if err := s.authorizeStaffSide(actor, service); err != nil {
			return nil, err
		}
	}
	if !request.FullyApproved() {
		return nil, notFullyApproved()
	}

	appointment := &model.Appointment{
		RequestID: request.ID,
		UserID:    request.RequesterID,
		Date:      req.Date,
		Time:      req.Time,
		Notes:     req.Notes,
	}
	recipients := []uuid.UUID{request.RequesterID}
	switch {
	case req.StaffID != nil:
		staff, err := s.scope.OfficeStaff(ctx, actor, *req.StaffID, service.OfficeID)
		if err != nil {
			return nil, err
		}
		appointment.StaffID = &staff.ID
		recipients = appendRecipient(recipients, staff.UserID)
	case !isRequester && actor.Staff != nil && actor.Staff.OfficeID == service.OfficeID:
		appointment.StaffID = &actor.Staff.ID
	}

	if err := s.repo.CreateIfNoActive(ctx, appointment); err != nil {
		switch {
		case errors.Is(err, repository.ErrRequestNotApproved):
			return nil, notFullyApproved()
		case errors.Is(err, repository.ErrActiveAppointmentExists):
			return nil, apperrors.Conflict(apperrors.ReasonActiveAppointment, "an active appointment already exists")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("request", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create appointment: %w", err))
	}

	s.observe(appointment.Status)
	s.notify(ctx, model.EventAppointmentCreated, appointment, request, actor.ID(), recipients)
	return appointment, nil
}

func (s *Service) Get(ctx context.Context, actorID, id uuid.UUID) (*model.Appointment, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermAppointmentRead)
	if err != nil {
		return nil, err
	}
	appointment, _, service, err := s.scope.Appointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(actor, appointment, service); err != nil {
		return nil, err
	}
	return appointment, nil
}

// List narrows filter to what the actor may see.
func (s *Service) List(ctx context.Context, actorID uuid.UUID, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermAppointmentRead)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin():
	case isStaffSide(actor) && actor.Staff != nil:
		filter.OfficeID = actor.OfficeID()
	default:
		id := actor.ID()
		filter.UserID = &id
	}

	appointments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return appointments, nil
}

// Update changes date, time and notes of an appointment that is not yet approved or completed.
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermAppointmentUpdate)
	if err != nil {
		return nil, err
	}
	appointment, _, service, err := s.scope.Appointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(actor, appointment, service); err != nil {
		return nil, err
	}
	if appointment.Status.Immutable() {
		return nil, immutable(appointment.Status)
	}

	if req.Date != nil {
		appointment.Date = *req.Date
	}
	if req.Time != nil {
		appointment.Time = *req.Time
	}
	if req.Notes != nil {
		appointment.Notes = *req.Notes
	}

	if err := s.repo.UpdateDetails(ctx, appointment); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, immutable(model.AppointmentStatusApproved)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to update appointment: %w", err))
	}
	return appointment, nil
}

func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermAppointmentDelete)
	if err != nil {
		return err
	}
	appointment, _, service, err := s.scope.Appointment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeParticipant(actor, appointment, service); err != nil {
		return err
	}
	if appointment.Status.Immutable() {
		return immutable(appointment.Status)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return immutable(model.AppointmentStatusApproved)
		}
		return apperrors.Internal(fmt.Errorf("failed to delete appointment: %w", err))
	}
	return nil
}

// Decide approves or rejects a pending appointment on behalf of the office.
func (s *Service) Decide(ctx context.Context, actorID, id uuid.UUID, req model.DecideAppointmentRequest) (*model.Appointment, error) {
	target := model.AppointmentStatusApproved
	switch req.Action {
	case model.DecisionApprove:
	case model.DecisionReject:
		target = model.AppointmentStatusRejected
	default:
		return nil, apperrors.Validation("action must be approve or reject", nil)
	}
	return s.transition(ctx, actorID, id, target, false)
}

// Complete closes an approved appointment. Completed appointments accept no further operations.
func (s *Service) Complete(ctx context.Context, actorID, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, actorID, id, model.AppointmentStatusCompleted, false)
}

// Cancel is open to the requester as well as office staff.
func (s *Service) Cancel(ctx context.Context, actorID, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, actorID, id, model.AppointmentStatusCancelled, true)
}

func (s *Service) transition(ctx context.Context, actorID, id uuid.UUID, target model.AppointmentStatus, ownerAllowed bool) (*model.Appointment, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermAppointmentUpdate)
	if err != nil {
		return nil, err
	}
	appointment, request, service, err := s.scope.Appointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerAllowed {
		err = s.authorizeParticipant(actor, appointment, service)
	} else {
		err = s.authorizeStaffSide(actor, service)
	}
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(appointment.Status, target) {
		return nil, illegalTransition(appointment.Status, target)
	}

	updated, err := s.repo.Transition(ctx, id, target)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			current, getErr := s.repo.Get(ctx, id)
			if getErr != nil {
				return nil, apperrors.Conflict(apperrors.ReasonConcurrentUpdate, "appointment was modified concurrently")
			}
			return nil, illegalTransition(current.Status, target)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to transition appointment: %w", err))
	}

	s.observe(updated.Status)
	s.logger.Info("appointment transitioned",
		"appointment_id", updated.ID.String(),
		"from", string(appointment.Status),
		"to", string(updated.Status),
		"actor_id", actor.ID().String(),
	)
	s.notify(ctx, model.AppointmentEvent(updated.Status), updated, request, actor.ID(), []uuid.UUID{updated.UserID})
	return updated, nil
}

// authorizeParticipant admits the owning user and same-office staff or managers.
func (s *Service) authorizeParticipant(actor *authz.Actor, appointment *model.Appointment, service *model.Service) error {
	if appointment.UserID == actor.ID() {
		return nil
	}
	return s.authorizeStaffSide(actor, service)
}

func (s *Service) authorizeStaffSide(actor *authz.Actor, service *model.Service) error {
	if actor.IsAdmin() {
		return nil
	}
	if !isStaffSide(actor) {
		return s.guard.Deny(actor.ID(), apperrors.ReasonOutOfScope, "appointment belongs to another user")
	}
	return s.scope.Authorize(actor, service.OfficeID)
}

func isStaffSide(actor *authz.Actor) bool {
	return actor.Kind == model.RoleKindStaff || actor.Kind == model.RoleKindManager
}

func (s *Service) observe(status model.AppointmentStatus) {
	if s.metrics != nil {
		s.metrics.AppointmentChanges.WithLabelValues(string(status)).Inc()
	}
}

func (s *Service) notify(ctx context.Context, eventType string, appointment *model.Appointment, request *model.Request, actorID uuid.UUID, recipients []uuid.UUID) {
	id := appointment.ID
	s.notifier.Notify(ctx, model.NotificationEvent{
		Type:          eventType,
		RecipientIDs:  recipients,
		RequestID:     request.ID,
		AppointmentID: &id,
		ActorID:       actorID,
		Status:        request.Status(),
	})
}

func appendRecipient(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func notFullyApproved() error {
	return apperrors.Conflict(apperrors.ReasonNotFullyApproved, "request must be fully approved before scheduling an appointment")
}

func immutable(status model.AppointmentStatus) error {
	return apperrors.Conflict(apperrors.ReasonImmutable, fmt.Sprintf("appointment is %s and can no longer be changed", status))
}

func illegalTransition(from, to model.AppointmentStatus) error {
	if from == model.AppointmentStatusCompleted {
		return immutable(from)
	}
	return apperrors.Conflict(apperrors.ReasonIllegalTransition, fmt.Sprintf("cannot move appointment from %s to %s", from, to))
}
