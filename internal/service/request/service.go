package request

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
	repo     repository.RequestRepository
	offices  repository.OfficeRepository
	guard    *authz.Guard
	scope    *authz.Scope
	notifier event.Notifier
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	repo repository.RequestRepository,
	offices repository.OfficeRepository,
	guard *authz.Guard,
	scope *authz.Scope,
	notifier event.Notifier,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:     repo,
		offices:  offices,
		guard:    guard,
		scope:    scope,
		notifier: notifier,
		logger:   log,
		metrics:  m,
	}
}

func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req model.CreateRequestRequest) (*model.RequestView, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRequestCreate)
	if err != nil {
		return nil, err
	}
	if err := s.requireOpenService(ctx, req.ServiceID); err != nil {
		return nil, err
	}

	request := &model.Request{
		RequesterID:   actor.ID(),
		ServiceID:     req.ServiceID,
		Address:       req.Address,
		RequestedDate: req.RequestedDate,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create request: %w", err))
	}

	s.notify(ctx, model.EventRequestCreated, request, actor.ID(), nil)
	view := model.NewRequestView(request)
	return &view, nil
}

func (s *Service) Get(ctx context.Context, actorID, id uuid.UUID) (*model.RequestView, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRequestRead)
	if err != nil {
		return nil, err
	}
	request, service, err := s.scope.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, request, service); err != nil {
		return nil, err
	}
	view := model.NewRequestView(request)
	return &view, nil
}

// List returns the requests visible to the actor: everything for an admin,
// the office for a manager, assigned services for staff, otherwise their own.
func (s *Service) List(ctx context.Context, actorID uuid.UUID, page model.Pagination) ([]model.RequestView, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRequestRead)
	if err != nil {
		return nil, err
	}

	filter := model.RequestFilter{Pagination: page}
	switch {
	case actor.IsAdmin():
	case actor.Kind == model.RoleKindManager && actor.Staff != nil:
		filter.OfficeID = actor.OfficeID()
	case actor.Kind == model.RoleKindStaff && actor.Staff != nil:
		filter.StaffID = &actor.Staff.ID
	default:
		id := actor.ID()
		filter.RequesterID = &id
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list requests: %w", err))
	}
	views := make([]model.RequestView, 0, len(requests))
	for _, r := range requests {
		views = append(views, model.NewRequestView(r))
	}
	return views, nil
}

// Update lets the requester change service, address and date while both
// tracks are still pending.
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req model.UpdateRequestRequest) (*model.RequestView, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRequestCreate)
	if err != nil {
		return nil, err
	}
	request, _, err := s.scope.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != actor.ID() {
		return nil, s.guard.Deny(actor.ID(), apperrors.ReasonOutOfScope, "only the requester may edit a request")
	}
	if !request.Editable() {
		return nil, notEditable()
	}

	if req.ServiceID != nil && *req.ServiceID != request.ServiceID {
		if err := s.requireOpenService(ctx, *req.ServiceID); err != nil {
			return nil, err
		}
		request.ServiceID = *req.ServiceID
	}
	if req.Address != nil {
		request.Address = *req.Address
	}
	if req.RequestedDate != nil {
		request.RequestedDate = req.RequestedDate
	}

	if err := s.repo.UpdateDetails(ctx, request); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, notEditable()
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to update request: %w", err))
	}
	view := model.NewRequestView(request)
	return &view, nil
}

// Delete removes a request that has not entered approval yet.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRequestDelete)
	if err != nil {
		return err
	}
	request, _, err := s.scope.Request(ctx, id)
	if err != nil {
		return err
	}
	if request.RequesterID != actor.ID() && !actor.IsAdmin() {
		return s.guard.Deny(actor.ID(), apperrors.ReasonOutOfScope, "only the requester may delete a request")
	}
	if !request.Editable() {
		return notEditable()
	}

	if err := s.repo.Delete(ctx, request.ID, request.RequesterID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return notEditable()
		}
		return apperrors.Internal(fmt.Errorf("failed to delete request: %w", err))
	}
	return nil
}

// StaffDecide applies a staff decision. The actor must be assigned to the
// request's service in the owning office.
func (s *Service) StaffDecide(ctx context.Context, actorID, id uuid.UUID, req model.DecideRequestRequest) (*model.RequestView, error) {
	return s.decide(ctx, actorID, id, model.TrackStaff, req)
}

// ManagerDecide applies a manager decision. Any manager of the owning office may decide.
func (s *Service) ManagerDecide(ctx context.Context, actorID, id uuid.UUID, req model.DecideRequestRequest) (*model.RequestView, error) {
	return s.decide(ctx, actorID, id, model.TrackManager, req)
}

func (s *Service) decide(ctx context.Context, actorID, id uuid.UUID, track model.Track, req model.DecideRequestRequest) (*model.RequestView, error) {
	if req.Action != model.DecisionApprove && req.Action != model.DecisionReject {
		return nil, apperrors.Validation("action must be approve or reject", nil)
	}

	permission := model.PermRequestApproveStaff
	if track == model.TrackManager {
		permission = model.PermRequestApproveManager
	}
	actor, err := s.guard.RequireAll(ctx, actorID, permission)
	if err != nil {
		return nil, err
	}

	request, service, err := s.scope.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if track == model.TrackStaff {
		err = s.scope.AuthorizeAssigned(ctx, actor, service)
	} else {
		err = s.scope.Authorize(actor, service.OfficeID)
	}
	if err != nil {
		return nil, err
	}

	if _, approver := request.TrackState(track); req.Action == model.DecisionApprove && approver != nil {
		return nil, alreadyProcessed(track)
	}

	updated, err := s.repo.DecideTrack(ctx, model.TrackDecision{
		RequestID:       request.ID,
		Track:           track,
		Decision:        req.Action,
		ApproverID:      actor.ID(),
		Note:            req.Note,
		ExpectServiceID: service.ID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, s.explainStale(ctx, id, track, req.Action, service.ID)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to decide request: %w", err))
	}

	if s.metrics != nil {
		s.metrics.WorkflowDecisions.WithLabelValues(string(track), string(req.Action)).Inc()
	}
	s.logger.Info("request decided",
		"request_id", updated.ID.String(),
		"track", string(track),
		"action", string(req.Action),
		"actor_id", actor.ID().String(),
		"status", string(updated.Status()),
	)

	s.notify(ctx, decisionEvent(track, req.Action, updated), updated, actor.ID(), req.Note)
	view := model.NewRequestView(updated)
	return &view, nil
}

// explainStale re-reads a request whose conditional update matched nothing
// and reports which precondition no longer held.
func (s *Service) explainStale(ctx context.Context, id uuid.UUID, track model.Track, action model.Decision, serviceID uuid.UUID) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("request", err)
		}
		return apperrors.Internal(fmt.Errorf("failed to reload request: %w", err))
	}
	if _, approver := current.TrackState(track); action == model.DecisionApprove && approver != nil && current.ServiceID == serviceID {
		return alreadyProcessed(track)
	}
	return apperrors.Conflict(apperrors.ReasonConcurrentUpdate, "request was modified concurrently, retry")
}

// AdminUpdate overrides the approval fields directly. Only admins may use it.
func (s *Service) AdminUpdate(ctx context.Context, actorID, id uuid.UUID, req model.AdminUpdateRequest) (*model.RequestView, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRequestUpdate)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, s.guard.Deny(actor.ID(), apperrors.ReasonAdminOnly, "approval fields may only be changed by an admin")
	}
	request, _, err := s.scope.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	wasFullyApproved := request.FullyApproved()

	if req.StatusByStaff != nil {
		if !req.StatusByStaff.Valid() {
			return nil, apperrors.Validation("invalid staff status", nil)
		}
		request.StatusByStaff, request.ApprovingStaffID = overrideTrack(*req.StatusByStaff, request.ApprovingStaffID, actor.ID())
	}
	if req.StatusByManager != nil {
		if !req.StatusByManager.Valid() {
			return nil, apperrors.Validation("invalid manager status", nil)
		}
		request.StatusByManager, request.ApprovingManagerID = overrideTrack(*req.StatusByManager, request.ApprovingManagerID, actor.ID())
	}
	if req.ApproveNote != nil {
		request.ApproveNote = req.ApproveNote
	}

	if err := s.repo.OverrideApproval(ctx, request); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("request", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to override request approval: %w", err))
	}

	if !wasFullyApproved && request.FullyApproved() {
		s.notify(ctx, model.EventRequestFullyApproved, request, actor.ID(), request.ApproveNote)
	}
	view := model.NewRequestView(request)
	return &view, nil
}

func (s *Service) authorizeRead(ctx context.Context, actor *authz.Actor, request *model.Request, service *model.Service) error {
	if actor.IsAdmin() || request.RequesterID == actor.ID() {
		return nil
	}
	switch actor.Kind {
	case model.RoleKindManager:
		return s.scope.Authorize(actor, service.OfficeID)
	case model.RoleKindStaff:
		return s.scope.AuthorizeAssigned(ctx, actor, service)
	default:
		return s.guard.Deny(actor.ID(), apperrors.ReasonOutOfScope, "request belongs to another user")
	}
}

// requireOpenService accepts only active services of active offices.
func (s *Service) requireOpenService(ctx context.Context, serviceID uuid.UUID) error {
	service, err := s.scope.Service(ctx, serviceID)
	if err != nil {
		return err
	}
	office, err := s.offices.GetOffice(ctx, service.OfficeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("office", err)
		}
		return apperrors.Internal(fmt.Errorf("failed to get office: %w", err))
	}
	if !service.IsActive || !office.IsActive {
		return apperrors.Validation("service is not accepting requests", nil)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, eventType string, request *model.Request, actorID uuid.UUID, note *string) {
	s.notifier.Notify(ctx, model.NotificationEvent{
		Type:         eventType,
		RecipientIDs: []uuid.UUID{request.RequesterID},
		RequestID:    request.ID,
		ActorID:      actorID,
		Status:       request.Status(),
		Note:         note,
	})
}

// decisionEvent names the notification for a decision. An approval that
// completes both tracks is reported as fully approved instead.
func decisionEvent(track model.Track, action model.Decision, updated *model.Request) string {
	if action == model.DecisionApprove && updated.FullyApproved() {
		return model.EventRequestFullyApproved
	}
	switch {
	case track == model.TrackStaff && action == model.DecisionApprove:
		return model.EventRequestStaffApproved
	case track == model.TrackStaff:
		return model.EventRequestStaffRejected
	case action == model.DecisionApprove:
		return model.EventRequestManagerApproved
	default:
		return model.EventRequestManagerRejected
	}
}

// overrideTrack keeps the approver only for an approved track, stamping the
// admin when none was recorded.
func overrideTrack(status model.TrackStatus, approver *uuid.UUID, adminID uuid.UUID) (model.TrackStatus, *uuid.UUID) {
	if status != model.TrackApproved {
		return status, nil
	}
	if approver == nil {
		approver = &adminID
	}
	return status, approver
}

func alreadyProcessed(track model.Track) error {
	return apperrors.Conflict(apperrors.ReasonAlreadyProcessed, fmt.Sprintf("already processed by %s", track))
}

func notEditable() error {
	return apperrors.Conflict(apperrors.ReasonNotEditable, "request can no longer be edited once approval has started")
}
