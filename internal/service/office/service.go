package office

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/internal/service/authz"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
	"github.com/jwalitptl/office-portal/pkg/logger"
)

// Service administers offices, their services and the staff memberships
// that the scoping rules are built on.
type Service struct {
	repo   repository.OfficeRepository
	users  repository.UserRepository
	guard  *authz.Guard
	scope  *authz.Scope
	logger *logger.Logger
}

func NewService(repo repository.OfficeRepository, users repository.UserRepository, guard *authz.Guard, scope *authz.Scope, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		guard:  guard,
		scope:  scope,
		logger: log,
	}
}

func (s *Service) CreateOffice(ctx context.Context, actorID uuid.UUID, req model.CreateOfficeRequest) (*model.Office, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermOfficeManage)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, s.guard.Deny(actor.ID(), apperrors.ReasonAdminOnly, "offices may only be created by an admin")
	}

	office := &model.Office{Name: req.Name, Address: req.Address, IsActive: true}
	if err := s.repo.CreateOffice(ctx, office); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create office: %w", err))
	}
	return office, nil
}

func (s *Service) GetOffice(ctx context.Context, id uuid.UUID) (*model.Office, error) {
	office, err := s.repo.GetOffice(ctx, id)
	if err != nil {
		return nil, notFoundOr("office", err)
	}
	return office, nil
}

// ListOffices is public discovery; inactive offices are hidden unless requested.
func (s *Service) ListOffices(ctx context.Context, includeInactive bool) ([]*model.Office, error) {
	offices, err := s.repo.ListOffices(ctx, !includeInactive)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list offices: %w", err))
	}
	return offices, nil
}

// SetOfficeActive hides or restores an office in discovery. Existing
// requests of its services are unaffected.
func (s *Service) SetOfficeActive(ctx context.Context, actorID, id uuid.UUID, active bool) (*model.Office, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermOfficeManage)
	if err != nil {
		return nil, err
	}
	office, err := s.GetOffice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.scope.Authorize(actor, office.ID); err != nil {
		return nil, err
	}
	if err := s.repo.SetOfficeActive(ctx, id, active); err != nil {
		return nil, notFoundOr("office", err)
	}
	office.IsActive = active
	return office, nil
}

func (s *Service) CreateService(ctx context.Context, actorID, officeID uuid.UUID, req model.CreateServiceRequest) (*model.Service, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermOfficeManage)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOffice(ctx, officeID); err != nil {
		return nil, err
	}
	if err := s.scope.Authorize(actor, officeID); err != nil {
		return nil, err
	}

	service := &model.Service{OfficeID: officeID, Name: req.Name, Description: req.Description, IsActive: true}
	if err := s.repo.CreateService(ctx, service); err != nil {
		return nil, notFoundOr("office", err)
	}
	return service, nil
}

// ListServices returns the services citizens may request: active services of active offices.
func (s *Service) ListServices(ctx context.Context, officeID *uuid.UUID) ([]*model.Service, error) {
	services, err := s.repo.ListServices(ctx, officeID, true)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list services: %w", err))
	}
	return services, nil
}

// AddStaff gives a user a membership in the office, which is what places
// them in its scope.
func (s *Service) AddStaff(ctx context.Context, actorID, officeID uuid.UUID, req model.AddStaffRequest) (*model.Staff, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermOfficeManage)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOffice(ctx, officeID); err != nil {
		return nil, err
	}
	if err := s.scope.Authorize(actor, officeID); err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, req.UserID); err != nil {
		return nil, notFoundOr("user", err)
	}

	staff := &model.Staff{UserID: req.UserID, OfficeID: officeID, Title: req.Title}
	if err := s.repo.AddStaff(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(apperrors.ReasonDuplicate, "user is already staff of this office")
		}
		return nil, notFoundOr("office", err)
	}
	s.logger.Info("staff added", "office_id", officeID.String(), "user_id", req.UserID.String(), "actor_id", actor.ID().String())
	return staff, nil
}

func (s *Service) ListStaff(ctx context.Context, actorID, officeID uuid.UUID) ([]*model.Staff, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermOfficeManage)
	if err != nil {
		return nil, err
	}
	if err := s.scope.Authorize(actor, officeID); err != nil {
		return nil, err
	}
	staff, err := s.repo.ListStaff(ctx, officeID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list staff: %w", err))
	}
	return staff, nil
}

// AssignStaff allows a staff member of the service's office to decide its requests.
func (s *Service) AssignStaff(ctx context.Context, actorID, serviceID, staffID uuid.UUID) error {
	actor, service, err := s.authorizeService(ctx, actorID, serviceID)
	if err != nil {
		return err
	}
	if _, err := s.scope.OfficeStaff(ctx, actor, staffID, service.OfficeID); err != nil {
		return err
	}
	if err := s.repo.AssignStaff(ctx, service.ID, staffID); err != nil {
		return notFoundOr("staff", err)
	}
	return nil
}

func (s *Service) UnassignStaff(ctx context.Context, actorID, serviceID, staffID uuid.UUID) error {
	if _, _, err := s.authorizeService(ctx, actorID, serviceID); err != nil {
		return err
	}
	if err := s.repo.UnassignStaff(ctx, serviceID, staffID); err != nil {
		return notFoundOr("assignment", err)
	}
	return nil
}

func (s *Service) authorizeService(ctx context.Context, actorID, serviceID uuid.UUID) (*authz.Actor, *model.Service, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermOfficeManage)
	if err != nil {
		return nil, nil, err
	}
	service, err := s.scope.Service(ctx, serviceID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.scope.Authorize(actor, service.OfficeID); err != nil {
		return nil, nil, err
	}
	return actor, service, nil
}

func notFoundOr(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(fmt.Errorf("%s operation failed: %w", resource, err))
}
