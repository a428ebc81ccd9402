package user

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

type Service struct {
	repo   repository.UserRepository
	rbac   repository.RBACRepository
	guard  *authz.Guard
	scope  *authz.Scope
	logger *logger.Logger
}

func NewService(repo repository.UserRepository, rbac repository.RBACRepository, guard *authz.Guard, scope *authz.Scope, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		rbac:   rbac,
		guard:  guard,
		scope:  scope,
		logger: log,
	}
}

func (s *Service) Get(ctx context.Context, actorID, id uuid.UUID) (*model.User, error) {
	if actorID != id {
		if err := s.guard.CheckAny(ctx, actorID, model.PermUserManage, model.PermRoleAssign); err != nil {
			return nil, err
		}
	}
	return s.load(ctx, id)
}

// SetActive toggles the account. Deactivation denies every later check.
func (s *Service) SetActive(ctx context.Context, actorID, id uuid.UUID, active bool) (*model.User, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermUserManage)
	if err != nil {
		return nil, err
	}
	if actor.ID() == id && !active {
		return nil, apperrors.Validation("users cannot deactivate themselves", nil)
	}
	target, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTarget(ctx, actor, target); err != nil {
		return nil, err
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to set user active: %w", err))
	}
	target.IsActive = active
	s.logger.Info("user activation changed", "user_id", id.String(), "active", active, "actor_id", actor.ID().String())
	return target, nil
}

// AssignRole sets or clears the single role of a user. Only admins may grant
// or take away manager and admin roles, and non-admins stay inside their office.
func (s *Service) AssignRole(ctx context.Context, actorID, id uuid.UUID, roleID *uuid.UUID) (*model.User, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRoleAssign)
	if err != nil {
		return nil, err
	}
	target, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var role *model.Role
	if roleID != nil {
		if role, err = s.loadRole(ctx, *roleID); err != nil {
			return nil, err
		}
	}

	if !actor.IsAdmin() {
		if role != nil && s.guard.KindOf(role).Elevated() {
			return nil, s.guard.Deny(actor.ID(), apperrors.ReasonRoleElevation, "only an admin may assign manager or admin roles")
		}
		if target.RoleID != nil {
			current, err := s.loadRole(ctx, *target.RoleID)
			if err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
				return nil, err
			}
			if current != nil && s.guard.KindOf(current).Elevated() {
				return nil, s.guard.Deny(actor.ID(), apperrors.ReasonRoleElevation, "only an admin may change a manager or admin")
			}
		}
		if role != nil && role.OfficeID != nil && (actor.Staff == nil || *role.OfficeID != actor.Staff.OfficeID) {
			return nil, s.guard.Deny(actor.ID(), apperrors.ReasonOutOfScope, "role belongs to another office")
		}
		if err := s.authorizeTarget(ctx, actor, target); err != nil {
			return nil, err
		}
	}

	if err := s.repo.SetRole(ctx, id, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to assign role: %w", err))
	}
	target.RoleID = roleID
	s.logger.Info("role assigned", "user_id", id.String(), "actor_id", actor.ID().String())
	return target, nil
}

// authorizeTarget keeps non-admins to users of their own office or users
// without any staff membership.
func (s *Service) authorizeTarget(ctx context.Context, actor *authz.Actor, target *model.User) error {
	if actor.IsAdmin() {
		return nil
	}
	officeID, err := s.scope.ActorOffice(ctx, target.ID)
	if err != nil {
		return err
	}
	if officeID == nil {
		return nil
	}
	return s.scope.Authorize(actor, *officeID)
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get user: %w", err))
	}
	return user, nil
}

func (s *Service) loadRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.rbac.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("role", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get role: %w", err))
	}
	return role, nil
}
