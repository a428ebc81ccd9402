package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/internal/service/authz"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/validator"
)

type Service struct {
	repo      repository.RBACRepository
	guard     *authz.Guard
	roleNames model.RoleNames
	logger    *logger.Logger
}

func NewService(repo repository.RBACRepository, guard *authz.Guard, roleNames model.RoleNames, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		guard:     guard,
		roleNames: roleNames,
		logger:    log,
	}
}

// Seed creates the permission catalogue, the built-in roles and their
// default grants. Existing rows are left alone so it can run on every start.
func (s *Service) Seed(ctx context.Context) error {
	for _, name := range model.AllPermissions() {
		err := s.repo.CreatePermission(ctx, &model.Permission{Name: name})
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("failed to seed permission %s: %w", name, err)
		}
	}

	for kind, permissions := range model.DefaultGrants() {
		name := s.roleNames.NameFor(kind)
		if name == "" {
			continue
		}
		role, err := s.repo.GetRoleByName(ctx, name, nil)
		if errors.Is(err, repository.ErrNotFound) {
			role = &model.Role{Name: name, Kind: kind, Description: "built-in " + string(kind) + " role"}
			err = s.repo.CreateRole(ctx, role)
		}
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}
		for _, p := range permissions {
			if err := s.repo.GrantPermission(ctx, role.ID, p); err != nil {
				return fmt.Errorf("failed to grant %s to %s: %w", p, name, err)
			}
		}
	}

	s.logger.Info("rbac defaults seeded", "permissions", len(model.AllPermissions()))
	return nil
}

func (s *Service) CreatePermission(ctx context.Context, actorID uuid.UUID, req model.CreatePermissionRequest) (*model.Permission, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermPermissionManage)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, s.guard.Deny(actor.ID(), apperrors.ReasonAdminOnly, "permissions may only be created by an admin")
	}
	name := strings.TrimSpace(req.Name)
	if !validator.IsPermissionName(name) {
		return nil, apperrors.Validation("permission name must have the form resource:action", nil)
	}

	permission := &model.Permission{Name: name, Description: req.Description}
	if err := s.repo.CreatePermission(ctx, permission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(apperrors.ReasonDuplicate, fmt.Sprintf("permission '%s' already exists", name))
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create permission: %w", err))
	}
	return permission, nil
}

func (s *Service) ListPermissions(ctx context.Context, actorID uuid.UUID) ([]*model.Permission, error) {
	if err := s.guard.CheckAny(ctx, actorID, model.PermPermissionManage, model.PermRoleManage); err != nil {
		return nil, err
	}
	permissions, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list permissions: %w", err))
	}
	return permissions, nil
}

// CreateRole is admin-only. The kind is inferred from the configured role
// names when none is given.
func (s *Service) CreateRole(ctx context.Context, actorID uuid.UUID, req model.CreateRoleRequest) (*model.RoleWithPermissions, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRoleManage)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, s.guard.Deny(actor.ID(), apperrors.ReasonAdminOnly, "roles may only be created by an admin")
	}

	kind := model.ParseRoleKind(req.Kind)
	if strings.TrimSpace(req.Kind) == "" {
		kind = s.roleNames.KindFor(req.Name)
	}
	role := &model.Role{
		Name:        strings.TrimSpace(req.Name),
		Kind:        kind,
		Description: req.Description,
		OfficeID:    req.OfficeID,
	}
	if role.Name == "" {
		return nil, apperrors.Validation("role name is required", nil)
	}

	if err := s.repo.CreateRole(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(apperrors.ReasonDuplicate, fmt.Sprintf("role '%s' already exists", role.Name))
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create role: %w", err))
	}
	return &model.RoleWithPermissions{Role: *role, Permissions: []string{}}, nil
}

func (s *Service) GetRole(ctx context.Context, actorID, id uuid.UUID) (*model.RoleWithPermissions, error) {
	actor, err := s.guard.RequireAny(ctx, actorID, model.PermRoleManage, model.PermRoleAssign)
	if err != nil {
		return nil, err
	}
	role, err := s.loadRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRoleScope(actor, role); err != nil {
		return nil, err
	}
	return s.withPermissions(ctx, role)
}

// ListRoles returns platform roles plus, for non-admins, the roles of their office.
func (s *Service) ListRoles(ctx context.Context, actorID uuid.UUID) ([]*model.RoleWithPermissions, error) {
	actor, err := s.guard.RequireAny(ctx, actorID, model.PermRoleManage, model.PermRoleAssign)
	if err != nil {
		return nil, err
	}

	var officeID *uuid.UUID
	if !actor.IsAdmin() {
		officeID = actor.OfficeID()
		if officeID == nil {
			officeID = &uuid.Nil
		}
	}
	roles, err := s.repo.ListRoles(ctx, officeID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list roles: %w", err))
	}

	out := make([]*model.RoleWithPermissions, 0, len(roles))
	for _, role := range roles {
		r, err := s.withPermissions(ctx, role)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// GrantPermission takes effect on the next authorization check of every
// holder of the role.
func (s *Service) GrantPermission(ctx context.Context, actorID, roleID uuid.UUID, permission string) (*model.RoleWithPermissions, error) {
	role, err := s.authorizeRoleMutation(ctx, actorID, roleID)
	if err != nil {
		return nil, err
	}
	if !validator.IsPermissionName(permission) {
		return nil, apperrors.Validation("permission name must have the form resource:action", nil)
	}
	if _, err := s.repo.GetPermissionByName(ctx, permission); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("permission", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get permission: %w", err))
	}

	if err := s.repo.GrantPermission(ctx, role.ID, permission); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("role or permission", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to grant permission: %w", err))
	}
	s.logger.Info("permission granted", "role_id", role.ID.String(), "permission", permission, "actor_id", actorID.String())
	return s.withPermissions(ctx, role)
}

func (s *Service) RevokePermission(ctx context.Context, actorID, roleID uuid.UUID, permission string) (*model.RoleWithPermissions, error) {
	role, err := s.authorizeRoleMutation(ctx, actorID, roleID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RevokePermission(ctx, role.ID, permission); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("role permission", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to revoke permission: %w", err))
	}
	s.logger.Info("permission revoked", "role_id", role.ID.String(), "permission", permission, "actor_id", actorID.String())
	return s.withPermissions(ctx, role)
}

// authorizeRoleMutation requires role:manage and permission:manage held by
// an admin.
func (s *Service) authorizeRoleMutation(ctx context.Context, actorID, roleID uuid.UUID) (*model.Role, error) {
	actor, err := s.guard.RequireAll(ctx, actorID, model.PermRoleManage, model.PermPermissionManage)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, s.guard.Deny(actor.ID(), apperrors.ReasonAdminOnly, "role permissions may only be changed by an admin")
	}
	return s.loadRole(ctx, roleID)
}

func (s *Service) authorizeRoleScope(actor *authz.Actor, role *model.Role) error {
	if actor.IsAdmin() || role.OfficeID == nil {
		return nil
	}
	if actor.Staff == nil || actor.Staff.OfficeID != *role.OfficeID {
		return s.guard.Deny(actor.ID(), apperrors.ReasonOutOfScope, "role belongs to another office")
	}
	return nil
}

func (s *Service) loadRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("role", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get role: %w", err))
	}
	return role, nil
}

func (s *Service) withPermissions(ctx context.Context, role *model.Role) (*model.RoleWithPermissions, error) {
	names, err := s.repo.ListRolePermissionNames(ctx, role.ID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list role permissions: %w", err))
	}
	if names == nil {
		names = []string{}
	}
	return &model.RoleWithPermissions{Role: *role, Permissions: names}, nil
}
