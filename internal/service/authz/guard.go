package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/metrics"
)

// Actor is a user resolved for one authorization decision. It is never
// cached across calls so role and permission edits apply on the next check.
type Actor struct {
	User        *model.User
	Role        *model.Role
	Kind        model.RoleKind
	Permissions map[string]struct{}
	Staff       *model.Staff // first staff membership, nil if none
}

func (a *Actor) ID() uuid.UUID {
	return a.User.ID
}

func (a *Actor) IsAdmin() bool {
	return a.Role != nil && a.Kind == model.RoleKindAdmin
}

// OfficeID is the office the actor acts for, nil without a staff membership.
func (a *Actor) OfficeID() *uuid.UUID {
	if a.Staff == nil {
		return nil
	}
	id := a.Staff.OfficeID
	return &id
}

func (a *Actor) Has(permission string) bool {
	_, ok := a.Permissions[permission]
	return ok
}

// PermissionList returns the granted permission names.
func (a *Actor) PermissionList() []string {
	out := make([]string, 0, len(a.Permissions))
	for p := range a.Permissions {
		out = append(out, p)
	}
	return out
}

type Guard struct {
	users     repository.UserRepository
	rbac      repository.RBACRepository
	offices   repository.OfficeRepository
	roleNames model.RoleNames
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewGuard(
	users repository.UserRepository,
	rbac repository.RBACRepository,
	offices repository.OfficeRepository,
	roleNames model.RoleNames,
	log *logger.Logger,
	m *metrics.Metrics,
) *Guard {
	return &Guard{
		users:     users,
		rbac:      rbac,
		offices:   offices,
		roleNames: roleNames,
		logger:    log,
		metrics:   m,
	}
}

// Resolve loads the actor with its role, permission set and staff membership.
// A missing or inactive user is a denial; a user without a role resolves
// with an empty permission set.
func (g *Guard) Resolve(ctx context.Context, userID uuid.UUID) (*Actor, error) {
	user, err := g.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, g.deny(userID, apperrors.ReasonNotFound, "user not found")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get user: %w", err))
	}
	if !user.IsActive {
		return nil, g.deny(userID, apperrors.ReasonInactive, "user is inactive")
	}

	actor := &Actor{User: user, Permissions: map[string]struct{}{}}
	if user.RoleID != nil {
		role, err := g.rbac.GetRole(ctx, *user.RoleID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// dangling role reference behaves like no role
		case err != nil:
			return nil, apperrors.Internal(fmt.Errorf("failed to get role: %w", err))
		default:
			actor.Role = role
			actor.Kind = g.kindOf(role)
			names, err := g.rbac.ListRolePermissionNames(ctx, role.ID)
			if err != nil {
				return nil, apperrors.Internal(fmt.Errorf("failed to get role permissions: %w", err))
			}
			for _, n := range names {
				actor.Permissions[n] = struct{}{}
			}
		}
	}

	staff, err := g.offices.FirstStaffByUser(ctx, user.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, apperrors.Internal(fmt.Errorf("failed to get staff membership: %w", err))
	default:
		actor.Staff = staff
	}

	return actor, nil
}

// Check allows when the actor holds permission.
func (g *Guard) Check(ctx context.Context, userID uuid.UUID, permission string) error {
	_, err := g.RequireAll(ctx, userID, permission)
	return err
}

// CheckAny allows when the actor holds at least one of permissions.
func (g *Guard) CheckAny(ctx context.Context, userID uuid.UUID, permissions ...string) error {
	_, err := g.RequireAny(ctx, userID, permissions...)
	return err
}

// CheckAll allows when the actor holds every permission and reports the first missing one.
func (g *Guard) CheckAll(ctx context.Context, userID uuid.UUID, permissions ...string) error {
	_, err := g.RequireAll(ctx, userID, permissions...)
	return err
}

// RequireAll resolves the actor and checks every permission, returning the
// actor for the scope checks that follow.
func (g *Guard) RequireAll(ctx context.Context, userID uuid.UUID, permissions ...string) (*Actor, error) {
	actor, err := g.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := g.Authorize(actor, permissions...); err != nil {
		return nil, err
	}
	return actor, nil
}

// RequireAny resolves the actor and checks that at least one permission is held.
func (g *Guard) RequireAny(ctx context.Context, userID uuid.UUID, permissions ...string) (*Actor, error) {
	actor, err := g.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role == nil {
		return nil, g.deny(userID, apperrors.ReasonNoRole, "user has no role")
	}
	for _, p := range permissions {
		if actor.Has(p) {
			return actor, nil
		}
	}
	if len(permissions) == 1 {
		return nil, g.missing(userID, permissions[0])
	}
	return nil, g.deny(userID, apperrors.ReasonMissingPermission,
		fmt.Sprintf("one of permissions %q required", permissions))
}

// Authorize checks an already resolved actor against every permission.
func (g *Guard) Authorize(actor *Actor, permissions ...string) error {
	if actor.Role == nil {
		return g.deny(actor.ID(), apperrors.ReasonNoRole, "user has no role")
	}
	for _, p := range permissions {
		if !actor.Has(p) {
			return g.missing(actor.ID(), p)
		}
	}
	return nil
}

// KindOf reports the kind of role, inferring it from the configured names
// when the stored kind is absent.
func (g *Guard) KindOf(role *model.Role) model.RoleKind {
	return g.kindOf(role)
}

func (g *Guard) kindOf(role *model.Role) model.RoleKind {
	if role.Kind != "" {
		return role.Kind
	}
	return g.roleNames.KindFor(role.Name)
}

// Deny records and returns a Forbidden decision made outside the guard's own checks.
func (g *Guard) Deny(userID uuid.UUID, reason, message string) error {
	return g.deny(userID, reason, message)
}

func (g *Guard) missing(userID uuid.UUID, permission string) error {
	return g.deny(userID, apperrors.ReasonMissingPermission,
		fmt.Sprintf("permission '%s' required", permission))
}

func (g *Guard) deny(userID uuid.UUID, reason, message string) error {
	if g.metrics != nil {
		g.metrics.AuthzDenials.WithLabelValues(reason).Inc()
	}
	if g.logger != nil {
		g.logger.Warn("authorization denied", "user_id", userID.String(), "reason", reason, "detail", message)
	}
	return apperrors.Forbidden(reason, message)
}
