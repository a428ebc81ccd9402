package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/internal/service/authz"
	"github.com/jwalitptl/office-portal/pkg/auth"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	userRepo  repository.UserRepository
	rbacRepo  repository.RBACRepository
	guard     *authz.Guard
	jwtSvc    auth.JWTService
	hasher    security.PasswordHasher
	roleNames model.RoleNames
	logger    *logger.Logger
}

func NewService(
	userRepo repository.UserRepository,
	rbacRepo repository.RBACRepository,
	guard *authz.Guard,
	jwtSvc auth.JWTService,
	hasher security.PasswordHasher,
	roleNames model.RoleNames,
	log *logger.Logger,
) *Service {
	return &Service{
		userRepo:  userRepo,
		rbacRepo:  rbacRepo,
		guard:     guard,
		jwtSvc:    jwtSvc,
		hasher:    hasher,
		roleNames: roleNames,
		logger:    log,
	}
}

// Register creates an active user holding the platform customer role.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	role, err := s.platformRole(ctx, model.RoleKindCustomer)
	if err != nil {
		return nil, err
	}
	return s.createUser(ctx, req, &role.ID)
}

// EnsureAdmin creates the bootstrap admin account unless the phone is already registered.
func (s *Service) EnsureAdmin(ctx context.Context, req model.RegisterRequest) error {
	if _, err := s.userRepo.GetByPhone(ctx, req.Phone); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	role, err := s.platformRole(ctx, model.RoleKindAdmin)
	if err != nil {
		return err
	}
	user, err := s.createUser(ctx, req, &role.ID)
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", "user_id", user.ID.String())
	return nil
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthenticated(ErrInvalidCredentials.Error())
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get user: %w", err))
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			s.logger.Error(err, "stored password hash is unusable", "user_id", user.ID.String())
		}
		return nil, apperrors.Unauthenticated(ErrInvalidCredentials.Error())
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden(apperrors.ReasonInactive, "user is inactive")
	}
	s.rehash(ctx, user, req.Password)

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(user.ID, user.Phone)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// Me describes the caller as the guard currently sees them.
func (s *Service) Me(ctx context.Context, actorID uuid.UUID) (*model.Profile, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	permissions := actor.PermissionList()
	sort.Strings(permissions)
	return &model.Profile{
		UserID:      actor.ID(),
		Name:        actor.User.Name,
		Phone:       actor.User.Phone,
		Role:        actor.Role,
		Permissions: permissions,
		OfficeID:    actor.OfficeID(),
	}, nil
}

func (s *Service) createUser(ctx context.Context, req model.RegisterRequest, roleID *uuid.UUID) (*model.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrPasswordTooShort):
			return nil, apperrors.Validation(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
		case errors.Is(err, security.ErrPasswordTooLong):
			return nil, apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", security.MaxPasswordLen), err)
		}
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Phone:        strings.TrimSpace(req.Phone),
		Username:     req.Username,
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		RoleID:       roleID,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(apperrors.ReasonDuplicate, "phone, username or email already registered")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create user: %w", err))
	}
	return user, nil
}

func (s *Service) platformRole(ctx context.Context, kind model.RoleKind) (*model.Role, error) {
	name := s.roleNames.NameFor(kind)
	role, err := s.rbacRepo.GetRoleByName(ctx, name, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Dependency(fmt.Sprintf("role '%s' is not seeded", name), err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get role %s: %w", name, err))
	}
	return role, nil
}

// rehash upgrades a hash made with an outdated cost. Failure leaves the old
// hash in place; the login still succeeds.
func (s *Service) rehash(ctx context.Context, user *model.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash skipped", "user_id", user.ID.String(), "error", err.Error())
		return
	}
	if err := s.userRepo.SetPasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Error(err, "failed to store rehashed password", "user_id", user.ID.String())
		return
	}
	s.logger.Info("password rehashed", "user_id", user.ID.String())
}
