package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrDuplicate               = errors.New("duplicate")
	ErrStaleState              = errors.New("state changed since it was read")
	ErrActiveAppointmentExists = errors.New("an active appointment already exists")
	ErrRequestNotApproved      = errors.New("request is not fully approved")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByPhone(ctx context.Context, phone string) (*model.User, error)
		SetActive(ctx context.Context, id uuid.UUID, active bool) error
		SetRole(ctx context.Context, id uuid.UUID, roleID *uuid.UUID) error
		SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	}

	RBACRepository interface {
		CreatePermission(ctx context.Context, permission *model.Permission) error
		GetPermissionByName(ctx context.Context, name string) (*model.Permission, error)
		ListPermissions(ctx context.Context) ([]*model.Permission, error)
		CreateRole(ctx context.Context, role *model.Role) error
		GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error)
		GetRoleByName(ctx context.Context, name string, officeID *uuid.UUID) (*model.Role, error)
		ListRoles(ctx context.Context, officeID *uuid.UUID) ([]*model.Role, error)
		// ListRolePermissionNames is read on every authorization check and must not be cached.
		ListRolePermissionNames(ctx context.Context, roleID uuid.UUID) ([]string, error)
		// GrantPermission fails with ErrNotFound when the permission does not exist.
		GrantPermission(ctx context.Context, roleID uuid.UUID, permission string) error
		RevokePermission(ctx context.Context, roleID uuid.UUID, permission string) error
	}

	OfficeRepository interface {
		CreateOffice(ctx context.Context, office *model.Office) error
		GetOffice(ctx context.Context, id uuid.UUID) (*model.Office, error)
		ListOffices(ctx context.Context, activeOnly bool) ([]*model.Office, error)
		SetOfficeActive(ctx context.Context, id uuid.UUID, active bool) error

		CreateService(ctx context.Context, service *model.Service) error
		GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
		// ListServices with activeOnly excludes inactive services and services of inactive offices.
		ListServices(ctx context.Context, officeID *uuid.UUID, activeOnly bool) ([]*model.Service, error)

		AddStaff(ctx context.Context, staff *model.Staff) error
		GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error)
		// FirstStaffByUser returns the oldest membership of the user, ErrNotFound if none.
		FirstStaffByUser(ctx context.Context, userID uuid.UUID) (*model.Staff, error)
		ListStaff(ctx context.Context, officeID uuid.UUID) ([]*model.Staff, error)

		AssignStaff(ctx context.Context, serviceID, staffID uuid.UUID) error
		UnassignStaff(ctx context.Context, serviceID, staffID uuid.UUID) error
		IsStaffAssigned(ctx context.Context, serviceID, staffID uuid.UUID) (bool, error)
	}

	RequestRepository interface {
		Create(ctx context.Context, request *model.Request) error
		Get(ctx context.Context, id uuid.UUID) (*model.Request, error)
		List(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error)
		// UpdateDetails applies only while both tracks are pending, else ErrStaleState.
		UpdateDetails(ctx context.Context, request *model.Request) error
		// Delete applies only while both tracks are pending, else ErrStaleState.
		Delete(ctx context.Context, id, requesterID uuid.UUID) error
		// DecideTrack is a single compare-and-set. An approve only lands while the
		// track has no approver; both outcomes require the request to still belong
		// to ExpectServiceID. A failed precondition yields ErrStaleState.
		DecideTrack(ctx context.Context, decision model.TrackDecision) (*model.Request, error)
		OverrideApproval(ctx context.Context, request *model.Request) error
	}

	AppointmentRepository interface {
		// CreateIfNoActive serializes on the owning request: it re-checks that the
		// request is fully approved and that no active appointment exists before inserting.
		CreateIfNoActive(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		// UpdateDetails and Delete apply only to mutable appointments, else ErrStaleState.
		UpdateDetails(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id uuid.UUID) error
		// Transition moves the appointment to status if its current status is a
		// legal source, else ErrStaleState.
		Transition(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events so concurrent workers skip them.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories bundles one implementation of every repository.
type Repositories struct {
	Users        UserRepository
	RBAC         RBACRepository
	Offices      OfficeRepository
	Requests     RequestRepository
	Appointments AppointmentRepository
	Outbox       OutboxRepository
}
