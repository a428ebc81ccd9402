package model

import (
	"strings"

	"github.com/google/uuid"
)

// RoleKind is the typed capability tier of a role. Scoping and elevation
// rules are driven by the kind, never by the display name.
type RoleKind string

const (
	RoleKindAdmin    RoleKind = "admin"
	RoleKindManager  RoleKind = "manager"
	RoleKindStaff    RoleKind = "staff"
	RoleKindCustomer RoleKind = "customer"
	RoleKindCustom   RoleKind = "custom"
)

// ParseRoleKind is case-insensitive; unknown values are Custom.
func ParseRoleKind(s string) RoleKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleKindAdmin
	case "manager":
		return RoleKindManager
	case "staff":
		return RoleKindStaff
	case "customer":
		return RoleKindCustomer
	default:
		return RoleKindCustom
	}
}

// Elevated reports whether the kind may only be granted by an admin.
func (k RoleKind) Elevated() bool {
	return k == RoleKindAdmin || k == RoleKindManager
}

// RoleNames maps configured default role names onto kinds.
type RoleNames struct {
	Admin    string `mapstructure:"admin"`
	Manager  string `mapstructure:"manager"`
	Staff    string `mapstructure:"staff"`
	Customer string `mapstructure:"customer"`
}

func DefaultRoleNames() RoleNames {
	return RoleNames{Admin: "admin", Manager: "manager", Staff: "staff", Customer: "customer"}
}

// KindFor infers the kind of a role from its name, ignoring case.
func (n RoleNames) KindFor(name string) RoleKind {
	name = strings.TrimSpace(name)
	switch {
	case n.Admin != "" && strings.EqualFold(name, n.Admin):
		return RoleKindAdmin
	case n.Manager != "" && strings.EqualFold(name, n.Manager):
		return RoleKindManager
	case n.Staff != "" && strings.EqualFold(name, n.Staff):
		return RoleKindStaff
	case n.Customer != "" && strings.EqualFold(name, n.Customer):
		return RoleKindCustomer
	default:
		return RoleKindCustom
	}
}

// NameFor returns the configured name for a built-in kind.
func (n RoleNames) NameFor(kind RoleKind) string {
	switch kind {
	case RoleKindAdmin:
		return n.Admin
	case RoleKindManager:
		return n.Manager
	case RoleKindStaff:
		return n.Staff
	case RoleKindCustomer:
		return n.Customer
	}
	return ""
}

type Role struct {
	Base
	Name        string     `db:"name" json:"name"`
	Kind        RoleKind   `db:"kind" json:"kind"`
	Description string     `db:"description" json:"description"`
	OfficeID    *uuid.UUID `db:"office_id" json:"office_id,omitempty"`
}

type Permission struct {
	Base
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

type RolePermission struct {
	RoleID       uuid.UUID `db:"role_id" json:"role_id"`
	PermissionID uuid.UUID `db:"permission_id" json:"permission_id"`
}

// RoleWithPermissions is the read projection of a role.
type RoleWithPermissions struct {
	Role
	Permissions []string `json:"permissions"`
}

// Permissions referenced directly by the workflow and lifecycle code.
const (
	PermRequestCreate         = "request:create"
	PermRequestRead           = "request:read"
	PermRequestUpdate         = "request:update"
	PermRequestDelete         = "request:delete"
	PermRequestApproveStaff   = "request:approve-staff"
	PermRequestApproveManager = "request:approve-manager"
	PermAppointmentRead       = "appointment:read"
	PermAppointmentUpdate     = "appointment:update"
	PermAppointmentDelete     = "appointment:delete"
	PermRoleManage            = "role:manage"
	PermRoleAssign            = "role:assign"
	PermPermissionManage      = "permission:manage"
	PermOfficeManage          = "office:manage"
	PermUserManage            = "user:manage"
)

// AllPermissions is the seeded catalogue.
func AllPermissions() []string {
	return []string{
		PermRequestCreate, PermRequestRead, PermRequestUpdate, PermRequestDelete,
		PermRequestApproveStaff, PermRequestApproveManager,
		PermAppointmentRead, PermAppointmentUpdate, PermAppointmentDelete,
		PermRoleManage, PermRoleAssign, PermPermissionManage,
		PermOfficeManage, PermUserManage,
	}
}

// DefaultGrants is the seeded role matrix.
func DefaultGrants() map[RoleKind][]string {
	return map[RoleKind][]string{
		RoleKindAdmin: AllPermissions(),
		RoleKindManager: {
			PermRequestRead, PermRequestApproveManager,
			PermAppointmentRead, PermAppointmentUpdate, PermAppointmentDelete,
			PermRoleAssign, PermOfficeManage,
		},
		RoleKindStaff: {
			PermRequestRead, PermRequestApproveStaff,
			PermAppointmentRead, PermAppointmentUpdate,
		},
		RoleKindCustomer: {
			PermRequestCreate, PermRequestRead, PermRequestDelete,
			PermAppointmentRead, PermAppointmentUpdate, PermAppointmentDelete,
		},
	}
}

type CreateRoleRequest struct {
	Name        string     `json:"name" binding:"required" validate:"required,max=100"`
	Kind        string     `json:"kind" validate:"omitempty,oneof=admin manager staff customer custom"`
	Description string     `json:"description" validate:"max=500"`
	OfficeID    *uuid.UUID `json:"office_id"`
}

type CreatePermissionRequest struct {
	Name        string `json:"name" binding:"required" validate:"required,permission"`
	Description string `json:"description" validate:"max=500"`
}

type GrantPermissionRequest struct {
	Permission string `json:"permission" binding:"required" validate:"required,permission"`
}

type AssignRoleRequest struct {
	RoleID *uuid.UUID `json:"role_id"`
}
