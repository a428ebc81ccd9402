package model

import (
	"github.com/google/uuid"
)

// Office is the organizational unit scoping managers and staff.
type Office struct {
	Base
	Name     string `db:"name" json:"name"`
	Address  string `db:"address" json:"address"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Staff binds a user to an office. It is the only way an actor acquires an office.
type Staff struct {
	Base
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	OfficeID uuid.UUID `db:"office_id" json:"office_id"`
	Title    string    `db:"title" json:"title,omitempty"`
}

// Service is something an office offers to citizens.
type Service struct {
	Base
	OfficeID    uuid.UUID `db:"office_id" json:"office_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
}

// ServiceStaffAssignment restricts which staff may decide requests for a service.
type ServiceStaffAssignment struct {
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	StaffID   uuid.UUID `db:"staff_id" json:"staff_id"`
}

type CreateOfficeRequest struct {
	Name    string `json:"name" binding:"required" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
}

type CreateServiceRequest struct {
	Name        string `json:"name" binding:"required" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type AddStaffRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required" validate:"required"`
	Title  string    `json:"title" validate:"max=100"`
}

type AssignStaffRequest struct {
	StaffID uuid.UUID `json:"staff_id" binding:"required" validate:"required"`
}
