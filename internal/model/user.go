package model

import (
	"github.com/google/uuid"
)

// User represents a portal account. Phone is the primary unique identifier.
type User struct {
	Base
	Phone        string     `json:"phone" db:"phone"`
	Username     *string    `json:"username,omitempty" db:"username"`
	Email        *string    `json:"email,omitempty" db:"email"`
	Name         string     `json:"name" db:"name"`
	PasswordHash string     `json:"-" db:"password_hash"`
	RoleID       *uuid.UUID `json:"role_id,omitempty" db:"role_id"`
	IsActive     bool       `json:"is_active" db:"is_active"`
}

type RegisterRequest struct {
	Phone    string  `json:"phone" binding:"required" validate:"required,phone"`
	Password string  `json:"password" binding:"required" validate:"required,min=8,max=72"`
	Name     string  `json:"name" binding:"required" validate:"required,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Username *string `json:"username" validate:"omitempty,min=3,max=64"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required" validate:"required"`
	Password string `json:"password" binding:"required" validate:"required"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
