package model

import (
	"time"

	"github.com/google/uuid"
)

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Profile is what /auth/me returns.
type Profile struct {
	UserID      uuid.UUID  `json:"user_id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Role        *Role      `json:"role,omitempty"`
	Permissions []string   `json:"permissions"`
	OfficeID    *uuid.UUID `json:"office_id,omitempty"`
}
