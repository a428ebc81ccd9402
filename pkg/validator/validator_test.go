package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPermissionName(t *testing.T) {
	for _, name := range []string{"request:read", "request:approve-staff", "office:manage"} {
		assert.True(t, IsPermissionName(name), name)
	}
	for _, name := range []string{"", "request", "Request:read", "request:", ":read", "a:b:c"} {
		assert.False(t, IsPermissionName(name), name)
	}
}

type registration struct {
	Phone      string `json:"phone" validate:"required,phone"`
	Permission string `json:"permission" validate:"omitempty,permission"`
	Email      string `json:"email" validate:"omitempty,email"`
	Name       string `json:"name" validate:"omitempty,max=8"`
}

func TestRegisteredMessagesUseJSONNames(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	Register(v)

	assert.NoError(t, v.Struct(registration{Phone: "+15550001"}))

	err := v.Struct(registration{Phone: "call me", Permission: "everything", Email: "nope", Name: "a-very-long-name"})
	require.Error(t, err)
	msg := Message(err)
	assert.Contains(t, msg, "phone must be a phone number")
	assert.Contains(t, msg, "permission must have the form resource:action")
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "name must be at most 8 characters")

	assert.Contains(t, Message(v.Struct(registration{})), "phone is required")
	assert.Equal(t, "unexpected EOF", Message(errors.New("unexpected EOF")))
}
