package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
	"github.com/jwalitptl/office-portal/pkg/validator"
)

const (
	// ContextUserID is the gin context key holding the authenticated user id.
	ContextUserID = "userID"
	// ContextRequestID holds the correlation id echoed in X-Request-ID and
	// in every error body.
	ContextRequestID = "request_id"
)

type Response struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error renders err with the status its kind maps to. Internal details never
// reach the client.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	reason := appErr.Reason
	if reason == "" {
		reason = appErr.Kind.String()
	}
	c.AbortWithStatusJSON(appErr.StatusCode(), &Response{
		Status:    "error",
		Message:   appErr.Message,
		Reason:    reason,
		RequestID: c.GetString(ContextRequestID),
	})
}

// Abort answers with a plain error body carrying the request id.
func Abort(c *gin.Context, status int, message string) {
	resp := NewErrorResponse(message)
	resp.RequestID = c.GetString(ContextRequestID)
	c.AbortWithStatusJSON(status, resp)
}

// BindError answers a request whose body or query failed to bind.
func BindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, &Response{
		Status:    "error",
		Message:   validator.Message(err),
		Reason:    apperrors.KindValidation.String(),
		RequestID: c.GetString(ContextRequestID),
	})
}

// UserID returns the authenticated user. ok is false on unauthenticated routes.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// MustUserID answers 401 and returns false when no user is attached.
func MustUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := UserID(c)
	if !ok {
		Abort(c, http.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

// ParamID parses a uuid path parameter, answering 400 when malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Abort(c, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
