package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/office-portal/internal/handler"
	"github.com/jwalitptl/office-portal/internal/service/authz"
	"github.com/jwalitptl/office-portal/pkg/auth"
)

type AuthMiddleware struct {
	jwt   auth.JWTService
	guard *authz.Guard
}

func NewAuthMiddleware(jwt auth.JWTService, guard *authz.Guard) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:   jwt,
		guard: guard,
	}
}

// Authenticate verifies the bearer token and stores the user id in the context.
// Roles are not read from the token; every permission check hits the store.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.Abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			handler.Abort(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.jwt.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token expired"
			}
			handler.Abort(c, http.StatusUnauthorized, msg)
			return
		}

		c.Set(handler.ContextUserID, claims.UserID)
		c.Next()
	}
}

// RequirePermission rejects the request unless the user holds every permission.
func (m *AuthMiddleware) RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := handler.MustUserID(c)
		if !ok {
			return
		}
		if err := m.guard.CheckAll(c.Request.Context(), userID, permissions...); err != nil {
			handler.Error(c, err)
			return
		}
		c.Next()
	}
}
