package middleware

import (
	"context"
	"strings"

	"codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Identity describes an authenticated caller.
type Identity struct {
	UserID int64
	Name   string
	Role   string
}

// TokenVerifier validates a bearer token and resolves the caller's identity.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// AuthMiddleware enforces token validation and optional role checks.
func AuthMiddleware(verifier TokenVerifier, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			response.AbortWithErrorCode(c, errors.ServiceUnavailable, "auth service unavailable")
			return
		}

		token := extractBearerToken(c.GetHeader("Authorization"))
		identity, err := verifier.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		if len(roles) > 0 && !hasRole(identity.Role, roles) {
			response.AbortWithErrorCode(c, errors.Forbidden, "insufficient role")
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("user_name", identity.Name)
		c.Set("user_role", identity.Role)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CallerID returns the authenticated user id stored by AuthMiddleware.
func CallerID(c *gin.Context) int64 {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// CallerName returns the authenticated user name stored by AuthMiddleware.
func CallerName(c *gin.Context) string {
	if v, ok := c.Get("user_name"); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func hasRole(role string, allowed []string) bool {
	for _, item := range allowed {
		if strings.EqualFold(role, item) {
			return true
		}
	}
	return false
}
