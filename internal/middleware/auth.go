package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/password-policy/pkg/auth"
	apperrors "github.com/jwalitptl/password-policy/pkg/errors"
)

const (
	ContextSubject = "subject"
	ContextClaims  = "claims"
)

type AuthMiddleware struct {
	jwtService auth.JWTService
}

func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// Authenticate verifies the bearer token and stores its claims in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperrors.Unauthorized("missing authorization header", nil))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, apperrors.Unauthorized("invalid authorization format", nil))
			return
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			abort(c, apperrors.Unauthorized("invalid token", err))
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose token lacks role. It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(ContextClaims)
		claims, isClaims := value.(*auth.Claims)
		if !ok || !isClaims {
			abort(c, apperrors.Unauthorized("not authenticated", nil))
			return
		}

		if !claims.HasRole(role) {
			abort(c, apperrors.Forbidden("permission denied", nil))
			return
		}

		c.Next()
	}
}

func abort(c *gin.Context, err *apperrors.AppError) {
	status := err.StatusCode()
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    status,
		Message: err.Message,
		TraceID: c.GetString(ContextRequestID),
	})
}
