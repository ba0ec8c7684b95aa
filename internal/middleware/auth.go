package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/identity"
)

// AuthMiddleware resolves the caller's session credential to a user id and
// stores it under "userID".
func AuthMiddleware(resolver identity.Resolver, cookieName string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := identity.TokenFromRequest(c.Request, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials", "code": apperrors.CodeUnauthenticated})
			return
		}

		userID, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session", "code": apperrors.CodeUnauthenticated})
				return
			}
			log.Error("identity provider failed", zap.String("request_id", c.GetString(RequestIDKey)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve session", "code": apperrors.CodeInternal})
			return
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session", "code": apperrors.CodeUnauthenticated})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
