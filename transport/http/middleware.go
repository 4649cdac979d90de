package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/questfall/walletgate/core"
	"github.com/questfall/walletgate/service"
)

const (
	contextClaimsKey = "accessClaims"
	contextUserIDKey = "userID"
)

// AuthMiddleware validates the bearer access token and, when the token
// is bound to a session, runs the session security guard against the
// current request.
func AuthMiddleware(tokens *service.TokenService, guard *service.SessionSecurityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		claims, err := tokens.ParseAccessToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		// Tokens issued without a session row (stateless degrade) skip
		// the guard; everything else is re-validated per request.
		if claims.SessionID != "" {
			sessionID, err := uuid.Parse(claims.SessionID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}

			if err := guard.ValidateRequestSession(c.Request.Context(), c.Request, userID, sessionID); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": mapGuardError(err)})
				return
			}
		}

		c.Set(contextClaimsKey, claims)
		c.Set(contextUserIDKey, userID)

		c.Next()
	}
}

func mapGuardError(err error) string {
	switch {
	case errors.Is(err, core.ErrSessionInvalid):
		return "Invalid session"
	case errors.Is(err, core.ErrSessionExpired):
		return "Session expired"
	case errors.Is(err, core.ErrDeviceNotRecognized):
		return "Device not recognized"
	case errors.Is(err, core.ErrSuspiciousDeviceChange):
		return "Suspicious device change"
	case errors.Is(err, core.ErrSuspiciousLocation):
		return "Suspicious location change"
	default:
		return "Unauthorized"
	}
}
