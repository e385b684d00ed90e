package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// accessTokenQuery carries the token on websocket upgrades, where browsers
// cannot set an Authorization header.
const accessTokenQuery = "access_token"

// RequireAccessToken verifies an access token and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimPrefix(raw, bearerPrefix), true
	}
	if raw == "" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if tok := strings.TrimSpace(c.Query(accessTokenQuery)); tok != "" {
			return tok, true
		}
	}
	return "", false
}
