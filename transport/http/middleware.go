package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/helios-labs/walletgate/core"
	"github.com/helios-labs/walletgate/service"
)

const sessionContextKey = "walletgate.session"

// AuthMiddleware creates middleware that validates bearer access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")

		session, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(sessionContextKey, session)

		c.Next()
	}
}

func sessionFromContext(c *gin.Context) *core.Session {
	v, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	session, ok := v.(*core.Session)
	if !ok {
		return nil
	}
	return session
}
