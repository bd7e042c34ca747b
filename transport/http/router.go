package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/helios-labs/walletgate/internal/metrics"
	"github.com/helios-labs/walletgate/service"
	"go.uber.org/zap"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := NewAuthHandlers(authService, m, logger)

	// SIWE auth flow
	auth := router.Group("/auth/siwe")
	{
		auth.GET("/jwt", handlers.Challenge)
		auth.POST("", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return router
}
