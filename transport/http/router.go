package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/warden/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, secureCookies bool, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Logger(logger))

	handlers := NewAuthHandlers(authService, secureCookies)

	router.GET("/health", handlers.Health)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/authenticate", handlers.Authenticate)
		auth.GET("/challenge", handlers.Challenge)
		auth.POST("/verify-ownership", handlers.VerifyOwnership)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/policy", handlers.Policy)
		api.GET("/protected-state", RequireFresh(authService), handlers.ProtectedState)
	}

	return router
}
