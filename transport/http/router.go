package http

import (
	"github.com/gin-gonic/gin"

	"github.com/questfall/walletgate/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(
	authService *service.AuthService,
	tokenService *service.TokenService,
	guard *service.SessionSecurityService,
) *gin.Engine {
	router := gin.Default()

	handlers := NewAuthHandlers(authService, tokenService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/wallet/connect", handlers.Connect)
		auth.POST("/wallet/authenticate", handlers.Authenticate)
		auth.POST("/refresh-token", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(tokenService, guard))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
