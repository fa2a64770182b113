package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"couplespace/focus/internal/handler"
	"couplespace/focus/internal/middleware"
	"couplespace/focus/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	focusHandler *handler.FocusHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	focus := api.Group("/focus")
	focus.Use(middleware.Auth(authService))
	focus.GET("/timer-state", focusHandler.GetTimerState)
	focus.PATCH("/timer-state", focusHandler.UpdateTimerState)
	focus.GET("/stats", focusHandler.GetStats)
	focus.PATCH("/stats/complete-session", focusHandler.CompleteSession)

	return engine
}
