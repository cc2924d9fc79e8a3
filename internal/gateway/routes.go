package gateway

import (
	"github.com/gin-gonic/gin"

	"github.com/flashcording/agent-orchestrator/internal/auth"
)

// RegisterRoutes mounts the API under /api
func RegisterRoutes(router *gin.Engine, h *Handler, socket *GenerationSocket, jwtManager *auth.JWTManager) {
	api := router.Group("/api")

	// Public routes (no authentication required)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.GET("/agent/templates", auth.OptionalAuth(jwtManager), h.ListTemplates)

	// The socket authenticates itself so browsers can pass the token as a query parameter
	api.GET("/ws/agent/generate", socket.Stream)

	// Protected routes (require JWT authentication)
	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))

	protected.GET("/auth/me", h.Me)
	protected.POST("/auth/refresh", h.RefreshToken)

	// Generation routes
	protected.POST("/agent/generate", h.GenerateCode)
	protected.POST("/agent/generate/stream", h.GenerateStream)
	protected.GET("/agent/session", h.GetSessionState)
	protected.DELETE("/agent/session", h.CancelGeneration)

	// History routes
	protected.GET("/agent/jobs", h.ListJobs)
	protected.GET("/agent/jobs/:id", h.GetJob)
	protected.GET("/activities", h.ListActivities)

	// LLM service passthrough
	protected.POST("/agent/validate", h.ValidateCode)
	protected.GET("/agent/context", h.GetProjectContext)

	// Settings
	protected.GET("/settings", h.GetSettings)
	protected.PUT("/settings", auth.RequireRole(auth.RoleAdmin), h.UpdateSettings)
}
