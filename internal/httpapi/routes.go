package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/httpapi/middleware"
)

func registerRoutes(engine *gin.Engine, a *app.App) {
	plain := middleware.WithTimeout(a.Config.HTTP.RequestTimeout)

	engine.GET("/health", plain, healthHandler(a))
	engine.GET("/health/ready", plain, readyHandler(a))

	chat := engine.Group("/")
	chat.Use(middleware.WithTimeout(a.Config.HTTP.ChatRequestTimeout))
	chat.POST("/chat", chatHandler(a))
	chat.POST("/v1/chat/completions", chatCompletionsHandler(a))
	chat.POST("/mcp", mcpHandler(a))

	auth := engine.Group("/auth")
	auth.Use(plain)
	auth.POST("/register", registerHandler(a))
	auth.POST("/login", loginHandler(a))
	auth.POST("/logout", logoutHandler(a))

	admin := engine.Group("/admin")
	admin.Use(plain, adminAuth(a))
	admin.POST("/api-keys", createKeyHandler(a))
	admin.GET("/api-keys", listKeysHandler(a))
	admin.GET("/api-keys/:token", statusKeyHandler(a))
	admin.DELETE("/api-keys/:token", deleteKeyHandler(a))
	admin.POST("/api-keys/:token/deactivate", deactivateKeyHandler(a))
	admin.POST("/prompts", createPromptHandler(a))
	admin.GET("/prompts", listPromptsHandler(a))
	admin.GET("/prompts/:id", getPromptHandler(a))
	admin.PUT("/prompts/:id", updatePromptHandler(a))
	admin.DELETE("/prompts/:id", deletePromptHandler(a))
	admin.GET("/system-status", systemStatusHandler(a))
}
