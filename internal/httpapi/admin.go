package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/domain"
)

type createKeyBody struct {
	ClientName     string `json:"client_name"`
	AdapterName    string `json:"adapter_name"`
	SystemPromptID string `json:"system_prompt_id"`
}

// createKeyHandler serves POST /admin/api-keys (spec §6).
func createKeyHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createKeyBody
		if err := c.ShouldBindJSON(&body); err != nil || body.ClientName == "" || body.AdapterName == "" {
			writeValidationError(c, "client_name and adapter_name are required")
			return
		}

		token, err := a.Keys.CreateKey(c.Request.Context(), body.ClientName, body.AdapterName, body.SystemPromptID)
		if err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"token": token})
	}
}

func listKeysHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := a.Keys.List(c.Request.Context())
		if err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"keys": keys})
	}
}

// statusKeyHandler serves GET /admin/api-keys/{token} (spec §6).
func statusKeyHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := a.Keys.Status(c.Request.Context(), c.Param("token"))
		if err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusOK, key)
	}
}

func deleteKeyHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Keys.Delete(c.Request.Context(), c.Param("token")); err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

func deactivateKeyHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Keys.Deactivate(c.Request.Context(), c.Param("token")); err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
	}
}

type promptBody struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

func createPromptHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body promptBody
		if err := c.ShouldBindJSON(&body); err != nil || body.ID == "" || body.Text == "" {
			writeValidationError(c, "id and text are required")
			return
		}

		p := &domain.SystemPrompt{ID: body.ID, Name: body.Name, Text: body.Text}
		if err := a.Keys.CreatePrompt(c.Request.Context(), p); err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusCreated, p)
	}
}

func listPromptsHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		prompts, err := a.Keys.ListPrompts(c.Request.Context())
		if err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"prompts": prompts})
	}
}

// getPromptHandler serves GET /admin/prompts/{id} (spec §6 prompt CRUD).
func getPromptHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.Keys.GetPrompt(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeOrbitError(c, err)
			return
		}

		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "prompt not found"})
			return
		}

		c.JSON(http.StatusOK, p)
	}
}

func updatePromptHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body promptBody
		if err := c.ShouldBindJSON(&body); err != nil || body.Text == "" {
			writeValidationError(c, "text is required")
			return
		}

		p, err := a.Keys.UpdatePrompt(c.Request.Context(), c.Param("id"), body.Text)
		if err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusOK, p)
	}
}

func deletePromptHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Keys.DeletePrompt(c.Request.Context(), c.Param("id")); err != nil {
			writeOrbitError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}
