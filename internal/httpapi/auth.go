package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/store/userstore"
)

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerHandler serves POST /auth/register (spec §6 admin-plane user auth).
func registerHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body credentialsBody
		if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" || body.Password == "" {
			writeValidationError(c, "username and password are required")
			return
		}

		u, err := a.Users.Register(c.Request.Context(), body.Username, body.Password)
		if err != nil {
			if errors.Is(err, userstore.ErrUserExists) {
				c.JSON(http.StatusConflict, gin.H{"error": gin.H{"type": "conflict", "message": err.Error()}})
				return
			}

			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"type": "internal_error", "message": err.Error()}})

			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username})
	}
}

func loginHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body credentialsBody
		if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" || body.Password == "" {
			writeValidationError(c, "username and password are required")
			return
		}

		token, err := a.Users.Login(c.Request.Context(), body.Username, body.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"type": "auth", "message": "invalid credentials"}})
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func logoutHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)

		_ = a.Users.Logout(c.Request.Context(), token)

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")

	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}

	return ""
}

// adminAuth guards every /admin/* route with the JWT issued by /auth/login
// (spec §6 admin plane).
func adminAuth(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"type": "auth", "message": "missing bearer token"}})
			return
		}

		if _, err := a.Users.Authenticate(c.Request.Context(), token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"type": "auth", "message": "invalid or expired token"}})
			return
		}

		c.Next()
	}
}
