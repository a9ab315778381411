// Package httpapi is the HTTP/SSE front door (spec §4.1): route registration
// and handlers over the chat pipeline and the key/prompt/user stores,
// grounded on axonhub's internal/server package (Server wrapping *gin.Engine,
// Run/Shutdown lifecycle, fx-free since ORBIT's collaborator graph is small
// enough to build directly in internal/app rather than through a DI
// container).
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/httpapi/middleware"
	"github.com/orbitgw/orbit/internal/log"
)

// Server wraps a *gin.Engine with the same embed-and-extend shape as
// axonhub's internal/server.Server.
type Server struct {
	*gin.Engine

	app  *app.App
	http *http.Server
}

func New(a *app.App) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(middleware.Recovery(), middleware.AccessLog())

	if a.Config.HTTP.CORSEnabled {
		engine.Use(cors.Default())
	}

	srv := &Server{Engine: engine, app: a}
	registerRoutes(engine, a)

	return srv
}

// Run blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Run() error {
	cfg := s.app.Config.HTTP

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.http = &http.Server{
		Addr:        addr,
		Handler:     s.Engine,
		ReadTimeout: cfg.ReadTimeout,
	}

	log.Info(context.Background(), "http server listening", log.String("addr", addr))

	err := s.http.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
