package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-update-relay/update-relay/internal/config"
	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/internal/release"
	"github.com/sirupsen/logrus"
)

// Coordinator answers release lookups, usually from a cache.
type Coordinator interface {
	Lookup(ctx context.Context, account, repository string, arch platform.Arch, version string) (*release.LatestByPlatform, error)
}

type Server struct {
	router      chi.Router
	log         *logrus.Logger
	coordinator Coordinator
	config      *config.ServerConfig
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func New(log *logrus.Logger, coordinator Coordinator, serverCfg *config.ServerConfig) *Server {
	router := chi.NewRouter()
	server := &Server{
		router:      router,
		log:         log,
		coordinator: coordinator,
		config:      serverCfg,
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(server.logMiddleware)
	router.Use(server.recoverMiddleware)

	router.MethodNotAllowed(server.methodNotAllowedHandler)

	// every path is parsed by the update handler, incomplete ones redirect
	// to the documentation
	router.Get("/", server.updatesHandler)
	router.Get("/*", server.updatesHandler)
	router.Head("/", server.updatesHandler)
	router.Head("/*", server.updatesHandler)

	return server
}
