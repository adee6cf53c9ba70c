package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shohag/msgboard/internal/config"
	"github.com/shohag/msgboard/internal/storage"
)

// Deps bundles the collaborators the handlers call into.
type Deps struct {
	Store     storage.Store
	Nodes     NodeLister
	Decrypter NodeDecrypter
}

type Server struct {
	cfg     config.ServerConfig
	devices config.DevicesConfig
	deps    Deps
	router  *chi.Mux
	log     zerolog.Logger
	http    *http.Server
}

func NewServer(cfg config.ServerConfig, devices config.DevicesConfig, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		devices: devices,
		deps:    deps,
		log:     log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverMiddleware(s.log))
	r.Use(LoggingMiddleware(s.log))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	msgHandler := NewMessageHandler(s.deps.Store, s.cfg.MaxBodyBytes)
	devHandler := NewDeviceHandler(s.deps.Nodes, s.deps.Decrypter, s.devices.LegacyErrors, s.log)
	statsHandler := NewStatsHandler(s.deps.Store)

	r.Get("/health", statsHandler.Health)

	r.Get("/messages", msgHandler.List)
	r.Get("/messages/{id}", msgHandler.Get)
	r.Post("/messages", msgHandler.Create)
	r.Delete("/messages/{id}", msgHandler.Delete)

	r.Get("/devices", devHandler.List)

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, NewAPIError(http.StatusNotFound, "not found"))
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
