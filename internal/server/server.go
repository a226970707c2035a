package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mwhitley/crucible/internal/channel"
	"github.com/mwhitley/crucible/internal/config"
	"github.com/mwhitley/crucible/internal/dispatch"
	"github.com/mwhitley/crucible/internal/sandbox"
	"github.com/mwhitley/crucible/internal/storage"
)

// Server is the HTTP front of the execution service: the REST
// submission API and the websocket streaming gateway.
type Server struct {
	cfg        *config.Config
	store      storage.Store
	channel    channel.Store
	dispatcher *dispatch.Dispatcher
	policy     sandbox.Policy
	limiter    *rateLimiter
	router     chi.Router
	http       *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, ch channel.Store, d *dispatch.Dispatcher, policy sandbox.Policy) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		channel:    ch,
		dispatcher: d,
		policy:     policy,
		limiter:    newRateLimiter(cfg.Server.RatePerMinute, cfg.Server.RateBurst),
		router:     chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)

			// Submissions are rate limited; reads are not.
			r.With(s.limiter.middleware).Post("/executions", s.handleCreateExecution)

			r.Get("/executions", s.handleListExecutions)
			r.Get("/executions/{id}", s.handleGetExecution)
			r.Delete("/executions/{id}", s.handleDeleteExecution)
		})

		// WebSocket (no JSON content-type)
		r.Get("/stream", s.handleWebSocket)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("Crucible server starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server. Open websocket
// connections are closed by the listener teardown; their streaming
// loops are cancelled by the connection close.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
