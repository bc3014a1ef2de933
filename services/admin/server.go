package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sjsage522/pricemonitor/logger"
	"sjsage522/pricemonitor/services/tracker"
)

// Server serves product management inside the monitor process, so the
// monitor and the admin commands share one store and one fetch session.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates an admin server listening on addr
func NewServer(addr string, t *tracker.Tracker) *Server {
	log := logger.ForAdmin()
	handlers := NewHandlers(t)

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/chats/{chatID}", func(r chi.Router) {
		r.Get("/products", handlers.ListProducts)
		r.Post("/products", handlers.AddProduct)
		r.Delete("/products", handlers.RemoveProduct)
		r.Get("/status", handlers.GetStatus)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("Admin API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
