// Package httpapi wires the HTTP surface of the voice journal: routing,
// middleware (request logging, bearer-token verification, lazy user
// resolution), handlers, and the centralized error responder.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/voicejournal/internal/logging"
	"github.com/dmitrijs2005/voicejournal/internal/server/auth"
	"github.com/dmitrijs2005/voicejournal/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP server for the voice journal API.
type Server struct {
	logger     logging.Logger
	httpServer *http.Server
}

// NewServer builds the router and wires middleware and handlers.
func NewServer(addr string, logger logging.Logger, verifier auth.Verifier,
	userService *services.UserService, entryService *services.EntryService) *Server {

	eh := NewEntryHandler(entryService, logger)
	uh := NewUserHandler(userService, logger)

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(verifier, logger))
		r.Use(ResolveUser(userService, logger))

		r.Route("/voice-entries", func(r chi.Router) {
			r.Post("/", eh.Create)
			r.Get("/", eh.List)
			r.Get("/{id}", eh.Get)
			r.Put("/{id}", eh.Update)
			r.Delete("/{id}", eh.Delete)
			r.Get("/{id}/audio", eh.Stream)
			r.Post("/{id}/transcribe", eh.Transcribe)
		})

		r.Get("/users/me", uh.Me)
	})

	return &Server{
		logger:     logger,
		httpServer: &http.Server{Addr: addr, Handler: r},
	}
}

// Handler exposes the router, mainly for httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully. In-flight
// streams get shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
