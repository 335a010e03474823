// Package server wires the WebSocket endpoint and the REST API into a chi
// router with CORS middleware.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes builds the HTTP handler hosting every endpoint of the service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}),
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/test", s.handleTestPage)
	r.Get("/ws", s.handleWebSocket)

	r.Post("/signup", s.handleSignup)
	r.Post("/signin", s.handleSignin)

	r.Route("/rooms", func(r chi.Router) {
		r.With(s.requireAuth).Post("/", s.handleCreateRoom)
		r.Get("/{slug}", s.handleGetRoom)
		r.Get("/{slug}/messages", s.handleListMessages)
	})

	return r
}
