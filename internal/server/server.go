// Package server assembles the Scrawl service: the realtime hub, the
// persistence bridge, the token gate, and the HTTP server that hosts both
// the WebSocket endpoint and the REST API.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/scrawlhq/scrawl/internal/auth"
	"github.com/scrawlhq/scrawl/internal/store"
)

// Server owns every component of the service and wires them together. It is
// created at process start and torn down at shutdown; nothing in this
// package holds ambient global state.
type Server struct {
	cfg           *Config
	store         store.Store
	tokens        *auth.Tokens
	authenticator *Authenticator
	hub           *Hub
	bridge        *Bridge
	origins       *originPolicy
	upgrader      websocket.Upgrader
	validate      *validator.Validate
}

// New assembles a Server from its configuration, durable store, and token
// authority. Run the hub with Hub().Run before serving traffic.
func New(cfg *Config, st store.Store, tokens *auth.Tokens) *Server {
	s := &Server{
		cfg:           cfg,
		store:         st,
		tokens:        tokens,
		authenticator: NewAuthenticator(tokens),
		hub:           NewHub(NewRegistry()),
		bridge:        NewBridge(st),
		origins:       newOriginPolicy(cfg.AllowedOrigins),
		validate:      validator.New(),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}

	return s
}

// Hub returns the realtime hub for lifecycle coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// CreateServer creates and configures an HTTP server with the specified port
// and handler. It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it exits.
func StartServer(server *http.Server) error {
	log.Printf("Server listening on %s", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server shutdown completed")
	return nil
}
