// Package server implements the REST API: account signup and signin, room
// creation and lookup, and recent message history.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/scrawlhq/scrawl/internal/auth"
	"github.com/scrawlhq/scrawl/internal/store"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createRoomRequest struct {
	Name string `json:"name" validate:"required,min=3,max=32,alphanum"`
}

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// decodeAndValidate decodes the request body into v and runs the struct
// validation rules. On failure it writes the 400 response itself.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "invalid request body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "incorrect input"})
		return false
	}
	return true
}

// handleSignup registers a new account and returns its user id.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, req.Name, hash)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			writeJSON(w, http.StatusConflict, apiError{Message: "user already exists with this email"})
			return
		}
		log.Printf("Error creating user: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"userId": user.ID})
}

// handleSignin verifies credentials and issues a bearer token accepted by
// the WebSocket gate.
func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := s.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusForbidden, apiError{Message: "invalid credentials"})
			return
		}
		log.Printf("Error looking up user: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	if !auth.ComparePassword(user.PasswordHash, req.Password) {
		writeJSON(w, http.StatusForbidden, apiError{Message: "invalid credentials"})
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		log.Printf("Error issuing token: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleCreateRoom creates a room owned by the authenticated user. The
// explicit endpoint shares slug-uniqueness semantics with the lazy creation
// done by the persistence bridge, but surfaces the conflict to the caller.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "not authorized"})
		return
	}

	var req createRoomRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	room, err := s.store.CreateRoom(r.Context(), req.Name, userID)
	if err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			writeJSON(w, http.StatusConflict, apiError{Message: "room already exists with this name"})
			return
		}
		log.Printf("Error creating room: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"roomId": room.ID})
}

// handleGetRoom returns the room record for a slug.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	room, err := s.store.FindRoomBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Message: "room not found"})
			return
		}
		log.Printf("Error looking up room %q: %v", slug, err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]*store.Room{"room": room})
}

// handleListMessages returns the most recent messages for a room, newest
// first, capped by the configured history limit.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	room, err := s.store.FindRoomBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, apiError{Message: "room not found"})
			return
		}
		log.Printf("Error looking up room %q: %v", slug, err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}

	messages, err := s.store.ListRecentMessages(r.Context(), room.ID, s.cfg.HistoryLimit)
	if err != nil {
		log.Printf("Error listing messages for room %q: %v", slug, err)
		writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error"})
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	writeJSON(w, http.StatusOK, map[string][]store.Message{"messages": messages})
}

type contextKey string

const userIDKey contextKey = "userID"

func contextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// requireAuth authenticates the Authorization header (with or without a
// "Bearer " prefix) and stores the user id on the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID, err := s.authenticator.Authenticate(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, apiError{Message: "not authorized"})
			return
		}

		ctx := contextWithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
