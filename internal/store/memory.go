// Package store provides an in-memory Store with the same semantics as the
// Mongo implementation, used by tests and storeless development runs.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implements Store with plain maps behind a mutex. Uniqueness
// conflicts return the same sentinels as the Mongo implementation so the
// persistence bridge behaves identically against either.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*User // keyed by email
	rooms    map[string]*Room // keyed by slug
	messages map[string][]Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*User),
		rooms:    make(map[string]*Room),
		messages: make(map[string][]Message),
	}
}

// CreateUser registers a user, rejecting duplicate emails with ErrUserExists.
func (m *Memory) CreateUser(_ context.Context, email, name, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[email]; exists {
		return nil, ErrUserExists
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[email] = user

	copied := *user
	return &copied, nil
}

// FindUserByEmail returns the user with the given email or ErrNotFound.
func (m *Memory) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[email]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// FindRoomBySlug returns the room with the given slug or ErrNotFound.
func (m *Memory) FindRoomBySlug(_ context.Context, slug string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, exists := m.rooms[slug]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *room
	return &copied, nil
}

// CreateRoom creates a room, rejecting duplicate slugs with ErrRoomExists.
func (m *Memory) CreateRoom(_ context.Context, slug, adminID string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[slug]; exists {
		return nil, ErrRoomExists
	}

	room := &Room{
		ID:        uuid.NewString(),
		Slug:      slug,
		AdminID:   adminID,
		CreatedAt: time.Now().UTC(),
	}
	m.rooms[slug] = room

	copied := *room
	return &copied, nil
}

// AppendMessage records a message under the room.
func (m *Memory) AppendMessage(_ context.Context, roomID, userID, body string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	m.messages[roomID] = append(m.messages[roomID], msg)

	copied := msg
	return &copied, nil
}

// ListRecentMessages returns up to limit messages for the room, newest first.
func (m *Memory) ListRecentMessages(_ context.Context, roomID string, limit int64) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.messages[roomID]

	// Appends are chronological, so newest first is the reverse order.
	messages := make([]Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		messages = append(messages, stored[i])
		if limit > 0 && int64(len(messages)) == limit {
			break
		}
	}
	return messages, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close(context.Context) error {
	return nil
}

// MessageCount reports the number of messages stored under the room. Test
// helper; the realtime core never reads it.
func (m *Memory) MessageCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[roomID])
}
