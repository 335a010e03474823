// Package store defines the durable persistence layer for Scrawl: users,
// rooms, and the chat messages appended to them. The realtime core only
// depends on the Store interface; MongoDB backs it in production and an
// in-memory implementation backs tests and storeless development runs.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations. Callers are expected to
// branch with errors.Is; in particular ErrRoomExists signals a benign
// create race, not a failure.
var (
	ErrNotFound   = errors.New("store: not found")
	ErrRoomExists = errors.New("store: room already exists")
	ErrUserExists = errors.New("store: user already exists")
)

// User is a registered account. IDs are UUID strings assigned at creation.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

// Room is a named broadcast channel. The slug is unique store-wide and the
// admin is the user whose action caused the room to be created.
type Room struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	AdminID   string    `json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the durable store consumed by the realtime core and the HTTP API.
type Store interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	FindRoomBySlug(ctx context.Context, slug string) (*Room, error)
	CreateRoom(ctx context.Context, slug, adminID string) (*Room, error)

	AppendMessage(ctx context.Context, roomID, userID, body string) (*Message, error)
	ListRecentMessages(ctx context.Context, roomID string, limit int64) ([]Message, error)

	Close(ctx context.Context) error
}
