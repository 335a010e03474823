// Package server bridges accepted chat frames into the durable store with
// idempotent room creation.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrawlhq/scrawl/internal/store"
)

// Bridge persists chat messages. Failures here degrade durability only; the
// in-memory relay has already been queued by the time the bridge runs.
type Bridge struct {
	store store.Store
}

// NewBridge creates a Bridge writing to st.
func NewBridge(st store.Store) *Bridge {
	return &Bridge{store: st}
}

// PersistChat resolves the room by slug, lazily creating it with the sender
// as admin, then appends the message. Two sessions racing to create the
// same room converge on one: the loser's ErrRoomExists is swallowed by
// re-fetching the winner's room.
func (b *Bridge) PersistChat(ctx context.Context, roomSlug, userID, body string) (*store.Message, error) {
	room, err := b.store.FindRoomBySlug(ctx, roomSlug)
	if errors.Is(err, store.ErrNotFound) {
		room, err = b.store.CreateRoom(ctx, roomSlug, userID)
		if errors.Is(err, store.ErrRoomExists) {
			room, err = b.store.FindRoomBySlug(ctx, roomSlug)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve room %q: %w", roomSlug, err)
	}

	msg, err := b.store.AppendMessage(ctx, room.ID, userID, body)
	if err != nil {
		return nil, fmt.Errorf("append message to room %q: %w", roomSlug, err)
	}

	return msg, nil
}
