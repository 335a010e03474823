// Package server coordinates session registration, room-scoped message
// broadcast, and connection cleanup for the Scrawl realtime system via the
// Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// broadcastRequest is one queued fan-out: a payload bound for every current
// member of a room.
type broadcastRequest struct {
	Room    string
	Payload []byte
}

// Hub runs the realtime event loop. Registration, unregistration, and
// broadcasts are serialized through a single goroutine, which both keeps
// send-channel closes race-free and guarantees that chat frames accepted in
// a given order are relayed to a room in that same order.
type Hub struct {
	registry   *Registry
	broadcast  chan broadcastRequest
	register   chan *Session
	unregister chan *Session
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that routes through the given registry. The Hub does
// not start processing until Run is called.
func NewHub(registry *Registry) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   registry,
		broadcast:  make(chan broadcastRequest, 256),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the session registry the hub routes through.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcast queues a payload for delivery to every session currently joined
// to the room. The call never blocks the caller: if the hub cannot keep up
// the frame is dropped and logged, trading delivery for liveness.
func (h *Hub) Broadcast(room string, payload []byte) {
	select {
	case h.broadcast <- broadcastRequest{Room: room, Payload: payload}:
	default:
		log.Printf("Broadcast queue full, dropping frame for room %q", room)
	}
}

// Run starts the hub's main event loop. It should be called in its own
// goroutine and returns only after Shutdown cancels the hub context.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllSessions()
			return

		case s := <-h.register:
			if s == nil {
				log.Printf("Received nil session registration; skipping")
				continue
			}
			h.registry.Register(s)
			log.Printf("Session %s registered for user %s (Total: %d)", s.id, s.userID, h.registry.Count())

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				s.writePump()
			}()
			go func() {
				defer h.wg.Done()
				s.readPump()
			}()

		case s := <-h.unregister:
			h.drop(s)

		case req := <-h.broadcast:
			h.fanOut(req)
		}
	}
}

// fanOut delivers the payload to a snapshot of the room's members. A member
// whose send buffer is full (or that has been torn down) is dropped without
// interrupting delivery to the remaining members.
func (h *Hub) fanOut(req broadcastRequest) {
	members := h.registry.MembersOf(req.Room)

	var failed []*Session
	for _, s := range members {
		if !h.trySend(s, req.Payload) {
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		log.Printf("Session %s dropped during broadcast to room %q: send buffer full", s.id, req.Room)
		h.drop(s)
	}
}

// trySend attempts a non-blocking delivery to one session. Send channels
// are closed only by drop, which runs on the hub goroutine like this
// method, so the send below can never hit a closed channel.
func (h *Hub) trySend(s *Session, payload []byte) bool {
	if !h.registry.Contains(s) {
		return false
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// drop unregisters the session and closes its send channel. Safe to call
// repeatedly for the same session; only the first call closes the channel.
func (h *Hub) drop(s *Session) {
	if s == nil {
		return
	}
	if h.registry.Unregister(s) {
		close(s.send)
		log.Printf("Session %s unregistered (Total: %d)", s.id, h.registry.Count())
	}
}

// closeAllSessions closes the transport of every live session so their read
// pumps unwind during shutdown.
func (h *Hub) closeAllSessions() {
	sessions := h.registry.All()
	log.Printf("Shutting down %d active sessions...", len(sessions))

	for _, s := range sessions {
		if s.conn == nil {
			continue
		}
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing session %s: %v", s.id, err)
		}
	}
}

// Shutdown stops the event loop and waits for all session goroutines to
// finish, or returns context.DeadlineExceeded once the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
