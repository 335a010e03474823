// Package server manages individual authenticated WebSocket sessions:
// read/write pumps, frame dispatch, rate limiting, and lifecycle control
// for each connection.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeDeadline = 10 * time.Second
)

// Session is the live binding between one WebSocket connection and one
// authenticated user. The session owns its connection handle for the
// connection's lifetime; room membership lives in the Registry.
type Session struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	addr   string

	hub            *Hub
	bridge         *Bridge
	limiter        *tokenBucket
	persistTimeout time.Duration
}

// newSession creates a Session for an authenticated connection. The caller
// hands it to the hub's register channel; the hub starts the pumps.
func newSession(conn *websocket.Conn, hub *Hub, bridge *Bridge, userID, addr string, cfg *Config) *Session {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Session{
		id:             uuid.NewString(),
		userID:         userID,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBuffer),
		addr:           addr,
		hub:            hub,
		bridge:         bridge,
		limiter:        newTokenBucket(cfg.RateLimit()),
		persistTimeout: cfg.PersistTimeout,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the authenticated user identity bound at the handshake.
func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", s.addr, err)
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", s.addr, err)
		}
		return nil
	})
}

// handleReadError logs the error and reports whether the read loop should
// stop. Every read error ends the session; the distinctions only affect
// what gets logged.
func (s *Session) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Frame from %s exceeded the read limit", s.addr)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Session %s disconnected: %v", s.id, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Session %s connection closed: %v", s.id, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", s.addr, err)
	return true
}

// dispatch routes one decoded frame. join and leave mutate membership; chat
// fans out to the room and is persisted independently of the relay.
func (s *Session) dispatch(frame Frame) {
	switch frame.Type {
	case FrameJoinRoom:
		s.hub.Registry().Join(s, frame.RoomID)

	case FrameLeaveRoom:
		s.hub.Registry().Leave(s, frame.RoomID)

	case FrameChat:
		payload, err := encodeChatFrame(frame.RoomID, frame.Message)
		if err != nil {
			log.Printf("Error encoding chat frame for room %q: %v", frame.RoomID, err)
			return
		}
		s.hub.Broadcast(frame.RoomID, payload)

		// Persistence runs off the read loop so store latency or failure
		// never delays the relay already queued above.
		go s.persistChat(frame.RoomID, frame.Message)
	}
}

func (s *Session) persistChat(roomSlug, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	if _, err := s.bridge.PersistChat(ctx, roomSlug, s.userID, body); err != nil {
		log.Printf("Chat from user %s not persisted to room %q: %v", s.userID, roomSlug, err)
	}
}

func (s *Session) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.ctx.Done():
		}
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
	}()

	s.setupReadConnection()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.handleReadError(err) {
				return
			}
			continue
		}

		if !s.limiter.take() {
			log.Printf("Rate limit exceeded for session %s; discarding frame", s.id)
			continue
		}

		frame, err := decodeFrame(raw)
		if err != nil {
			// Protocol errors are local to the frame: drop it, keep reading.
			log.Printf("Dropping frame from %s: %v", s.addr, err)
			continue
		}

		s.dispatch(frame)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", s.addr, err)
				return
			}
			if !ok {
				// Hub closed the channel; tell the peer and stop.
				if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					log.Printf("Error writing close message to %s: %v", s.addr, err)
				}
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing frame to %s: %v", s.addr, err)
				}
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", s.addr, err)
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing ping to %s: %v", s.addr, err)
				}
				return
			}
		}
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
