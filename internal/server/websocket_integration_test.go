// Integration tests driving the full service over real WebSocket
// connections: token gate, room membership, room-scoped relay, and the
// persistence bridge, backed by the in-memory store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scrawlhq/scrawl/internal/auth"
	"github.com/scrawlhq/scrawl/internal/store"
)

type testService struct {
	srv    *Server
	st     *store.Memory
	tokens *auth.Tokens
	ts     *httptest.Server
}

func newTestService(t *testing.T) *testService {
	t.Helper()

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	cfg.PersistTimeout = 2 * time.Second

	st := store.NewMemory()
	tokens := auth.NewTokens("integration-secret", time.Hour)
	srv := New(cfg, st, tokens)

	go srv.hub.Run()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		if err := srv.hub.Shutdown(2 * time.Second); err != nil {
			t.Logf("hub shutdown: %v", err)
		}
	})

	return &testService{srv: srv, st: st, tokens: tokens, ts: ts}
}

func (svc *testService) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(svc.ts.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// dial opens an authenticated WebSocket connection for the given user.
func (svc *testService) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	token, err := svc.tokens.Issue(userID)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	header := http.Header{}
	header.Set("Origin", svc.ts.URL)

	conn, _, err := websocket.DefaultDialer.Dial(svc.wsURL(token), header)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame Frame) {
	t.Helper()
	payload, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("Failed to unmarshal frame %q: %v", raw, err)
	}
	return frame
}

func expectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no frame, but received %q", raw)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of frame: %v", err)
}

func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v: %s", timeout, msg)
}

// joinRoom sends a join frame and waits until the membership index reflects it.
func (svc *testService) joinRoom(t *testing.T, conn *websocket.Conn, room string, wantMembers int) {
	t.Helper()
	sendFrame(t, conn, Frame{Type: FrameJoinRoom, RoomID: room})
	waitFor(t, time.Second, "join processed", func() bool {
		return len(svc.srv.hub.Registry().MembersOf(room)) >= wantMembers
	})
}

// Scenario: two members of a room; a chat from one is relayed to the other
// and durably recorded exactly once.
func TestChatIsRelayedAndPersisted(t *testing.T) {
	svc := newTestService(t)

	u1 := svc.dial(t, "user-1")
	u2 := svc.dial(t, "user-2")
	svc.joinRoom(t, u1, "demo", 1)
	svc.joinRoom(t, u2, "demo", 2)

	sendFrame(t, u1, Frame{Type: FrameChat, RoomID: "demo", Message: "hi"})

	got := readFrame(t, u2, time.Second)
	want := Frame{Type: FrameChat, RoomID: "demo", Message: "hi"}
	if got != want {
		t.Errorf("Relayed frame = %+v, want %+v", got, want)
	}

	// The sender is a member too and receives its own chat.
	echo := readFrame(t, u1, time.Second)
	if echo != want {
		t.Errorf("Echoed frame = %+v, want %+v", echo, want)
	}

	waitFor(t, 2*time.Second, "message persisted", func() bool {
		room, err := svc.st.FindRoomBySlug(context.Background(), "demo")
		return err == nil && svc.st.MessageCount(room.ID) == 1
	})
}

// Scenario: a chat to an unknown slug lazily creates the room with the
// sender as admin and appends the message under it.
func TestChatToUnknownRoomCreatesIt(t *testing.T) {
	svc := newTestService(t)

	u1 := svc.dial(t, "user-1")
	svc.joinRoom(t, u1, "ghost", 1)

	sendFrame(t, u1, Frame{Type: FrameChat, RoomID: "ghost", Message: "anyone?"})

	waitFor(t, 2*time.Second, "room created and message appended", func() bool {
		room, err := svc.st.FindRoomBySlug(context.Background(), "ghost")
		return err == nil && room.AdminID == "user-1" && svc.st.MessageCount(room.ID) == 1
	})
}

// Scenario: after leaving a room the session receives nothing further for it.
func TestLeaveStopsDelivery(t *testing.T) {
	svc := newTestService(t)

	u1 := svc.dial(t, "user-1")
	u2 := svc.dial(t, "user-2")
	svc.joinRoom(t, u1, "demo", 1)
	svc.joinRoom(t, u2, "demo", 2)

	sendFrame(t, u1, Frame{Type: FrameLeaveRoom, RoomID: "demo"})
	waitFor(t, time.Second, "leave processed", func() bool {
		return len(svc.srv.hub.Registry().MembersOf("demo")) == 1
	})

	sendFrame(t, u2, Frame{Type: FrameChat, RoomID: "demo", Message: "still there?"})

	expectNoFrame(t, u1, 300*time.Millisecond)
}

// A connected session that never joined the room must not receive its
// broadcasts.
func TestNonMemberReceivesNothing(t *testing.T) {
	svc := newTestService(t)

	u1 := svc.dial(t, "user-1")
	bystander := svc.dial(t, "user-2")
	svc.joinRoom(t, u1, "demo", 1)

	sendFrame(t, u1, Frame{Type: FrameChat, RoomID: "demo", Message: "hi"})

	expectNoFrame(t, bystander, 300*time.Millisecond)
}

// Scenario: a connection without a valid token is rejected before any
// session state is created.
func TestInvalidTokenIsRejected(t *testing.T) {
	svc := newTestService(t)

	header := http.Header{}
	header.Set("Origin", svc.ts.URL)

	for name, token := range map[string]string{
		"missing token": "",
		"garbage token": "not-a-real-token",
	} {
		conn, resp, err := websocket.DefaultDialer.Dial(svc.wsURL(token), header)
		if err == nil {
			conn.Close()
			t.Fatalf("%s: expected handshake failure, got a connection", name)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 response, got %+v", name, resp)
		}
	}

	if count := svc.srv.hub.Registry().Count(); count != 0 {
		t.Errorf("Expected no registered sessions, got %d", count)
	}
}

// Malformed frames are dropped without closing the connection or affecting
// other sessions.
func TestMalformedFramesAreIgnored(t *testing.T) {
	svc := newTestService(t)

	u1 := svc.dial(t, "user-1")
	svc.joinRoom(t, u1, "demo", 1)

	for _, raw := range []string{
		"this is not json",
		`{"type":"shout","roomId":"demo"}`,
		`{"type":"chat"}`,
		`{}`,
	} {
		if err := u1.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("Failed to send raw payload: %v", err)
		}
	}

	// The connection is still usable afterwards.
	sendFrame(t, u1, Frame{Type: FrameChat, RoomID: "demo", Message: "still alive"})
	got := readFrame(t, u1, time.Second)
	if got.Message != "still alive" {
		t.Errorf("Expected chat echo after malformed frames, got %+v", got)
	}
}

// Chat frames accepted from one room in a given order are relayed in that
// same order.
func TestPerRoomOrderingIsPreserved(t *testing.T) {
	svc := newTestService(t)

	sender := svc.dial(t, "user-1")
	receiver := svc.dial(t, "user-2")
	svc.joinRoom(t, sender, "demo", 1)
	svc.joinRoom(t, receiver, "demo", 2)

	messages := []string{"one", "two", "three", "four", "five"}
	for _, msg := range messages {
		sendFrame(t, sender, Frame{Type: FrameChat, RoomID: "demo", Message: msg})
	}

	for i, want := range messages {
		got := readFrame(t, receiver, time.Second)
		if got.Message != want {
			t.Fatalf("Frame %d = %q, want %q", i, got.Message, want)
		}
	}
}

// Closing the transport releases the session and its memberships.
func TestDisconnectCleansUpSession(t *testing.T) {
	svc := newTestService(t)

	u1 := svc.dial(t, "user-1")
	svc.joinRoom(t, u1, "demo", 1)

	if err := u1.Close(); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}

	waitFor(t, 2*time.Second, "session unregistered", func() bool {
		return svc.srv.hub.Registry().Count() == 0 &&
			len(svc.srv.hub.Registry().MembersOf("demo")) == 0
	})
}
