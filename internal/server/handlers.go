// Package server exposes the WebSocket upgrade handler, the health check,
// and the built-in test page.
package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
)

// handleWebSocket authenticates the connect-time token, upgrades the
// connection, and registers a session with the hub. A missing or invalid
// token terminates the attempt with 401 before any frame is exchanged.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticator.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, ErrMissingToken) {
			log.Printf("Rejected WebSocket connection from %s: no token", r.RemoteAddr)
		} else {
			log.Printf("Rejected WebSocket connection from %s: %v", r.RemoteAddr, err)
		}
		http.Error(w, "invalid or missing token", status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	session := newSession(conn, s.hub, s.bridge, userID, r.RemoteAddr, s.cfg)

	// The hub registers the session and launches its pump goroutines.
	s.hub.register <- session
}

// handleHealth provides a simple liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Scrawl server is running!")
}

// handleTestPage serves a minimal HTML page for exercising the WebSocket
// protocol by hand: paste a token, join a room, send chat frames.
func (s *Server) handleTestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Scrawl WebSocket Test</title>
    <style>
        body { font-family: sans-serif; margin: 20px; max-width: 640px; }
        #log { border: 1px solid #ccc; height: 280px; padding: 8px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        input { padding: 4px; margin-right: 6px; }
        #token { width: 320px; }
    </style>
</head>
<body>
    <h1>Scrawl WebSocket Test</h1>
    <div>
        <input type="text" id="token" placeholder="bearer token">
        <button onclick="connect()">Connect</button>
    </div>
    <div>
        <input type="text" id="room" placeholder="room slug" value="demo">
        <button onclick="send('join_room')">Join</button>
        <button onclick="send('leave_room')">Leave</button>
    </div>
    <div>
        <input type="text" id="message" placeholder="message">
        <button onclick="sendChat()">Send</button>
    </div>
    <div id="log"></div>

    <script>
        let ws = null;
        const logDiv = document.getElementById('log');

        function append(text) {
            const line = document.createElement('div');
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function connect() {
            const token = document.getElementById('token').value.trim();
            ws = new WebSocket('ws://' + location.host + '/ws?token=' + encodeURIComponent(token));
            ws.onopen = () => append('connected');
            ws.onclose = () => append('disconnected');
            ws.onmessage = (ev) => append('<< ' + ev.data);
        }

        function send(type) {
            if (!ws) return;
            const frame = { type: type, roomId: document.getElementById('room').value.trim() };
            ws.send(JSON.stringify(frame));
            append('>> ' + JSON.stringify(frame));
        }

        function sendChat() {
            if (!ws) return;
            const frame = {
                type: 'chat',
                roomId: document.getElementById('room').value.trim(),
                message: document.getElementById('message').value
            };
            ws.send(JSON.stringify(frame));
            append('>> ' + JSON.stringify(frame));
        }
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
