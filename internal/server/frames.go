// Package server defines the JSON frame types exchanged over a WebSocket
// connection and the helpers that decode and validate them.
package server

import (
	"encoding/json"
	"fmt"
)

// Frame type discriminators accepted from clients. Outbound relayed frames
// reuse FrameChat.
const (
	FrameJoinRoom  = "join_room"
	FrameLeaveRoom = "leave_room"
	FrameChat      = "chat"
)

// Frame is one inbound or outbound protocol message. RoomID carries the
// room slug; Message is only meaningful for chat frames.
type Frame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Message string `json:"message,omitempty"`
}

// decodeFrame parses a raw inbound payload into a Frame. An unknown type or
// a missing roomId is a protocol error; callers drop the frame and keep the
// connection open.
func decodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case FrameJoinRoom, FrameLeaveRoom, FrameChat:
	default:
		return Frame{}, fmt.Errorf("unknown frame type %q", frame.Type)
	}

	if frame.RoomID == "" {
		return Frame{}, fmt.Errorf("frame type %q is missing roomId", frame.Type)
	}

	return frame, nil
}

// encodeChatFrame builds the outbound relay payload for a chat message.
func encodeChatFrame(roomID, message string) ([]byte, error) {
	return json.Marshal(Frame{
		Type:    FrameChat,
		RoomID:  roomID,
		Message: message,
	})
}
