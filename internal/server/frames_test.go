package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeFrameAcceptsKnownTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Frame
	}{
		{
			name: "join",
			raw:  `{"type":"join_room","roomId":"demo"}`,
			want: Frame{Type: FrameJoinRoom, RoomID: "demo"},
		},
		{
			name: "leave",
			raw:  `{"type":"leave_room","roomId":"demo"}`,
			want: Frame{Type: FrameLeaveRoom, RoomID: "demo"},
		},
		{
			name: "chat",
			raw:  `{"type":"chat","roomId":"demo","message":"hi"}`,
			want: Frame{Type: FrameChat, RoomID: "demo", Message: "hi"},
		},
		{
			name: "chat with empty body",
			raw:  `{"type":"chat","roomId":"demo","message":""}`,
			want: Frame{Type: FrameChat, RoomID: "demo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := decodeFrame([]byte(tt.raw))
			require.NoError(t, err)
			require.Equal(t, tt.want, frame)
		})
	}
}

func TestDecodeFrameRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `hello there`},
		{name: "empty payload", raw: ``},
		{name: "unknown type", raw: `{"type":"shout","roomId":"demo"}`},
		{name: "missing type", raw: `{"roomId":"demo"}`},
		{name: "missing roomId", raw: `{"type":"chat","message":"hi"}`},
		{name: "empty roomId", raw: `{"type":"join_room","roomId":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeFrame([]byte(tt.raw)); err == nil {
				t.Errorf("decodeFrame(%q) accepted malformed input", tt.raw)
			}
		})
	}
}

func TestEncodeChatFrame(t *testing.T) {
	req := require.New(t)

	payload, err := encodeChatFrame("demo", "hi")
	req.NoError(err)

	var decoded map[string]string
	req.NoError(json.Unmarshal(payload, &decoded))
	req.Equal("chat", decoded["type"])
	req.Equal("demo", decoded["roomId"])
	req.Equal("hi", decoded["message"])
}
