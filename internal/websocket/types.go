package websocket

import (
	"time"

	"github.com/google/uuid"
)

// FrameType is the "type" of every frame on the socket
type FrameType string

const (
	// Client -> Server
	TypeSubscribe FrameType = "subscribe"
	TypeSend      FrameType = "send"

	// Server -> Client
	TypeConnectionAck FrameType = "connection_ack"
	TypeSubscribed    FrameType = "subscribed"
	TypeUserJoined    FrameType = "user_joined"
	TypeUserLeft      FrameType = "user_left"
	TypeError         FrameType = "error"
)

// ClientFrame is any frame sent by a client. Fields unused by a frame type
// are left empty.
type ClientFrame struct {
	Type            FrameType `json:"type"`
	RoomID          uuid.UUID `json:"room_id"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	MessageType     string    `json:"message_type,omitempty"`
	Content         string    `json:"content,omitempty"`
}

// ServerFrame is any frame sent to a client. Room events use the event
// name as Type.
type ServerFrame struct {
	Type      FrameType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

type AckData struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
}

type PresenceData struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}

type ErrorData struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

func newFrame(t FrameType, data any) ServerFrame {
	return ServerFrame{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

func errorFrame(code, message, clientMessageID string) ServerFrame {
	return newFrame(TypeError, ErrorData{
		Code:            code,
		Message:         message,
		ClientMessageID: clientMessageID,
	})
}
