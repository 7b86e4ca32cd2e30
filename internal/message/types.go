package message

import (
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/pkg/apperr"
)

type Type string

const (
	TypeText Type = "TEXT"
	TypeFile Type = "FILE"
)

const (
	MaxClientMessageIDLen = 64
	MaxTextLen            = 1000

	DefaultListLimit = 50
	MaxListLimit     = 200
)

// EventChatMessage is broadcast once a message is persisted
const EventChatMessage = "chat_message"

var (
	ErrInvalidClientMessageID = apperr.Invalid("INVALID_CLIENT_MESSAGE_ID", "client_message_id must be 1 to 64 characters")
	ErrInvalidContent         = apperr.Invalid("INVALID_CONTENT", "text must be 1 to 1000 characters")
	ErrInvalidAttachment      = apperr.Invalid("INVALID_ATTACHMENT", "file content must be an attachment key of this room")
	ErrInvalidType            = apperr.Invalid("INVALID_MESSAGE_TYPE", "message type must be TEXT or FILE")
)

// Message is a persisted chat message. ID is the history cursor.
type Message struct {
	ID              int64     `json:"id"`
	RoomID          uuid.UUID `json:"room_id"`
	RoundID         uuid.UUID `json:"round_id"`
	SenderID        uuid.UUID `json:"sender_id"`
	ClientMessageID string    `json:"client_message_id"`
	Type            Type      `json:"message_type"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	// URL is a presigned download link for FILE messages, never stored
	URL string `json:"url,omitempty"`
}

type SendCommand struct {
	RoomID          uuid.UUID
	SenderID        uuid.UUID
	ClientMessageID string
	Type            Type
	Content         string
}

type ListResponse struct {
	Messages []*Message `json:"messages"`
	Count    int        `json:"count"`
	// NextAfter is the cursor for the following page
	NextAfter int64 `json:"next_after"`
}
