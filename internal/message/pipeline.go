package message

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rx3lixir/bookclub/internal/attachment"
)

// RoomGate decides whether a sender may post and returns the open round
type RoomGate interface {
	AdmitSender(ctx context.Context, roomID, senderID uuid.UUID) (uuid.UUID, error)
}

type Broadcaster interface {
	BroadcastToRoom(roomID uuid.UUID, event string, data any)
}

// Presigner turns FILE message keys into download links
type Presigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
}

type Pipeline struct {
	store     Store
	gate      RoomGate
	hub       Broadcaster
	presigner Presigner
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Pipeline)

func WithPresigner(p Presigner) Option {
	return func(pl *Pipeline) {
		pl.presigner = p
	}
}

func NewPipeline(store Store, gate RoomGate, hub Broadcaster, log *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store: store,
		gate:  gate,
		hub:   hub,
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send validates, admits and persists a message, then broadcasts it.
// A retried client_message_id returns (nil, false, nil) and is not
// broadcast again.
func (p *Pipeline) Send(ctx context.Context, cmd SendCommand) (*Message, bool, error) {
	if err := validate(cmd); err != nil {
		return nil, false, err
	}

	roundID, err := p.gate.AdmitSender(ctx, cmd.RoomID, cmd.SenderID)
	if err != nil {
		return nil, false, err
	}

	m := &Message{
		RoomID:          cmd.RoomID,
		RoundID:         roundID,
		SenderID:        cmd.SenderID,
		ClientMessageID: cmd.ClientMessageID,
		Type:            cmd.Type,
		Content:         cmd.Content,
		CreatedAt:       p.now(),
	}

	created, err := p.store.Insert(ctx, m)
	if err != nil {
		return nil, false, err
	}
	if !created {
		p.log.Debug("duplicate message ignored",
			"room_id", cmd.RoomID,
			"sender_id", cmd.SenderID,
			"client_message_id", cmd.ClientMessageID)
		return nil, false, nil
	}

	p.attachURL(ctx, m)
	p.hub.BroadcastToRoom(m.RoomID, EventChatMessage, m)

	return m, true, nil
}

// List returns messages after the afterID cursor in id order
func (p *Pipeline) List(ctx context.Context, roomID uuid.UUID, afterID int64, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if afterID < 0 {
		afterID = 0
	}

	messages, err := p.store.ListAfter(ctx, roomID, afterID, limit)
	if err != nil {
		return nil, err
	}

	for _, m := range messages {
		p.attachURL(ctx, m)
	}

	return messages, nil
}

func (p *Pipeline) attachURL(ctx context.Context, m *Message) {
	if m.Type != TypeFile || p.presigner == nil {
		return
	}

	u, err := p.presigner.PresignDownload(ctx, m.Content)
	if err != nil {
		p.log.Warn("failed to presign attachment",
			"message_id", m.ID,
			"key", m.Content,
			"error", err)
		return
	}
	m.URL = u
}

func validate(cmd SendCommand) error {
	id := strings.TrimSpace(cmd.ClientMessageID)
	if id == "" || utf8.RuneCountInString(cmd.ClientMessageID) > MaxClientMessageIDLen {
		return ErrInvalidClientMessageID
	}

	switch cmd.Type {
	case TypeText:
		n := utf8.RuneCountInString(cmd.Content)
		if strings.TrimSpace(cmd.Content) == "" || n > MaxTextLen {
			return ErrInvalidContent
		}
	case TypeFile:
		if !attachment.BelongsTo(cmd.RoomID, cmd.Content) {
			return ErrInvalidAttachment
		}
	default:
		return ErrInvalidType
	}

	return nil
}
