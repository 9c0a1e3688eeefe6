package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const MaxMessageBodyLen = 4096

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageLocation MessageType = "location"
)

var validate = validator.New()

// ChatMessage is written once by the chat relay and never mutated afterwards.
// Exactly one of RecipientID and GroupID is set.
type ChatMessage struct {
	ID          int64       `json:"id"`
	SenderID    UserID      `json:"sender_id" validate:"required,max=64"`
	RecipientID UserID      `json:"recipient_id,omitempty" validate:"max=64"`
	GroupID     GroupID     `json:"group_id,omitempty" validate:"max=64"`
	Body        string      `json:"body" validate:"required,max=4096"`
	Type        MessageType `json:"message_type" validate:"required,oneof=text image audio file location"`
	URL         string      `json:"url,omitempty" validate:"omitempty,max=2048"`
	Delivered   bool        `json:"delivered"`
	SentAt      time.Time   `json:"sent_at"`
}

// NewChatMessage applies the same defaults the HTTP send route used: type
// falls back to text, and non-text messages carry their URL as the body.
func NewChatMessage(sender, recipient UserID, group GroupID, body string, typ MessageType, url string) *ChatMessage {
	if typ == "" {
		typ = MessageText
	}
	if typ != MessageText && url != "" {
		body = url
	}
	return &ChatMessage{
		SenderID:    sender,
		RecipientID: recipient,
		GroupID:     group,
		Body:        body,
		Type:        typ,
		URL:         url,
	}
}

func (m *ChatMessage) IsDirect() bool { return m.RecipientID != "" }

// Room returns the fan-out room for a group message.
func (m *ChatMessage) Room() RoomID { return GroupRoom(m.GroupID) }

// Validate checks the addressing first so a mis-addressed message is always
// reported as ErrInvalidMessageTarget, whatever else is wrong with it.
func (m *ChatMessage) Validate() error {
	if (m.RecipientID == "") == (m.GroupID == "") {
		return ErrInvalidMessageTarget
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
