package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type chatOut struct {
	Type string `json:"type"`
	*domain.ChatMessage
}

type messageErrorOut struct {
	Type        string         `json:"type"`
	Error       string         `json:"error"`
	RecipientID domain.UserID  `json:"recipient_id,omitempty"`
	GroupID     domain.GroupID `json:"group_id,omitempty"`
}

// RelayChat persists msg and then delivers it. The sender is always the
// identity bound to sid, whatever msg.SenderID says.
//
// A message that fails validation or persistence is reported to the sender
// with a message-error and never forwarded. An offline direct recipient is
// not an error; the message waits in history.
func (o *Orchestrator) RelayChat(ctx context.Context, sid core.ConnID, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, core.ErrConnectionClosed
	}
	uid, ok := sess.Identity()
	if !ok {
		o.reportMessageError(sess, msg, domain.ErrNotAuthenticated)
		return nil, domain.ErrNotAuthenticated
	}
	msg.SenderID = uid

	if err := msg.Validate(); err != nil {
		o.reportMessageError(sess, msg, err)
		return nil, err
	}

	if msg.IsDirect() {
		_, msg.Delivered = o.Registry.Resolve(msg.RecipientID)
	} else {
		msg.Delivered = true
	}
	msg.SentAt = o.now()

	// Phase 1: persist. A disconnect of the sender does not abort it.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.storeTimeout())
	id, err := o.Store.PersistChatMessage(pctx, msg)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("module", "orch.chat").Str("sid", string(sid)).Str("sender", string(uid)).Msg("persist chat message")
		o.reportMessageError(sess, msg, domain.ErrPersistenceFailure)
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	msg.ID = id

	// Phase 2: fan out.
	frame, err := encode(chatOut{Type: core.EventReceiveChat, ChatMessage: msg})
	if err != nil {
		return msg, err
	}
	if msg.IsDirect() {
		o.deliverDirect(msg, frame)
	} else {
		o.deliverGroup(sid, msg, frame)
	}
	return msg, nil
}

func (o *Orchestrator) deliverDirect(msg *domain.ChatMessage, frame core.Frame) {
	target, ok := o.Registry.ResolveSession(msg.RecipientID)
	if !ok {
		log.Debug().Str("module", "orch.chat").Int64("id", msg.ID).Str("recipient", string(msg.RecipientID)).Msg("recipient offline, stored only")
		return
	}
	if err := target.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "orch.chat").Int64("id", msg.ID).Str("recipient", string(msg.RecipientID)).Msg("direct delivery failed, stored only")
		return
	}
}

func (o *Orchestrator) deliverGroup(from core.ConnID, msg *domain.ChatMessage, frame core.Frame) {
	room, ok := o.Rooms.Get(msg.Room())
	if !ok {
		return
	}
	res := room.Broadcast(from, frame)
	o.handleDropped(room, res)
}

func (o *Orchestrator) reportMessageError(sess core.MemberSession, msg *domain.ChatMessage, err error) {
	out := messageErrorOut{Type: core.EventMessageError, Error: messageErrorText(err)}
	if msg != nil {
		out.RecipientID = msg.RecipientID
		out.GroupID = msg.GroupID
	}
	if sendErr := o.sendJSON(sess, out); sendErr != nil {
		log.Warn().Err(sendErr).Str("module", "orch.chat").Str("sid", string(sess.ID())).Msg("message-error not delivered")
	}
}

// messageErrorText keeps validator internals out of client-facing errors.
func messageErrorText(err error) string {
	if errors.Is(err, domain.ErrInvalidPayload) {
		return domain.ErrInvalidPayload.Error()
	}
	return err.Error()
}
