package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoinGroup(
	ctx context.Context,
	c *WsSignalConn,
	ackID string,
	data []byte,
) {
	var p groupIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-group payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}

	room, err := ctl.Orch.JoinGroup(ctx, c.id, p.GroupID)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(c.id)).Str("group", string(p.GroupID)).Msg("join-group refused")
		ctl.sendError(c, ackID, err)
		return
	}
	ctl.sendJSON(c, groupOut{
		Type:    core.EventGroupJoined,
		GroupID: p.GroupID,
		Room:    room.Room().ID,
		Count:   room.MemberCount(),
	})
	ctl.ack(c, ackID, nil, 0)
}

func (ctl *SignalWSController) handleLeaveGroup(c *WsSignalConn, ackID string, data []byte) {
	var p groupIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave-group payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}
	ctl.Orch.LeaveGroup(c.id, p.GroupID)
	ctl.sendJSON(c, groupOut{
		Type:    core.EventGroupLeft,
		GroupID: p.GroupID,
		Room:    domain.GroupRoom(p.GroupID),
	})
	ctl.ack(c, ackID, nil, 0)
}

func (ctl *SignalWSController) handleSendChat(
	ctx context.Context,
	c *WsSignalConn,
	ackID string,
	data []byte,
) {
	var p chatIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send-chat-message payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}

	if ctl.Limiter != nil {
		if sess, ok := ctl.Orch.Registry.GetSession(c.id); ok {
			if uid, ok := sess.Identity(); ok && !ctl.Limiter.Allow(uid) {
				log.Warn().Str("module", "signal").Str("user", string(uid)).Msg("chat rate limited")
				ctl.sendJSON(c, errorOut{Type: core.EventMessageError, Error: domain.ErrRateLimited.Error()})
				ctl.ack(c, ackID, fmt.Errorf("send chat: %w", domain.ErrRateLimited), 0)
				return
			}
		}
	}

	msg := domain.NewChatMessage("", p.RecipientID, p.GroupID, p.Body, p.MessageType, p.URL)
	stored, err := ctl.Orch.RelayChat(ctx, c.id, msg)
	if err != nil {
		// RelayChat has already sent the message-error.
		ctl.ack(c, ackID, err, 0)
		return
	}
	ctl.ack(c, ackID, nil, stored.ID)
}
