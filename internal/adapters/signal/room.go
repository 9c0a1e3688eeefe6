package signal

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/rs/zerolog/log"
)

// handleJoinRoom puts the connection in a call room. Offers, answers and
// candidates may then name the room instead of a peer.
func (ctl *SignalWSController) handleJoinRoom(c *WsSignalConn, ackID string, data []byte) {
	var p roomIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-room payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}

	room, err := ctl.Orch.JoinRoom(c.id, p.Room)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(c.id)).Str("room", p.Room).Msg("join-room refused")
		ctl.sendError(c, ackID, err)
		return
	}
	ctl.sendJSON(c, roomOut{
		Type:  core.EventRoomJoined,
		Room:  p.Room,
		Count: room.MemberCount(),
	})
	ctl.ack(c, ackID, nil, 0)
}

func (ctl *SignalWSController) handleLeaveRoom(c *WsSignalConn, ackID string, data []byte) {
	var p roomIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave-room payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}
	ctl.Orch.LeaveRoom(c.id, p.Room)
	ctl.sendJSON(c, roomOut{Type: core.EventRoomLeft, Room: p.Room})
	ctl.ack(c, ackID, nil, 0)
}
