package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer func() {
		ticker.Stop()
		// Unblocks readPump, which owns the disconnect cleanup.
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Str("sid", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.id)).Msg("readPump closing")
		cancel()
		ctl.Orch.OnDisconnect(c.id)
		c.Close()
	}()

	pongWait := ctl.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(c.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, c, data)
		}
	}
}

// handleSignal processes one event to completion before the next is read.
func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var env envelopeIn
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("bad json")
		ctl.sendError(c, "", errBadPayload)
		return
	}

	switch env.Type {
	case core.EventAuthenticate:
		ctl.handleAuthenticate(c, env.Ack, data)
	case core.EventWhoAmI:
		ctl.handleWhoAmI(c)
	case core.EventPing:
		ctl.handlePing(c)
	case string(core.SignalGeneric):
		ctl.handleWebRTCSignal(c, env.Ack, data)
	case string(core.SignalOffer), string(core.SignalAnswer):
		ctl.handleSessionDescription(c, core.SignalKind(env.Type), env.Ack, data)
	case string(core.SignalCandidate):
		ctl.handleCandidate(c, env.Ack, data)
	case core.EventJoinGroup:
		ctl.handleJoinGroup(ctx, c, env.Ack, data)
	case core.EventLeaveGroup:
		ctl.handleLeaveGroup(c, env.Ack, data)
	case core.EventJoinRoom:
		ctl.handleJoinRoom(c, env.Ack, data)
	case core.EventLeaveRoom:
		ctl.handleLeaveRoom(c, env.Ack, data)
	case core.EventSendChat:
		ctl.handleSendChat(ctx, c, env.Ack, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env.Ack, errUnknownEvent)
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("sendJSON dropped")
	}
}

// ack answers a request that carried an ack id. It reports that the event
// was handled, not that a peer received anything.
func (ctl *SignalWSController) ack(c *WsSignalConn, id string, err error, messageID int64) {
	if id == "" {
		return
	}
	out := ackOut{Type: core.EventAck, Ack: id, OK: err == nil, MessageID: messageID}
	if err != nil {
		out.Error = clientError(err)
	}
	ctl.sendJSON(c, out)
}

// sendError reports a failure the orchestrator did not already report.
// With an ack id the ack carries it; otherwise an error event does.
func (ctl *SignalWSController) sendError(c *WsSignalConn, ackID string, err error) {
	if ackID != "" {
		ctl.ack(c, ackID, err, 0)
		return
	}
	ctl.sendJSON(c, errorOut{Type: core.EventError, Error: clientError(err)})
}
