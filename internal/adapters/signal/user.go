package signal

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleAuthenticate(
	c *WsSignalConn,
	ackID string,
	data []byte,
) {
	var p authenticateIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad authenticate payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}

	uid, err := ctl.Orch.Authenticate(c.id, p.UserID, c.verified)
	if err != nil {
		ctl.sendError(c, ackID, err)
		return
	}
	ctl.sendJSON(c, authenticatedOut{
		Type:   core.EventAuthenticated,
		UserID: uid,
		ConnID: c.id,
	})
	ctl.ack(c, ackID, nil, 0)
}

func (ctl *SignalWSController) handleWhoAmI(c *WsSignalConn) {
	resp := whoamiOut{
		Type:   core.EventWhoAmI,
		ConnID: c.id,
		State:  core.StateClosed.String(),
		Rooms:  ctl.Orch.Registry.RoomsOf(c.id),
	}
	if sess, ok := ctl.Orch.Registry.GetSession(c.id); ok {
		resp.State = sess.State().String()
		if uid, ok := sess.Identity(); ok {
			resp.UserID = uid
		}
	}
	ctl.sendJSON(c, resp)
}
