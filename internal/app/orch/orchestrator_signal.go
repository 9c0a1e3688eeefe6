package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type genericSignalOut struct {
	Type     core.SignalKind `json:"type"`
	From     domain.UserID   `json:"from,omitempty"`
	FromConn core.ConnID     `json:"from_conn"`
	Room     string          `json:"room,omitempty"`
	Signal   json.RawMessage `json:"signal"`
}

type callErrorOut struct {
	Type   string          `json:"type"`
	Error  string          `json:"error"`
	Target string          `json:"target"`
	Event  core.SignalKind `json:"event"`
}

// legacyPayloadKey is the field the legacy events carry their payload under.
func legacyPayloadKey(k core.SignalKind) string {
	if k == core.SignalCandidate {
		return "candidate"
	}
	return "sdp"
}

func encodeSignal(env core.SignalEnvelope) (core.Frame, error) {
	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	var room string
	if env.To.IsRoom() {
		room = domain.CallRoomName(env.To.Room)
	}
	if !env.Kind.Legacy() {
		return encode(genericSignalOut{
			Type:     env.Kind,
			From:     env.From.User,
			FromConn: env.From.Conn,
			Room:     room,
			Signal:   payload,
		})
	}
	out := map[string]any{
		"type":        env.Kind,
		"sender_conn": env.From.Conn,
	}
	out[legacyPayloadKey(env.Kind)] = payload
	if env.From.User != "" {
		out["sender"] = env.From.User
	}
	if room != "" {
		out["room"] = room
	}
	return encode(out)
}

// peerLabel is how a target is named back to the client.
func peerLabel(p core.SignalPeer) string {
	if p.IsRoom() {
		return domain.CallRoomName(p.Room)
	}
	return p.String()
}

// RouteSignal forwards one signal to its target. Every shape of signaling
// event ends up here. A target that cannot be resolved, or whose transport
// refuses the frame, gets the sender exactly one call-error and
// ErrTargetUnavailable is returned. Nothing is queued or retried.
//
// A room target is fanned out to every member but the sender; it counts as
// unavailable only when nobody else received the frame.
func (o *Orchestrator) RouteSignal(env core.SignalEnvelope) error {
	sender, ok := o.Registry.GetSession(env.From.Conn)
	if !ok {
		return fmt.Errorf("route %s: sender %s: %w", env.Kind, env.From.Conn, core.ErrConnectionClosed)
	}
	if uid, ok := sender.Identity(); ok {
		env.From.User = uid
	} else {
		env.From.User = ""
	}

	if env.To.IsZero() {
		err := fmt.Errorf("route %s: %w: missing target", env.Kind, domain.ErrInvalidPayload)
		o.reportCallError(sender, env, err)
		return err
	}

	if env.To.IsRoom() {
		return o.routeToRoom(sender, env)
	}

	target, ok := o.resolvePeer(env.To)
	if !ok {
		return o.targetUnavailable(sender, env, "not connected")
	}

	frame, err := encodeSignal(env)
	if err != nil {
		err = fmt.Errorf("route %s: %w: %v", env.Kind, domain.ErrInvalidPayload, err)
		o.reportCallError(sender, env, err)
		return err
	}
	if err := target.Signal().TrySend(frame); err != nil {
		return o.targetUnavailable(sender, env, err.Error())
	}

	log.Debug().Str("module", "orch.signal").Str("event", string(env.Kind)).
		Str("from", env.From.String()).Str("to", string(target.ID())).Msg("signal forwarded")
	return nil
}

func (o *Orchestrator) routeToRoom(sender core.MemberSession, env core.SignalEnvelope) error {
	room, ok := o.Rooms.Get(env.To.Room)
	if !ok {
		return o.targetUnavailable(sender, env, "no such room")
	}
	frame, err := encodeSignal(env)
	if err != nil {
		err = fmt.Errorf("route %s: %w: %v", env.Kind, domain.ErrInvalidPayload, err)
		o.reportCallError(sender, env, err)
		return err
	}
	res := room.Broadcast(sender.ID(), frame)
	o.handleDropped(room, res)
	if res.SendTo == 0 {
		return o.targetUnavailable(sender, env, "nobody else in room")
	}

	log.Debug().Str("module", "orch.signal").Str("event", string(env.Kind)).
		Str("from", env.From.String()).Str("room", string(room.Room().ID)).Int("sent_to", res.SendTo).Msg("signal fanned out")
	return nil
}

func (o *Orchestrator) resolvePeer(p core.SignalPeer) (core.MemberSession, bool) {
	var (
		sess core.MemberSession
		ok   bool
	)
	if p.Conn != "" {
		sess, ok = o.Registry.GetSession(p.Conn)
	} else {
		sess, ok = o.Registry.ResolveSession(p.User)
	}
	if !ok || sess.State() == core.StateClosed {
		return nil, false
	}
	return sess, true
}

func (o *Orchestrator) targetUnavailable(sender core.MemberSession, env core.SignalEnvelope, why string) error {
	log.Info().Str("module", "orch.signal").Str("event", string(env.Kind)).
		Str("from", env.From.String()).Str("target", env.To.String()).Str("reason", why).Msg("signal target unavailable")
	err := fmt.Errorf("route %s to %s: %w", env.Kind, peerLabel(env.To), domain.ErrTargetUnavailable)
	o.reportCallError(sender, env, domain.ErrTargetUnavailable)
	return err
}

func (o *Orchestrator) reportCallError(sender core.MemberSession, env core.SignalEnvelope, err error) {
	if sendErr := o.sendJSON(sender, callErrorOut{
		Type:   core.EventCallError,
		Error:  err.Error(),
		Target: peerLabel(env.To),
		Event:  env.Kind,
	}); sendErr != nil {
		log.Warn().Err(sendErr).Str("module", "orch.signal").Str("sid", string(sender.ID())).Msg("call-error not delivered")
	}
}
