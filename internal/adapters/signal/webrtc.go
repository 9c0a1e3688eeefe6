package signal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// The three signaling shapes below only differ in field names. Each one is
// decoded, normalised into a core.SignalEnvelope and handed to routeSignal.
// Any of them may name a call room instead of a peer.

func (ctl *SignalWSController) handleWebRTCSignal(c *WsSignalConn, ackID string, data []byte) {
	var p signalIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad webrtc-signal payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}
	if len(p.Signal) == 0 || bytes.Equal(p.Signal, []byte("null")) {
		ctl.sendError(c, ackID, fmt.Errorf("%w: empty signal", domain.ErrInvalidPayload))
		return
	}
	ctl.routeSignal(c, ackID, core.SignalEnvelope{
		Kind:    core.SignalGeneric,
		To:      peerOf(p.To, p.ToConn, p.Room),
		Payload: p.Signal,
	})
}

// handleSessionDescription takes the legacy offer and answer events.
func (ctl *SignalWSController) handleSessionDescription(
	c *WsSignalConn,
	kind core.SignalKind,
	ackID string,
	data []byte,
) {
	var p sessionDescriptionIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", string(kind)).Msg("bad session description payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}
	if err := checkSessionDescription(kind, p.SDP); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Str("event", string(kind)).Msg("rejected session description")
		ctl.sendError(c, ackID, err)
		return
	}
	payload, err := json.Marshal(p.SDP)
	if err != nil {
		ctl.sendError(c, ackID, errBadPayload)
		return
	}
	ctl.routeSignal(c, ackID, core.SignalEnvelope{
		Kind:    kind,
		To:      peerOf(p.Target, p.TargetConn, p.Room),
		Payload: payload,
	})
}

func (ctl *SignalWSController) handleCandidate(c *WsSignalConn, ackID string, data []byte) {
	var p candidateIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(c, ackID, errBadPayload)
		return
	}
	if p.Candidate == nil || p.Candidate.Candidate == "" {
		ctl.sendError(c, ackID, fmt.Errorf("%w: empty candidate", domain.ErrInvalidPayload))
		return
	}
	payload, err := json.Marshal(p.Candidate)
	if err != nil {
		ctl.sendError(c, ackID, errBadPayload)
		return
	}
	ctl.routeSignal(c, ackID, core.SignalEnvelope{
		Kind:    core.SignalCandidate,
		To:      peerOf(p.Target, p.TargetConn, p.Room),
		Payload: payload,
	})
}

func (ctl *SignalWSController) routeSignal(c *WsSignalConn, ackID string, env core.SignalEnvelope) {
	env.From = core.SignalPeer{Conn: c.id}
	// The orchestrator already told the sender about a failure with a
	// call-error, so only the ack is left to send.
	err := ctl.Orch.RouteSignal(env)
	ctl.ack(c, ackID, err, 0)
}

func checkSessionDescription(kind core.SignalKind, sd *webrtc.SessionDescription) error {
	if sd == nil || sd.SDP == "" {
		return fmt.Errorf("%w: empty sdp", domain.ErrInvalidPayload)
	}
	switch kind {
	case core.SignalOffer:
		if sd.Type != webrtc.SDPTypeOffer {
			return fmt.Errorf("%w: %s carries sdp type %s", domain.ErrInvalidPayload, kind, sd.Type)
		}
	case core.SignalAnswer:
		if sd.Type != webrtc.SDPTypeAnswer && sd.Type != webrtc.SDPTypePranswer {
			return fmt.Errorf("%w: %s carries sdp type %s", domain.ErrInvalidPayload, kind, sd.Type)
		}
	}
	if _, err := sd.Unmarshal(); err != nil {
		return fmt.Errorf("%w: malformed sdp: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
