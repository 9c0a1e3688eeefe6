package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

var (
	errBadPayload   = fmt.Errorf("%w: bad_payload", domain.ErrInvalidPayload)
	errUnknownEvent = fmt.Errorf("%w: unknown_event", domain.ErrInvalidPayload)
)

// clientError maps an error to the text a client sees. Wrapped details stay
// in the logs.
func clientError(err error) string {
	for _, known := range []error{
		errBadPayload,
		errUnknownEvent,
		domain.ErrTargetUnavailable,
		domain.ErrInvalidMessageTarget,
		domain.ErrPersistenceFailure,
		domain.ErrNotAuthenticated,
		domain.ErrIdentityMismatch,
		domain.ErrJoinDenied,
		domain.ErrRateLimited,
		domain.ErrInvalidPayload,
		core.ErrConnectionClosed,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}

// envelopeIn is the part every inbound frame shares.
type envelopeIn struct {
	Type string `json:"type"`
	Ack  string `json:"ack,omitempty"`
}

type authenticateIn struct {
	UserID domain.UserID `json:"user_id"`
}

type signalIn struct {
	To     domain.UserID   `json:"to"`
	ToConn core.ConnID     `json:"to_conn"`
	Room   string          `json:"room"`
	Signal json.RawMessage `json:"signal"`
}

type sessionDescriptionIn struct {
	Target     domain.UserID              `json:"target"`
	TargetConn core.ConnID                `json:"target_conn"`
	Room       string                     `json:"room"`
	SDP        *webrtc.SessionDescription `json:"sdp"`
}

type candidateIn struct {
	Target     domain.UserID            `json:"target"`
	TargetConn core.ConnID              `json:"target_conn"`
	Room       string                   `json:"room"`
	Candidate  *webrtc.ICECandidateInit `json:"candidate"`
}

// peerOf builds a signal target from the addressing fields of an event.
func peerOf(user domain.UserID, conn core.ConnID, room string) core.SignalPeer {
	p := core.SignalPeer{User: user, Conn: conn}
	if room != "" {
		p.Room = domain.CallRoom(room)
	}
	return p
}

type groupIn struct {
	GroupID domain.GroupID `json:"group_id"`
}

type roomIn struct {
	Room string `json:"room"`
}

type chatIn struct {
	RecipientID domain.UserID      `json:"recipient_id"`
	GroupID     domain.GroupID     `json:"group_id"`
	Body        string             `json:"body"`
	MessageType domain.MessageType `json:"message_type"`
	URL         string             `json:"url"`
}

type connectedOut struct {
	Type   string      `json:"type"`
	ConnID core.ConnID `json:"conn_id"`
}

type authenticatedOut struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"user_id"`
	ConnID core.ConnID   `json:"conn_id"`
}

type whoamiOut struct {
	Type   string          `json:"type"`
	UserID domain.UserID   `json:"user_id,omitempty"`
	ConnID core.ConnID     `json:"conn_id"`
	State  string          `json:"state"`
	Rooms  []domain.RoomID `json:"rooms"`
}

type groupOut struct {
	Type    string         `json:"type"`
	GroupID domain.GroupID `json:"group_id"`
	Room    domain.RoomID  `json:"room"`
	Count   int            `json:"count"`
}

type roomOut struct {
	Type  string `json:"type"`
	Room  string `json:"room"`
	Count int    `json:"count"`
}

type ackOut struct {
	Type      string `json:"type"`
	Ack       string `json:"ack"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
}

type errorOut struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
