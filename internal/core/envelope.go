package core

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/domain"
)

// SignalKind is the event name a signal arrived under. The router does not
// care about it; it only decides the field names used on the way out.
type SignalKind string

const (
	SignalGeneric   SignalKind = "webrtc-signal"
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "ice-candidate"
)

func (k SignalKind) Legacy() bool { return k != SignalGeneric }

// SignalPeer addresses one end of a signal. Conn wins over User, and User
// over Room. A Room target reaches every member but the sender.
type SignalPeer struct {
	User domain.UserID
	Conn ConnID
	Room domain.RoomID
}

func (p SignalPeer) IsZero() bool { return p.User == "" && p.Conn == "" && p.Room == "" }

// IsRoom reports whether the signal fans out to a room.
func (p SignalPeer) IsRoom() bool { return p.Conn == "" && p.User == "" && p.Room != "" }

func (p SignalPeer) String() string {
	switch {
	case p.Conn != "":
		return string(p.Conn)
	case p.User != "":
		return string(p.User)
	}
	return string(p.Room)
}

// SignalEnvelope lives for one route-and-forward call.
type SignalEnvelope struct {
	Kind    SignalKind
	From    SignalPeer
	To      SignalPeer
	Payload json.RawMessage
}
