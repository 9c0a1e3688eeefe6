package orch

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/rs/zerolog/log"
)

const defaultStoreTimeout = 5 * time.Second

// Orchestrator ties the registry, the room tracker and the chat store
// together. Every inbound event of a connection is handled by one of its
// methods, to completion, on that connection's read goroutine.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Store    core.ChatStore

	StoreTimeout time.Duration
	// TrustClientIdentity binds whatever identity the client claims at
	// authenticate. Development only.
	TrustClientIdentity bool
	Now                 func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) storeTimeout() time.Duration {
	if o.StoreTimeout > 0 {
		return o.StoreTimeout
	}
	return defaultStoreTimeout
}

func (o *Orchestrator) policy() app.Policy {
	if o.Policy == nil {
		return app.SimplePolicy{Action: app.DropFrame}
	}
	return o.Policy
}

func encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

func (o *Orchestrator) sendJSON(sess core.MemberSession, v any) error {
	f, err := encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("sendJSON marshal")
		return err
	}
	return sess.Signal().TrySend(f)
}

// handleDropped applies the backpressure policy to members a broadcast could
// not reach.
func (o *Orchestrator) handleDropped(room core.RoomService, res core.PublishResult) {
	for _, slow := range res.Dropped {
		switch o.policy().OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow.ID())).Str("room", string(room.Room().ID)).Msg("kicking slow member")
			o.Registry.Cancel(slow.ID())
		case app.MarkSlow:
			log.Warn().Str("module", "orch").Str("sid", string(slow.ID())).Str("room", string(room.Room().ID)).Msg("slow member")
		case app.DropFrame, app.NoAction:
		}
	}
}
