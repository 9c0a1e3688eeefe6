package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// OnConnect registers a freshly upgraded connection. cancel stops its pumps.
func (o *Orchestrator) OnConnect(sess core.MemberSession, cancel context.CancelFunc) {
	sess.MarkOpen()
	o.Registry.Register(sess, cancel)
}

// Authenticate binds the connection to an identity. verified is the identity
// proven by the token at handshake time (empty if none); claimed is what the
// client put in the authenticate event.
func (o *Orchestrator) Authenticate(sid core.ConnID, claimed, verified domain.UserID) (domain.UserID, error) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return "", core.ErrConnectionClosed
	}
	uid, err := o.resolveIdentity(claimed, verified)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).
			Str("claimed", string(claimed)).Str("verified", string(verified)).Msg("authenticate rejected")
		return "", err
	}
	prev, err := sess.Authenticate(uid)
	if err != nil {
		return "", err
	}
	o.Registry.Bind(uid, sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(uid)).Str("previous", string(prev)).Msg("authenticated")
	return uid, nil
}

func (o *Orchestrator) resolveIdentity(claimed, verified domain.UserID) (domain.UserID, error) {
	if verified != "" {
		if claimed == "" || claimed == verified {
			return verified, nil
		}
		if o.TrustClientIdentity && claimed.Valid() {
			log.Warn().Str("module", "orch").Str("claimed", string(claimed)).Str("verified", string(verified)).Msg("trusting client identity over token")
			return claimed, nil
		}
		return "", domain.ErrIdentityMismatch
	}
	if o.TrustClientIdentity && claimed.Valid() {
		return claimed, nil
	}
	return "", domain.ErrNotAuthenticated
}

// OnDisconnect runs once the transport is gone. After it returns nothing in
// the registry or the rooms references sid.
func (o *Orchestrator) OnDisconnect(sid core.ConnID) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	sess.MarkClosed()
	o.Registry.Unbind(sid)
	o.cleanupMembership(sid)
	o.Registry.Deregister(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

// Kick drops user's binding and closes the connection it pointed at.
func (o *Orchestrator) Kick(user domain.UserID) error {
	sid, ok := o.Registry.UnbindByIdentity(user)
	if !ok {
		return fmt.Errorf("kick %s: %w", user, domain.ErrTargetUnavailable)
	}
	o.Registry.Cancel(sid)
	return nil
}
