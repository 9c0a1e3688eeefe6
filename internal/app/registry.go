package app

import (
	"context"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type sessionEntry struct {
	Session core.MemberSession
	Cancel  context.CancelFunc
	// User is the identity this connection last bound, kept here so Unbind
	// does not have to scan the users map.
	User  domain.UserID
	Rooms map[domain.RoomID]struct{}
}

type binding struct {
	Conn core.ConnID
	Seq  uint64
}

// Registry is the connection table plus the user -> connection directory.
// At most one connection is bound per user; the latest Bind wins.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.ConnID]*sessionEntry
	users    map[domain.UserID]binding
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.ConnID]*sessionEntry),
		users:    make(map[domain.UserID]binding),
	}
}

func (r *Registry) Register(sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID()] = &sessionEntry{
		Session: sess,
		Cancel:  cancel,
		Rooms:   make(map[domain.RoomID]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID())).Msg("registered connection")
}

// Deregister drops the connection entry. It does not touch user bindings;
// call Unbind first.
func (r *Registry) Deregister(sid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("deregistered connection")
}

func (r *Registry) GetSession(sid core.ConnID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Bind points user at sid, replacing whatever it pointed at before. It never
// fails. The returned sequence number orders concurrent binds.
func (r *Registry) Bind(user domain.UserID, sid core.ConnID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if e, ok := r.sessions[sid]; ok {
		if e.User != "" && e.User != user {
			if b, ok := r.users[e.User]; ok && b.Conn == sid {
				delete(r.users, e.User)
			}
		}
		e.User = user
	}
	prev, replaced := r.users[user]
	r.users[user] = binding{Conn: sid, Seq: r.seq}

	ev := log.Info().Str("module", "app.registry").Str("user", string(user)).Str("sid", string(sid)).Uint64("seq", r.seq)
	if replaced && prev.Conn != sid {
		ev = ev.Str("replaced_sid", string(prev.Conn))
	}
	ev.Msg("bound user")
	return r.seq
}

func (r *Registry) Resolve(user domain.UserID) (core.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.users[user]
	return b.Conn, ok
}

// ResolveSession resolves user to its live session. A binding whose
// connection entry is already gone resolves to nothing.
func (r *Registry) ResolveSession(user domain.UserID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.users[user]
	if !ok {
		return nil, false
	}
	e, ok := r.sessions[b.Conn]
	if !ok {
		return nil, false
	}
	return e.Session, true
}

// Unbind removes the binding that points at sid, if any. Idempotent. The
// directory is scanned only when sid has no connection entry.
func (r *Registry) Unbind(sid core.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[sid]; ok {
		if e.User == "" {
			return false
		}
		user := e.User
		e.User = ""
		if b, ok := r.users[user]; ok && b.Conn == sid {
			delete(r.users, user)
			log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user)).Msg("unbind user")
			return true
		}
		return false
	}

	for user, b := range r.users {
		if b.Conn == sid {
			delete(r.users, user)
			log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user)).Msg("unbind user (scan)")
			return true
		}
	}
	return false
}

// UnbindByIdentity removes user's binding whatever connection it points at.
func (r *Registry) UnbindByIdentity(user domain.UserID) (core.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.users[user]
	if !ok {
		return "", false
	}
	delete(r.users, user)
	if e, ok := r.sessions[b.Conn]; ok && e.User == user {
		e.User = ""
	}
	log.Info().Str("module", "app.registry").Str("sid", string(b.Conn)).Str("user", string(user)).Msg("unbind by identity")
	return b.Conn, true
}

func (r *Registry) AddRoom(sid core.ConnID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Rooms[room] = struct{}{}
	return true
}

func (r *Registry) RemoveRoom(sid core.ConnID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Rooms, room)
	}
}

func (r *Registry) RoomsOf(sid core.ConnID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	return lo.Keys(e.Rooms)
}

// Counts returns the number of live connections and bound users.
func (r *Registry) Counts() (conns, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.users)
}

// Cancel stops the connection's pumps; cleanup follows through OnDisconnect.
func (r *Registry) Cancel(sid core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
