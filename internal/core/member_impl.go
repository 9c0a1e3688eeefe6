package core

import (
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
)

var ErrSessionClosed = errors.New("session closed")

// memberSession implements MemberSession by pairing identity + transport.
type memberSession struct {
	id   ConnID
	conn SignalConnection

	mu    sync.RWMutex
	state ConnState
	user  domain.UserID
}

func NewMemberSession(id ConnID, conn SignalConnection) MemberSession {
	return &memberSession{id: id, conn: conn, state: StateConnecting}
}

func (m *memberSession) ID() ConnID               { return m.id }
func (m *memberSession) Signal() SignalConnection { return m.conn }

func (m *memberSession) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *memberSession) Identity() (domain.UserID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.state == StateAuthenticated
}

func (m *memberSession) MarkOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnecting {
		return false
	}
	m.state = StateOpen
	return true
}

// Authenticate is allowed from Open and from Authenticated (re-authentication
// replaces the identity).
func (m *memberSession) Authenticate(uid domain.UserID) (domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateClosed:
		return "", ErrSessionClosed
	case StateConnecting:
		m.state = StateOpen
	}
	prev := m.user
	m.user = uid
	m.state = StateAuthenticated
	return prev, nil
}

func (m *memberSession) MarkClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return false
	}
	m.state = StateClosed
	return true
}
