package core

import "github.com/dkeye/Huddle/internal/domain"

// ConnID identifies one live transport connection. A reconnecting client
// always gets a new one.
type ConnID string

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateAuthenticated
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// MemberSession binds a connection handle, its transport endpoint and the
// identity it authenticated as. This is what the registry resolves to and
// what rooms fan out to.
type MemberSession interface {
	ID() ConnID
	Signal() SignalConnection
	State() ConnState
	// Identity reports the authenticated user, if any.
	Identity() (domain.UserID, bool)
	MarkOpen() bool
	Authenticate(domain.UserID) (previous domain.UserID, err error)
	// MarkClosed is terminal. It reports false if the session was already closed.
	MarkClosed() bool
}
