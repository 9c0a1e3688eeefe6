package app

import (
	"context"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides who may join a group room and what happens to members that
// cannot keep up with fan-out.
type Policy interface {
	CanJoin(ctx context.Context, user domain.UserID, group domain.GroupID) (bool, error)
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
}

// SimplePolicy lets any authenticated user into any group.
type SimplePolicy struct {
	Action BackpressureAction
}

func (SimplePolicy) CanJoin(context.Context, domain.UserID, domain.GroupID) (bool, error) {
	return true, nil
}

func (p SimplePolicy) OnBackPressure(core.RoomService, core.MemberSession) BackpressureAction {
	return p.Action
}

// MembershipPolicy only admits users the store lists as group members.
type MembershipPolicy struct {
	SimplePolicy
	Store core.ChatStore
}

func (p MembershipPolicy) CanJoin(ctx context.Context, user domain.UserID, group domain.GroupID) (bool, error) {
	ok, err := p.Store.IsGroupMember(ctx, user, group)
	if err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return ok, nil
}

// NewPolicy maps the config name to a policy. Unknown names fall back to
// "open".
func NewPolicy(name string, store core.ChatStore, action BackpressureAction) Policy {
	base := SimplePolicy{Action: action}
	if name == "membership" && store != nil {
		return MembershipPolicy{SimplePolicy: base, Store: store}
	}
	return base
}

func ParseBackpressureAction(s string) BackpressureAction {
	switch s {
	case "kick":
		return KickMember
	case "mark_slow":
		return MarkSlow
	case "none":
		return NoAction
	default:
		return DropFrame
	}
}
