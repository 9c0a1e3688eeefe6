package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinGroup adds the connection to the group's room. Membership belongs to
// the connection and is gone after a reconnect.
func (o *Orchestrator) JoinGroup(ctx context.Context, sid core.ConnID, group domain.GroupID) (core.RoomService, error) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, core.ErrConnectionClosed
	}
	uid, ok := sess.Identity()
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	if group == "" {
		return nil, fmt.Errorf("%w: empty group", domain.ErrInvalidPayload)
	}

	allowed, err := o.policy().CanJoin(ctx, uid, group)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrJoinDenied
	}

	room := o.enter(sid, sess, domain.Room{ID: domain.GroupRoom(group), Group: group})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(uid)).Str("room", string(room.Room().ID)).Msg("joined group")
	return room, nil
}

// JoinRoom adds the connection to a call room. Offers, answers and
// candidates addressed to the room reach every other member.
func (o *Orchestrator) JoinRoom(sid core.ConnID, name string) (core.RoomService, error) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, core.ErrConnectionClosed
	}
	uid, ok := sess.Identity()
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	if name == "" || len(name) > domain.MaxRoomNameLen {
		return nil, fmt.Errorf("%w: bad room name", domain.ErrInvalidPayload)
	}

	room := o.enter(sid, sess, domain.Room{ID: domain.CallRoom(name)})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(uid)).Str("room", string(room.Room().ID)).Msg("joined call room")
	return room, nil
}

func (o *Orchestrator) enter(sid core.ConnID, sess core.MemberSession, want domain.Room) core.RoomService {
	var room core.RoomService
	for {
		room = o.Rooms.Open(want)
		room.AddMember(sid, sess)
		// The room may have been stopped between lookup and insert.
		if cur, ok := o.Rooms.Get(room.Room().ID); ok && cur == room {
			break
		}
		room.RemoveMember(sid)
	}
	o.Registry.AddRoom(sid, room.Room().ID)
	return room
}

func (o *Orchestrator) LeaveGroup(sid core.ConnID, group domain.GroupID) bool {
	return o.leave(sid, domain.GroupRoom(group))
}

func (o *Orchestrator) LeaveRoom(sid core.ConnID, name string) bool {
	return o.leave(sid, domain.CallRoom(name))
}

func (o *Orchestrator) leave(sid core.ConnID, id domain.RoomID) bool {
	o.Registry.RemoveRoom(sid, id)
	room, ok := o.Rooms.Get(id)
	if !ok || !room.HasMember(sid) {
		return false
	}
	room.RemoveMember(sid)
	o.Rooms.StopRoomIfEmpty(id)
	return true
}

func (o *Orchestrator) cleanupMembership(sid core.ConnID) {
	for _, id := range o.Registry.RoomsOf(sid) {
		o.Registry.RemoveRoom(sid, id)
		room, ok := o.Rooms.Get(id)
		if !ok {
			continue
		}
		room.RemoveMember(sid)
		o.Rooms.StopRoomIfEmpty(id)
	}
}
