package app

import (
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRoomManager_GetOrCreate_Returns_Same_Room(t *testing.T) {
	req := require.New(t)
	rm := NewRoomManager()

	a := rm.GetOrCreate("g1")
	b := rm.GetOrCreate("g1")

	req.Same(a, b)
	req.Equal(domain.RoomID("group-g1"), a.Room().ID)
	req.Equal(domain.GroupID("g1"), a.Room().Group)
}

func TestRoomManager_StopRoomIfEmpty(t *testing.T) {
	req := require.New(t)
	rm := NewRoomManager()
	room := rm.GetOrCreate("g1")
	room.AddMember("c1", core.NewMemberSession("c1", nopConn{}))

	// A room with members stays
	req.False(rm.StopRoomIfEmpty(room.Room().ID))
	req.Len(rm.List(), 1)
	req.Equal(1, rm.List()[0].MemberCount)

	// An empty room is dropped
	room.RemoveMember("c1")
	req.True(rm.StopRoomIfEmpty(room.Room().ID))
	_, ok := rm.Get(room.Room().ID)
	req.False(ok)
	req.Empty(rm.List())

	req.False(rm.StopRoomIfEmpty("group-unknown"))
}

func TestRoomManager_Open_Call_Room(t *testing.T) {
	req := require.New(t)
	rm := NewRoomManager()

	a := rm.Open(domain.Room{ID: domain.CallRoom("standup")})
	b := rm.Open(domain.Room{ID: domain.CallRoom("standup")})
	g := rm.GetOrCreate("standup")

	req.Same(a, b)
	req.NotSame(a, g)
	req.Empty(a.Room().Group)
	req.Equal("standup", domain.CallRoomName(a.Room().ID))
	req.Len(rm.List(), 2)
}
