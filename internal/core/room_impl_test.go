package core

import (
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (c *recordingConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newRoom() RoomService {
	return NewRoomService(&domain.Room{ID: domain.GroupRoom("g1"), Group: "g1"})
}

func TestRoom_Broadcast_Skips_Sender(t *testing.T) {
	req := require.New(t)
	room := newRoom()
	a, b, c := &recordingConn{}, &recordingConn{}, &recordingConn{}
	room.AddMember("a", NewMemberSession("a", a))
	room.AddMember("b", NewMemberSession("b", b))
	room.AddMember("c", NewMemberSession("c", c))

	res := room.Broadcast("a", Frame(`{"type":"x"}`))

	req.Equal(2, res.SendTo)
	req.Empty(res.Dropped)
	req.Equal(0, a.count())
	req.Equal(1, b.count())
	req.Equal(1, c.count())
}

func TestRoom_Broadcast_Reports_Dropped(t *testing.T) {
	req := require.New(t)
	room := newRoom()
	slow := &recordingConn{err: ErrBackpressure}
	room.AddMember("a", NewMemberSession("a", &recordingConn{}))
	room.AddMember("slow", NewMemberSession("slow", slow))

	res := room.Broadcast("", Frame(`{}`))

	req.Equal(1, res.SendTo)
	req.Len(res.Dropped, 1)
	req.Equal(ConnID("slow"), res.Dropped[0].ID())
}

func TestRoom_Add_Remove_Member(t *testing.T) {
	req := require.New(t)
	room := newRoom()

	room.AddMember("a", NewMemberSession("a", &recordingConn{}))
	room.AddMember("a", NewMemberSession("a", &recordingConn{}))
	req.Equal(1, room.MemberCount())
	req.True(room.HasMember("a"))
	req.ElementsMatch([]ConnID{"a"}, room.Members())

	room.RemoveMember("a")
	room.RemoveMember("a")
	req.Equal(0, room.MemberCount())
	req.False(room.HasMember("a"))
}
