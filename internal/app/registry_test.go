package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func register(r *Registry, sid core.ConnID) core.MemberSession {
	sess := core.NewMemberSession(sid, nopConn{})
	sess.MarkOpen()
	r.Register(sess, func() {})
	return sess
}

func TestRegistry_Bind_Last_Writer_Wins(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	register(reg, "c1")
	register(reg, "c2")

	// Given alice bound on c1
	seq1 := reg.Bind("alice", "c1")

	// When she binds again on c2
	seq2 := reg.Bind("alice", "c2")

	// Then c2 wins
	req.Greater(seq2, seq1)
	sid, ok := reg.Resolve("alice")
	req.True(ok)
	req.Equal(core.ConnID("c2"), sid)
	_, users := reg.Counts()
	req.Equal(1, users)
}

func TestRegistry_Unbind_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	register(reg, "c1")
	reg.Bind("alice", "c1")

	req.True(reg.Unbind("c1"))
	req.False(reg.Unbind("c1"))
	req.False(reg.Unbind("unknown"))

	_, ok := reg.Resolve("alice")
	req.False(ok)
}

func TestRegistry_Unbind_Stale_Connection_Keeps_Newer_Binding(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	register(reg, "old")
	register(reg, "new")

	// Given alice reconnected on a new connection
	reg.Bind("alice", "old")
	reg.Bind("alice", "new")

	// When the old connection goes away
	req.False(reg.Unbind("old"))
	reg.Deregister("old")

	// Then the new binding survives
	sid, ok := reg.Resolve("alice")
	req.True(ok)
	req.Equal(core.ConnID("new"), sid)
	sess, ok := reg.ResolveSession("alice")
	req.True(ok)
	req.Equal(core.ConnID("new"), sess.ID())
}

func TestRegistry_Unbind_Anonymous_Connection_Leaves_Directory(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	// A binding recorded before its connection entry existed
	reg.Bind("alice", "c1")
	register(reg, "c1")

	// The entry has no identity, so there is nothing to unbind
	req.False(reg.Unbind("c1"))
	sid, ok := reg.Resolve("alice")
	req.True(ok)
	req.Equal(core.ConnID("c1"), sid)
}

func TestRegistry_Unbind_Without_Entry_Scans(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	reg.Bind("alice", "gone")

	req.True(reg.Unbind("gone"))
	_, ok := reg.Resolve("alice")
	req.False(ok)
}

func TestRegistry_Rebind_Drops_Previous_Identity(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	register(reg, "c1")

	reg.Bind("alice", "c1")
	reg.Bind("bob", "c1")

	_, ok := reg.Resolve("alice")
	req.False(ok)
	sid, ok := reg.Resolve("bob")
	req.True(ok)
	req.Equal(core.ConnID("c1"), sid)
}

func TestRegistry_UnbindByIdentity(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	register(reg, "c1")
	reg.Bind("alice", "c1")

	sid, ok := reg.UnbindByIdentity("alice")
	req.True(ok)
	req.Equal(core.ConnID("c1"), sid)

	_, ok = reg.UnbindByIdentity("alice")
	req.False(ok)
	// The connection itself is untouched
	_, ok = reg.GetSession("c1")
	req.True(ok)
	req.False(reg.Unbind("c1"))
}

func TestRegistry_ResolveSession_Ignores_Deregistered(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	register(reg, "c1")
	reg.Bind("alice", "c1")
	reg.Deregister("c1")

	_, ok := reg.ResolveSession("alice")
	req.False(ok)
}

func TestRegistry_Rooms_And_Cancel(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	sess := core.NewMemberSession("c1", nopConn{})
	reg.Register(sess, cancel)

	req.True(reg.AddRoom("c1", "group-a"))
	req.True(reg.AddRoom("c1", "group-b"))
	req.False(reg.AddRoom("missing", "group-a"))
	req.ElementsMatch([]domain.RoomID{"group-a", "group-b"}, reg.RoomsOf("c1"))

	reg.RemoveRoom("c1", "group-a")
	req.Equal([]domain.RoomID{"group-b"}, reg.RoomsOf("c1"))

	req.True(reg.Cancel("c1"))
	req.ErrorIs(ctx.Err(), context.Canceled)
	req.False(reg.Cancel("missing"))
}

func TestRegistry_Concurrent_Binds_Leave_One_Winner(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	const n = 50
	for i := 0; i < n; i++ {
		register(reg, core.ConnID(fmt.Sprintf("c%d", i)))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		lastSeq uint64
		lastSID core.ConnID
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(sid core.ConnID) {
			defer wg.Done()
			seq := reg.Bind("alice", sid)
			mu.Lock()
			if seq > lastSeq {
				lastSeq, lastSID = seq, sid
			}
			mu.Unlock()
		}(core.ConnID(fmt.Sprintf("c%d", i)))
	}
	wg.Wait()

	// The highest sequence number is the binding that stuck
	sid, ok := reg.Resolve("alice")
	req.True(ok)
	req.Equal(lastSID, sid)
	_, users := reg.Counts()
	req.Equal(1, users)
}
