package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "huddle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Persist_And_Load_Direct(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := domain.NewChatMessage("alice", "bob", "", "hi", "", "")
	msg.Delivered = true
	msg.SentAt = at

	id, err := s.PersistChatMessage(ctx, msg)
	req.NoError(err)
	req.Positive(id)

	got, err := s.Message(ctx, id)
	req.NoError(err)
	req.Equal(id, got.ID)
	req.Equal(domain.UserID("alice"), got.SenderID)
	req.Equal(domain.UserID("bob"), got.RecipientID)
	req.Empty(got.GroupID)
	req.Equal("hi", got.Body)
	req.Equal(domain.MessageText, got.Type)
	req.True(got.Delivered)
	req.True(at.Equal(got.SentAt))
}

func TestStore_Ids_Increase(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()

	first, err := s.PersistChatMessage(ctx, domain.NewChatMessage("alice", "", "g1", "one", "", ""))
	req.NoError(err)
	second, err := s.PersistChatMessage(ctx, domain.NewChatMessage("alice", "", "g1", "two", "", ""))
	req.NoError(err)
	req.Greater(second, first)

	got, err := s.Message(ctx, second)
	req.NoError(err)
	req.Equal(domain.GroupID("g1"), got.GroupID)
	req.Empty(got.RecipientID)
}

func TestStore_Rejects_Both_Targets(t *testing.T) {
	s := openStore(t)

	_, err := s.PersistChatMessage(context.Background(), domain.NewChatMessage("alice", "bob", "g1", "hi", "", ""))
	require.Error(t, err)
}

func TestStore_Group_Members(t *testing.T) {
	req := require.New(t)
	s := openStore(t)
	ctx := context.Background()

	ok, err := s.IsGroupMember(ctx, "alice", "g1")
	req.NoError(err)
	req.False(ok)

	req.NoError(s.AddGroupMember(ctx, "g1", "alice"))
	req.NoError(s.AddGroupMember(ctx, "g1", "alice"))

	ok, err = s.IsGroupMember(ctx, "alice", "g1")
	req.NoError(err)
	req.True(ok)

	ok, err = s.IsGroupMember(ctx, "alice", "g2")
	req.NoError(err)
	req.False(ok)
	req.NoError(s.Ping(ctx))
}
