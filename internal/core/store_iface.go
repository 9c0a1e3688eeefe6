//go:generate go run go.uber.org/mock/mockgen -source=store_iface.go -destination=../mocks/mock_store.go -package=mocks
package core

import (
	"context"

	"github.com/dkeye/Huddle/internal/domain"
)

// ChatStore is the persistence collaborator of the chat relay.
type ChatStore interface {
	// PersistChatMessage inserts msg and returns its row id.
	PersistChatMessage(ctx context.Context, msg *domain.ChatMessage) (int64, error)
	IsGroupMember(ctx context.Context, user domain.UserID, group domain.GroupID) (bool, error)
}
