// Package sqlite is the chat store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id    TEXT NOT NULL,
	recipient_id TEXT,
	group_id     TEXT,
	body         TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT 'text',
	delivered    INTEGER NOT NULL DEFAULT 0,
	sent_at      DATETIME NOT NULL,
	CHECK ((recipient_id IS NULL) <> (group_id IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_chat_direct ON chat_messages (sender_id, recipient_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_chat_group ON chat_messages (group_id, sent_at);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (group_id, user_id)
);
`

type Store struct {
	db *sql.DB
}

var _ core.ChatStore = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps busy errors away.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info().Str("module", "storage.sqlite").Str("path", path).Msg("database ready")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) PersistChatMessage(ctx context.Context, msg *domain.ChatMessage) (int64, error) {
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (sender_id, recipient_id, group_id, body, type, delivered, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(msg.SenderID),
		nullable(string(msg.RecipientID)),
		nullable(string(msg.GroupID)),
		msg.Body,
		string(msg.Type),
		msg.Delivered,
		sentAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("chat message id: %w", err)
	}
	return id, nil
}

func (s *Store) IsGroupMember(ctx context.Context, user domain.UserID, group domain.GroupID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ? LIMIT 1`,
		string(group), string(user),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query group member: %w", err)
	}
	return true, nil
}

// AddGroupMember is idempotent.
func (s *Store) AddGroupMember(ctx context.Context, group domain.GroupID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`,
		string(group), string(user),
	)
	if err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	return nil
}

// Message loads one message by id.
func (s *Store) Message(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	var (
		m         domain.ChatMessage
		recipient sql.NullString
		group     sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sender_id, recipient_id, group_id, body, type, delivered, sent_at
		 FROM chat_messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.SenderID, &recipient, &group, &m.Body, &m.Type, &m.Delivered, &m.SentAt)
	if err != nil {
		return nil, fmt.Errorf("load chat message %d: %w", id, err)
	}
	m.RecipientID = domain.UserID(recipient.String)
	m.GroupID = domain.GroupID(group.String)
	return &m, nil
}
