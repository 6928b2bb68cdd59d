// Package chats owns ordered per-session message logs, title derivation
// and soft deletion. Sessions are never physically removed; an inactive
// session is excluded from listing and can no longer be appended to.
package chats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"creativemind-api/internal/shared"

	"github.com/aidarkhanov/nanoid"
	"go.uber.org/zap"
)

type Store struct {
	WDB *sql.DB
	RDB *sql.DB
	Log *zap.SugaredLogger
}

func NewStore(wdb, rdb *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{WDB: wdb, RDB: rdb, Log: log}
}

type Session struct {
	ID        string               `json:"chatId"`
	UserID    uint64               `json:"-"`
	Title     string               `json:"title"`
	Messages  []shared.ChatMessage `json:"messages"`
	UpdatedAt time.Time            `json:"timestamp"`
}

// AppendTx appends messages to an active session owned by userID, or creates
// a new session when chatID is empty. Runs inside the caller's transaction so
// a chat task's ledger decrement and its history append commit together.
func (s *Store) AppendTx(ctx context.Context, tx *sql.Tx, userID uint64, chatID string, messages []shared.ChatMessage) (*Session, error) {
	if chatID == "" {
		return s.createTx(ctx, tx, userID, messages)
	}

	var rawMessages string
	var title string
	err := tx.QueryRowContext(ctx, `
		SELECT title, messages
		FROM chat_session
		WHERE id = ? AND user_id = ? AND is_active = 1
	`, chatID, userID).Scan(&title, &rawMessages)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load chat session: %w", err)
	}

	var existing []shared.ChatMessage
	if err := json.Unmarshal([]byte(rawMessages), &existing); err != nil {
		return nil, fmt.Errorf("failed to decode stored messages: %w", err)
	}
	all := append(existing, messages...)

	allJSON, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}

	now := time.Now()
	// Condition repeats owner+active so a concurrent soft delete between the
	// read and the write leaves the session untouched.
	res, err := tx.ExecContext(ctx, `
		UPDATE chat_session
		SET messages = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_active = 1
	`, string(allJSON), now, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update chat session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return nil, shared.ErrNotFound
	}

	return &Session{ID: chatID, UserID: userID, Title: title, Messages: all, UpdatedAt: now}, nil
}

func (s *Store) createTx(ctx context.Context, tx *sql.Tx, userID uint64, messages []shared.ChatMessage) (*Session, error) {
	idNano, err := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 11)
	if err != nil {
		return nil, fmt.Errorf("failed to generate chat id: %w", err)
	}
	chatID := "chat-" + idNano

	var title string
	for _, msg := range messages {
		if msg.Role == "user" && msg.Content != "" {
			title = shared.TruncateTitle(msg.Content)
			break
		}
	}
	if title == "" {
		title = "New Chat"
	}

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_session (id, user_id, title, messages, updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, 1)
	`, chatID, userID, title, string(messagesJSON), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	return &Session{ID: chatID, UserID: userID, Title: title, Messages: messages, UpdatedAt: now}, nil
}

// ListActive returns up to limit active sessions, most recent first,
// projecting title, timestamp and messages.
func (s *Store) ListActive(ctx context.Context, userID uint64, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = shared.ChatHistoryLimit
	}

	rows, err := s.RDB.QueryContext(ctx, `
		SELECT id, title, messages, updated_at
		FROM chat_session
		WHERE user_id = ? AND is_active = 1
		ORDER BY updated_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		var rawMessages string
		if err := rows.Scan(&sess.ID, &sess.Title, &rawMessages, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}
		if err := json.Unmarshal([]byte(rawMessages), &sess.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode stored messages: %w", err)
		}
		sess.UserID = userID
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading chat sessions: %w", err)
	}

	return sessions, nil
}

// SoftDelete marks a session inactive. Ownership and liveness are part of
// the update condition, so there is no window between an existence check
// and the delete.
func (s *Store) SoftDelete(ctx context.Context, userID uint64, chatID string) error {
	res, err := s.WDB.ExecContext(ctx, `
		UPDATE chat_session
		SET is_active = 0
		WHERE id = ? AND user_id = ? AND is_active = 1
	`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return shared.ErrNotFound
	}
	return nil
}
