// Package store persists finished conversations to Postgres.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxbridge/voxbridge/pkg/core/call"
)

// Store writes conversation records through a pgx connection pool. It
// implements call.Recorder.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveConversation inserts the conversation and its messages in one
// transaction.
func (s *Store) SaveConversation(ctx context.Context, rec call.ConversationRecord) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (call_sid, tenant, end_reason, turns, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.CallID, rec.Tenant, string(rec.Reason), rec.Turns, rec.StartedAt, rec.EndedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	for i, entry := range rec.History {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_messages (conversation_id, position, speaker, content, spoken_at)
			VALUES ($1, $2, $3, $4, $5)`,
			id, i, string(entry.Speaker), entry.Text, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("conversation saved", "call_sid", rec.CallID, "messages", len(rec.History))
	return nil
}

// Conversation is one stored call summary.
type Conversation struct {
	ID        int64     `json:"id"`
	CallSid   string    `json:"call_sid"`
	Tenant    string    `json:"tenant,omitempty"`
	EndReason string    `json:"end_reason"`
	Turns     int       `json:"turns"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// RecentConversations lists the most recently ended conversations.
func (s *Store) RecentConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, call_sid, tenant, end_reason, turns, started_at, ended_at
		FROM conversations
		ORDER BY ended_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.CallSid, &c.Tenant, &c.EndReason, &c.Turns, &c.StartedAt, &c.EndedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Message is one stored utterance.
type Message struct {
	Position int       `json:"position"`
	Speaker  string    `json:"speaker"`
	Content  string    `json:"content"`
	SpokenAt time.Time `json:"spoken_at"`
}

// ConversationMessages returns the transcript for one stored conversation.
func (s *Store) ConversationMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT position, speaker, content, spoken_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY position`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Position, &m.Speaker, &m.Content, &m.SpokenAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
