package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/minutes/internal/db"
)

// Store persists sessions and their turns.
type Store struct {
	db *db.DB
}

// NewStore creates a new session store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateSession creates a new chat session.
func (s *Store) CreateSession(ctx context.Context, label string) (*Info, error) {
	now := time.Now().UTC()
	info := Info{
		ID:        uuid.New().String(),
		Label:     label,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, label, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		info.ID, info.Label, info.CreatedAt, info.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &info, nil
}

// GetSession returns the session with the given id, or nil if there is none.
func (s *Store) GetSession(ctx context.Context, id string) (*Info, error) {
	var info Info
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, created_at, updated_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&info.ID, &info.Label, &info.CreatedAt, &info.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &info, nil
}

// ListSessions returns the most recently used sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, created_at, updated_at FROM chat_sessions
		 ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.Label, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// AddTurn appends a turn to a session. The sequence number is assigned by
// the store.
func (s *Store) AddTurn(ctx context.Context, t Turn) (*Turn, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_turns WHERE session_id = ?`, t.SessionID,
	).Scan(&t.Seq); err != nil {
		return nil, fmt.Errorf("computing turn sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_turns (id, session_id, seq, mode, topic, question, answer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Seq, t.Mode, t.Topic, t.Question, t.Answer, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("adding turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, t.CreatedAt, t.SessionID,
	); err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing turn: %w", err)
	}
	return &t, nil
}

// Turns returns all turns of a session in order.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, mode, topic, question, answer, created_at
		 FROM chat_turns WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.Mode, &t.Topic, &t.Question, &t.Answer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// DeleteTurns removes every turn of a session and returns how many were
// deleted. The session itself is kept.
func (s *Store) DeleteTurns(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_turns WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting turns: %w", err)
	}
	return res.RowsAffected()
}

// CountSessions returns the total number of chat sessions.
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&count)
	return count, err
}
