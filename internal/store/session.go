package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vox-os/vox-memory/internal/model"
)

const sessionColumns = `id, owner, title, created_at, updated_at`

func (s *SQLiteStore) CreateSession(ctx context.Context, owner, title string) (*model.Session, error) {
	now := time.Now().UTC()
	sess := &model.Session{
		ID:        s.newID(),
		Owner:     owner,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Owner, sess.Title, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, owner, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ? AND owner = ?`, id, owner)
	return scanSessionRow(row)
}

func (s *SQLiteStore) LatestSessionByTitle(ctx context.Context, owner, title string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions
		 WHERE owner = ? AND title = ?
		 ORDER BY updated_at DESC, id DESC LIMIT 1`, owner, title)
	return scanSessionRow(row)
}

func (s *SQLiteStore) ListSessions(ctx context.Context, owner string) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions
		 WHERE owner = ?
		 ORDER BY updated_at DESC, id DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes the session; its messages go with it via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteSession(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage adds a message to the log and bumps the session's updated_at.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, role model.Role, content string) (*model.Message, error) {
	msgs, err := s.AppendMessages(ctx, sessionID, model.Entry{Role: role, Content: content})
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// AppendMessages writes entries in order in one transaction, so a turn is
// stored whole or not at all.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, entries ...model.Entry) ([]model.Message, error) {
	for _, e := range entries {
		if !e.Role.Conversational() {
			return nil, fmt.Errorf("invalid message role %q", e.Role)
		}
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]model.Message, 0, len(entries))
	for _, e := range entries {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, string(e.Role), e.Content, formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		out = append(out, model.Message{
			ID:        id,
			SessionID: sessionID,
			Role:      e.Role,
			Content:   e.Content,
			CreatedAt: now,
		})
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, formatTime(now), sessionID); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, session_id, role, content, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY id`, sessionID)
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, n int) ([]model.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at FROM chat_messages
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id`, sessionID, n)
}

func (s *SQLiteStore) ClearMessages(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role, createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanSessionRow(row *sql.Row) (*model.Session, error) {
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanSession(row scanner) (model.Session, error) {
	var sess model.Session
	var createdAt, updatedAt string
	if err := row.Scan(&sess.ID, &sess.Owner, &sess.Title, &createdAt, &updatedAt); err != nil {
		return sess, err
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	return sess, nil
}
