package store

import (
	"context"
	"fmt"
)

// migrations is the ordered list of schema steps. Step i moves the schema to
// version i+1. Append only; never edit a released step.
var migrations = []string{
	`CREATE TABLE memories (
		id          TEXT PRIMARY KEY,
		owner       TEXT,
		text        TEXT NOT NULL,
		summary     TEXT NOT NULL,
		category    TEXT,
		embedding   TEXT,
		pinned      INTEGER NOT NULL DEFAULT 0,
		active      INTEGER NOT NULL DEFAULT 1,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX idx_memories_owner ON memories(owner, active);
	CREATE INDEX idx_memories_created ON memories(created_at DESC);`,

	`CREATE TABLE chat_sessions (
		id          TEXT PRIMARY KEY,
		owner       TEXT NOT NULL,
		title       TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX idx_sessions_owner ON chat_sessions(owner, updated_at DESC);

	CREATE TABLE chat_messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		role        TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX idx_messages_session ON chat_messages(session_id, id);`,

	`CREATE INDEX idx_memories_core ON memories(active, pinned, category);`,
}

// SchemaVersion returns the number of applied migrations.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		if err := s.applyMigration(ctx, i+1, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, version int, stmt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return tx.Commit()
}

