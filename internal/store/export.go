package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vox-os/vox-memory/internal/model"
)

// ExportAll returns every memory in scope, active or not, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context, sc Scope) ([]model.Memory, error) {
	scope, args := scopeClause(sc)
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE `+scope+` ORDER BY created_at, id`, args...)
}

// Import stores memories from an export. Records whose id already exists are skipped.
// Returns the number of rows inserted.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	imported := 0
	for _, m := range memories {
		if m.ID == "" {
			m.ID = s.newID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = m.CreatedAt
		}
		if m.Summary == "" {
			m.Summary = m.Text
		}
		emb, err := encodeEmbedding(m.Embedding)
		if err != nil {
			return imported, err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memories (`+memoryColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, nullOwner(m.Owner), m.Text, m.Summary, nullCategory(m.Category), emb,
			m.Pinned, m.Active, formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
		if err != nil {
			return imported, fmt.Errorf("import %s: %w", m.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}
