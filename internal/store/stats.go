package store

import (
	"context"
	"database/sql"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath           string          `json:"db_path"`
	DBSizeBytes      int64           `json:"db_size_bytes"`
	SchemaVersion    int             `json:"schema_version"`
	TotalMemories    int             `json:"total_memories"`
	ActiveMemories   int             `json:"active_memories"`
	PinnedMemories   int             `json:"pinned_memories"`
	GlobalMemories   int             `json:"global_memories"`
	EmbeddedMemories int             `json:"embedded_memories"`
	Sessions         int             `json:"sessions"`
	Messages         int             `json:"messages"`
	Categories       []CategoryStats `json:"categories"`
	Owners           []OwnerStats    `json:"owners"`
}

// CategoryStats holds per-category counts. An empty category means uncategorized.
type CategoryStats struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// OwnerStats holds per-owner counts. An empty owner means global.
type OwnerStats struct {
	Owner    string `json:"owner"`
	Memories int    `json:"memories"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	st.SchemaVersion, _ = s.SchemaVersion(ctx)

	counts := []struct {
		dst   *int
		query string
	}{
		{&st.TotalMemories, `SELECT COUNT(*) FROM memories`},
		{&st.ActiveMemories, `SELECT COUNT(*) FROM memories WHERE active = 1`},
		{&st.PinnedMemories, `SELECT COUNT(*) FROM memories WHERE pinned = 1`},
		{&st.GlobalMemories, `SELECT COUNT(*) FROM memories WHERE owner IS NULL`},
		{&st.EmbeddedMemories, `SELECT COUNT(*) FROM memories WHERE embedding IS NOT NULL`},
		{&st.Sessions, `SELECT COUNT(*) FROM chat_sessions`},
		{&st.Messages, `SELECT COUNT(*) FROM chat_messages`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return st, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS cnt
		FROM memories WHERE active = 1
		GROUP BY category ORDER BY cnt DESC, category`)
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var cat sql.NullString
		var cs CategoryStats
		if err := rows.Scan(&cat, &cs.Count); err != nil {
			rows.Close()
			return st, err
		}
		cs.Category = cat.String
		st.Categories = append(st.Categories, cs)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT owner, COUNT(*) AS cnt
		FROM memories
		GROUP BY owner ORDER BY cnt DESC, owner`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var owner sql.NullString
		var ow OwnerStats
		if err := rows.Scan(&owner, &ow.Memories); err != nil {
			return st, err
		}
		ow.Owner = owner.String
		st.Owners = append(st.Owners, ow)
	}

	return st, rows.Err()
}
