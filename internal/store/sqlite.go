package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/vox-os/vox-memory/internal/model"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const memoryColumns = `id, owner, text, summary, category, embedding, pinned, active, created_at, updated_at`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

// scopeClause renders the owner filter for sc.
func scopeClause(sc Scope) (string, []any) {
	switch {
	case sc.AllOwners:
		return "1 = 1", nil
	case sc.IncludeGlobal:
		return "(owner = ? OR owner IS NULL)", []any{sc.Owner}
	default:
		return "owner = ?", []any{sc.Owner}
	}
}

func nullOwner(owner string) any {
	if owner == "" {
		return nil
	}
	return owner
}

func nullCategory(c *model.Category) any {
	if c == nil {
		return nil
	}
	return string(*c)
}

func encodeEmbedding(vec []float32) (any, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(b), nil
}

func (s *SQLiteStore) InsertMemory(ctx context.Context, m *model.Memory) error {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}

	emb, err := encodeEmbedding(m.Embedding)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, nullOwner(m.Owner), m.Text, m.Summary, nullCategory(m.Category), emb,
		m.Pinned, m.Active, formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMemory(ctx context.Context, sc Scope, id string) (*model.Memory, error) {
	where, args := scopeClause(sc)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ? AND `+where,
		append([]any{id}, args...)...)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMemory rewrites every mutable field of m and stamps updated_at.
func (s *SQLiteStore) UpdateMemory(ctx context.Context, m *model.Memory) error {
	m.UpdatedAt = time.Now().UTC()
	emb, err := encodeEmbedding(m.Embedding)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories
		 SET text = ?, summary = ?, category = ?, embedding = ?, pinned = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		m.Text, m.Summary, nullCategory(m.Category), emb, m.Pinned, m.Active, formatTime(m.UpdatedAt), m.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteMemory(ctx context.Context, sc Scope, id string) error {
	where, args := scopeClause(sc)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE id = ? AND `+where,
		append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListMemories(ctx context.Context, p ListParams) ([]model.Memory, error) {
	scope, args := scopeClause(p.Scope)
	where := []string{scope}
	if p.ActiveOnly {
		where = append(where, "active = 1")
	}

	query := `SELECT ` + memoryColumns + ` FROM memories
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}
	return s.queryMemories(ctx, query, args...)
}

func (s *SQLiteStore) Core(ctx context.Context, sc Scope, limit int) ([]model.Memory, error) {
	scope, args := scopeClause(sc)
	pins, err := s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE `+scope+` AND active = 1 AND pinned = 1
		 ORDER BY category, created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}

	salient := model.SalientCategories()
	marks := make([]string, len(salient))
	for i, c := range salient {
		marks[i] = "?"
		args = append(args, string(c))
	}
	query := `SELECT ` + memoryColumns + ` FROM memories
		WHERE ` + scope + ` AND active = 1 AND pinned = 0
		  AND category IN (` + strings.Join(marks, ", ") + `)
		ORDER BY category, created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rest, err := s.queryMemories(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return append(pins, rest...), nil
}

func (s *SQLiteStore) Embedded(ctx context.Context, sc Scope) ([]model.Memory, error) {
	scope, args := scopeClause(sc)
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE `+scope+` AND active = 1 AND embedding IS NOT NULL
		 ORDER BY created_at DESC, id DESC`, args...)
}

func (s *SQLiteStore) Unembedded(ctx context.Context, limit int) ([]model.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories
		WHERE active = 1 AND embedding IS NULL
		ORDER BY created_at, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryMemories(ctx, query, args...)
}

func (s *SQLiteStore) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	emb, err := encodeEmbedding(vec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = ? WHERE id = ?`, emb, id)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var owner, category, embedding sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&m.ID, &owner, &m.Text, &m.Summary, &category, &embedding,
		&m.Pinned, &m.Active, &createdAt, &updatedAt,
	)
	if err != nil {
		return m, err
	}

	m.Owner = owner.String
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	if category.Valid {
		if c, err := model.ParseCategory(category.String); err == nil {
			m.Category = &c
		}
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &m.Embedding); err != nil {
			return m, fmt.Errorf("decode embedding for %s: %w", m.ID, err)
		}
	}

	return m, nil
}
