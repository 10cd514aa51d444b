package store

import (
	"context"
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"

	"github.com/vox-os/vox-memory/internal/model"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQLite's lower() only folds ASCII. fold(text) lowercases the column the
// same way keywords are lowercased in Go.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
}

// Search finds active memories whose text contains any of the keywords,
// pinned first then newest. With no keywords it returns the most recent.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 5
	}

	scope, args := scopeClause(p.Scope)
	where := []string{scope, "active = 1"}

	if len(p.Keywords) > 0 {
		var ors []string
		for _, kw := range p.Keywords {
			ors = append(ors, `fold(text) LIKE ? ESCAPE '\'`)
			args = append(args, "%"+likeEscaper.Replace(strings.ToLower(kw))+"%")
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	query := `SELECT ` + memoryColumns + ` FROM memories
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY pinned DESC, created_at DESC, id DESC
		LIMIT ?`
	args = append(args, limit)

	return s.queryMemories(ctx, query, args...)
}
