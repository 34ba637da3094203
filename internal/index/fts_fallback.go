//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/planpanel/internal/plan"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on plans.content.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _ string) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT date, substr(content, 1, 200)
		FROM plans
		WHERE content LIKE ?
		ORDER BY date DESC
		LIMIT ?
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var date, snippet string
		if err := rows.Scan(&date, &snippet); err != nil {
			return nil, err
		}
		out = append(out, SearchResult{Key: plan.Key(date), Snippet: snippet})
	}
	return out, rows.Err()
}
