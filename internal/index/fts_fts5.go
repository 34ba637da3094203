//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/planpanel/internal/plan"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS plans_fts USING fts5(
			date UNINDEXED,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, date, content string) error {
	_, _ = tx.Exec(`DELETE FROM plans_fts WHERE date = ?`, date)
	if _, err := tx.Exec(`INSERT INTO plans_fts (date, content) VALUES (?, ?)`, date, content); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, date string) {
	_, _ = tx.Exec(`DELETE FROM plans_fts WHERE date = ?`, date)
}

// Search performs an FTS5 full-text search over plan sections.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT date,
		       snippet(plans_fts, 1, '<b>', '</b>', '...', 32)
		FROM plans_fts
		WHERE plans_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
