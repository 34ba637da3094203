package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/planpanel/internal/apperr"
	"github.com/starford/planpanel/internal/plan"
)

// PlanRow represents a row in the plans table.
type PlanRow struct {
	Key       plan.Key  `json:"date"`
	Path      string    `json:"file"`
	Checksum  string    `json:"checksum"`
	Content   string    `json:"content,omitempty"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Revision is one accepted save of a plan.
type Revision struct {
	ID       int64     `json:"id"`
	Key      plan.Key  `json:"date"`
	Checksum string    `json:"checksum"`
	Content  string    `json:"content"`
	Source   string    `json:"source"`
	SavedAt  time.Time `json:"saved_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Key     plan.Key `json:"date"`
	Snippet string   `json:"snippet"`
}

// UpsertPlan inserts or replaces a plan row and its FTS entry within a
// transaction.
func (db *DB) UpsertPlan(r PlanRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO plans (date, path, checksum, content, done, total, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			path       = excluded.path,
			checksum   = excluded.checksum,
			content    = excluded.content,
			done       = excluded.done,
			total      = excluded.total,
			updated_at = excluded.updated_at
	`, string(r.Key), r.Path, r.Checksum, r.Content, r.Done, r.Total, r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert plan: %w", err)
	}

	if err := ftsUpsert(tx, string(r.Key), r.Content); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePlan removes a plan row and its FTS entry. Revisions are kept.
func (db *DB) DeletePlan(key plan.Key) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, string(key))
	if _, err := tx.Exec(`DELETE FROM plans WHERE date = ?`, string(key)); err != nil {
		return fmt.Errorf("index: delete plan: %w", err)
	}
	return tx.Commit()
}

// GetPlan returns the indexed row for key.
func (db *DB) GetPlan(key plan.Key) (*PlanRow, error) {
	var (
		r    PlanRow
		date string
	)
	err := db.conn.QueryRow(`
		SELECT date, path, checksum, content, done, total, updated_at
		FROM plans WHERE date = ?
	`, string(key)).Scan(&date, &r.Path, &r.Checksum, &r.Content, &r.Done, &r.Total, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get plan: %w", err)
	}
	r.Key = plan.Key(date)
	return &r, nil
}

// ListPlans returns plan rows newest first, without content, plus the total
// row count.
func (db *DB) ListPlans(limit, offset int) ([]PlanRow, int, error) {
	if limit <= 0 {
		limit = 31
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM plans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count plans: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT date, path, checksum, done, total, updated_at
		FROM plans
		ORDER BY date DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list plans: %w", err)
	}
	defer rows.Close()

	var out []PlanRow
	for rows.Next() {
		var (
			r    PlanRow
			date string
		)
		if err := rows.Scan(&date, &r.Path, &r.Checksum, &r.Done, &r.Total, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		r.Key = plan.Key(date)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the stored note checksum of every indexed plan.
func (db *DB) AllChecksums() (map[plan.Key]string, error) {
	rows, err := db.conn.Query(`SELECT date, checksum FROM plans`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[plan.Key]string)
	for rows.Next() {
		var date, cs string
		if err := rows.Scan(&date, &cs); err != nil {
			return nil, err
		}
		out[plan.Key(date)] = cs
	}
	return out, rows.Err()
}

// RecordRevision appends a revision to the ledger and returns its id.
func (db *DB) RecordRevision(r Revision) (int64, error) {
	if r.SavedAt.IsZero() {
		r.SavedAt = time.Now()
	}
	if r.Source == "" {
		r.Source = "api"
	}
	res, err := db.conn.Exec(`
		INSERT INTO revisions (date, checksum, content, source, saved_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(r.Key), r.Checksum, r.Content, r.Source, r.SavedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("index: record revision: %w", err)
	}
	return res.LastInsertId()
}

// Revisions returns the newest revisions of key first.
func (db *DB) Revisions(key plan.Key, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, date, checksum, content, source, saved_at
		FROM revisions
		WHERE date = ?
		ORDER BY id DESC
		LIMIT ?
	`, string(key), limit)
	if err != nil {
		return nil, fmt.Errorf("index: revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var (
			r    Revision
			date string
		)
		if err := rows.Scan(&r.ID, &date, &r.Checksum, &r.Content, &r.Source, &r.SavedAt); err != nil {
			return nil, err
		}
		r.Key = plan.Key(date)
		out = append(out, r)
	}
	return out, rows.Err()
}
