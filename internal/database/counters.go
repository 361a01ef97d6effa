package database

import (
	"strings"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
)

// IncrementViews bumps the persisted view counter for an article.
func (db *DB) IncrementViews(articleID string) error {
	_, err := db.conn.Exec(`
INSERT INTO article_counters (article_id, views, updated_at) VALUES (?, 1, datetime('now'))
ON CONFLICT(article_id) DO UPDATE SET views = views + 1, updated_at = datetime('now')`,
		articleID,
	)
	return err
}

// AddHelpful adjusts the helpful counter by delta (+1 vote, -1 revoke).
// The counter never goes below zero.
func (db *DB) AddHelpful(articleID string, delta int) error {
	_, err := db.conn.Exec(`
INSERT INTO article_counters (article_id, helpful, updated_at) VALUES (?, MAX(?, 0), datetime('now'))
ON CONFLICT(article_id) DO UPDATE SET helpful = MAX(helpful + ?, 0), updated_at = datetime('now')`,
		articleID, delta, delta,
	)
	return err
}

// GetCounters returns the counters for one article. Missing rows come
// back as zero counters, not an error.
func (db *DB) GetCounters(articleID string) (catalog.Counters, error) {
	row := db.conn.QueryRow(
		`SELECT views, helpful FROM article_counters WHERE article_id = ?`, articleID,
	)
	var c catalog.Counters
	if err := row.Scan(&c.Views, &c.Helpful); err != nil {
		return catalog.Counters{}, nil
	}
	return c, nil
}

// ArticleCounters returns counters for a set of article ids. Implements
// catalog.CounterSource, so the Store can overlay persisted engagement
// onto the published popularity numbers at load time.
func (db *DB) ArticleCounters(ids []string) (map[string]catalog.Counters, error) {
	m := make(map[string]catalog.Counters)
	if len(ids) == 0 {
		return m, nil
	}

	query := "SELECT article_id, views, helpful FROM article_counters WHERE article_id IN (?" +
		strings.Repeat(",?", len(ids)-1) + ")"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var c catalog.Counters
		if err := rows.Scan(&id, &c.Views, &c.Helpful); err != nil {
			return nil, err
		}
		m[id] = c
	}
	return m, rows.Err()
}
