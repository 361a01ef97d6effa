package database

import "database/sql"

// ImportRun records one importer invocation.
type ImportRun struct {
	ID         int64
	StartedAt  string
	FinishedAt *string
	Sources    int
	Found      int
	Imported   int
	Duplicates int
	Failures   int
}

// Stats contains aggregate database statistics for the status command.
type Stats struct {
	TrackedArticles int
	TotalViews      int
	TotalHelpful    int
	ImportRuns      int
	LastImportAt    string
}

// InsertImportRun stores a finished import run.
func (db *DB) InsertImportRun(run ImportRun) (int64, error) {
	res, err := db.conn.Exec(`
INSERT INTO import_runs (started_at, finished_at, sources, found, imported, duplicates, failures)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt, run.FinishedAt, run.Sources, run.Found, run.Imported, run.Duplicates, run.Failures,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetLastImportRun returns the most recent import run, or nil.
func (db *DB) GetLastImportRun() (*ImportRun, error) {
	row := db.conn.QueryRow(`
SELECT id, started_at, finished_at, sources, found, imported, duplicates, failures
FROM import_runs ORDER BY id DESC LIMIT 1`)
	var r ImportRun
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Sources, &r.Found, &r.Imported, &r.Duplicates, &r.Failures)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetStats aggregates engagement and import statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	row := db.conn.QueryRow(`
SELECT COUNT(*), COALESCE(SUM(views), 0), COALESCE(SUM(helpful), 0) FROM article_counters`)
	if err := row.Scan(&s.TrackedArticles, &s.TotalViews, &s.TotalHelpful); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM import_runs`).Scan(&s.ImportRuns); err != nil {
		return nil, err
	}

	var last sql.NullString
	err := db.conn.QueryRow(`SELECT MAX(started_at) FROM import_runs`).Scan(&last)
	if err == nil && last.Valid {
		s.LastImportAt = last.String
	}

	return s, nil
}
