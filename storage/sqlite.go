package storage

import (
	"database/sql"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"catalog_tracker/models"
)

// SQLiteStore is the run ledger: one row per batch, one per item per batch,
// and the log lines each batch emitted.
type SQLiteStore struct {
	db        *sql.DB
	activeRun atomic.Int64 // 0 when no run is open
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fetch_runs (
		id INTEGER PRIMARY KEY,
		run_key TEXT NOT NULL UNIQUE,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		items_total INTEGER DEFAULT 0,
		items_persisted INTEGER DEFAULT 0,
		items_skipped INTEGER DEFAULT 0,
		items_failed INTEGER DEFAULT 0,
		catalog_rows INTEGER DEFAULT 0,
		detail_rows INTEGER DEFAULT 0,
		review_rows INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS item_fetches (
		id INTEGER PRIMARY KEY,
		run_id INTEGER NOT NULL,
		asin TEXT NOT NULL,
		name TEXT,
		state TEXT NOT NULL,
		error TEXT,
		updated_at DATETIME,
		UNIQUE(run_id, asin),
		FOREIGN KEY (run_id) REFERENCES fetch_runs(id)
	);

	CREATE TABLE IF NOT EXISTS fetch_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON fetch_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_items_asin ON item_fetches(asin, updated_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON fetch_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.FetchRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (run_key, started_at, status, items_total)
		VALUES (?, ?, ?, ?)`,
		run.Key, run.StartedAt, run.Status, run.ItemsTotal)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.activeRun.Store(id)
	return id, nil
}

func (s *SQLiteStore) UpdateRun(run *models.FetchRun) error {
	_, err := s.db.Exec(`
		UPDATE fetch_runs SET finished_at = ?, status = ?, items_total = ?,
			items_persisted = ?, items_skipped = ?, items_failed = ?,
			catalog_rows = ?, detail_rows = ?, review_rows = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ItemsTotal,
		run.ItemsPersisted, run.ItemsSkipped, run.ItemsFailed,
		run.CatalogRows, run.DetailRows, run.ReviewRows, run.ErrorsCount, run.ID)
	if err == nil && run.FinishedAt != nil {
		s.activeRun.CompareAndSwap(run.ID, 0)
	}
	return err
}

// SetItemState records the latest state of an item within a run
func (s *SQLiteStore) SetItemState(item *models.ItemFetch) error {
	_, err := s.db.Exec(`
		INSERT INTO item_fetches (run_id, asin, name, state, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, asin) DO UPDATE SET
			state = excluded.state,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		item.RunID, item.ASIN, item.Name, item.State, item.Error, item.UpdatedAt)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_logs (run_id, timestamp, level, message, source)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, source)
	return err
}

// LogActive records a line against the run currently open, or against no run
func (s *SQLiteStore) LogActive(level models.LogLevel, message, source string) error {
	var runID *int64
	if id := s.activeRun.Load(); id != 0 {
		runID = &id
	}
	return s.Log(runID, level, message, source)
}

func (s *SQLiteStore) GetRecentRuns(limit int) ([]models.FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_key, started_at, finished_at, status, items_total, items_persisted,
			items_skipped, items_failed, catalog_rows, detail_rows, review_rows, errors_count
		FROM fetch_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.FetchRun
	for rows.Next() {
		var r models.FetchRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Key, &r.StartedAt, &finished, &r.Status, &r.ItemsTotal,
			&r.ItemsPersisted, &r.ItemsSkipped, &r.ItemsFailed, &r.CatalogRows, &r.DetailRows,
			&r.ReviewRows, &r.ErrorsCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetItemStates(runID int64) ([]models.ItemFetch, error) {
	rows, err := s.db.Query(`
		SELECT run_id, asin, COALESCE(name, ''), state, COALESCE(error, ''), updated_at
		FROM item_fetches WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ItemFetch
	for rows.Next() {
		var it models.ItemFetch
		if err := rows.Scan(&it.RunID, &it.ASIN, &it.Name, &it.State, &it.Error, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.FetchLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, source
		FROM fetch_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.FetchLog
	for rows.Next() {
		var l models.FetchLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
