package report

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists reports to SQLite.
// It is suitable for single-process use; reports survive restarts.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates the report database at path.
// Use ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A :memory: database is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run_reports (
			run_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			status TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (run_id, stage)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_run_reports_timestamp
		ON run_reports(timestamp)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRow(`
		SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_reports WHERE run_id = ?
	`, r.RunID).Scan(&seq); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	data, err := encode(r, seq)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO run_reports (run_id, stage, sequence, status, timestamp, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			sequence = excluded.sequence,
			status = excluded.status,
			timestamp = excluded.timestamp,
			data = excluded.data
	`, r.RunID, r.Stage, seq, string(r.Status), r.Timestamp.UTC().Format(timeLayout), data); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(runID, stage string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM run_reports
		WHERE run_id = ? AND stage = ?
	`, runID, stage).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}

	r, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT stage, sequence, status, timestamp, LENGTH(data)
		FROM run_reports
		WHERE run_id = ?
		ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var (
			info      Info
			status    string
			timestamp string
		)
		if err := rows.Scan(&info.Stage, &info.Sequence, &status, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan report info: %w", err)
		}
		info.RunID = runID
		info.Status = Status(status)
		info.Timestamp, _ = time.Parse(timeLayout, timestamp)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return infos, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs(limit int) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.Query(`
		SELECT r.run_id, c.n, r.stage, r.status, r.timestamp
		FROM run_reports r
		JOIN (
			SELECT run_id, MAX(sequence) AS seq, COUNT(*) AS n
			FROM run_reports
			GROUP BY run_id
		) c ON r.run_id = c.run_id AND r.sequence = c.seq
		ORDER BY r.timestamp DESC, r.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var (
			info      RunInfo
			status    string
			timestamp string
		)
		if err := rows.Scan(&info.RunID, &info.Stages, &info.LastStage, &status, &timestamp); err != nil {
			return nil, fmt.Errorf("scan run info: %w", err)
		}
		info.Status = Status(status)
		info.Updated, _ = time.Parse(timeLayout, timestamp)
		runs = append(runs, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM run_reports WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run reports: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
