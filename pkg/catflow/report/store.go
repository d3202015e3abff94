// Package report persists per-stage pipeline run reports.
package report

import (
	"errors"
	"time"
)

// timeLayout sorts lexically in time order, unlike RFC3339Nano.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists run reports.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores r, replacing any report for the same (RunID, Stage), and
	// sets r.Sequence to one past the run's highest sequence.
	Save(r *Report) error

	// Load retrieves the report of one stage.
	// Returns ErrNotFound if it doesn't exist.
	Load(runID, stage string) (*Report, error)

	// List returns the reports of a run, ordered by sequence.
	// Returns an empty slice (not error) for an unknown run.
	List(runID string) ([]Info, error)

	// Runs returns up to limit runs, most recently updated first.
	// A limit of 0 or less returns every run.
	Runs(limit int) ([]RunInfo, error)

	// DeleteRun removes every report of a run.
	// Returns nil if the run has no reports.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a stored report without decoding it.
type Info struct {
	RunID     string
	Stage     string
	Sequence  int
	Status    Status
	Timestamp time.Time
	Size      int64
}

// RunInfo summarizes one run from its latest report.
type RunInfo struct {
	RunID     string
	Stages    int
	LastStage string
	Status    Status
	Updated   time.Time
}

// Sentinel errors for report operations.
var (
	// ErrNotFound indicates a report doesn't exist.
	ErrNotFound = errors.New("report not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("report store closed")
)

// encode assigns the sequence and serializes r.
func encode(r *Report, sequence int) ([]byte, error) {
	r.Sequence = sequence
	if r.Version == 0 {
		r.Version = Version
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return r.Marshal()
}
