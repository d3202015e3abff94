package report

import (
	"encoding/json"
	"time"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/load"
)

// Version is the current report format version.
// Increment when making breaking changes to the report structure.
const Version = 1

// Status is the outcome recorded for a stage.
type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
	StatusCancelled Status = "cancelled"
)

// Report is the persisted record of one pipeline stage.
type Report struct {
	// Metadata
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Pipeline  string    `json:"pipeline,omitempty"`
	Stage     string    `json:"stage"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Outcome
	Status     Status  `json:"status"`
	DurationMs float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`

	// Stage details. Only the fields a stage produces are set.
	Tables   map[string]int   `json:"tables,omitempty"`
	Summary  *catflow.Summary `json:"summary,omitempty"`
	Outputs  []load.Output    `json:"outputs,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// New creates a report for a stage. Sequence is assigned by Store.Save.
func New(runID, stage string, status Status) *Report {
	return &Report{
		Version:   Version,
		RunID:     runID,
		Stage:     stage,
		Timestamp: time.Now().UTC(),
		Status:    status,
	}
}

// WithDuration sets the stage duration.
func (r *Report) WithDuration(d time.Duration) *Report {
	r.DurationMs = float64(d) / float64(time.Millisecond)
	return r
}

// WithError records err. A nil err is ignored.
func (r *Report) WithError(err error) *Report {
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Marshal serializes a report to JSON.
func (r *Report) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a report from JSON.
func Unmarshal(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
