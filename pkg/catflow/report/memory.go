package report

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps reports in memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]storedReport // runID -> stage -> report
	order  int
	closed bool
}

// storedReport holds the encoded report with the metadata List needs.
type storedReport struct {
	data      []byte
	sequence  int
	status    Status
	timestamp time.Time
	order     int // save order, breaks timestamp ties in Runs
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]storedReport),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	run := m.data[r.RunID]
	if run == nil {
		run = make(map[string]storedReport)
		m.data[r.RunID] = run
	}

	seq := 1
	for _, s := range run {
		if s.sequence >= seq {
			seq = s.sequence + 1
		}
	}

	data, err := encode(r, seq)
	if err != nil {
		return err
	}
	m.order++
	run[r.Stage] = storedReport{
		data:      data,
		sequence:  seq,
		status:    r.Status,
		timestamp: r.Timestamp,
		order:     m.order,
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID, stage string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	s, ok := m.data[runID][stage]
	if !ok {
		return nil, ErrNotFound
	}
	// Decoding yields a fresh value, so callers cannot modify the store.
	return Unmarshal(s.data)
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	run := m.data[runID]
	infos := make([]Info, 0, len(run))
	for stage, s := range run {
		infos = append(infos, Info{
			RunID:     runID,
			Stage:     stage,
			Sequence:  s.sequence,
			Status:    s.status,
			Timestamp: s.timestamp,
			Size:      int64(len(s.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs(limit int) ([]RunInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	type ranked struct {
		info  RunInfo
		order int
	}
	all := make([]ranked, 0, len(m.data))
	for runID, run := range m.data {
		if len(run) == 0 {
			continue
		}
		var last storedReport
		var lastStage string
		for stage, s := range run {
			if s.sequence > last.sequence {
				last, lastStage = s, stage
			}
		}
		all = append(all, ranked{
			info: RunInfo{
				RunID:     runID,
				Stages:    len(run),
				LastStage: lastStage,
				Status:    last.status,
				Updated:   last.timestamp,
			},
			order: last.order,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].info.Updated.Equal(all[j].info.Updated) {
			return all[i].info.Updated.After(all[j].info.Updated)
		}
		return all[i].order > all[j].order
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]RunInfo, len(all))
	for i, r := range all {
		out[i] = r.info
	}
	return out, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of reports across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.data {
		count += len(run)
	}
	return count
}
