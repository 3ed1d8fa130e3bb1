package worker

import (
	"sync"
	"time"

	"ingestion-service/internal/models"
)

// FailureEntry records one job that exhausted its retries.
type FailureEntry struct {
	Job      models.IngestionJob `json:"job"`
	Error    string              `json:"error"`
	Attempts int                 `json:"attempts"`
	FailedAt time.Time           `json:"failed_at"`
}

// FailureLog keeps the most recent permanently-failed jobs for operator
// inspection. Bounded; older entries are discarded once the cap is reached.
type FailureLog struct {
	mu      sync.Mutex
	max     int
	entries []FailureEntry
}

func NewFailureLog(max int) *FailureLog {
	if max <= 0 {
		max = 100
	}
	return &FailureLog{max: max}
}

func (l *FailureLog) Record(entry FailureEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Snapshot returns a copy of the current entries, most recent last.
func (l *FailureLog) Snapshot() []FailureEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]FailureEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
