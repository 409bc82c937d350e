package storedb

import (
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSlowLogCapacity = 256

// SlowQueryRecord is one statement that crossed the slow-query threshold.
// The record carries the statement shape and parameter count, never the
// bound values.
type SlowQueryRecord struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Normalized string        `json:"normalized"`
	ParamCount int           `json:"param_count"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SlowQueryStats aggregates the recorded ring.
type SlowQueryStats struct {
	TotalCount      int64         `json:"total_count"`
	MaxDuration     time.Duration `json:"max_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	LastRecordTime  time.Time     `json:"last_record_time"`
}

// slowQueryRecorder keeps a bounded in-memory ring of slow queries.
type slowQueryRecorder struct {
	mu     sync.Mutex
	cap    int
	ring   []SlowQueryRecord
	total  int64
	maxDur time.Duration
	sumDur time.Duration
	lastAt time.Time
}

func newSlowQueryRecorder(capacity int) *slowQueryRecorder {
	if capacity <= 0 {
		capacity = defaultSlowLogCapacity
	}
	return &slowQueryRecorder{cap: capacity}
}

var (
	slowNumberRe = regexp.MustCompile(`\b\d+\b`)
	slowStringRe = regexp.MustCompile(`'[^']*'`)
)

// normalizeSlowQuery replaces literals with ? so similar statements share a
// pattern.
func normalizeSlowQuery(query string) string {
	out := slowStringRe.ReplaceAllString(query, "?")
	return slowNumberRe.ReplaceAllString(out, "?")
}

func (r *slowQueryRecorder) record(query string, paramCount int, elapsed time.Duration, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring = append(r.ring, SlowQueryRecord{
		ID:         uuid.NewString(),
		Query:      query,
		Normalized: normalizeSlowQuery(query),
		ParamCount: paramCount,
		Duration:   elapsed,
		Timestamp:  at,
	})
	if len(r.ring) > r.cap {
		r.ring = r.ring[len(r.ring)-r.cap:]
	}
	r.total++
	r.sumDur += elapsed
	if elapsed > r.maxDur {
		r.maxDur = elapsed
	}
	r.lastAt = at
}

func (r *slowQueryRecorder) records() []SlowQueryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SlowQueryRecord, len(r.ring))
	copy(out, r.ring)
	return out
}

func (r *slowQueryRecorder) stats() SlowQueryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := SlowQueryStats{
		TotalCount:     r.total,
		MaxDuration:    r.maxDur,
		LastRecordTime: r.lastAt,
	}
	if r.total > 0 {
		out.AverageDuration = r.sumDur / time.Duration(r.total)
	}
	return out
}

// SlowQueryStats returns aggregate statistics over everything recorded so
// far, including entries that have since aged out of the ring.
func (m *Manager) SlowQueryStats() SlowQueryStats { return m.slowLog.stats() }
