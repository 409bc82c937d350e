package storedb

import (
	"sync/atomic"
	"time"
)

// statsCollector keeps the running counters for the manager. Counters only
// ever go up; derived metrics are computed on read and never stored.
type statsCollector struct {
	queriesExecuted atomic.Int64
	failedQueries   atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	totalExecTimeNS atomic.Int64
	reconnects      atomic.Int64
	connectAttempts atomic.Int64
}

// Stats is a point-in-time snapshot of the manager's counters plus the
// derived metrics.
type Stats struct {
	QueriesExecuted      int64         `json:"queries_executed"`
	FailedQueries        int64         `json:"failed_queries"`
	CacheHits            int64         `json:"cache_hits"`
	CacheMisses          int64         `json:"cache_misses"`
	TotalExecutionTime   time.Duration `json:"total_execution_time"`
	Reconnects           int64         `json:"reconnects"`
	ConnectAttempts      int64         `json:"connect_attempts"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	CacheHitRatio        float64       `json:"cache_hit_ratio"`
	ErrorRate            float64       `json:"error_rate"`
	CacheSize            int           `json:"cache_size"`
}

func (s *statsCollector) recordQuery(elapsed time.Duration) {
	s.queriesExecuted.Add(1)
	s.totalExecTimeNS.Add(elapsed.Nanoseconds())
}

func (s *statsCollector) recordFailure()    { s.failedQueries.Add(1) }
func (s *statsCollector) recordCacheHit()   { s.cacheHits.Add(1) }
func (s *statsCollector) recordCacheMiss()  { s.cacheMisses.Add(1) }
func (s *statsCollector) recordReconnect()  { s.reconnects.Add(1) }
func (s *statsCollector) recordConnectTry() { s.connectAttempts.Add(1) }

func (s *statsCollector) snapshot() Stats {
	executed := s.queriesExecuted.Load()
	failed := s.failedQueries.Load()
	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()
	total := time.Duration(s.totalExecTimeNS.Load())

	out := Stats{
		QueriesExecuted:    executed,
		FailedQueries:      failed,
		CacheHits:          hits,
		CacheMisses:        misses,
		TotalExecutionTime: total,
		Reconnects:         s.reconnects.Load(),
		ConnectAttempts:    s.connectAttempts.Load(),
	}
	if executed > 0 {
		out.AverageExecutionTime = total / time.Duration(executed)
	}
	if attempts := executed + failed; attempts > 0 {
		out.ErrorRate = float64(failed) / float64(attempts) * 100
	}
	if hits+misses > 0 {
		out.CacheHitRatio = float64(hits) / float64(hits+misses) * 100
	}
	return out
}
