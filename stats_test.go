package storedb

import (
	"testing"
	"time"
)

func TestStats_EmptySnapshotHasNoDerivedValues(t *testing.T) {
	var c statsCollector
	s := c.snapshot()

	if s.AverageExecutionTime != 0 || s.CacheHitRatio != 0 || s.ErrorRate != 0 {
		t.Fatalf("empty snapshot must not divide by zero: %+v", s)
	}
}

func TestStats_DerivedMetrics(t *testing.T) {
	var c statsCollector
	c.recordQuery(10 * time.Millisecond)
	c.recordQuery(30 * time.Millisecond)
	c.recordQuery(20 * time.Millisecond)
	c.recordFailure()
	c.recordCacheHit()
	c.recordCacheHit()
	c.recordCacheHit()
	c.recordCacheMiss()
	c.recordReconnect()
	c.recordConnectTry()
	c.recordConnectTry()

	s := c.snapshot()
	if s.QueriesExecuted != 3 || s.FailedQueries != 1 {
		t.Fatalf("counters: %+v", s)
	}
	if s.TotalExecutionTime != 60*time.Millisecond {
		t.Fatalf("total=%v", s.TotalExecutionTime)
	}
	if s.AverageExecutionTime != 20*time.Millisecond {
		t.Fatalf("avg=%v", s.AverageExecutionTime)
	}
	if s.CacheHitRatio != 75 {
		t.Fatalf("hit ratio=%v want 75", s.CacheHitRatio)
	}
	if s.ErrorRate != 25 {
		t.Fatalf("error rate=%v want 25", s.ErrorRate)
	}
	if s.Reconnects != 1 || s.ConnectAttempts != 2 {
		t.Fatalf("connection counters: %+v", s)
	}
}
