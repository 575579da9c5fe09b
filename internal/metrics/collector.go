// Package metrics provides in-memory invocation statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector, one per assessment task kind.
const (
	OpSimpleBatch = "assess_simple_batch"
	OpGroup       = "assess_group"
	OpListItem    = "assess_list_item"
	OpDocument    = "assess_document"
)

// InvocationMetrics holds aggregated metrics for one task kind.
type InvocationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	TotalInputTokens  int64
	TotalOutputTokens int64
}

// InvocationSnapshot provides computed stats from raw metrics.
type InvocationSnapshot struct {
	Count             int64
	TotalTimeMs       int64
	AvgTimeMs         float64
	MinTimeMs         int64
	MaxTimeMs         int64
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// Snapshot represents collected statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	SimpleBatch   *InvocationSnapshot
	Group         *InvocationSnapshot
	ListItem      *InvocationSnapshot
	Document      *InvocationSnapshot
}

// Collector aggregates in-memory invocation statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*InvocationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*InvocationMetrics),
	}
}

// RecordInvocation records timing and token usage for one invocation.
func (c *Collector) RecordInvocation(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &InvocationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}

	m.Count++
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

func snapshotOp(m *InvocationMetrics) *InvocationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &InvocationSnapshot{
		Count:             m.Count,
		TotalTimeMs:       m.TotalTime.Milliseconds(),
		AvgTimeMs:         float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:         m.MinTime.Milliseconds(),
		MaxTimeMs:         m.MaxTime.Milliseconds(),
		TotalInputTokens:  m.TotalInputTokens,
		TotalOutputTokens: m.TotalOutputTokens,
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		SimpleBatch:   snapshotOp(c.ops[OpSimpleBatch]),
		Group:         snapshotOp(c.ops[OpGroup]),
		ListItem:      snapshotOp(c.ops[OpListItem]),
		Document:      snapshotOp(c.ops[OpDocument]),
	}
}
