package assess

import (
	"slices"
	"sync"
	"time"

	"github.com/docgrade/docgrade/internal/metrics"
)

// RunMetadata summarizes one engine run.
type RunMetadata struct {
	TasksTotal     int           `json:"tasks_total"`
	TasksSucceeded int           `json:"tasks_successful"`
	TasksFailed    int           `json:"tasks_failed"`
	Elapsed        time.Duration `json:"-"`
	ElapsedMs      int64         `json:"elapsed_ms"`
	Granular       bool          `json:"granular"`
	Skipped        bool          `json:"skipped,omitempty"`
}

// Tracker accumulates task outcomes for one run. All methods are
// thread-safe.
type Tracker struct {
	mu       sync.Mutex
	start    time.Time
	outcomes []Outcome
	metrics  *metrics.Collector
}

// NewTracker starts tracking a run. The metrics collector is optional.
func NewTracker(m *metrics.Collector) *Tracker {
	return &Tracker{start: time.Now(), metrics: m}
}

// Record adds one task outcome and feeds the metrics collector.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	t.outcomes = append(t.outcomes, o)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordInvocation(opFor(o.Kind), o.Duration, o.InputTokens, o.OutputTokens)
	}
}

// Outcomes returns a copy of the recorded outcomes.
func (t *Tracker) Outcomes() []Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.outcomes)
}

// Finalize computes run-level metadata. Timed-out tasks count as failed.
func (t *Tracker) Finalize(granular bool) RunMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()

	md := RunMetadata{
		TasksTotal: len(t.outcomes),
		Elapsed:    time.Since(t.start),
		Granular:   granular,
	}
	md.ElapsedMs = md.Elapsed.Milliseconds()
	for _, o := range t.outcomes {
		if o.Status == StatusSucceeded {
			md.TasksSucceeded++
		} else {
			md.TasksFailed++
		}
	}
	return md
}

func opFor(kind TaskKind) string {
	switch kind {
	case TaskSimpleBatch:
		return metrics.OpSimpleBatch
	case TaskGroup:
		return metrics.OpGroup
	case TaskListItem:
		return metrics.OpListItem
	default:
		return metrics.OpDocument
	}
}
