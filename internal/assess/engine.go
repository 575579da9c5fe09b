package assess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docgrade/docgrade/internal/invoker"
	"github.com/docgrade/docgrade/internal/metrics"
	"github.com/docgrade/docgrade/internal/schema"
)

// Engine runs granular confidence assessment over one document.
type Engine struct {
	inv     invoker.Invoker
	metrics *metrics.Collector
}

// NewEngine creates an engine. The metrics collector is optional.
func NewEngine(inv invoker.Invoker, m *metrics.Collector) *Engine {
	return &Engine{inv: inv, metrics: m}
}

// Result is the engine's final output: the explainability tree plus run
// metadata.
type Result struct {
	Assessment map[string]any `json:"assessment"`
	Metadata   RunMetadata    `json:"metadata"`
}

// Run assesses one extraction result. Configuration and schema problems
// abort before any task is dispatched; per-task failures only leave gaps in
// the aggregated tree and raise the failed count, so a partially failed run
// still returns a usable result.
func (e *Engine) Run(ctx context.Context, doc Document, attrs []schema.Attribute, extraction map[string]any, cfg Config) (*Result, error) {
	if !cfg.Enabled {
		slog.Info("assessment disabled, skipping")
		return &Result{
			Assessment: map[string]any{},
			Metadata:   RunMetadata{Skipped: true},
		}, nil
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pctx, err := BuildContext(doc, attrs, cfg)
	if err != nil {
		return nil, err
	}

	leaves, err := schema.Analyze(attrs, extraction)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, ErrEmptySchema
	}

	var tasks []Task
	if cfg.Granular {
		tasks, err = BuildTasks(attrs, extraction, cfg)
		if err != nil {
			return nil, err
		}
	} else {
		tasks = []Task{buildDocumentTask(attrs, extraction, leaves)}
	}

	slog.Info("starting assessment run",
		"leaves", len(leaves), "tasks", len(tasks), "granular", cfg.Granular)

	tracker := NewTracker(e.metrics)
	results := RunTasks(ctx, tasks, pctx, e.inv, cfg)

	collector := NewCollector()
	for _, r := range results {
		outcome := r.Outcome
		if outcome.Status == StatusSucceeded {
			entries, perr := ParseResponse(r.Task, r.Response.Text)
			if perr != nil {
				slog.Warn("response rejected",
					"task_id", r.Task.ID, "kind", r.Task.Kind, "error", perr)
				outcome.Status = StatusFailed
				outcome.Err = fmt.Errorf("parse response: %w", perr)
			} else {
				collector.Add(entries)
			}
		}
		tracker.Record(outcome)
	}

	tree := Aggregate(attrs, extraction, collector, cfg)
	md := tracker.Finalize(cfg.Granular)

	slog.Info("assessment run finished",
		"tasks_total", md.TasksTotal,
		"tasks_successful", md.TasksSucceeded,
		"tasks_failed", md.TasksFailed,
		"leaves_assessed", collector.Len(),
		"elapsed_ms", md.ElapsedMs)

	return &Result{Assessment: tree, Metadata: md}, nil
}
