package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docgrade/docgrade/internal/invoker"
)

// retryBaseDelay is the initial backoff interval for throttled tasks.
// Variable so tests can shrink it.
var retryBaseDelay = 500 * time.Millisecond

// TaskStatus represents how a task finished.
type TaskStatus string

const (
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
	StatusTimedOut  TaskStatus = "timed_out"
)

// Outcome records one task's terminal state and cost.
type Outcome struct {
	TaskID       string
	Kind         TaskKind
	Status       TaskStatus
	Err          error
	Duration     time.Duration
	Attempts     int
	InputTokens  int64
	OutputTokens int64
}

// TaskResult pairs a task with its outcome and, when successful, the raw
// response.
type TaskResult struct {
	Task     Task
	Outcome  Outcome
	Response *invoker.Response
}

// RunTasks executes tasks on a bounded worker pool against the invoker.
// Tasks are independent; completion order carries no meaning. Throttled
// invocations retry with exponential backoff up to cfg.MaxAttempts,
// timeouts are terminal without retry, and any other invocation error marks
// the task failed without aborting the rest of the run. Once the run
// deadline elapses no new tasks are dispatched, but in-flight ones run to
// completion.
func RunTasks(ctx context.Context, tasks []Task, pctx *PromptContext, inv invoker.Invoker, cfg Config) []TaskResult {
	workers := min(cfg.maxWorkers(), len(tasks))

	var deadlineAt time.Time
	if cfg.Deadline > 0 {
		deadlineAt = time.Now().Add(cfg.Deadline)
	}

	slog.Info("dispatching assessment tasks", "tasks", len(tasks), "workers", workers)

	// Workers write to disjoint indexes, so no lock is needed.
	results := make([]TaskResult, len(tasks))
	workChan := make(chan int, len(tasks))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workChan {
				task := tasks[idx]
				if err := dispatchBlocked(ctx, deadlineAt); err != nil {
					results[idx] = TaskResult{Task: task, Outcome: Outcome{
						TaskID: task.ID,
						Kind:   task.Kind,
						Status: StatusFailed,
						Err:    fmt.Errorf("not dispatched: %w", err),
					}}
					continue
				}
				results[idx] = runTask(ctx, task, pctx, inv, cfg)
			}
		}()
	}

	for i := range tasks {
		workChan <- i
	}
	close(workChan)
	wg.Wait()

	return results
}

// dispatchBlocked reports why a new task must not start, or nil.
func dispatchBlocked(ctx context.Context, deadlineAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !deadlineAt.IsZero() && time.Now().After(deadlineAt) {
		return fmt.Errorf("run deadline elapsed: %w", context.DeadlineExceeded)
	}
	return nil
}

func runTask(ctx context.Context, task Task, pctx *PromptContext, inv invoker.Invoker, cfg Config) TaskResult {
	start := time.Now()
	req := invoker.Request{
		System:  pctx.System,
		Static:  pctx.Static,
		Dynamic: pctx.Dynamic(task),
		Images:  pctx.Images,
		Kind:    string(task.Kind),
	}

	var resp *invoker.Response
	attempts := 0
	operation := func() error {
		attempts++
		r, err := inv.Invoke(ctx, req)
		if err != nil {
			if errors.Is(err, invoker.ErrThrottled) {
				slog.Warn("task throttled, backing off", "task_id", task.ID, "attempt", attempts)
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(cfg.maxAttempts()-1)), ctx))

	outcome := Outcome{
		TaskID:   task.ID,
		Kind:     task.Kind,
		Duration: time.Since(start),
		Attempts: attempts,
	}
	switch {
	case err == nil:
		outcome.Status = StatusSucceeded
		outcome.InputTokens = resp.InputTokens
		outcome.OutputTokens = resp.OutputTokens
		slog.Debug("task completed",
			"task_id", task.ID, "kind", task.Kind,
			"duration_ms", outcome.Duration.Milliseconds(),
			"input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)
	case errors.Is(err, invoker.ErrTimeout):
		outcome.Status = StatusTimedOut
		outcome.Err = err
		slog.Warn("task timed out", "task_id", task.ID, "kind", task.Kind)
	default:
		outcome.Status = StatusFailed
		outcome.Err = err
		slog.Warn("task failed", "task_id", task.ID, "kind", task.Kind, "error", err)
	}

	return TaskResult{Task: task, Outcome: outcome, Response: resp}
}
