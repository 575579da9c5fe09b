// Package invoker defines the inference-service boundary for assessment
// calls and its concrete backends.
package invoker

import (
	"context"
	"errors"
)

// Sentinel errors for invocation failures.
// Use errors.Is() to classify errors at the scheduler.
var (
	// ErrThrottled indicates a transient rate-limit rejection. Callers
	// should retry with backoff.
	ErrThrottled = errors.New("inference service throttled the request")

	// ErrTimeout indicates the inference call did not finish in time.
	// Not retried.
	ErrTimeout = errors.New("inference call timed out")
)

// Request carries one assessment invocation. Static holds the document
// context shared by every task in a run; Dynamic holds the task-specific
// instructions. Backends that support prompt caching mark the boundary
// between the two so the static portion is reused across calls.
type Request struct {
	System  string
	Static  string
	Dynamic string
	Images  [][]byte
	Kind    string
}

// Response is the raw model output plus usage accounting.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Invoker sends one assessment request to an inference backend.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}
