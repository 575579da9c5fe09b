package assess

import (
	"fmt"
	"time"
)

// Defaults for run configuration.
const (
	DefaultSimpleBatchSize = 5
	DefaultListBatchSize   = 1
	DefaultMaxWorkers      = 4
	DefaultMaxAttempts     = 5
)

// Config controls one assessment run.
type Config struct {
	// Enabled gates the whole engine. When false, Run returns immediately
	// with an empty assessment and performs no invocations.
	Enabled bool

	// Granular selects the multi-task strategy. When false, every leaf is
	// covered by a single document-level task.
	Granular bool

	// SimpleBatchSize is the number of root-level simple attributes per
	// batch task.
	SimpleBatchSize int

	// ListBatchSize is the number of consecutive list items per task.
	ListBatchSize int

	// MaxWorkers caps concurrently in-flight invocations.
	MaxWorkers int

	// MaxAttempts bounds retries of throttled invocations, including the
	// first attempt.
	MaxAttempts int

	// GlobalThreshold, when set, is attached to every leaf that has no
	// attribute-level threshold.
	GlobalThreshold *float64

	// AttributeThresholds maps attribute keys (leaf paths with list
	// indexes dropped) to thresholds that override GlobalThreshold.
	AttributeThresholds map[string]float64

	// Deadline, when positive, stops dispatch of new tasks once elapsed.
	// In-flight tasks run to completion.
	Deadline time.Duration

	// SystemPrompt and TaskPrompt override the built-in prompt templates.
	// TaskPrompt must contain exactly one cache marker.
	SystemPrompt string
	TaskPrompt   string
}

// DefaultConfig returns an enabled granular configuration with default
// batch sizes and worker count.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Granular:        true,
		SimpleBatchSize: DefaultSimpleBatchSize,
		ListBatchSize:   DefaultListBatchSize,
		MaxWorkers:      DefaultMaxWorkers,
		MaxAttempts:     DefaultMaxAttempts,
	}
}

func (c Config) validate() error {
	if c.SimpleBatchSize <= 0 {
		return fmt.Errorf("%w: simple_batch_size=%d", ErrInvalidBatchSize, c.SimpleBatchSize)
	}
	if c.ListBatchSize <= 0 {
		return fmt.Errorf("%w: list_batch_size=%d", ErrInvalidBatchSize, c.ListBatchSize)
	}
	return nil
}

func (c Config) maxWorkers() int {
	if c.MaxWorkers <= 0 {
		return DefaultMaxWorkers
	}
	return c.MaxWorkers
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}
