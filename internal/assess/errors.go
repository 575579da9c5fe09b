package assess

import "errors"

// Sentinel errors for assessment runs.
// Fatal ones surface before any task is dispatched; ErrParsing and
// ErrValidation are per-task and only ever appear in task outcomes.
var (
	// ErrConfiguration indicates an unusable run configuration, such as a
	// prompt template without exactly one cache marker.
	ErrConfiguration = errors.New("invalid assessment configuration")

	// ErrEmptySchema indicates the schema/result pair yields no assessable
	// leaves.
	ErrEmptySchema = errors.New("schema has no assessable leaves")

	// ErrInvalidBatchSize indicates a non-positive batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrParsing indicates a response that could not be decoded or that is
	// missing assessments for covered leaves.
	ErrParsing = errors.New("unparseable assessment response")

	// ErrValidation indicates a decoded response with out-of-range values.
	ErrValidation = errors.New("assessment response failed validation")
)
