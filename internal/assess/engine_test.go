package assess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docgrade/docgrade/internal/invoker"
	"github.com/docgrade/docgrade/internal/metrics"
	"github.com/docgrade/docgrade/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleFieldSchema(names []string) []schema.Attribute {
	attrs := make([]schema.Attribute, len(names))
	for i, name := range names {
		attrs[i] = schema.Attribute{Name: name}
	}
	return attrs
}

func engineConfig() Config {
	cfg := testConfig()
	cfg.TaskPrompt = testPrompt
	return cfg
}

func TestEngineRun(t *testing.T) {
	inv := &fakeInvoker{}
	collector := metrics.NewCollector()
	engine := NewEngine(inv, collector)

	result, err := engine.Run(context.Background(),
		Document{Text: "statement text"}, statementSchema(), statementExtraction(), engineConfig())
	require.NoError(t, err)

	md := result.Metadata
	assert.Equal(t, 6, md.TasksTotal)
	assert.Equal(t, 6, md.TasksSucceeded)
	assert.Equal(t, 0, md.TasksFailed)
	assert.True(t, md.Granular)
	assert.False(t, md.Skipped)

	entry := result.Assessment["AccountNumber"].(ConfidenceEntry)
	assert.Equal(t, 0.9, entry.Confidence)
	assert.Equal(t, "matches document", entry.Reason)
	require.Len(t, entry.Geometry, 1)
	assert.Equal(t, 1, entry.Geometry[0].Page)

	snap := collector.Snapshot()
	require.NotNil(t, snap.SimpleBatch)
	assert.Equal(t, int64(2), snap.SimpleBatch.Count)
	require.NotNil(t, snap.ListItem)
	assert.Equal(t, int64(3), snap.ListItem.Count)
	require.NotNil(t, snap.Group)
	assert.Equal(t, int64(240), snap.SimpleBatch.TotalInputTokens)
}

func TestEnginePartialFailureContainment(t *testing.T) {
	// 10 fields, batch size 1, exactly one task fails: the other 9 leaves
	// stay graded and the counters reflect the split.
	fields := make(map[string]any)
	var names []string
	for i := 0; i < 10; i++ {
		names = append(names, fmt.Sprintf("Field%d", i))
		fields[names[i]] = fmt.Sprintf("value %d", i)
	}

	cfg := engineConfig()
	cfg.SimpleBatchSize = 1

	inv := &fakeInvoker{
		respond: func(call int, req invoker.Request) (*invoker.Response, error) {
			if strings.Contains(req.Dynamic, `"Field3"`) {
				return nil, errors.New("model exploded")
			}
			return gradeResponse(req)
		},
	}
	engine := NewEngine(inv, nil)

	result, err := engine.Run(context.Background(),
		Document{Text: "doc"}, simpleFieldSchema(names), fields, cfg)
	require.NoError(t, err)

	md := result.Metadata
	assert.Equal(t, 10, md.TasksTotal)
	assert.Equal(t, 9, md.TasksSucceeded)
	assert.Equal(t, 1, md.TasksFailed)

	for _, name := range names {
		entry := result.Assessment[name].(ConfidenceEntry)
		if name == "Field3" {
			assert.True(t, entry.Unavailable)
		} else {
			assert.False(t, entry.Unavailable)
			assert.Equal(t, 0.9, entry.Confidence)
		}
	}
}

func TestEngineOrderIndependence(t *testing.T) {
	run := func(workers int) map[string]any {
		cfg := engineConfig()
		cfg.MaxWorkers = workers
		engine := NewEngine(&fakeInvoker{}, nil)
		result, err := engine.Run(context.Background(),
			Document{Text: "doc"}, statementSchema(), statementExtraction(), cfg)
		require.NoError(t, err)
		return result.Assessment
	}

	serial := run(1)
	parallel := run(8)
	assert.Equal(t, serial, parallel,
		"completion order must not affect the aggregate")
}

func TestEngineDisabledFastPath(t *testing.T) {
	inv := &fakeInvoker{
		respond: func(call int, req invoker.Request) (*invoker.Response, error) {
			t.Fatal("disabled engine must not invoke")
			return nil, nil
		},
	}
	engine := NewEngine(inv, nil)

	cfg := engineConfig()
	cfg.Enabled = false

	start := time.Now()
	result, err := engine.Run(context.Background(),
		Document{Text: "doc"}, statementSchema(), statementExtraction(), cfg)
	require.NoError(t, err)

	assert.True(t, result.Metadata.Skipped)
	assert.Zero(t, result.Metadata.TasksTotal)
	assert.Empty(t, result.Assessment)
	assert.Equal(t, 0, inv.callCount())
	assert.Less(t, time.Since(start), time.Second)
}

func TestEngineSingleTaskFallback(t *testing.T) {
	inv := &fakeInvoker{}
	engine := NewEngine(inv, nil)

	cfg := engineConfig()
	cfg.Granular = false

	result, err := engine.Run(context.Background(),
		Document{Text: "doc"}, statementSchema(), statementExtraction(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata.TasksTotal)
	assert.False(t, result.Metadata.Granular)
	assert.Equal(t, 1, inv.callCount())

	// The single response still populates the whole tree.
	holder := result.Assessment["AccountHolder"].(map[string]any)
	assert.Equal(t, 0.9, holder["Name"].(ConfidenceEntry).Confidence)
	txns := result.Assessment["Transactions"].([]any)
	require.Len(t, txns, 3)
}

func TestEngineFatalErrors(t *testing.T) {
	inv := &fakeInvoker{}
	engine := NewEngine(inv, nil)

	t.Run("bad prompt template", func(t *testing.T) {
		cfg := engineConfig()
		cfg.TaskPrompt = "no marker here"
		_, err := engine.Run(context.Background(),
			Document{Text: "doc"}, statementSchema(), statementExtraction(), cfg)
		assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
	})

	t.Run("bad batch size", func(t *testing.T) {
		cfg := engineConfig()
		cfg.ListBatchSize = 0
		_, err := engine.Run(context.Background(),
			Document{Text: "doc"}, statementSchema(), statementExtraction(), cfg)
		assert.True(t, errors.Is(err, ErrInvalidBatchSize), "got %v", err)
	})

	t.Run("empty extraction", func(t *testing.T) {
		_, err := engine.Run(context.Background(),
			Document{Text: "doc"}, statementSchema(), map[string]any{}, engineConfig())
		assert.True(t, errors.Is(err, ErrEmptySchema), "got %v", err)
	})

	assert.Equal(t, 0, inv.callCount(), "fatal errors abort before dispatch")
}

func TestEngineRejectedResponseMarksTaskFailed(t *testing.T) {
	inv := &fakeInvoker{
		respond: func(call int, req invoker.Request) (*invoker.Response, error) {
			if strings.Contains(req.Dynamic, "AccountNumber") {
				return &invoker.Response{Text: "not json at all"}, nil
			}
			return gradeResponse(req)
		},
	}
	engine := NewEngine(inv, nil)

	result, err := engine.Run(context.Background(),
		Document{Text: "doc"}, statementSchema(), statementExtraction(), engineConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata.TasksFailed)
	entry := result.Assessment["AccountNumber"].(ConfidenceEntry)
	assert.True(t, entry.Unavailable)
}
