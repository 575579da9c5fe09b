package assess

import (
	"errors"
	"strings"
	"testing"

	"github.com/docgrade/docgrade/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextSplitsAtMarker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TaskPrompt = "doc: {DOCUMENT_TEXT}\ncatalog:\n{ATTRIBUTES}\n" + CacheMarker + "\nassess:\n{TASK_ATTRIBUTES}\nvalues:\n{EXTRACTION}"

	doc := Document{Text: "statement for Jane Doe", Images: [][]byte{{0x89, 0x50}}}
	pctx, err := BuildContext(doc, statementSchema(), cfg)
	require.NoError(t, err)

	assert.Contains(t, pctx.Static, "statement for Jane Doe")
	assert.Contains(t, pctx.Static, "AccountNumber: the account number")
	assert.Contains(t, pctx.Static, "AccountHolder (group)")
	assert.Contains(t, pctx.Static, "Transactions (list)")
	assert.NotContains(t, pctx.Static, CacheMarker)
	assert.Len(t, pctx.Images, 1)
	assert.Equal(t, DefaultSystemPrompt, pctx.System)

	task := Task{
		Kind:    TaskSimpleBatch,
		Attrs:   []schema.Attribute{{Name: "AccountNumber"}},
		Excerpt: map[string]any{"AccountNumber": "123-456"},
	}
	dynamic := pctx.Dynamic(task)
	assert.Contains(t, dynamic, "AccountNumber")
	assert.Contains(t, dynamic, `"123-456"`)
	assert.NotContains(t, dynamic, "statement for Jane Doe",
		"document context belongs to the static segment only")
}

func TestBuildContextMarkerCount(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		ok     bool
	}{
		{"default template", "", true},
		{"one marker", "a" + CacheMarker + "b", true},
		{"no marker", "a b", false},
		{"two markers", "a" + CacheMarker + "b" + CacheMarker + "c", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TaskPrompt = tt.prompt
			_, err := BuildContext(Document{Text: "x"}, statementSchema(), cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
			}
		})
	}
}

func TestDefaultTaskPrompt(t *testing.T) {
	assert.Equal(t, 1, strings.Count(DefaultTaskPrompt, CacheMarker))

	// Document placeholders must sit on the static side of the marker so
	// the shared context is cacheable.
	static, dynamic, found := strings.Cut(DefaultTaskPrompt, CacheMarker)
	require.True(t, found)
	assert.Contains(t, static, "{DOCUMENT_TEXT}")
	assert.Contains(t, static, "{ATTRIBUTES}")
	assert.Contains(t, dynamic, "{TASK_ATTRIBUTES}")
	assert.Contains(t, dynamic, "{EXTRACTION}")
}

func TestRenderCatalogNesting(t *testing.T) {
	got := renderCatalog(statementSchema(), 0)
	assert.Contains(t, got, "- AccountHolder (group)")
	assert.Contains(t, got, "  - Name")
	assert.Contains(t, got, "- Transactions (list)")
	assert.Contains(t, got, "  - Date")
}
