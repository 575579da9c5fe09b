package assess

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docgrade/docgrade/internal/schema"
)

// CacheMarker separates the reusable document context from the per-task
// portion of the prompt template. Exactly one marker must be present.
const CacheMarker = "<<CACHEPOINT>>"

// Placeholders understood by the prompt template.
const (
	placeholderDocumentText   = "{DOCUMENT_TEXT}"
	placeholderAttributes     = "{ATTRIBUTES}"
	placeholderTaskAttributes = "{TASK_ATTRIBUTES}"
	placeholderExtraction     = "{EXTRACTION}"
)

// DefaultSystemPrompt instructs the model to act as a verification judge.
const DefaultSystemPrompt = `You are a document verification assistant. You review values extracted from a document and judge, for each one, how confident you are that the value is correct given the document content. You respond with JSON only, no prose.`

// DefaultTaskPrompt is the built-in prompt template. Everything before the
// cache marker is identical across tasks of one run.
const DefaultTaskPrompt = `Here is the document to verify against.

<document>
` + placeholderDocumentText + `
</document>

These are all attributes extracted from this document class:

` + placeholderAttributes + `

` + CacheMarker + `

Assess the following extracted values. For each value, respond with an object containing:
- "confidence": a number between 0 and 1
- "confidence_reason": a short justification
- "bbox": [x1, y1, x2, y2] locating the evidence on the page, on a 0-1000 scale (omit if not locatable)
- "page": the 1-based page number of the evidence (omit if not locatable)

Mirror the structure of the extracted values exactly: one assessment object per value, nested objects for groups, arrays for lists.

Attributes to assess:

` + placeholderTaskAttributes + `

Extracted values:

` + placeholderExtraction + `

Respond with JSON only.`

// Document carries the source content shared by every task in one run.
type Document struct {
	Text   string
	Images [][]byte
}

// PromptContext is the static/dynamic split of the assessment prompt. The
// static segment and images are read-only and shared by all workers.
type PromptContext struct {
	System string
	Static string
	Images [][]byte

	dynamicTmpl string
}

// BuildContext renders the shared prompt segments for one run. The task
// prompt template must contain exactly one cache marker; the portion before
// it becomes the static segment.
func BuildContext(doc Document, attrs []schema.Attribute, cfg Config) (*PromptContext, error) {
	tmpl := cfg.TaskPrompt
	if tmpl == "" {
		tmpl = DefaultTaskPrompt
	}
	if n := strings.Count(tmpl, CacheMarker); n != 1 {
		return nil, fmt.Errorf("%w: task prompt must contain exactly one %s marker, found %d", ErrConfiguration, CacheMarker, n)
	}

	static, dynamic, _ := strings.Cut(tmpl, CacheMarker)
	static = strings.ReplaceAll(static, placeholderDocumentText, doc.Text)
	static = strings.ReplaceAll(static, placeholderAttributes, renderCatalog(attrs, 0))

	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}

	return &PromptContext{
		System:      system,
		Static:      static,
		Images:      doc.Images,
		dynamicTmpl: dynamic,
	}, nil
}

// Dynamic renders the task-specific segment for one task.
func (c *PromptContext) Dynamic(t Task) string {
	s := strings.ReplaceAll(c.dynamicTmpl, placeholderTaskAttributes, renderCatalog(t.Attrs, 0))

	excerpt, err := json.MarshalIndent(t.Excerpt, "", "  ")
	if err != nil {
		// Extraction values come from decoded JSON, so this cannot
		// normally happen; fall back to the flat form.
		excerpt = []byte(fmt.Sprintf("%v", t.Excerpt))
	}
	return strings.ReplaceAll(s, placeholderExtraction, string(excerpt))
}

// renderCatalog produces an indented bullet list of attribute names and
// descriptions for the prompt.
func renderCatalog(attrs []schema.Attribute, depth int) string {
	var b strings.Builder
	indent := strings.Repeat("  ", depth)
	for _, a := range attrs {
		b.WriteString(indent)
		b.WriteString("- ")
		b.WriteString(a.Name)
		switch {
		case a.IsGroup():
			b.WriteString(" (group)")
		case a.IsList():
			b.WriteString(" (list)")
		}
		if a.Description != "" {
			b.WriteString(": ")
			b.WriteString(a.Description)
		}
		b.WriteByte('\n')
		switch {
		case a.IsGroup():
			b.WriteString(renderCatalog(a.Attributes, depth+1))
		case a.IsList() && a.Item != nil:
			if a.Item.IsGroup() {
				b.WriteString(renderCatalog(a.Item.Attributes, depth+1))
			} else if a.Item.Description != "" {
				b.WriteString(indent)
				b.WriteString("  each item: ")
				b.WriteString(a.Item.Description)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}
