package assess

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docgrade/docgrade/internal/schema"
)

// bboxScale is the coordinate scale models report bounding boxes on.
const bboxScale = 1000.0

// BoundingBox locates evidence on a page in normalized [0,1] coordinates.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Geometry is one piece of spatial evidence for a leaf.
type Geometry struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Page        int         `json:"page"`
}

// ConfidenceEntry is the per-leaf assessment attached to the aggregated
// tree. Unavailable entries stand in for leaves whose owning task did not
// succeed, so consumers can tell "not evaluated" from "low confidence".
type ConfidenceEntry struct {
	Confidence  float64    `json:"confidence"`
	Reason      string     `json:"confidence_reason,omitempty"`
	Threshold   *float64   `json:"confidence_threshold,omitempty"`
	Geometry    []Geometry `json:"geometry,omitempty"`
	Unavailable bool       `json:"assessment_unavailable,omitempty"`
}

// ParseResponse validates one task's raw model output and returns entries
// keyed by leaf path string. The response must contain an assessment object
// for every covered leaf, nested the same way as the task's slice of the
// extraction result.
func ParseResponse(task Task, raw string) (map[string]ConfidenceEntry, error) {
	var decoded any
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsing, err)
	}

	entries := make(map[string]ConfidenceEntry, len(task.Paths))
	for _, p := range task.Paths {
		steps, err := task.relative(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsing, err)
		}
		node, ok := lookup(decoded, steps)
		if !ok {
			return nil, fmt.Errorf("%w: response missing assessment for %s", ErrParsing, p)
		}
		entry, err := parseEntry(p, node)
		if err != nil {
			return nil, err
		}
		entries[p.String()] = entry
	}
	return entries, nil
}

// stripFences removes a surrounding markdown code fence, which some models
// add around JSON despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// lookup walks decoded JSON by key and index steps. A single-item list task
// may answer with a bare object instead of a one-element array; index 0
// then addresses the object itself.
func lookup(node any, steps []schema.Step) (any, bool) {
	for _, s := range steps {
		switch {
		case s.IsIndex():
			items, ok := node.([]any)
			if !ok {
				if s.Index == 0 {
					continue
				}
				return nil, false
			}
			if s.Index < 0 || s.Index >= len(items) {
				return nil, false
			}
			node = items[s.Index]
		default:
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, false
			}
			node, ok = obj[s.Key]
			if !ok {
				return nil, false
			}
		}
	}
	return node, true
}

func parseEntry(p schema.Path, node any) (ConfidenceEntry, error) {
	obj, ok := node.(map[string]any)
	if !ok {
		return ConfidenceEntry{}, fmt.Errorf("%w: %s: assessment is %T, want object", ErrParsing, p, node)
	}
	confidence, ok := toFloat(obj["confidence"])
	if !ok {
		return ConfidenceEntry{}, fmt.Errorf("%w: %s: confidence missing or not numeric", ErrParsing, p)
	}
	if confidence < 0 || confidence > 1 {
		return ConfidenceEntry{}, fmt.Errorf("%w: %s: confidence %v outside [0,1]", ErrValidation, p, confidence)
	}

	entry := ConfidenceEntry{Confidence: confidence}
	if reason, ok := obj["confidence_reason"].(string); ok {
		entry.Reason = reason
	}
	entry.Geometry = parseGeometry(p, obj)
	return entry, nil
}

// parseGeometry converts a model-reported bbox on the 0-1000 scale into
// normalized page coordinates. Degenerate boxes are dropped with a warning
// rather than failing the task; absent geometry is not an error.
func parseGeometry(p schema.Path, obj map[string]any) []Geometry {
	raw, ok := obj["bbox"].([]any)
	if !ok {
		return nil
	}
	if len(raw) != 4 {
		slog.Warn("dropping malformed bounding box", "path", p.String(), "values", len(raw))
		return nil
	}

	coords := make([]float64, 4)
	for i, v := range raw {
		f, ok := toFloat(v)
		if !ok {
			slog.Warn("dropping non-numeric bounding box", "path", p.String())
			return nil
		}
		coords[i] = f
	}
	x1, y1, x2, y2 := coords[0], coords[1], coords[2], coords[3]
	if x2 <= x1 || y2 <= y1 {
		slog.Warn("dropping degenerate bounding box",
			"path", p.String(), "x1", x1, "y1", y1, "x2", x2, "y2", y2)
		return nil
	}

	page := 1
	if f, ok := toFloat(obj["page"]); ok {
		page = int(f)
	}
	if page < 1 {
		slog.Warn("dropping bounding box with invalid page", "path", p.String(), "page", page)
		return nil
	}

	return []Geometry{{
		BoundingBox: BoundingBox{
			Top:    y1 / bboxScale,
			Left:   x1 / bboxScale,
			Width:  (x2 - x1) / bboxScale,
			Height: (y2 - y1) / bboxScale,
		},
		Page: page,
	}}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
