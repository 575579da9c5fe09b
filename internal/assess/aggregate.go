package assess

import (
	"sync"

	"github.com/docgrade/docgrade/internal/schema"
)

// Collector accumulates parsed entries keyed by leaf path as tasks finish.
// Tasks cover disjoint leaf sets, so concurrent Add calls never write the
// same key; the mutex only guards the map itself.
type Collector struct {
	mu      sync.Mutex
	entries map[string]ConfidenceEntry
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{entries: make(map[string]ConfidenceEntry)}
}

// Add merges one task's parsed entries.
func (c *Collector) Add(entries map[string]ConfidenceEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, entry := range entries {
		c.entries[path] = entry
	}
}

// Len returns the number of collected entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Collector) get(path string) (ConfidenceEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[path]
	return entry, ok
}

// Aggregate rebuilds a tree isomorphic to the extraction result with every
// simple leaf replaced by its ConfidenceEntry. Leaves with no collected
// entry (their owning task failed) carry the assessment-unavailable marker.
// Thresholds resolve per leaf: attribute-level overrides the global one;
// with neither, the entry carries no threshold.
func Aggregate(attrs []schema.Attribute, result map[string]any, col *Collector, cfg Config) map[string]any {
	return aggregateObject(attrs, result, schema.Path{}, col, cfg)
}

func aggregateObject(attrs []schema.Attribute, obj map[string]any, prefix schema.Path, col *Collector, cfg Config) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		value, ok := obj[attr.Name]
		if !ok {
			continue
		}
		out[attr.Name] = aggregateValue(attr, value, prefix.Child(attr.Name), col, cfg)
	}
	return out
}

func aggregateValue(attr schema.Attribute, value any, p schema.Path, col *Collector, cfg Config) any {
	switch {
	case attr.IsGroup():
		obj, ok := value.(map[string]any)
		if !ok {
			return map[string]any{}
		}
		return aggregateObject(attr.Attributes, obj, p, col, cfg)
	case attr.IsList():
		items, ok := value.([]any)
		if !ok {
			return []any{}
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = aggregateValue(*attr.Item, item, p.Item(i), col, cfg)
		}
		return out
	default:
		entry, ok := col.get(p.String())
		if !ok {
			return ConfidenceEntry{Unavailable: true}
		}
		entry.Threshold = resolveThreshold(p, cfg)
		return entry
	}
}

func resolveThreshold(p schema.Path, cfg Config) *float64 {
	if t, ok := cfg.AttributeThresholds[p.AttributeKey()]; ok {
		return &t
	}
	return cfg.GlobalThreshold
}
