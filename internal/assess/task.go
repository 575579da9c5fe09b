// Package assess implements granular confidence assessment of extraction
// results: task partitioning, bounded parallel inference, response
// normalization, and aggregation into an extraction-shaped tree.
package assess

import (
	"fmt"
	"slices"

	"github.com/docgrade/docgrade/internal/schema"
	"github.com/google/uuid"
)

// TaskKind distinguishes the partition strategies.
type TaskKind string

const (
	// TaskSimpleBatch covers a consecutive batch of root-level simple
	// attributes.
	TaskSimpleBatch TaskKind = "simple_batch"
	// TaskGroup covers all non-list leaves of one root-level group.
	TaskGroup TaskKind = "group"
	// TaskListItem covers every leaf of a consecutive range of list items.
	TaskListItem TaskKind = "list_item"
	// TaskDocument covers every leaf in one call (single-task fallback).
	TaskDocument TaskKind = "document"
)

// Task is one unit of inference work. The leaf-path sets of the tasks built
// for a run form a strict partition of the assessable leaves, so results
// can be merged without cross-task coordination.
type Task struct {
	ID   string
	Kind TaskKind

	// Scope is the path prefix shared by all covered leaves; responses are
	// addressed relative to it. Empty for simple-batch and document tasks.
	Scope schema.Path

	// Paths are the leaves this task covers, in schema order.
	Paths []schema.Path

	// Attrs is the sub-schema presented to the model for this task.
	Attrs []schema.Attribute

	// Excerpt is the slice of the extraction result the task assesses.
	Excerpt any

	// FirstItem and LastItem bound the covered item range of list tasks.
	FirstItem, LastItem int
}

func newTaskID() string {
	return uuid.New().String()[:8]
}

// BuildTasks partitions the extraction result's assessable leaves into
// inference tasks. Simple-batch tasks come first, then group and list
// tasks in schema declaration order; list tasks are ordered by item index.
func BuildTasks(attrs []schema.Attribute, result map[string]any, cfg Config) ([]Task, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var (
		simpleAttrs []schema.Attribute
		simplePaths []schema.Path
		structured  []Task
	)
	for _, attr := range attrs {
		value, ok := result[attr.Name]
		if !ok {
			continue
		}
		p := schema.Path{}.Child(attr.Name)
		switch {
		case attr.IsSimple():
			simpleAttrs = append(simpleAttrs, attr)
			simplePaths = append(simplePaths, p)
		case attr.IsGroup():
			obj, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s: group value is %T, want object", schema.ErrSchemaMismatch, p, value)
			}
			tasks, err := buildGroupTasks(attr, obj, p, cfg.ListBatchSize)
			if err != nil {
				return nil, err
			}
			structured = append(structured, tasks...)
		case attr.IsList():
			items, ok := value.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s: list value is %T, want array", schema.ErrSchemaMismatch, p, value)
			}
			tasks, err := expandList(attr, items, p, cfg.ListBatchSize)
			if err != nil {
				return nil, err
			}
			structured = append(structured, tasks...)
		}
	}

	tasks := make([]Task, 0, len(structured)+1)
	for start := 0; start < len(simpleAttrs); start += cfg.SimpleBatchSize {
		end := min(start+cfg.SimpleBatchSize, len(simpleAttrs))
		batch := slices.Clone(simpleAttrs[start:end])
		tasks = append(tasks, Task{
			ID:      newTaskID(),
			Kind:    TaskSimpleBatch,
			Paths:   slices.Clone(simplePaths[start:end]),
			Attrs:   batch,
			Excerpt: excerptOf(result, batch),
		})
	}
	tasks = append(tasks, structured...)

	covered := 0
	for _, t := range tasks {
		covered += len(t.Paths)
	}
	if covered == 0 {
		return nil, ErrEmptySchema
	}
	return tasks, nil
}

// buildDocumentTask covers every leaf in one task. Used when the granular
// strategy is disabled.
func buildDocumentTask(attrs []schema.Attribute, result map[string]any, leaves []schema.Path) Task {
	return Task{
		ID:      newTaskID(),
		Kind:    TaskDocument,
		Paths:   leaves,
		Attrs:   attrs,
		Excerpt: result,
	}
}

// buildGroupTasks produces at most one group task for the group's non-list
// leaves, followed by list-item tasks for lists nested anywhere under it.
// Groups nested inside groups stay in the owning group task; only passing
// through a list changes ownership.
func buildGroupTasks(attr schema.Attribute, obj map[string]any, p schema.Path, listBatch int) ([]Task, error) {
	var (
		leaves    []schema.Path
		listTasks []Task
	)
	if err := collectGroup(attr.Attributes, obj, p, listBatch, &leaves, &listTasks); err != nil {
		return nil, err
	}

	var tasks []Task
	if len(leaves) > 0 {
		tasks = append(tasks, Task{
			ID:      newTaskID(),
			Kind:    TaskGroup,
			Scope:   p,
			Paths:   leaves,
			Attrs:   []schema.Attribute{attr},
			Excerpt: obj,
		})
	}
	return append(tasks, listTasks...), nil
}

func collectGroup(attrs []schema.Attribute, obj map[string]any, p schema.Path, listBatch int, leaves *[]schema.Path, listTasks *[]Task) error {
	for _, a := range attrs {
		value, ok := obj[a.Name]
		if !ok {
			continue
		}
		cp := p.Child(a.Name)
		switch {
		case a.IsSimple():
			*leaves = append(*leaves, cp)
		case a.IsGroup():
			sub, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s: group value is %T, want object", schema.ErrSchemaMismatch, cp, value)
			}
			if err := collectGroup(a.Attributes, sub, cp, listBatch, leaves, listTasks); err != nil {
				return err
			}
		case a.IsList():
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("%w: %s: list value is %T, want array", schema.ErrSchemaMismatch, cp, value)
			}
			tasks, err := expandList(a, items, cp, listBatch)
			if err != nil {
				return err
			}
			*listTasks = append(*listTasks, tasks...)
		}
	}
	return nil
}

// expandList slices a list's items into consecutive batches. Each task
// covers every leaf of its items, including leaves of groups and nested
// lists inside the item, so one call sees a whole item together.
func expandList(attr schema.Attribute, items []any, p schema.Path, batch int) ([]Task, error) {
	var tasks []Task
	for start := 0; start < len(items); start += batch {
		end := min(start+batch, len(items))
		var paths []schema.Path
		for i := start; i < end; i++ {
			leaves, err := schema.LeavesOf(*attr.Item, items[i], p.Item(i))
			if err != nil {
				return nil, err
			}
			paths = append(paths, leaves...)
		}
		if len(paths) == 0 {
			continue
		}
		tasks = append(tasks, Task{
			ID:        newTaskID(),
			Kind:      TaskListItem,
			Scope:     p,
			Paths:     paths,
			Attrs:     []schema.Attribute{attr},
			Excerpt:   items[start:end],
			FirstItem: start,
			LastItem:  end - 1,
		})
	}
	return tasks, nil
}

// excerptOf picks the named attributes' values out of the result.
func excerptOf(result map[string]any, attrs []schema.Attribute) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if v, ok := result[a.Name]; ok {
			out[a.Name] = v
		}
	}
	return out
}

// relative rewrites a covered leaf path into the coordinate space of the
// task's response: the scope prefix is stripped and, for list tasks, the
// leading item index is rebased onto the covered range.
func (t Task) relative(p schema.Path) ([]schema.Step, error) {
	steps := []schema.Step(p)
	if len(t.Scope) > 0 {
		if !p.HasPrefix(t.Scope) {
			return nil, fmt.Errorf("path %s outside task scope %s", p, t.Scope)
		}
		steps = steps[len(t.Scope):]
	}
	if t.Kind == TaskListItem {
		if len(steps) == 0 || !steps[0].IsIndex() {
			return nil, fmt.Errorf("path %s does not address an item of %s", p, t.Scope)
		}
		rebased := slices.Clone(steps)
		rebased[0] = schema.Step{Index: steps[0].Index - t.FirstItem}
		steps = rebased
	}
	return steps, nil
}
