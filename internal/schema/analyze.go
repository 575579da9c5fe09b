package schema

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch indicates the extraction result's shape disagrees with
// the schema at some node. Use errors.Is() to check for it.
var ErrSchemaMismatch = errors.New("extraction shape does not match schema")

// Analyze walks the schema against an extraction result and returns the
// ordered list of simple leaf paths present in the result. Group nodes are
// traversed depth-first in declaration order; list nodes follow the
// result's actual item count. Attributes absent from the result were pruned
// upstream and are skipped; wrong-typed values are mismatches.
func Analyze(attrs []Attribute, result map[string]any) ([]Path, error) {
	if err := Validate(attrs); err != nil {
		return nil, err
	}
	leaves := make([]Path, 0, len(attrs))
	if err := analyzeObject(attrs, result, Path{}, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

// LeavesOf returns the simple leaf paths of a single attribute's value,
// prefixed by the given path. The value must already match the attribute's
// shape as checked by Analyze.
func LeavesOf(attr Attribute, value any, prefix Path) ([]Path, error) {
	var leaves []Path
	if err := analyzeValue(attr, value, prefix, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func analyzeObject(attrs []Attribute, obj map[string]any, prefix Path, out *[]Path) error {
	for _, attr := range attrs {
		value, ok := obj[attr.Name]
		if !ok {
			continue
		}
		if err := analyzeValue(attr, value, prefix.Child(attr.Name), out); err != nil {
			return err
		}
	}
	return nil
}

func analyzeValue(attr Attribute, value any, p Path, out *[]Path) error {
	switch {
	case attr.IsSimple():
		*out = append(*out, p)
	case attr.IsGroup():
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s: group value is %T, want object", ErrSchemaMismatch, p, value)
		}
		return analyzeObject(attr.Attributes, obj, p, out)
	case attr.IsList():
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%w: %s: list value is %T, want array", ErrSchemaMismatch, p, value)
		}
		for i, item := range items {
			if err := analyzeValue(*attr.Item, item, p.Item(i), out); err != nil {
				return err
			}
		}
	}
	return nil
}
