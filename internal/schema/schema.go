// Package schema models the attribute schema that drives confidence
// assessment and derives assessable leaf paths from extraction results.
package schema

import (
	"errors"
	"fmt"
)

// Kind distinguishes the three attribute node types.
type Kind string

const (
	KindSimple Kind = "simple"
	KindGroup  Kind = "group"
	KindList   Kind = "list"
)

// Attribute is one node of the schema tree. Group nodes own an ordered set
// of child attributes; List nodes own a single item template describing the
// shape of every item. Simple nodes are the unit of assessment.
type Attribute struct {
	Name        string      `yaml:"name" json:"name"`
	Kind        Kind        `yaml:"kind,omitempty" json:"kind,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Threshold   *float64    `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty"`
	Attributes  []Attribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Item        *Attribute  `yaml:"item,omitempty" json:"item,omitempty"`
}

// IsSimple reports whether the node is a simple leaf. An empty kind means
// simple so that schema files only annotate groups and lists.
func (a Attribute) IsSimple() bool {
	return a.Kind == "" || a.Kind == KindSimple
}

// IsGroup reports whether the node is a group of named children.
func (a Attribute) IsGroup() bool {
	return a.Kind == KindGroup
}

// IsList reports whether the node is a homogeneous list.
func (a Attribute) IsList() bool {
	return a.Kind == KindList
}

// Validate checks structural consistency of a schema subtree.
func Validate(attrs []Attribute) error {
	for _, a := range attrs {
		if a.Name == "" {
			return errors.New("attribute without a name")
		}
		if err := a.validate(); err != nil {
			return err
		}
	}
	return nil
}

// validate checks one node. List item templates are allowed to be nameless,
// so the name requirement lives in Validate.
func (a Attribute) validate() error {
	switch {
	case a.IsSimple():
		if len(a.Attributes) > 0 || a.Item != nil {
			return fmt.Errorf("attribute %q: simple node cannot have children", a.Name)
		}
	case a.IsGroup():
		if len(a.Attributes) == 0 {
			return fmt.Errorf("attribute %q: group node needs at least one child", a.Name)
		}
		if a.Item != nil {
			return fmt.Errorf("attribute %q: group node cannot have an item template", a.Name)
		}
		return Validate(a.Attributes)
	case a.IsList():
		if a.Item == nil {
			return fmt.Errorf("attribute %q: list node needs an item template", a.Name)
		}
		if len(a.Attributes) > 0 {
			return fmt.Errorf("attribute %q: list node cannot have named children", a.Name)
		}
		return a.Item.validate()
	default:
		return fmt.Errorf("attribute %q: unknown kind %q", a.Name, a.Kind)
	}
	return nil
}

// Thresholds collects per-attribute confidence thresholds declared on
// simple leaves, keyed by the attribute key form of their path (list
// indexes dropped, so one threshold covers every item of a list).
func Thresholds(attrs []Attribute) map[string]float64 {
	out := make(map[string]float64)
	collectThresholds(attrs, Path{}, out)
	return out
}

func collectThresholds(attrs []Attribute, prefix Path, out map[string]float64) {
	for _, a := range attrs {
		p := prefix
		if a.Name != "" {
			p = prefix.Child(a.Name)
		}
		switch {
		case a.IsSimple():
			if a.Threshold != nil {
				out[p.AttributeKey()] = *a.Threshold
			}
		case a.IsGroup():
			collectThresholds(a.Attributes, p, out)
		case a.IsList():
			if a.Item.IsSimple() {
				if a.Item.Threshold != nil {
					out[p.AttributeKey()] = *a.Item.Threshold
				}
			} else if a.Item.IsGroup() {
				collectThresholds(a.Item.Attributes, p, out)
			} else if a.Item.IsList() {
				collectThresholds([]Attribute{*a.Item}, p, out)
			}
		}
	}
}
