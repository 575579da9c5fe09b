package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Class is a document class definition: a named attribute schema with
// human-readable descriptions consumed by prompt construction.
type Class struct {
	Name        string      `yaml:"class" json:"class"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Attributes  []Attribute `yaml:"attributes" json:"attributes"`
}

// LoadClass reads and validates a class definition from a YAML file.
func LoadClass(path string) (*Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return ParseClass(data)
}

// ParseClass decodes and validates a class definition from YAML bytes.
func ParseClass(data []byte) (*Class, error) {
	var c Class
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(c.Attributes) == 0 {
		return nil, fmt.Errorf("schema %q declares no attributes", c.Name)
	}
	if err := Validate(c.Attributes); err != nil {
		return nil, fmt.Errorf("schema %q: %w", c.Name, err)
	}
	return &c, nil
}
