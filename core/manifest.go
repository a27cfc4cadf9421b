package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the declarative YAML shape of a tool definition. It carries
// everything about a tool except the callable itself, which is attached by
// name from compiled-in implementations.
type Manifest struct {
	Name       string            `yaml:"name"`
	Schema     map[string]string `yaml:"schema,omitempty"`
	Defaults   map[string]any    `yaml:"defaults,omitempty"`
	MaxRetries int               `yaml:"max_retries,omitempty"`
	TimeoutMS  int               `yaml:"timeout_ms,omitempty"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (Manifest, error) {
	// #nosec G304 -- CLI path argument.
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest %q: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

// Validate checks the manifest for structural problems: a missing name, an
// unknown schema type, a default for an undeclared field, or a negative
// retry or timeout budget.
func (m Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest: name is required")
	}
	for field, typeName := range m.Schema {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("manifest %q: schema field name is empty", m.Name)
		}
		if !ValidType(typeName) {
			return fmt.Errorf("manifest %q: field %q has unknown type %q", m.Name, field, typeName)
		}
	}
	for field := range m.Defaults {
		if _, declared := m.Schema[field]; !declared {
			return fmt.Errorf("manifest %q: default for undeclared field %q", m.Name, field)
		}
	}
	if m.MaxRetries < 0 {
		return fmt.Errorf("manifest %q: max_retries must not be negative", m.Name)
	}
	if m.TimeoutMS < 0 {
		return fmt.Errorf("manifest %q: timeout_ms must not be negative", m.Name)
	}
	return nil
}

// Tool builds a Tool from the manifest with the given callables attached.
// The manifest must already be validated.
func (m Manifest) Tool(fn SyncFunc, asyncFn AsyncFunc) Tool {
	return Tool{
		Name: m.Name,
		Spec: Spec{
			Schema:   m.Schema,
			Defaults: m.Defaults,
		},
		Fn:         fn,
		AsyncFn:    asyncFn,
		MaxRetries: m.MaxRetries,
		Timeout:    time.Duration(m.TimeoutMS) * time.Millisecond,
	}
}
