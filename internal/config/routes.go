// Package config loads optional static-mount declarations from a YAML
// file, letting an operator add extra static file roots without
// recompiling. This is the one place gopkg.in/yaml.v3 — a transitive
// dependency of the teacher's test stack — gets exercised directly by
// the server itself rather than only by tests.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mount declares one additional static file root served under a wildcard
// prefix, e.g. {Pattern: "/assets/*", Root: "./assets"}.
type Mount struct {
	Pattern string `yaml:"pattern"`
	Root    string `yaml:"root"`
}

// Routes is the top-level shape of a routes.yaml file.
type Routes struct {
	Mounts []Mount `yaml:"mounts"`
}

// LoadRoutes reads and parses a routes.yaml file.
func LoadRoutes(path string) (Routes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Routes{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var r Routes
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Routes{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return r, nil
}
