package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orakle-run/orakle"
)

// skillYAML is the on-disk shape of one skill descriptor, for local
// development against a catalog that isn't (yet) being served by a live
// skills host.
type skillYAML struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Route       string            `yaml:"route"`
	Method      string            `yaml:"method"`
	Parameters  parametersYAML    `yaml:"parameters"`
}

type parametersYAML struct {
	Type       string                  `yaml:"type"`
	Properties map[string]propertyYAML `yaml:"properties"`
	Required   []string                `yaml:"required"`
}

type propertyYAML struct {
	Type        string   `yaml:"type"`
	Description string   `yaml:"description,omitempty"`
	Enum        []string `yaml:"enum,omitempty"`
}

// LoadDir reads every .yaml/.yml file in dir and returns the skill
// descriptors they define, suitable for Registry.ReloadFrom.
func LoadDir(dir string) ([]orakle.Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read skills directory: %w", err)
	}

	var descriptors []orakle.Skill
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		skill, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("load skill %s: %w", name, err)
		}
		descriptors = append(descriptors, *skill)
	}
	return descriptors, nil
}

// LoadFile loads a single skill descriptor from a YAML file.
func LoadFile(path string) (*orakle.Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data)
}

// Parse parses one skill descriptor from YAML content.
func Parse(data []byte) (*orakle.Skill, error) {
	var raw skillYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("skill id is required")
	}

	properties := make(map[string]orakle.ParameterField, len(raw.Parameters.Properties))
	for name, p := range raw.Parameters.Properties {
		properties[name] = orakle.ParameterField{
			Type:        p.Type,
			Description: p.Description,
			Enum:        p.Enum,
		}
	}

	return &orakle.Skill{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		Route:       raw.Route,
		Method:      raw.Method,
		Parameters: orakle.SkillParameters{
			Type:       raw.Parameters.Type,
			Properties: properties,
			Required:   raw.Parameters.Required,
		},
	}, nil
}
