package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile reads a settings document, picking the decoder by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML decodes a YAML document.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON decodes a JSON document.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// Load builds Settings from defaults, then the file at path (if any), then
// CATFLOW_* environment variables, then each override in order, and
// validates the result.
func Load(path string, overrides ...func(*Settings)) (Settings, error) {
	s := Default()
	if path != "" {
		v, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s = FromConfig(v)
	}
	if err := s.ApplyEnv(); err != nil {
		return Settings{}, err
	}
	for _, o := range overrides {
		o(&s)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
