package config

import (
	"strings"
	"time"
)

// Config wraps a decoded YAML or JSON document for typed lookups.
//
// Keys may be dotted to reach into nested maps: "columns.events.item"
// reads data["columns"]["events"]["item"]. Every accessor returns the
// given default when the key is missing or holds a value of the wrong type.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map behaves as an empty document.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves a dotted key.
func (c Config) lookup(key string) (any, bool) {
	cur := c.data
	parts := strings.Split(key, ".")
	for i, p := range parts {
		val, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return val, true
		}
		next, ok := asMap(val)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// asMap accepts both map[string]any and the map[any]any some YAML
// decoders produce for nested documents.
func asMap(val any) (map[string]any, bool) {
	switch m := val.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = v
		}
		return out, true
	}
	return nil, false
}

// String returns the string at key, or defaultVal.
func (c Config) String(key, defaultVal string) string {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean at key, or defaultVal.
func (c Config) Bool(key string, defaultVal bool) bool {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	if b, ok := raw.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer at key, or defaultVal.
//
// JSON numbers decode as float64; they are accepted only when whole.
func (c Config) Int(key string, defaultVal int) int {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := raw.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Duration returns the duration at key, or defaultVal.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: seconds
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := raw.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	}
	return defaultVal
}

// StringSlice returns the list at key, or defaultVal.
//
// A single string is split on commas so that "csv,jsonl" and
// [csv, jsonl] are equivalent.
func (c Config) StringSlice(key string, defaultVal []string) []string {
	raw, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := raw.(type) {
	case []string:
		return val
	case string:
		return splitList(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			out = append(out, s)
		}
		return out
	}
	return defaultVal
}

// Sub returns the nested document at key, or an empty Config.
func (c Config) Sub(key string) Config {
	raw, ok := c.lookup(key)
	if !ok {
		return New(nil)
	}
	m, ok := asMap(raw)
	if !ok {
		return New(nil)
	}
	return New(m)
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// splitList splits a comma-separated list, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
