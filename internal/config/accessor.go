package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// tree renders cfg as its JSON object form, keyed by the json tags.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath retrieves a config value by dot-notation path (e.g. "lock.backend").
// List elements are addressed by index ("generation.fallback.0").
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}

	var current any = m
	for _, key := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("key not found: %s", path)
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("invalid list index: %s", key)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
	}
	return current, nil
}

// SetByPath sets a config value by dot-notation path. String values are
// parsed as bool, number or a JSON list/object when they look like one; if
// the field is a string after all, the raw text is stored. Unknown paths are
// rejected and cfg is left untouched on error.
func SetByPath(cfg *Config, path string, value any) error {
	parts := strings.Split(path, ".")
	if path == "" || len(parts) == 0 {
		return fmt.Errorf("empty path")
	}

	err := setLeaf(cfg, parts, parseValue(value))
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if s, ok := value.(string); ok {
			err = setLeaf(cfg, parts, s)
		}
	}
	return err
}

func setLeaf(cfg *Config, parts []string, value any) error {
	m, err := tree(cfg)
	if err != nil {
		return err
	}

	parent := m
	for _, key := range parts[:len(parts)-1] {
		child, ok := parent[key].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config section: %s", key)
		}
		parent = child
	}
	parent[parts[len(parts)-1]] = value

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var next Config
	if err := dec.Decode(&next); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// parseValue tries to convert string values to appropriate Go types.
func parseValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	if t := strings.TrimSpace(s); strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
		var js any
		if err := json.Unmarshal([]byte(t), &js); err == nil {
			return js
		}
	}
	return s
}

// Sanitize returns a copy of the config with sensitive values masked.
func Sanitize(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg // Return original on marshal error
	}
	var copy Config
	if err := json.Unmarshal(data, &copy); err != nil {
		return cfg
	}

	for _, secret := range []*string{
		&copy.Server.WebhookSecret,
		&copy.Generation.GenAI.APIKey,
		&copy.Generation.OpenAI.APIKey,
		&copy.Delivery.ZAPI.Token,
		&copy.Delivery.ZAPI.ClientToken,
		&copy.Delivery.WhatsApp.AccessToken,
		&copy.Notify.Telegram.Token,
	} {
		if *secret != "" {
			*secret = maskString(*secret)
		}
	}

	// DSNs embed credentials anywhere in the string.
	if copy.Lock.PostgresDSN != "" {
		copy.Lock.PostgresDSN = "***"
	}

	return &copy
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns all settable config paths with their current values.
// Lists are reported whole under their own path.
func ListPaths(cfg *Config) map[string]any {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	result := make(map[string]any)
	flatten("", m, result)
	return result
}

func flatten(prefix string, m map[string]any, result map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(path, child, result)
			continue
		}
		result[path] = v
	}
}
