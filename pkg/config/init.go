package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a commented default configuration file to the default
// config location and returns its path.
//
// Fails if the file already exists unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a commented default configuration file to path,
// creating parent directories as needed.
//
// Fails if the file already exists unless force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// sectionComments annotates the top-level keys of a generated config file.
var sectionComments = map[string]string{
	"logging":  "Log level (DEBUG, INFO, WARN, ERROR) and destination (stdout, stderr, or a file path).",
	"server":   "HTTP listener address and timeouts.",
	"blob":     "Blob store backend. Valid types: filesystem, memory, s3, badger.\nOnly the section matching the selected type is read.",
	"database": "SQLite metadata database location.",
	"webdav":   "Protocol limits and lock behavior.",
}

// durationKeys lists config keys holding time.Duration values. Their
// generated values are rewritten from nanosecond integers to duration
// strings such as "5m0s".
var durationKeys = map[string]bool{
	"read_timeout":     true,
	"write_timeout":    true,
	"idle_timeout":     true,
	"shutdown_timeout": true,
	"max_lock_timeout": true,
}

// generateYAMLWithComments renders cfg as YAML with a file header and a
// comment above each top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var node yaml.Node
	if err := node.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	humanizeDurations(&node)

	out, err := yaml.Marshal(&node)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# Marble Configuration File\n" +
		"#\n" +
		"# Values shown are the defaults. Environment variables with the\n" +
		"# MARBLE_ prefix override file values, e.g. MARBLE_LOGGING_LEVEL=DEBUG.\n\n"

	return header + string(out), nil
}

// humanizeDurations rewrites duration values from nanosecond integers to
// time.Duration strings, recursing through nested mappings.
func humanizeDurations(node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		for _, child := range node.Content {
			humanizeDurations(child)
		}
		return
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if durationKeys[key.Value] && value.Kind == yaml.ScalarNode {
			if ns, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
				value.Value = time.Duration(ns).String()
				value.Tag = "!!str"
			}
			continue
		}
		humanizeDurations(value)
	}
}
