// Copyright 2026 The Tilecast Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file, applies path defaults, and expands
// ${VAR} patterns. The format follows the extension: .yaml and .yml
// parse as YAML, .json and .jsonc as JSONC.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	config := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), config); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: %s: unsupported extension %q (want .yaml, .yml, .json, or .jsonc)",
			path, filepath.Ext(path))
	}

	config.applyDefaults()
	config.expandVariables()
	return config, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. TILECAST_ROOT always refers to the configured root, so
// archive and style locations can be written portably.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Options.Paths.Root = expandVars(c.Options.Paths.Root, vars)
	vars["TILECAST_ROOT"] = c.Options.Paths.Root

	c.Options.Paths.Styles = expandVars(c.Options.Paths.Styles, vars)
	c.Options.Paths.Fonts = expandVars(c.Options.Paths.Fonts, vars)
	c.Options.Paths.Sprites = expandVars(c.Options.Paths.Sprites, vars)
	c.Options.Paths.Icons = expandVars(c.Options.Paths.Icons, vars)

	for id, data := range c.Data {
		data.Location = expandVars(data.Location, vars)
		c.Data[id] = data
	}
	for id, style := range c.Styles {
		style.Path = expandVars(style.Path, vars)
		c.Styles[id] = style
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars substitutes ${VAR} and ${VAR:-default} patterns,
// checking the provided vars first and the environment second.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
