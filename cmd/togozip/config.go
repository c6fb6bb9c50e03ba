// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/woozymasta/pathrules"
	"gopkg.in/yaml.v3"

	togozip "github.com/naofum/ToGoZip"
)

// Config is the optional YAML configuration of the togozip command.
//
// Pattern lists use gitignore-like syntax. A leading "!" turns a pattern
// into an exclude rule:
//
//	prefix: dcim
//	keep_backup: 1
//	store: ["*.jpg", "*.mp4"]
//	select: ["*", "!*.tmp"]
type Config struct {
	// Prefix is archive directory for added files.
	Prefix string `yaml:"prefix,omitempty"`
	// Store lists patterns of entries written without compression.
	Store []string `yaml:"store,omitempty"`
	// Select lists patterns of files picked up from directory arguments.
	Select []string `yaml:"select,omitempty"`
	// CompressionLevel is flate level, -2..9; zero means default.
	CompressionLevel int `yaml:"compression_level,omitempty"`
	// KeepBackup is number of kept backup generations.
	KeepBackup int `yaml:"keep_backup,omitempty"`
	// DropOnCollision drops colliding files instead of renaming them.
	DropOnCollision bool `yaml:"drop_on_collision,omitempty"`
	// CaseSensitive makes Store and Select patterns case sensitive.
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`
}

// LoadConfig loads a configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, config.Validate()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.CompressionLevel < flate.HuffmanOnly || c.CompressionLevel > flate.BestCompression {
		return fmt.Errorf("compression_level %d out of range %d..%d", c.CompressionLevel, flate.HuffmanOnly, flate.BestCompression)
	}

	if c.KeepBackup < 0 {
		return fmt.Errorf("keep_backup must not be negative, got %d", c.KeepBackup)
	}

	for _, p := range append(append([]string(nil), c.Store...), c.Select...) {
		if strings.TrimSpace(strings.TrimPrefix(p, "!")) == "" {
			return fmt.Errorf("empty pattern %q", p)
		}
	}

	return nil
}

// Options converts configuration into merge job options.
func (c *Config) Options() togozip.Options {
	opts := togozip.Options{
		Store:            rulesFromPatterns(c.Store),
		Select:           rulesFromPatterns(c.Select),
		CompressionLevel: c.CompressionLevel,
		KeepBackup:       c.KeepBackup,
		DropOnCollision:  c.DropOnCollision,
		StoreMatcherOptions: pathrules.MatcherOptions{
			CaseInsensitive: !c.CaseSensitive,
			DefaultAction:   pathrules.ActionExclude,
		},
		SelectMatcherOptions: pathrules.MatcherOptions{
			CaseInsensitive: !c.CaseSensitive,
			DefaultAction:   pathrules.ActionInclude,
		},
	}

	// Explicit include patterns narrow the selection to what they match.
	if hasInclude(opts.Select) {
		opts.SelectMatcherOptions.DefaultAction = pathrules.ActionExclude
	}

	return opts
}

// rulesFromPatterns maps "pattern" to include and "!pattern" to exclude rules.
func rulesFromPatterns(patterns []string) []pathrules.Rule {
	if len(patterns) == 0 {
		return nil
	}

	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, p := range patterns {
		action := pathrules.ActionInclude
		if strings.HasPrefix(p, "!") {
			action = pathrules.ActionExclude
			p = p[1:]
		}

		rules = append(rules, pathrules.Rule{Action: action, Pattern: strings.TrimSpace(p)})
	}

	return rules
}

func hasInclude(rules []pathrules.Rule) bool {
	for _, r := range rules {
		if r.Action == pathrules.ActionInclude {
			return true
		}
	}

	return false
}
