// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/woozymasta/pathrules"
)

// ruleMatcher holds compiled path rules.
type ruleMatcher struct {
	matcher *pathrules.Matcher
}

// newRuleMatcher compiles path rules; empty rule set yields nil matcher.
func newRuleMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*ruleMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, err
	}

	return &ruleMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether path is included by rules.
func (m *ruleMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// newStoreMatcher compiles rules selecting entries written without compression.
func newStoreMatcher(opts Options) (*ruleMatcher, error) {
	m, err := newRuleMatcher(opts.Store, opts.StoreMatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidStoreRules, err)
	}

	return m, nil
}

// newSelectMatcher compiles rules selecting files picked up by AddDir.
func newSelectMatcher(opts Options) (*ruleMatcher, error) {
	m, err := newRuleMatcher(opts.Select, opts.SelectMatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidSelectRules, err)
	}

	return m, nil
}

// entryMethod returns zip method for a new entry.
func entryMethod(store *ruleMatcher, name string) uint16 {
	if store.Match(name) {
		return zip.Store
	}

	return zip.Deflate
}

// validateCompressionLevel checks flate level range.
func validateCompressionLevel(level int) error {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return fmt.Errorf("%w: %d", ErrInvalidCompressionLevel, level)
	}

	return nil
}

// registerDeflate installs flate compressor with configured level on w.
func registerDeflate(w *zip.Writer, level int) {
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
}
