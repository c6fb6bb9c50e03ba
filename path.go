// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"path"
	"strconv"
	"strings"
)

// NormalizePath converts a caller-supplied entry path to slash-separated zip form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizePath(raw string) string {
	raw = normalizePathForMatching(raw)
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// JoinEntryName builds entry name from an archive directory prefix and a file name.
// Empty prefix yields the bare name.
func JoinEntryName(prefix string, name string) string {
	prefix = NormalizePath(prefix)
	if prefix == "" {
		return name
	}

	return prefix + "/" + name
}

// normalizePathForMatching normalizes user/input paths for matcher use.
func normalizePathForMatching(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, `/`)
	p = strings.TrimPrefix(p, "./")
	return p
}

// splitEntryName splits name at its last ".", directory part included.
// "docs.v2/readme" splits into "docs" and ".v2/readme", matching names
// already written by earlier versions of the tool.
func splitEntryName(name string) (base string, ext string) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return name, ""
	}

	return name[:dot], name[dot:]
}

// numberedEntryName returns "base(n)ext".
func numberedEntryName(base string, ext string, n int) string {
	var b strings.Builder
	b.Grow(len(base) + len(ext) + 4)
	b.WriteString(base)
	b.WriteByte('(')
	b.WriteString(strconv.Itoa(n))
	b.WriteByte(')')
	b.WriteString(ext)

	return b.String()
}
