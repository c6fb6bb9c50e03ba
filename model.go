// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"log/slog"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/woozymasta/pathrules"
)

// Sibling file suffixes used by the rewrite protocol.
const (
	// TempSuffix marks the in-progress container written next to the destination.
	TempSuffix = ".tmp"
	// BackupSuffix marks the previous container kept until the swap completes.
	BackupSuffix = ".bak"
)

// Default writer tuning values.
const (
	DefaultWriteBuffer      = 1024 * 1024
	DefaultCompressionLevel = flate.DefaultCompression
)

// Item describes one pending addition to the destination container.
type Item struct {
	// ModTime is source modification time captured by Job before resolution.
	ModTime time.Time `json:"mod_time,omitzero" yaml:"mod_time,omitempty"`
	// SourcePath is the file streamed into the container.
	SourcePath string `json:"source_path" yaml:"source_path"`
	// EntryName is requested target name inside the container.
	EntryName string `json:"entry_name" yaml:"entry_name"`
	// Size is source size in bytes captured together with ModTime.
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// EntryInfo describes one entry of an existing container.
type EntryInfo struct {
	// Modified is entry modification time.
	Modified time.Time `json:"modified" yaml:"modified"`
	// Name is the entry name as stored in the container.
	Name string `json:"name" yaml:"name"`
	// CompressedSize is stored payload size in bytes.
	CompressedSize uint64 `json:"compressed_size" yaml:"compressed_size"`
	// UncompressedSize is payload size after decompression.
	UncompressedSize uint64 `json:"uncompressed_size" yaml:"uncompressed_size"`
	// CRC32 is payload checksum recorded in the central directory.
	CRC32 uint32 `json:"crc32" yaml:"crc32"`
	// Method is zip compression method id.
	Method uint16 `json:"method" yaml:"method"`
}

// OutcomeKind identifies what resolution decided for one item.
type OutcomeKind uint8

// Resolution outcomes.
const (
	// OutcomeKeep writes item under its requested name.
	OutcomeKeep OutcomeKind = iota + 1
	// OutcomeRename writes item under a generated "base(N).ext" name.
	OutcomeRename
	// OutcomeDrop never writes item.
	OutcomeDrop
)

// String returns lowercase outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeKeep:
		return "keep"
	case OutcomeRename:
		return "rename"
	case OutcomeDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// DropReason explains why an item was dropped.
type DropReason uint8

// Drop reasons.
const (
	// DropNone is used for kept and renamed items.
	DropNone DropReason = iota
	// DropRenameDisabled means the name collided and DropOnCollision is set.
	DropRenameDisabled
	// DropDuplicate means an entry with the same name stem and same second already exists.
	DropDuplicate
	// DropUnreadable means the source could not be inspected or opened.
	DropUnreadable
)

// String returns short reason text used in logs and reports.
func (r DropReason) String() string {
	switch r {
	case DropNone:
		return ""
	case DropRenameDisabled:
		return "rename on collision disabled"
	case DropDuplicate:
		return "duplicate with same timestamp"
	case DropUnreadable:
		return "source unreadable"
	default:
		return "unknown"
	}
}

// Resolution is the tagged outcome of collision resolution for one item.
type Resolution struct {
	// Item is the pending item as submitted.
	Item Item `json:"item" yaml:"item"`
	// Name is final entry name for Keep and Rename outcomes.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Conflict is the existing entry name that triggered the outcome, if any.
	Conflict string `json:"conflict,omitempty" yaml:"conflict,omitempty"`
	// Kind is the outcome tag.
	Kind OutcomeKind `json:"kind" yaml:"kind"`
	// Reason is set for Drop outcomes.
	Reason DropReason `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Written reports whether resolution leads to an entry being written.
func (r Resolution) Written() bool {
	return r.Kind == OutcomeKeep || r.Kind == OutcomeRename
}

// Collided reports whether item hit an existing name during resolution.
func (r Resolution) Collided() bool {
	return r.Kind == OutcomeRename || (r.Kind == OutcomeDrop && r.Reason != DropUnreadable)
}

// EntryProgress contains one completed entry write event.
type EntryProgress struct {
	// Name is entry name written to the temporary container.
	Name string `json:"name" yaml:"name"`
	// Source is item source path; empty for copied entries.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	// Written is number of payload bytes written (compressed for copied entries).
	Written int64 `json:"written" yaml:"written"`
	// Copied reports whether entry was carried over from the previous container.
	Copied bool `json:"copied,omitempty" yaml:"copied,omitempty"`
}

// Options configures Job behavior.
type Options struct {
	// Logger receives step-by-step debug records; nil discards logs.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// OnEntryDone is called after one entry is fully written to the temporary container.
	OnEntryDone func(entry EntryProgress) `json:"-" yaml:"-"`
	// Store lists rules for new entries written without compression.
	// Empty rule set means every new entry is deflated.
	Store []pathrules.Rule `json:"store,omitempty" yaml:"store,omitempty"`
	// StoreMatcherOptions control Store rule matching.
	StoreMatcherOptions pathrules.MatcherOptions `json:"store_matcher_options,omitzero" yaml:"store_matcher_options,omitempty"`
	// Select lists rules applied by AddDir when walking a source directory.
	// Empty rule set selects every regular file.
	Select []pathrules.Rule `json:"select,omitempty" yaml:"select,omitempty"`
	// SelectMatcherOptions control Select rule matching.
	SelectMatcherOptions pathrules.MatcherOptions `json:"select_matcher_options,omitzero" yaml:"select_matcher_options,omitempty"`
	// CompressionLevel is flate level for deflated entries, flate.HuffmanOnly..flate.BestCompression.
	// Zero selects flate.DefaultCompression, so flate.NoCompression cannot be requested here;
	// Store rules are the way to write entries uncompressed.
	CompressionLevel int `json:"compression_level,omitempty" yaml:"compression_level,omitempty"`
	// WriterBufferSize is buffered writer size in front of the temporary file.
	WriterBufferSize int `json:"writer_buffer_size,omitempty" yaml:"writer_buffer_size,omitempty"`
	// KeepBackup controls how many backup generations are kept after a successful run.
	// 0 removes the backup, 1 keeps only `<archive>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	KeepBackup int `json:"keep_backup,omitempty" yaml:"keep_backup,omitempty"`
	// DropOnCollision drops colliding items instead of renaming them.
	DropOnCollision bool `json:"drop_on_collision,omitempty" yaml:"drop_on_collision,omitempty"`
}

// Result contains outcome of one Job run.
type Result struct {
	// BackupPath is the kept backup of the previous container, if any.
	BackupPath string `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	// Resolutions holds one resolution per submitted item in submission order.
	Resolutions []Resolution `json:"resolutions,omitempty" yaml:"resolutions,omitempty"`
	// Skipped holds items whose source could not be read.
	Skipped []Resolution `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// Entries is total number of entries in the new container.
	Entries int `json:"entries" yaml:"entries"`
	// CopiedEntries is number of entries carried over from the previous container.
	CopiedEntries int `json:"copied_entries" yaml:"copied_entries"`
	// AddedEntries is number of new entries written.
	AddedEntries int `json:"added_entries" yaml:"added_entries"`
	// Duration is end-to-end run duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	// NoChange reports that nothing was written and the destination was not touched.
	NoChange bool `json:"no_change,omitempty" yaml:"no_change,omitempty"`
}

// Collisions returns resolutions of items that hit an existing name.
func (r *Result) Collisions() []Resolution {
	if r == nil {
		return nil
	}

	return collisionsOf(r.Resolutions)
}

// collisionsOf filters resolutions down to renamed or collision-dropped items.
func collisionsOf(resolutions []Resolution) []Resolution {
	out := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		if res.Collided() {
			out = append(out, res)
		}
	}

	return out
}

// applyDefaults fills zero-valued options with defaults.
func (opts *Options) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.WriterBufferSize < 4096 {
		opts.WriterBufferSize = DefaultWriteBuffer
	}

	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = DefaultCompressionLevel
	}

	if opts.KeepBackup < 0 {
		opts.KeepBackup = 0
	}

	if opts.StoreMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.StoreMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.StoreMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.StoreMatcherOptions.DefaultAction = pathrules.ActionExclude
	}

	if opts.SelectMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.SelectMatcherOptions = pathrules.MatcherOptions{
			DefaultAction: pathrules.ActionInclude,
		}
	}

	if opts.SelectMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.SelectMatcherOptions.DefaultAction = pathrules.ActionInclude
	}
}
