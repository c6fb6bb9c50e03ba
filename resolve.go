// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"log/slog"
	"time"
)

// occupiedNames tracks names taken by the existing container and by items accepted earlier in the batch.
type occupiedNames struct {
	index *EntryIndex
	batch map[string]time.Time
}

// lookup returns modification time of the entry occupying name.
func (o *occupiedNames) lookup(name string) (time.Time, bool) {
	if entry, ok := o.index.Lookup(name); ok {
		return entry.Modified, true
	}

	modified, ok := o.batch[name]
	return modified, ok
}

// Resolve decides for every item whether it is kept, renamed, or dropped.
// It performs no I/O and returns one resolution per item in submission order.
//
// Duplicate detection compares modification times truncated to whole seconds.
// Sources on sub-second filesystems that differ only in the fraction are treated
// as duplicates; this matches archives written by earlier versions.
func Resolve(index *EntryIndex, items []Item, opts Options) []Resolution {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	occupied := &occupiedNames{
		index: index,
		batch: make(map[string]time.Time, len(items)),
	}

	out := make([]Resolution, 0, len(items))
	for _, item := range items {
		res := resolveItem(occupied, item, opts.DropOnCollision)
		logResolution(logger, res)

		if res.Written() {
			occupied.batch[res.Name] = item.ModTime
		}

		out = append(out, res)
	}

	return out
}

// resolveItem runs collision algorithm for one item.
func resolveItem(occupied *occupiedNames, item Item, dropOnCollision bool) Resolution {
	existing, collides := occupied.lookup(item.EntryName)
	if !collides {
		return Resolution{Item: item, Kind: OutcomeKeep, Name: item.EntryName}
	}

	drop := func(reason DropReason, conflict string) Resolution {
		return Resolution{Item: item, Kind: OutcomeDrop, Reason: reason, Conflict: conflict}
	}

	if dropOnCollision {
		return drop(DropRenameDisabled, item.EntryName)
	}

	if sameSecond(existing, item.ModTime) {
		return drop(DropDuplicate, item.EntryName)
	}

	base, ext := splitEntryName(item.EntryName)
	for n := 1; ; n++ {
		candidate := numberedEntryName(base, ext, n)

		modified, taken := occupied.lookup(candidate)
		if !taken {
			return Resolution{Item: item, Kind: OutcomeRename, Name: candidate, Conflict: item.EntryName}
		}

		if sameSecond(modified, item.ModTime) {
			return drop(DropDuplicate, candidate)
		}
	}
}

// sameSecond compares two timestamps at one-second granularity.
func sameSecond(a time.Time, b time.Time) bool {
	return a.Unix() == b.Unix()
}

// logResolution writes one debug record for non-trivial outcomes.
func logResolution(logger *slog.Logger, res Resolution) {
	switch res.Kind {
	case OutcomeRename:
		logger.Debug("renamed entry", "from", res.Item.EntryName, "to", res.Name)
	case OutcomeDrop:
		logger.Debug("do not include",
			"entry", res.Item.EntryName,
			"source", res.Item.SourcePath,
			"conflict", res.Conflict,
			"reason", res.Reason.String(),
		)
	}
}
