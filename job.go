// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Job merges pending items into one destination zip container.
// A Job is not safe for concurrent use, and callers must not run two jobs
// against the same destination at the same time.
type Job struct {
	fs          fileSystem
	location    *time.Location
	store       *ruleMatcher
	selector    *ruleMatcher
	destination string
	items       []Item
	opts        Options
}

// NewJob creates a merge job bound to destination container path.
func NewJob(destination string, opts Options) (*Job, error) {
	trimmed := strings.TrimSpace(destination)
	if trimmed == "" {
		return nil, ErrInvalidDestination
	}

	opts.applyDefaults()

	if err := validateCompressionLevel(opts.CompressionLevel); err != nil {
		return nil, err
	}

	store, err := newStoreMatcher(opts)
	if err != nil {
		return nil, err
	}

	selector, err := newSelectMatcher(opts)
	if err != nil {
		return nil, err
	}

	return &Job{
		fs:          osFileSystem{},
		location:    time.Local,
		store:       store,
		selector:    selector,
		destination: trimmed,
		opts:        opts,
		items:       make([]Item, 0, 8),
	}, nil
}

// Destination returns destination container path.
func (j *Job) Destination() string {
	if j == nil {
		return ""
	}

	return j.destination
}

// Items returns a copy of pending items in submission order.
func (j *Job) Items() []Item {
	if j == nil {
		return nil
	}

	out := make([]Item, len(j.items))
	copy(out, j.items)

	return out
}

// Add schedules source files under archive directory prefix.
// Entry name is prefix joined with the base name of each source.
func (j *Job) Add(prefix string, sources ...string) error {
	if j == nil {
		return ErrNilJob
	}

	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidSourcePath, src)
		}

		if err := j.AddItem(JoinEntryName(prefix, filepath.Base(src)), src); err != nil {
			return err
		}
	}

	return nil
}

// AddItem schedules one source file under explicit entry name.
// The name is stored verbatim.
func (j *Job) AddItem(entryName string, source string) error {
	if j == nil {
		return ErrNilJob
	}

	if entryName == "" {
		return fmt.Errorf("%w: empty name for %q", ErrInvalidEntryName, source)
	}

	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: empty source for %q", ErrInvalidSourcePath, entryName)
	}

	j.items = append(j.items, Item{SourcePath: source, EntryName: entryName})

	return nil
}

// AddDir schedules regular files below dir selected by Options.Select.
// Entry names are prefix joined with slash-separated paths relative to dir.
// Returns number of scheduled files.
func (j *Job) AddDir(prefix string, dir string) (int, error) {
	if j == nil {
		return 0, ErrNilJob
	}

	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSourcePath, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", ErrInvalidSourcePath, dir)
	}

	added := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)
		if j.selector != nil && !j.selector.Match(rel) {
			return nil
		}

		if err := j.AddItem(JoinEntryName(prefix, rel), path); err != nil {
			return err
		}

		added++
		return nil
	})
	if walkErr != nil {
		return added, fmt.Errorf("walk %s: %w", dir, walkErr)
	}

	return added, nil
}

// Resolve previews collision resolution against current destination without writing.
func (j *Job) Resolve() ([]Resolution, error) {
	if j == nil {
		return nil, ErrNilJob
	}

	inspected, skipped := j.inspectSources()

	existing, err := openExisting(j.fs, j.destination, j.location)
	if err != nil {
		return nil, stepError(StageResolve, j.destination, "", err)
	}
	defer existing.close()

	resolutions := Resolve(existing.entryIndex(), inspected, j.opts)

	return append(resolutions, skipped...), nil
}

// Run resolves collisions, writes the merged container to "<destination>.tmp",
// and swaps it into place through "<destination>.bak".
//
// The destination is only touched by the two renames at the end; a failure before
// them leaves it unmodified, a failure between them restores the backup.
// Result.NoChange is set when no item survives resolution.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if j == nil {
		return nil, ErrNilJob
	}

	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := time.Now()
	logger := j.opts.Logger.With("destination", j.destination)

	inspected, skipped := j.inspectSources()
	for _, res := range skipped {
		logger.Warn("skip unreadable source", "source", res.Item.SourcePath, "entry", res.Item.EntryName)
	}

	existing, err := openExisting(j.fs, j.destination, j.location)
	if err != nil {
		return nil, stepError(StageResolve, j.destination, "", err)
	}
	defer existing.close()

	resolutions := Resolve(existing.entryIndex(), inspected, j.opts)
	survivors := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		if res.Written() {
			survivors = append(survivors, res)
		}
	}

	res := &Result{
		Resolutions: resolutions,
		Skipped:     skipped,
	}

	if len(survivors) == 0 {
		logger.Debug("abort: no (more) files to add to zip")
		res.NoChange = true
		res.Duration = time.Since(startedAt)
		return res, nil
	}

	tmpPath := j.destination + TempSuffix
	written, err := j.writeTemp(ctx, logger, tmpPath, existing, survivors)
	existing.close()
	if err != nil {
		if rmErr := removeIfExists(j.fs, tmpPath); rmErr != nil {
			logger.Warn("remove temporary container", "path", tmpPath, "error", rmErr)
		}

		return nil, err
	}

	res.Skipped = append(res.Skipped, written.skipped...)
	if written.added == 0 {
		logger.Debug("abort: every new item was skipped", "path", tmpPath)
		if rmErr := removeIfExists(j.fs, tmpPath); rmErr != nil {
			logger.Warn("remove temporary container", "path", tmpPath, "error", rmErr)
		}

		res.NoChange = true
		res.Duration = time.Since(startedAt)
		return res, nil
	}

	backupPath, err := j.swap(logger, tmpPath, existing != nil)
	if err != nil {
		return nil, err
	}

	res.BackupPath = backupPath
	res.CopiedEntries = written.copied
	res.AddedEntries = written.added
	res.Entries = written.copied + written.added
	res.Duration = time.Since(startedAt)

	logger.Debug("successfully updated zip file", "entries", res.Entries)

	return res, nil
}

// inspectSources captures size and modification time of every pending source.
// Sources that cannot be inspected are returned as dropped resolutions.
func (j *Job) inspectSources() ([]Item, []Resolution) {
	inspected := make([]Item, 0, len(j.items))
	var skipped []Resolution

	for _, item := range j.items {
		info, err := j.fs.Stat(item.SourcePath)
		if err != nil || !info.Mode().IsRegular() {
			skipped = append(skipped, Resolution{Item: item, Kind: OutcomeDrop, Reason: DropUnreadable})
			continue
		}

		item.ModTime = info.ModTime()
		item.Size = info.Size()
		inspected = append(inspected, item)
	}

	return inspected, skipped
}

// writeSummary counts entries written into the temporary container.
type writeSummary struct {
	skipped []Resolution
	copied  int
	added   int
}

// writeTemp performs create, copy-old, append-new, and finalize steps.
func (j *Job) writeTemp(
	ctx context.Context,
	logger *slog.Logger,
	tmpPath string,
	existing *existingContainer,
	survivors []Resolution,
) (writeSummary, error) {
	var summary writeSummary

	perm := os.FileMode(0o644)
	if existing != nil {
		perm = existing.mode.Perm()
	}

	logger.Debug("create new result file", "step", StageCreate, "path", tmpPath)
	f, err := j.fs.Create(tmpPath, perm)
	if err != nil {
		return summary, stepError(StageCreate, tmpPath, "", err)
	}

	cw := newContainerWriter(f, j.opts, j.store)
	defer cw.abort()

	if existing != nil {
		logger.Debug("copy existing items", "step", StageCopyOld, "path", j.destination, "target", tmpPath)
		for _, zf := range existing.files() {
			if err := ctx.Err(); err != nil {
				return summary, stepError(StageCopyOld, j.destination, tmpPath, err)
			}

			written, err := cw.copyEntry(zf)
			if err != nil {
				return summary, stepError(StageCopyOld, j.destination, tmpPath, err)
			}

			summary.copied++
			j.entryDone(EntryProgress{Name: zf.Name, Written: written, Copied: true})
		}
	}

	for _, res := range survivors {
		if err := ctx.Err(); err != nil {
			return summary, stepError(StageAppendNew, res.Item.SourcePath, tmpPath, err)
		}

		logger.Debug("copy new item", "step", StageAppendNew, "source", res.Item.SourcePath, "entry", res.Name)
		written, ok, err := j.appendItem(cw, res)
		if err != nil {
			return summary, stepError(StageAppendNew, res.Item.SourcePath, tmpPath, err)
		}

		if !ok {
			logger.Warn("skip unreadable source", "source", res.Item.SourcePath, "entry", res.Name)
			skippedRes := res
			skippedRes.Kind = OutcomeDrop
			skippedRes.Reason = DropUnreadable
			skippedRes.Name = ""
			summary.skipped = append(summary.skipped, skippedRes)
			continue
		}

		summary.added++
		j.entryDone(EntryProgress{Name: res.Name, Source: res.Item.SourcePath, Written: written})
	}

	logger.Debug("finalize new result file", "step", StageFinalize, "path", tmpPath)
	if err := cw.finalize(); err != nil {
		return summary, stepError(StageFinalize, tmpPath, "", err)
	}

	return summary, nil
}

// appendItem streams one source into container.
// ok is false when source could not be opened and nothing was written.
func (j *Job) appendItem(cw *containerWriter, res Resolution) (written int64, ok bool, err error) {
	src, err := j.fs.Open(res.Item.SourcePath)
	if err != nil {
		return 0, false, nil
	}
	defer func() { _ = src.Close() }()

	written, err = cw.appendEntry(res.Name, src, res.Item.ModTime)
	if err != nil {
		return written, false, err
	}

	return written, true, nil
}

// swap performs backup, swap, and cleanup steps.
// Returns kept backup path, empty when backup was removed or never made.
func (j *Job) swap(logger *slog.Logger, tmpPath string, hadDestination bool) (string, error) {
	backupPath := j.destination + BackupSuffix

	if hadDestination {
		logger.Debug("rename old zip file", "step", StageBackup, "path", j.destination, "target", backupPath)
		if err := shiftBackups(j.fs, backupPath, j.opts.KeepBackup); err != nil {
			return "", stepError(StageBackup, backupPath, "", err)
		}

		if err := j.fs.Rename(j.destination, backupPath); err != nil {
			return "", stepError(StageBackup, j.destination, backupPath, err)
		}
	}

	logger.Debug("rename new created zip file", "step", StageSwap, "path", tmpPath, "target", j.destination)
	if err := j.fs.Rename(tmpPath, j.destination); err != nil {
		swapErr := &StepError{Stage: StageSwap, Path: tmpPath, Target: j.destination, Err: err}
		if hadDestination {
			swapErr.RollbackErr = restoreBackup(j.fs, j.destination, backupPath)
		}

		logger.Error("swap failed", "error", swapErr)
		return "", swapErr
	}

	if !hadDestination {
		return "", nil
	}

	if j.opts.KeepBackup > 0 {
		return backupPath, nil
	}

	logger.Debug("delete renamed old zip file", "step", StageCleanup, "path", backupPath)
	if err := removeIfExists(j.fs, backupPath); err != nil {
		logger.Warn("remove backup", "step", StageCleanup, "path", backupPath, "error", err)
		return backupPath, nil
	}

	return "", nil
}

// entryDone forwards progress event to caller callback.
func (j *Job) entryDone(ev EntryProgress) {
	if j.opts.OnEntryDone != nil {
		j.opts.OnEntryDone(ev)
	}
}
