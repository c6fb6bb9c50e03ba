// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for merge operations. Use errors.Is in callers.
var (
	// ErrNilJob means the job is nil.
	ErrNilJob = errors.New("job is nil")
	// ErrInvalidDestination means destination container path is empty or points to a directory.
	ErrInvalidDestination = errors.New("invalid destination path")
	// ErrInvalidEntryName means requested entry name is empty.
	ErrInvalidEntryName = errors.New("invalid entry name")
	// ErrInvalidSourcePath means item source path is empty or not a regular file.
	ErrInvalidSourcePath = errors.New("invalid source path")
	// ErrInvalidCompressionLevel means flate level is out of supported range.
	ErrInvalidCompressionLevel = errors.New("invalid compression level")
	// ErrInvalidStoreRules means one or more store rules are invalid.
	ErrInvalidStoreRules = errors.New("invalid store rules")
	// ErrInvalidSelectRules means one or more select rules are invalid.
	ErrInvalidSelectRules = errors.New("invalid select rules")
	// ErrNotZip means the existing destination cannot be parsed as a zip container.
	ErrNotZip = errors.New("destination is not a valid zip container")
)

// Stage identifies one numbered step of the rewrite protocol.
type Stage uint8

// Rewrite protocol steps in execution order.
const (
	// StageResolve inspects sources and the existing container and resolves collisions.
	StageResolve Stage = iota + 1
	// StageCreate creates the temporary container.
	StageCreate
	// StageCopyOld copies existing entries into the temporary container.
	StageCopyOld
	// StageAppendNew streams new items into the temporary container.
	StageAppendNew
	// StageFinalize writes the central directory and closes the temporary container.
	StageFinalize
	// StageBackup renames the destination to its backup path.
	StageBackup
	// StageSwap renames the temporary container to the destination path.
	StageSwap
	// StageCleanup removes or rotates the backup.
	StageCleanup
)

// String returns short human-readable step name.
func (s Stage) String() string {
	switch s {
	case StageResolve:
		return "resolve collisions"
	case StageCreate:
		return "create temporary container"
	case StageCopyOld:
		return "copy existing entries"
	case StageAppendNew:
		return "append new entries"
	case StageFinalize:
		return "finalize temporary container"
	case StageBackup:
		return "move destination to backup"
	case StageSwap:
		return "move temporary container to destination"
	case StageCleanup:
		return "remove backup"
	default:
		return "unknown step"
	}
}

// StepError reports a fatal failure of one rewrite step.
type StepError struct {
	// Err is the underlying failure.
	Err error
	// RollbackErr is set when restoring the backup after a failed swap also failed.
	RollbackErr error
	// Path is the file the step operated on.
	Path string
	// Target is rename destination for rename steps.
	Target string
	// Stage is the failed step.
	Stage Stage
}

// Error formats failed step number, name, paths, and cause.
func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "step (%d) %s", e.Stage, e.Stage)
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " -> %s", e.Target)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.RollbackErr != nil {
		fmt.Fprintf(&b, " (rollback failed: %v)", e.RollbackErr)
	}

	return b.String()
}

// Unwrap exposes the underlying failure and the rollback failure for errors.Is.
func (e *StepError) Unwrap() []error {
	if e.RollbackErr == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.RollbackErr}
}

// stepError wraps err into StepError unless it already is one.
func stepError(stage Stage, path string, target string, err error) error {
	if err == nil {
		return nil
	}

	var existing *StepError
	if errors.As(err, &existing) {
		return err
	}

	return &StepError{Stage: stage, Path: path, Target: target, Err: err}
}
