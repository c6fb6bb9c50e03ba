// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

// existingContainer is the pre-run destination opened for indexed and streamed reads.
// A nil *existingContainer stands for an absent destination.
type existingContainer struct {
	f     file
	zr    *zip.Reader
	index *EntryIndex
	mode  os.FileMode
}

// openExisting opens destination when present.
// Zero-length destination is treated as an empty container.
// loc is the zone of entries carrying only an MS-DOS timestamp.
func openExisting(fsys fileSystem, path string, loc *time.Location) (*existingContainer, error) {
	info, err := fsys.Stat(path)
	if isNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat destination: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidDestination, path)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open destination: %w", err)
	}

	ec := &existingContainer{f: f, mode: info.Mode()}
	if info.Size() == 0 {
		ec.index = NewEntryIndex(nil)
		return ec, nil
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrNotZip, err)
	}

	ec.zr = zr
	ec.index = NewEntryIndex(entriesFromZip(zr, loc))

	return ec, nil
}

// entryIndex returns index of existing entries; nil for absent destination.
func (ec *existingContainer) entryIndex() *EntryIndex {
	if ec == nil {
		return nil
	}

	return ec.index
}

// files returns zip records in container order.
func (ec *existingContainer) files() []*zip.File {
	if ec == nil || ec.zr == nil {
		return nil
	}

	return ec.zr.File
}

// close releases destination handle; safe to call repeatedly and on nil.
func (ec *existingContainer) close() {
	if ec == nil || ec.f == nil {
		return
	}

	_ = ec.f.Close()
	ec.f = nil
}
