// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

// EntryIndex is an ordered, name-addressable view of container entries.
type EntryIndex struct {
	byName  map[string]int
	entries []EntryInfo
}

// NewEntryIndex builds index over entries in given order.
// When names repeat, lookup returns the first occurrence.
func NewEntryIndex(entries []EntryInfo) *EntryIndex {
	idx := &EntryIndex{
		entries: make([]EntryInfo, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	copy(idx.entries, entries)

	for i := range idx.entries {
		if _, exists := idx.byName[idx.entries[i].Name]; exists {
			continue
		}

		idx.byName[idx.entries[i].Name] = i
	}

	return idx
}

// Len returns number of indexed entries.
func (idx *EntryIndex) Len() int {
	if idx == nil {
		return 0
	}

	return len(idx.entries)
}

// Entries returns a copy of indexed entries in container order.
func (idx *EntryIndex) Entries() []EntryInfo {
	if idx == nil {
		return nil
	}

	out := make([]EntryInfo, len(idx.entries))
	copy(out, idx.entries)

	return out
}

// Lookup returns entry by exact name.
func (idx *EntryIndex) Lookup(name string) (EntryInfo, bool) {
	if idx == nil {
		return EntryInfo{}, false
	}

	i, ok := idx.byName[name]
	if !ok {
		return EntryInfo{}, false
	}

	return idx.entries[i], true
}

// ListEntries opens a zip container and returns entry metadata without payload reads.
func ListEntries(path string) ([]EntryInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container: %w", err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotZip, err)
	}

	return entriesFromZip(zr, time.Local), nil
}

// entriesFromZip converts zip central directory records to EntryInfo list.
// loc is the zone of entries carrying only an MS-DOS timestamp.
func entriesFromZip(zr *zip.Reader, loc *time.Location) []EntryInfo {
	out := make([]EntryInfo, 0, len(zr.File))
	for _, f := range zr.File {
		out = append(out, entryInfoFromHeader(&f.FileHeader, loc))
	}

	return out
}

// entryInfoFromHeader converts one zip header to EntryInfo.
func entryInfoFromHeader(fh *zip.FileHeader, loc *time.Location) EntryInfo {
	return EntryInfo{
		Name:             fh.Name,
		Modified:         entryModTime(fh, loc),
		Method:           fh.Method,
		CompressedSize:   fh.CompressedSize64,
		UncompressedSize: fh.UncompressedSize64,
		CRC32:            fh.CRC32,
	}
}

// Extra field ids the zip reader takes an absolute modification time from.
const (
	ntfsExtraID        = 0x000a
	unixExtraID        = 0x000d
	extTimeExtraID     = 0x5455
	infoZipUnixExtraID = 0x5855
)

// entryModTime returns entry modification time.
// An MS-DOS timestamp has no zone and is decoded as UTC by the reader;
// writers such as java.util.zip store local wall clock there, so it is
// re-read in loc when no extra field carries an absolute time.
func entryModTime(fh *zip.FileHeader, loc *time.Location) time.Time {
	m := fh.Modified
	if m.IsZero() || loc == nil || hasModTimeExtra(fh.Extra) {
		return m
	}

	return time.Date(m.Year(), m.Month(), m.Day(), m.Hour(), m.Minute(), m.Second(), 0, loc)
}

// hasModTimeExtra reports whether extra holds a field with absolute modification time.
func hasModTimeExtra(extra []byte) bool {
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra[:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			return false
		}

		switch tag {
		case ntfsExtraID, unixExtraID, extTimeExtraID, infoZipUnixExtraID:
			return true
		}

		extra = extra[size:]
	}

	return false
}

// isNotExist reports whether err means the path is absent.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
