// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
)

const (
	// copyBufferSize is per-run temporary buffer used by streaming payload copy.
	copyBufferSize = 64 * 1024
)

var (
	// copyBufferPool reuses payload copy buffers between runs.
	copyBufferPool = sync.Pool{
		New: func() any {
			return new([copyBufferSize]byte)
		},
	}
)

// acquireCopyBuffer returns reusable payload copy buffer and release callback.
func acquireCopyBuffer() ([]byte, func()) {
	arr := copyBufferPool.Get().(*[copyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	buf := arr[:]

	return buf, func() {
		copyBufferPool.Put(arr)
	}
}

// containerWriter streams entries into a new zip container backed by one file.
type containerWriter struct {
	f       file
	bw      *bufio.Writer
	zw      *zip.Writer
	store   *ruleMatcher
	copyBuf []byte
	release func()
	closed  bool
}

// newContainerWriter wraps f with buffered zip writer configured from opts.
func newContainerWriter(f file, opts Options, store *ruleMatcher) *containerWriter {
	bw := bufio.NewWriterSize(f, opts.WriterBufferSize)
	zw := zip.NewWriter(bw)
	registerDeflate(zw, opts.CompressionLevel)

	buf, release := acquireCopyBuffer()

	return &containerWriter{
		f:       f,
		bw:      bw,
		zw:      zw,
		store:   store,
		copyBuf: buf,
		release: release,
	}
}

// copyEntry copies one entry from previous container without recompression.
// Returns stored payload size.
func (cw *containerWriter) copyEntry(zf *zip.File) (int64, error) {
	if err := cw.zw.Copy(zf); err != nil {
		return 0, fmt.Errorf("copy entry %s: %w", zf.Name, err)
	}

	return int64(zf.CompressedSize64), nil //nolint:gosec // zip sizes fit int64
}

// appendEntry streams src as a new entry named name with modTime.
// Returns uncompressed payload size.
func (cw *containerWriter) appendEntry(name string, src io.Reader, modTime time.Time) (int64, error) {
	fh := &zip.FileHeader{
		Name:     name,
		Method:   entryMethod(cw.store, name),
		Modified: modTime,
	}

	w, err := cw.zw.CreateHeader(fh)
	if err != nil {
		return 0, fmt.Errorf("create entry %s: %w", name, err)
	}

	written, err := io.CopyBuffer(w, src, cw.copyBuf)
	if err != nil {
		return written, fmt.Errorf("stream entry %s: %w", name, err)
	}

	return written, nil
}

// finalize writes central directory, flushes, syncs, and closes the file.
func (cw *containerWriter) finalize() error {
	if cw.closed {
		return nil
	}
	defer cw.abort()

	if err := cw.zw.Close(); err != nil {
		return fmt.Errorf("write central directory: %w", err)
	}

	if err := cw.bw.Flush(); err != nil {
		return fmt.Errorf("flush container: %w", err)
	}

	if err := cw.f.Sync(); err != nil {
		return fmt.Errorf("sync container: %w", err)
	}

	cw.closed = true
	if err := cw.f.Close(); err != nil {
		return fmt.Errorf("close container: %w", err)
	}

	return nil
}

// abort releases file handle and pooled buffer; safe to call repeatedly.
func (cw *containerWriter) abort() {
	if !cw.closed {
		cw.closed = true
		_ = cw.f.Close()
	}

	if cw.release != nil {
		cw.release()
		cw.release = nil
	}
}
