package togozip

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/woozymasta/pathrules"
)

// testEntry describes one entry of a generated test container.
type testEntry struct {
	modified time.Time
	name     string
	data     []byte
}

// baseTime is a fixed whole-second timestamp used across tests.
var baseTime = time.Date(2024, time.March, 10, 12, 30, 0, 0, time.UTC)

func createTestZip(t testing.TB, path string, entries []testEntry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: e.modified,
		})
		if err != nil {
			t.Fatalf("create entry %s: %v", e.name, err)
		}

		if _, err := w.Write(e.data); err != nil {
			t.Fatalf("write entry %s: %v", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
}

// createDOSTimeZip writes a single-entry container whose entry carries only an
// MS-DOS timestamp holding wall clock of modified, as java.util.zip writes it.
func createDOSTimeZip(t testing.TB, path string, name string, data []byte, modified time.Time) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer func() { _ = f.Close() }()

	fh := &zip.FileHeader{Name: name, Method: zip.Deflate}
	fh.ModifiedDate = uint16((modified.Year()-1980)<<9 | int(modified.Month())<<5 | modified.Day())
	fh.ModifiedTime = uint16(modified.Hour()<<11 | modified.Minute()<<5 | modified.Second()/2)

	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(fh)
	if err != nil {
		t.Fatalf("create entry %s: %v", name, err)
	}

	if _, err := w.Write(data); err != nil {
		t.Fatalf("write entry %s: %v", name, err)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
}

func createSourceFile(t testing.TB, dir string, name string, data []byte, modTime time.Time) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir source dir: %v", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write source %s: %v", name, err)
	}

	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes source %s: %v", name, err)
	}

	return path
}

// readZip returns entry names in container order and payloads by name.
func readZip(t *testing.T, path string) ([]string, map[string][]byte) {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer func() { _ = zr.Close() }()

	names := make([]string, 0, len(zr.File))
	payloads := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}

		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}

		names = append(names, f.Name)
		payloads[f.Name] = data
	}

	return names, payloads
}

func readFileBytes(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return data
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("%s must not exist (stat err=%v)", path, err)
	}
}

func equalStrings(left []string, right []string) bool {
	if len(left) != len(right) {
		return false
	}

	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}

	return true
}

func includeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		rules = append(rules, pathrules.Rule{
			Action:  pathrules.ActionInclude,
			Pattern: pattern,
		})
	}

	return rules
}

// errInjected marks failures produced by faultFileSystem.
var errInjected = errors.New("injected failure")

// faultFileSystem wraps osFileSystem and injects failures through optional hooks.
type faultFileSystem struct {
	base osFileSystem
	// create fails Create when it returns non-nil.
	create func(name string) error
	// open may replace the opened file or fail Open.
	open func(name string, f file) (file, error)
	// rename fails Rename when it returns non-nil.
	rename func(from string, to string) error
	// remove fails Remove when it returns non-nil.
	remove func(name string) error
	// writeLimit fails writes to created files once exceeded; zero disables.
	writeLimit int64
	// syncErr is returned from Sync of created files.
	syncErr error
}

func (f *faultFileSystem) Open(name string) (file, error) {
	opened, err := f.base.Open(name)
	if err != nil {
		return nil, err
	}

	if f.open == nil {
		return opened, nil
	}

	replaced, err := f.open(name, opened)
	if err != nil {
		_ = opened.Close()
		return nil, err
	}

	return replaced, nil
}

func (f *faultFileSystem) Create(name string, perm os.FileMode) (file, error) {
	if f.create != nil {
		if err := f.create(name); err != nil {
			return nil, err
		}
	}

	created, err := f.base.Create(name, perm)
	if err != nil {
		return nil, err
	}

	return &faultFile{file: created, limit: f.writeLimit, syncErr: f.syncErr}, nil
}

func (f *faultFileSystem) Stat(name string) (os.FileInfo, error) {
	return f.base.Stat(name)
}

func (f *faultFileSystem) Rename(from string, to string) error {
	if f.rename != nil {
		if err := f.rename(from, to); err != nil {
			return err
		}
	}

	return f.base.Rename(from, to)
}

func (f *faultFileSystem) Remove(name string) error {
	if f.remove != nil {
		if err := f.remove(name); err != nil {
			return err
		}
	}

	return f.base.Remove(name)
}

// faultFile fails writes past limit and reports syncErr from Sync.
type faultFile struct {
	file
	syncErr error
	limit   int64
	written int64
}

func (f *faultFile) Write(p []byte) (int, error) {
	if f.limit > 0 && f.written+int64(len(p)) > f.limit {
		return 0, errInjected
	}

	n, err := f.file.Write(p)
	f.written += int64(n)

	return n, err
}

func (f *faultFile) Sync() error {
	if f.syncErr != nil {
		return f.syncErr
	}

	return f.file.Sync()
}

// failingReadFile is an opened source whose reads always fail.
type failingReadFile struct {
	file
}

func (f *failingReadFile) Read([]byte) (int, error) {
	return 0, errInjected
}

// newTestJob creates job and replaces filesystem when fsys is non-nil.
func newTestJob(t *testing.T, dest string, opts Options, fsys fileSystem) *Job {
	t.Helper()

	job, err := NewJob(dest, opts)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if fsys != nil {
		job.fs = fsys
	}

	return job
}

// incompressible returns deterministic pseudo-random payload.
func incompressible(size int, seed byte) []byte {
	out := make([]byte, size)
	state := uint32(seed) + 1
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = byte(state >> 24)
	}

	return out
}
