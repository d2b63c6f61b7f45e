package unzip

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nguyengg/rawzip"
	"github.com/nguyengg/rawzip/internal/ziptest"
	"github.com/nguyengg/rawzip/zip/scan"
	"github.com/stretchr/testify/assert"
)

// readDir returns the content of all files under dir keyed by their slash-separated relative paths. Directories have
// "/" suffix and empty content.
func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			files[filepath.ToSlash(rel)+"/"] = ""
			return nil
		}

		data, err := os.ReadFile(path)
		files[filepath.ToSlash(rel)] = string(data)
		return err
	})
	assert.NoErrorf(t, err, "WalkDir(%s) error = %v", dir, err)

	return files
}

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()

	name := filepath.Join(t.TempDir(), "test.zip")
	assert.NoError(t, os.WriteFile(name, data, 0644))
	return name
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		optFns   []func(*Options)
		expected Result
		files    map[string]string
	}{
		{
			name:     "two entries",
			data:     ziptest.Store("a.txt", "hi", "b/c.txt", "bye"),
			expected: Result{Files: 2, Bytes: 5},
			files:    map[string]string{"a.txt": "hi", "b/": "", "b/c.txt": "bye"},
		},
		{
			name:     "empty archive",
			data:     ziptest.Store(),
			expected: Result{},
			files:    map[string]string{},
		},
		{
			name: "trailing comment",
			data: ziptest.Archive{
				Entries: []ziptest.Entry{{Name: "a.txt", Data: []byte("hi")}},
				Comment: "0123456789",
			}.Bytes(),
			expected: Result{Files: 1, Bytes: 2},
			files:    map[string]string{"a.txt": "hi"},
		},
		{
			name:     "directories",
			data:     ziptest.Store("test/", "", "test/a.txt", "hello", "test/empty/", ""),
			expected: Result{Files: 1, Dirs: 2, Bytes: 5},
			files:    map[string]string{"test/": "", "test/a.txt": "hello", "test/empty/": ""},
		},
		{
			name: "unwrap root",
			data: ziptest.Store("test/", "", "test/a.txt", "hello", "test/path/b.txt", "world", "test/empty/", ""),
			optFns: []func(*Options){func(opts *Options) {
				opts.UnwrapRoot = true
			}},
			expected: Result{Files: 2, Dirs: 2, Bytes: 10},
			files:    map[string]string{"a.txt": "hello", "path/": "", "path/b.txt": "world", "empty/": ""},
		},
		{
			name: "unwrap root without common root",
			data: ziptest.Store("a.txt", "hello", "path/b.txt", "world"),
			optFns: []func(*Options){func(opts *Options) {
				opts.UnwrapRoot = true
			}},
			expected: Result{Files: 2, Bytes: 10},
			files:    map[string]string{"a.txt": "hello", "path/": "", "path/b.txt": "world"},
		},
		{
			name: "parallel",
			data: ziptest.Store("a.txt", "1", "b.txt", "22", "c/d.txt", "333", "c/e.txt", "4444", "f.txt", "55555"),
			optFns: []func(*Options){func(opts *Options) {
				opts.Concurrency = 3
			}},
			expected: Result{Files: 5, Bytes: 15},
			files:    map[string]string{"a.txt": "1", "b.txt": "22", "c/": "", "c/d.txt": "333", "c/e.txt": "4444", "f.txt": "55555"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeArchive(t, tt.data)
			dir := filepath.Join(t.TempDir(), "output")

			got, err := Extract(context.Background(), src, dir, tt.optFns...)
			assert.NoErrorf(t, err, "Extract() error = %v", err)

			tt.expected.Dir = dir
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.files, readDir(t, dir))

			a, err := scan.Open(tt.data)
			assert.NoError(t, err)
			assert.Equal(t, int(a.EOCD().CDCount), got.Files+got.Skipped+got.Dirs)
		})
	}
}

func TestExtract_UnsafeEntryPath(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "output")

	data := ziptest.Archive{Entries: []ziptest.Entry{
		{Name: "a.txt", Data: []byte("hi")},
		{Name: "../evil.txt", Data: []byte("gotcha")},
		{Name: "c.txt", Data: []byte("never")},
	}}.Bytes()

	_, err := ExtractBytes(context.Background(), data, dir)
	assert.ErrorIs(t, err, rawzip.ErrUnsafeEntryPath)

	_, err = os.Stat(filepath.Join(parent, "evil.txt"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	// entries before the unsafe one remain, entries after are never processed.
	assert.Equal(t, map[string]string{"a.txt": "hi"}, readDir(t, dir))
}

func TestExtract_StructureNotFound(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")

	_, err := ExtractBytes(context.Background(), bytes.Repeat([]byte("not a zip file"), 10), dir)
	assert.ErrorIs(t, err, scan.ErrStructureNotFound)

	_, err = os.Stat(dir)
	assert.ErrorIs(t, err, fs.ErrNotExist, "output directory must not be created")
}

func TestExtract_UnsupportedCompressionMethod(t *testing.T) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	w, err := zw.Create("a.txt")
	assert.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("hello"), 100))
	assert.NoError(t, err)
	assert.NoError(t, zw.Close())

	dir := t.TempDir()
	_, err = ExtractBytes(context.Background(), buf.Bytes(), dir)
	assert.ErrorIs(t, err, scan.ErrUnsupportedCompressionMethod)
	assert.Equal(t, map[string]string{}, readDir(t, dir))
}

func TestExtract_IOError(t *testing.T) {
	_, err := Extract(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.zip"), t.TempDir())
	assert.ErrorIs(t, err, rawzip.ErrIO)
}

func TestExtract_NoOverwrite(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("original"), 0644))

	data := ziptest.Store("a.txt", "hi", "b.txt", "bye")
	logs := &bytes.Buffer{}
	got, err := ExtractBytes(context.Background(), data, dir, func(opts *Options) {
		opts.Writer = &DirWriter{NoOverwrite: true}
		opts.ProgressReporter = NewVerboseReporter(log.New(logs, "", 0))
	})
	assert.NoError(t, err)
	assert.Equal(t, Result{Dir: dir, Files: 1, Skipped: 1, Bytes: 3}, got)
	assert.Equal(t, map[string]string{"a.txt": "original", "b.txt": "bye"}, readDir(t, dir))
	assert.Contains(t, logs.String(), fmt.Sprintf(`[1/2] skipped "%s"`, filepath.Join(dir, "a.txt")))
	assert.NotContains(t, logs.String(), `extracted "`+filepath.Join(dir, "a.txt"))

	got, err = ExtractBytes(context.Background(), data, dir)
	assert.NoError(t, err)
	assert.Equal(t, Result{Dir: dir, Files: 2, Bytes: 5}, got)
	assert.Equal(t, map[string]string{"a.txt": "hi", "b.txt": "bye"}, readDir(t, dir))
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExtractBytes(ctx, ziptest.Store("a.txt", "hi"), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

// failingWriter fails to write files whose base names are in fail.
type failingWriter struct {
	DirWriter
	fail map[string]bool
}

func (w *failingWriter) WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	if w.fail[filepath.Base(path)] {
		// give later entries a chance to fail first.
		time.Sleep(10 * time.Millisecond)
		return &rawzip.IOError{Op: "write", Path: path, Err: errors.New("no space left on device")}
	}

	return w.DirWriter.WriteFile(ctx, path, data, perm)
}

func TestExtract_ParallelErrorIsDeterministic(t *testing.T) {
	var files []string
	for i := range 20 {
		files = append(files, fmt.Sprintf("f%02d.txt", i), fmt.Sprintf("content of %d", i))
	}
	data := ziptest.Store(files...)

	for _, concurrency := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			_, err := ExtractBytes(context.Background(), data, t.TempDir(), func(opts *Options) {
				opts.Concurrency = concurrency
				opts.Writer = &failingWriter{fail: map[string]bool{"f03.txt": true, "f04.txt": true, "f11.txt": true}}
			})
			assert.ErrorIs(t, err, rawzip.ErrIO)
			assert.ErrorContains(t, err, `extract "f03.txt" error`)
		})
	}
}

func TestExtract_ProgressReporter(t *testing.T) {
	data := ziptest.Store("a/", "", "a/b.txt", "hi", "a/c.txt", "bye")
	logs := &bytes.Buffer{}

	var calls []int
	_, err := ExtractBytes(context.Background(), data, t.TempDir(), func(opts *Options) {
		reporter := NewLogReporter(log.New(logs, "", 0), time.Hour)
		opts.ProgressReporter = func(ev Event) {
			calls = append(calls, ev.Done)
			assert.Equal(t, 3, ev.Total)
			assert.False(t, ev.Skipped)
			reporter(ev)
		}
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, calls)
	assert.Contains(t, logs.String(), "extracted 3/3 files (5 B) in total")
}

func TestNewLogReporter_Skipped(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("original"), 0644))

	logs := &bytes.Buffer{}
	_, err := ExtractBytes(context.Background(), ziptest.Store("a.txt", "hi", "b.txt", "bye"), dir, func(opts *Options) {
		opts.Writer = &DirWriter{NoOverwrite: true}
		opts.ProgressReporter = NewLogReporter(log.New(logs, "", 0), time.Hour)
	})
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), "extracted 2/2 files (3 B, 1 skipped) in total")
}

func TestNewVerboseReporter(t *testing.T) {
	data := ziptest.Store("a/", "", "a/b.txt", "hi", "a/c.txt", "bye")
	dir := t.TempDir()
	logs := &bytes.Buffer{}

	_, err := ExtractBytes(context.Background(), data, dir, func(opts *Options) {
		opts.ProgressReporter = NewVerboseReporter(log.New(logs, "", 0))
	})
	assert.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`[1/3] created "%s"
[2/3] extracted "%s" (2 B)
[3/3] extracted "%s" (3 B)
`, filepath.Join(dir, "a"), filepath.Join(dir, "a", "b.txt"), filepath.Join(dir, "a", "c.txt")), logs.String())
}
