// Package unzip extracts stored ZIP archives by walking their central directory with package scan.
package unzip

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/nguyengg/rawzip/internal"
	"github.com/nguyengg/rawzip/internal/executor"
	"github.com/nguyengg/rawzip/loader"
	"github.com/nguyengg/rawzip/zip/scan"
)

// Options customises Extract and ExtractBytes.
type Options struct {
	// Load reads the archive named by the src argument of Extract.
	//
	// By default, loader.Load is used which supports both local files and S3 URIs; the latter requires a client which
	// can be given with LoaderOptions.
	Load func(ctx context.Context, name string) (*loader.Buffer, error)

	// LoaderOptions are passed to loader.Load if Load is not given.
	LoaderOptions []func(*loader.Options)

	// Writer creates the extracted directories and files.
	//
	// By default, a DirWriter is used.
	Writer Writer

	// Concurrency is the maximum number of files written in parallel.
	//
	// Entries are always decoded one at a time in central directory order; only the writes are parallel. If more
	// than one write fails, the error from the entry that comes first in the central directory is returned. Defaults
	// to 1 which writes files one at a time.
	Concurrency int

	// UnwrapRoot removes the common top-level directory from every entry if all entries share one.
	//
	// For example, if the archive contains test/a.txt and test/path/b.txt, they are extracted as a.txt and
	// path/b.txt.
	UnwrapRoot bool

	// ProgressReporter is called after each entry has been processed.
	ProgressReporter ProgressReporter

	// ScanOptions are passed to scan.Open.
	ScanOptions []func(*scan.Options)
}

// Result describes a successful extraction.
type Result struct {
	// Dir is the output directory.
	Dir string
	// Files is the number of file entries written.
	Files int
	// Skipped is the number of file entries the Writer chose not to write, see ErrSkipped.
	Skipped int
	// Dirs is the number of directory entries extracted.
	Dirs int
	// Bytes is the total size of all written files.
	Bytes int64
}

// Extract extracts the archive named by src into dir.
//
// The archive is read into memory in its entirety with Options.Load. dir is created if it does not exist, but only
// after the archive's end of central directory record has been found, so an input that is not a ZIP file leaves no
// trace. Entries are then extracted in central directory order.
//
// Extraction stops at the first error. Files already written are left in place. Errors from the structural parser
// (see package scan) and rawzip.ErrUnsafeEntryPath abort before anything is written for the failing entry, while
// write failures are returned as *rawzip.IOError.
func Extract(ctx context.Context, src, dir string, optFns ...func(*Options)) (Result, error) {
	opts := newOptions(optFns)

	b, err := opts.Load(ctx, src)
	if err != nil {
		return Result{Dir: dir}, err
	}
	defer b.Release()

	return extract(ctx, b.Bytes(), dir, opts)
}

// ExtractBytes is a variant of Extract for an archive that is already in memory.
//
// buf is never modified.
func ExtractBytes(ctx context.Context, buf []byte, dir string, optFns ...func(*Options)) (Result, error) {
	return extract(ctx, buf, dir, newOptions(optFns))
}

func newOptions(optFns []func(*Options)) *Options {
	opts := &Options{Concurrency: 1}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.Load == nil {
		loaderOptions := opts.LoaderOptions
		opts.Load = func(ctx context.Context, name string) (*loader.Buffer, error) {
			return loader.Load(ctx, name, loaderOptions...)
		}
	}
	if opts.Writer == nil {
		opts.Writer = &DirWriter{}
	}
	if opts.ProgressReporter == nil {
		opts.ProgressReporter = func(Event) {}
	}

	return opts
}

func extract(ctx context.Context, buf []byte, dir string, opts *Options) (r Result, err error) {
	r.Dir = dir

	a, err := scan.Open(buf, opts.ScanOptions...)
	if err != nil {
		return r, err
	}

	if err = opts.Writer.MkdirAll(dir, 0755); err != nil {
		return r, err
	}

	var rootDir internal.RootDir
	if opts.UnwrapRoot {
		ok, rootFinder := false, internal.NewZipRootDirFinder()
		for fh, err := range a.CentralDirectory() {
			if err != nil {
				return r, err
			}

			if rootDir, ok = rootFinder(fh.Name); !ok {
				break
			}
		}
	}

	var (
		// the caller's goroutine also writes when all workers are busy.
		ex    = executor.NewCallerRunOnRejectExecutor(max(0, opts.Concurrency-1))
		total = int(a.EOCD().CDCount)

		// mu guards r, done, firstIndex, firstErr, and calls to ProgressReporter.
		mu         sync.Mutex
		done       int
		firstIndex = -1
		firstErr   error
		failed     atomic.Bool
	)

	fail := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()

		if firstIndex == -1 || i < firstIndex {
			firstIndex, firstErr = i, err
		}
		failed.Store(true)
	}

	succeed := func(e scan.Entry, path string, skipped bool) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case e.IsDir():
			r.Dirs++
		case skipped:
			r.Skipped++
		default:
			r.Files++
			r.Bytes += int64(len(e.Data))
		}

		done++
		opts.ProgressReporter(Event{Entry: e, Path: path, Skipped: skipped, Done: done, Total: total})
	}

	i := 0
	for e, err := range a.Entries() {
		if err != nil {
			fail(i, err)
			break
		}

		if failed.Load() {
			break
		}

		if err = ctx.Err(); err != nil {
			fail(i, err)
			break
		}

		name := rootDir.Trim(e.Name())
		if name == "" {
			// the root directory itself.
			succeed(e, dir, false)
			i++
			continue
		}

		path, err := SafeJoin(dir, name)
		if err != nil {
			fail(i, fmt.Errorf("extract %q error: %w", e.Name(), err))
			break
		}

		if e.IsDir() {
			// MS-DOS attributes map directories to 0666 so the owner must always be able to traverse.
			if err = opts.Writer.MkdirAll(path, perm(e.Mode(), 0755)|0700); err != nil {
				fail(i, fmt.Errorf("extract %q error: %w", e.Name(), err))
				break
			}

			succeed(e, path, false)
			i++
			continue
		}

		index := i
		ex.Execute(func() {
			err := opts.Writer.WriteFile(ctx, path, e.Data, perm(e.Mode(), 0644))
			if err != nil && !errors.Is(err, ErrSkipped) {
				fail(index, fmt.Errorf("extract %q error: %w", e.Name(), err))
				return
			}

			succeed(e, path, err != nil)
		})
		i++
	}

	_ = ex.Close()

	if firstErr != nil {
		return r, firstErr
	}

	return r, nil
}

// perm returns the permission bits of mode, or fallback if there are none.
func perm(mode fs.FileMode, fallback fs.FileMode) fs.FileMode {
	if p := mode.Perm(); p != 0 {
		return p
	}

	return fallback
}
