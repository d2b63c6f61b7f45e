package unzip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/nguyengg/rawzip"
)

// DefaultBufferSize is the default value of [DirWriter.BufferSize].
const DefaultBufferSize = 32 * 1024

// ErrSkipped is returned by Writer.WriteFile if the file was intentionally not written, for example because it
// already exists and DirWriter.NoOverwrite is true. It is not treated as a failure by Extract.
var ErrSkipped = errors.New("file skipped")

// Writer creates the directories and files extracted from an archive.
//
// If Options.Concurrency is greater than 1, WriteFile is called from multiple goroutines.
type Writer interface {
	// MkdirAll creates the directory at path along with any missing parents.
	MkdirAll(path string, perm fs.FileMode) error

	// WriteFile writes data to the file at path, creating missing parent directories.
	//
	// Return ErrSkipped (optionally wrapped) if the file was deliberately left alone.
	WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error
}

// DirWriter is the default Writer that writes to the local file system.
type DirWriter struct {
	// NoOverwrite will skip files that already exist, in which case WriteFile returns ErrSkipped.
	//
	// By default, existing files are truncated and overwritten.
	NoOverwrite bool

	// BufferSize is the length of the buffer used to copy each file. Defaults to DefaultBufferSize.
	//
	// The context passed to WriteFile is checked after each copy.
	BufferSize int

	// Progress receives every byte written if non-nil.
	Progress io.Writer

	mu sync.Mutex
}

var _ Writer = (*DirWriter)(nil)

func (w *DirWriter) MkdirAll(path string, perm fs.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return &rawzip.IOError{Op: "mkdir", Path: path, Err: err}
	}

	return nil
}

func (w *DirWriter) WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	if err := w.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if w.NoOverwrite {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		if w.NoOverwrite && errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s already exists", ErrSkipped, path)
		}

		return &rawzip.IOError{Op: "create", Path: path, Err: err}
	}

	var dst io.Writer = f
	if w.Progress != nil {
		dst = io.MultiWriter(f, progressWriter{w})
	}

	bufferSize := w.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	if _, err = rawzip.CopyBufferWithContext(ctx, dst, bytes.NewReader(data), make([]byte, max(1, min(bufferSize, len(data))))); err != nil {
		_ = f.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return &rawzip.IOError{Op: "write", Path: path, Err: err}
	}

	if err = f.Close(); err != nil {
		return &rawzip.IOError{Op: "close", Path: path, Err: err}
	}

	return nil
}

// progressWriter serialises writes to DirWriter.Progress.
type progressWriter struct {
	w *DirWriter
}

func (p progressWriter) Write(b []byte) (int, error) {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()

	// ignore all errors from progress.
	_, _ = p.w.Progress.Write(b)
	return len(b), nil
}
