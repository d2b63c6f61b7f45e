package unzip

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nguyengg/rawzip/internal/ziptest"
	"github.com/stretchr/testify/assert"
)

// countingWriter records the size of every write.
type countingWriter struct {
	bytes.Buffer
	writes []int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, len(p))
	return w.Buffer.Write(p)
}

func TestDirWriter_WriteFile_Progress(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		bufferSize int
		writes     []int
	}{
		{
			name:       "multiple chunks",
			data:       "hello, world",
			bufferSize: 5,
			writes:     []int{5, 5, 2},
		},
		{
			name:   "default buffer size",
			data:   "hello, world",
			writes: []int{12},
		},
		{
			name:       "buffer larger than data",
			data:       "hi",
			bufferSize: 1024,
			writes:     []int{2},
		},
		{
			name:       "empty file",
			bufferSize: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := &countingWriter{}
			w := &DirWriter{BufferSize: tt.bufferSize, Progress: progress}
			name := filepath.Join(t.TempDir(), "a", "b.txt")

			err := w.WriteFile(context.Background(), name, []byte(tt.data), 0644)
			assert.NoErrorf(t, err, "WriteFile() error = %v", err)

			data, err := os.ReadFile(name)
			assert.NoError(t, err)
			assert.Equal(t, tt.data, string(data))
			assert.Equal(t, tt.data, progress.String())
			assert.Equal(t, tt.writes, progress.writes)
		})
	}
}

func TestDirWriter_WriteFile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	progress := &bytes.Buffer{}
	w := &DirWriter{BufferSize: 2, Progress: progress}

	err := w.WriteFile(ctx, filepath.Join(t.TempDir(), "a.txt"), []byte("hello"), 0644)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, progress.String())
}

func TestDirWriter_WriteFile_NoOverwrite(t *testing.T) {
	name := filepath.Join(t.TempDir(), "a.txt")
	assert.NoError(t, os.WriteFile(name, []byte("original"), 0644))

	progress := &bytes.Buffer{}
	w := &DirWriter{NoOverwrite: true, Progress: progress}

	err := w.WriteFile(context.Background(), name, []byte("hi"), 0644)
	assert.ErrorIs(t, err, ErrSkipped)
	assert.Empty(t, progress.String())

	data, err := os.ReadFile(name)
	assert.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestExtract_DirWriterProgress(t *testing.T) {
	var (
		files []string
		want  int
	)
	for i := range 10 {
		content := strings.Repeat("x", 100*(i+1))
		files = append(files, fmt.Sprintf("d/f%02d.txt", i), content)
		want += len(content)
	}

	progress := &bytes.Buffer{}
	got, err := ExtractBytes(context.Background(), ziptest.Store(files...), t.TempDir(), func(opts *Options) {
		opts.Concurrency = 4
		opts.Writer = &DirWriter{BufferSize: 64, Progress: progress}
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(want), got.Bytes)
	assert.Equal(t, want, progress.Len())
	assert.Equal(t, strings.Repeat("x", want), progress.String())
}
