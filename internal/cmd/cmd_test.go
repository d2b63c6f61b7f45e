package cmd

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/rawzip/internal/ziptest"
	"github.com/nguyengg/rawzip/unzip"
	"github.com/nguyengg/rawzip/zip/scan"
	"github.com/stretchr/testify/assert"
)

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	w := gzip.NewWriter(buf)
	_, err := w.Write(data)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	name = filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(name, data, 0644))
	return name
}

func TestExtract_Execute(t *testing.T) {
	src := writeFile(t, "test.zip", ziptest.Store("test/", "", "test/a.txt", "hi", "test/b/c.txt", "bye"))
	dir := filepath.Join(t.TempDir(), "output")

	c := &Extract{Output: flags.Filename(dir), UnwrapRoot: true, MaxConcurrency: 2}
	c.Args.Files = []string{src}
	assert.NoError(t, c.Execute(nil))

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "b", "c.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "bye", string(data))
}

func TestExtract_Execute_NotZip(t *testing.T) {
	src := writeFile(t, "test.zip", bytes.Repeat([]byte("definitely not a zip file"), 4))
	dir := filepath.Join(t.TempDir(), "output")

	c := &Extract{Output: flags.Filename(dir)}
	c.Args.Files = []string{src}
	assert.Error(t, c.Execute(nil))

	_, err := os.Stat(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtract_extract_DescribesContent(t *testing.T) {
	src := writeFile(t, "test.zip", gzipped(t, bytes.Repeat([]byte("definitely not a zip file"), 4)))
	dir := filepath.Join(t.TempDir(), "output")

	c := &Extract{Output: flags.Filename(dir), MaxConcurrency: 1}
	_, err := c.extract(context.Background(), src)
	assert.ErrorIs(t, err, scan.ErrStructureNotFound)
	assert.ErrorContains(t, err, "content looks like .gz")

	_, err = os.Stat(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtract_extract_Progress(t *testing.T) {
	src := writeFile(t, "test.zip", ziptest.Store("a/", "", "a/b.txt", "hi", "a/c.txt", "bye"))
	dir := filepath.Join(t.TempDir(), "output")

	c := &Extract{Output: flags.Filename(dir), MaxConcurrency: 2, Progress: true}
	got, err := c.extract(context.Background(), src)
	assert.NoError(t, err)
	assert.Equal(t, unzip.Result{Dir: dir, Files: 2, Dirs: 1, Bytes: 5}, got)

	data, err := os.ReadFile(filepath.Join(dir, "a", "c.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "bye", string(data))
}

func TestExtract_extract_NoOverwrite(t *testing.T) {
	src := writeFile(t, "test.zip", ziptest.Store("a.txt", "hi", "b.txt", "bye"))
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("original"), 0644))

	c := &Extract{Output: flags.Filename(dir), MaxConcurrency: 1, NoOverwrite: true}
	got, err := c.extract(context.Background(), src)
	assert.NoError(t, err)
	assert.Equal(t, unzip.Result{Dir: dir, Files: 1, Skipped: 1, Bytes: 3}, got)
}

func TestDescribe(t *testing.T) {
	notZip := bytes.Repeat([]byte("definitely not a zip file"), 4)
	other := errors.New("some other error")

	tests := []struct {
		name     string
		data     []byte
		err      error
		contains string
		same     bool
	}{
		{
			name:     "gzip",
			data:     gzipped(t, notZip),
			err:      scan.ErrStructureNotFound,
			contains: "content looks like .gz",
		},
		{
			name: "unrecognised content",
			data: notZip,
			err:  scan.ErrStructureNotFound,
			same: true,
		},
		{
			name: "other errors are unchanged",
			data: gzipped(t, notZip),
			err:  other,
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describe(context.Background(), tt.data, tt.err)
			assert.ErrorIs(t, got, tt.err)
			if tt.same {
				assert.Equal(t, tt.err, got)
				return
			}

			assert.ErrorContains(t, got, tt.contains)
		})
	}
}

func TestList_Execute(t *testing.T) {
	src := writeFile(t, "test.zip", ziptest.Store("a.txt", "hi", "b/", ""))

	tests := []struct {
		name     string
		sri      string
		verify   []string
		wantErr  bool
		contains []string
	}{
		{
			name:     "plain",
			contains: []string{"stored", "a.txt", "b/", "2 B"},
		},
		{
			name:     "sri",
			sri:      "sha256",
			contains: []string{"a.txt sha256-j0NDRmSPa5bfid2pAcUXaxCm2Dlh3TwayItZstwyeqQ"},
		},
		{
			name:     "verify",
			verify:   []string{"a.txt=sha1-witfkXg0JglCjW9RssWvTAveakI"},
			contains: []string{"a.txt"},
		},
		{
			name:    "verify mismatch",
			verify:  []string{"a.txt=sha1-HwnTDHB9U/PRbFMN1z1wps51lqk"},
			wantErr: true,
		},
		{
			name:    "invalid verify argument",
			verify:  []string{"a.txt"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			c := &List{SRI: tt.sri, Verify: tt.verify, out: out}
			c.Args.Files = []string{src}

			err := c.Execute(nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}

func TestNewParser(t *testing.T) {
	p, err := NewParser()
	assert.NoError(t, err)
	assert.NotNil(t, p.Find("extract"))
	assert.NotNil(t, p.Find("ls"))
}
