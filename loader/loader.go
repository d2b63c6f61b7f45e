// Package loader reads a whole ZIP archive into memory, from either a local file or an S3 object.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/rawzip"
	"github.com/nguyengg/rawzip/internal"
	"github.com/valyala/bytebufferpool"
)

// S3Client abstracts the API needed to load archives from S3.
type S3Client interface {
	manager.DownloadAPIClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Options customises Load, LoadFile, and LoadS3.
type Options struct {
	// Client is required by LoadS3.
	Client S3Client

	// ExpectedBucketOwner is passed to every S3 call.
	ExpectedBucketOwner *string

	// Concurrency is the number of parts to download in parallel. Defaults to manager.DefaultDownloadConcurrency.
	Concurrency int

	// PartSize is the size of each ranged GetObject. Defaults to manager.DefaultDownloadPartSize.
	PartSize int64

	// PartLogger logs every downloaded part if non-nil. See WithPartLogger.
	PartLogger *log.Logger

	// Progress is called once the size of the archive is known, and every loaded byte is written to the returned
	// writer which is closed when loading finishes. See WithProgressLogger and WithProgressBar.
	Progress func(size int64) io.WriteCloser
}

// Load reads the archive at the given name, which is an S3 URI in format s3://bucket/key or a local file path.
func Load(ctx context.Context, name string, optFns ...func(*Options)) (*Buffer, error) {
	if !internal.IsS3URI(name) {
		return LoadFile(ctx, name, optFns...)
	}

	bucket, key, err := internal.ParseS3URI(name)
	if err != nil {
		return nil, err
	}

	return LoadS3(ctx, bucket, key, optFns...)
}

// LoadFile reads the local file at the given name.
//
// Failures to open or read the file are returned as *rawzip.IOError.
func LoadFile(ctx context.Context, name string, optFns ...func(*Options)) (*Buffer, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, &rawzip.IOError{Op: "open", Path: name, Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, &rawzip.IOError{Op: "stat", Path: name, Err: err}
	}
	if fi.IsDir() {
		return nil, &rawzip.IOError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}

	bb := bytebufferpool.Get()
	bb.B = slices.Grow(bb.B[:0], int(fi.Size()))

	var w io.Writer = bb
	if opts.Progress != nil {
		p := opts.Progress(fi.Size())
		defer p.Close()
		w = io.MultiWriter(bb, p)
	}

	if _, err = rawzip.CopyBufferWithContext(ctx, w, f, nil); err != nil {
		bytebufferpool.Put(bb)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, &rawzip.IOError{Op: "read", Path: name, Err: err}
	}

	return &Buffer{bb: bb}, nil
}

// LoadS3 downloads the S3 object at the given bucket and key using manager.Downloader.
//
// Options.Client is required. Failures from S3 are returned as *rawzip.IOError.
func LoadS3(ctx context.Context, bucket, key string, optFns ...func(*Options)) (*Buffer, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.Client == nil {
		return nil, fmt.Errorf("load s3://%s/%s error: no S3 client", bucket, key)
	}

	uri := fmt.Sprintf("s3://%s/%s", bucket, key)
	headObjectResult, err := opts.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(key),
		ExpectedBucketOwner: opts.ExpectedBucketOwner,
	})
	if err != nil {
		return nil, &rawzip.IOError{Op: "head", Path: uri, Err: err}
	}

	size := aws.ToInt64(headObjectResult.ContentLength)

	bb := bytebufferpool.Get()
	bb.B = slices.Grow(bb.B[:0], int(size))[:size]
	buf := manager.NewWriteAtBuffer(bb.B)

	var w io.WriterAt = buf
	if opts.Progress != nil {
		p := opts.Progress(size)
		defer p.Close()
		w = &progressWriterAt{WriterAt: buf, progress: p}
	}

	n, err := manager.NewDownloader(opts.Client, func(d *manager.Downloader) {
		if opts.Concurrency > 0 {
			d.Concurrency = opts.Concurrency
		}
		if opts.PartSize > 0 {
			d.PartSize = opts.PartSize
		}
		if opts.PartLogger != nil {
			d.S3 = newPartLoggingClient(d.S3, opts.PartLogger, size, d.PartSize)
		}
	}).Download(ctx, w, &s3.GetObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(key),
		ExpectedBucketOwner: opts.ExpectedBucketOwner,
		IfMatch:             headObjectResult.ETag,
	})
	if err != nil {
		bytebufferpool.Put(bb)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, &rawzip.IOError{Op: "download", Path: uri, Err: err}
	}

	bb.B = buf.Bytes()[:n]
	return &Buffer{bb: bb}, nil
}

// progressWriterAt forwards every successful write to progress.
type progressWriterAt struct {
	io.WriterAt

	mu       sync.Mutex
	progress io.Writer
}

func (w *progressWriterAt) WriteAt(p []byte, off int64) (n int, err error) {
	n, err = w.WriterAt.WriteAt(p, off)

	w.mu.Lock()
	_, _ = w.progress.Write(p[:n])
	w.mu.Unlock()

	return n, err
}
