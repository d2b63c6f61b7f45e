package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/rawzip"
	"github.com/nguyengg/rawzip/internal"
	"github.com/nguyengg/rawzip/internal/config"
	"github.com/nguyengg/rawzip/unzip"
	"github.com/nguyengg/rawzip/zip/scan"
)

type Extract struct {
	Output          flags.Filename `short:"o" long:"output" description:"extract into this directory instead of a new directory named after each archive"`
	MaxConcurrency  int            `short:"P" long:"max-concurrency" description:"write up to max-concurrency files at a time; also the number of parts to download from S3 in parallel"`
	UnwrapRoot      bool           `long:"unwrap-root" description:"if all entries share a top-level directory, extract its content without that directory"`
	NoOverwrite     bool           `long:"no-overwrite" description:"skip files that already exist instead of overwriting them"`
	AllowCompressed bool           `long:"allow-compressed" description:"write compressed entries verbatim instead of failing"`
	SkipChecksum    bool           `long:"skip-checksum" description:"do not verify the CRC-32 of stored entries"`
	Progress        bool           `long:"progress" description:"show progress bars of bytes loaded and written instead of progress logs"`
	Verbose         bool           `short:"v" long:"verbose" description:"log every extracted entry"`
	Args            struct {
		Files []string `positional-arg-name:"file" description:"the local files or S3 URIs (s3://bucket/key) to be extracted" required:"yes"`
	} `positional-args:"yes"`

	cfg    config.ExtractConfig
	logger *log.Logger
}

func (c *Extract) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max-concurrency must be non-negative")
	}

	// command-line flags take precedence over .rawzip settings.
	c.cfg = config.ForExtract()
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = max(1, c.cfg.Concurrency)
	}
	c.UnwrapRoot = c.UnwrapRoot || c.cfg.UnwrapRoot
	c.NoOverwrite = c.NoOverwrite || c.cfg.NoOverwrite
	c.AllowCompressed = c.AllowCompressed || c.cfg.AllowCompressed
	c.SkipChecksum = c.SkipChecksum || c.cfg.SkipChecksum

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		c.logger = internal.NewLogger(i+1, n, file)
		c.logger.Printf("start extracting")

		r, err := c.extract(internal.WithLogger(ctx, c.logger), file)
		if err == nil {
			if r.Skipped != 0 {
				c.logger.Printf(`done extracting %d files and %d directories to "%s", skipped %d existing files`, r.Files, r.Dirs, r.Dir, r.Skipped)
			} else {
				c.logger.Printf(`done extracting %d files and %d directories to "%s"`, r.Files, r.Dirs, r.Dir)
			}
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		c.logger.Printf("extract error: %v", err)
	}

	log.Printf("successfully extracted %d/%d files", success, n)
	if success != n {
		return fmt.Errorf("failed to extract %d/%d files", n-success, n)
	}

	return nil
}

func (c *Extract) extract(ctx context.Context, name string) (unzip.Result, error) {
	logger := internal.Logger(ctx)

	b, err := load(ctx, logger, name, c.Progress, c.MaxConcurrency)
	if err != nil {
		return unzip.Result{}, err
	}
	defer b.Release()

	scanOptions := []func(*scan.Options){func(opts *scan.Options) {
		opts.AllowCompressed = c.AllowCompressed
		opts.SkipChecksum = c.SkipChecksum
	}}

	// the output directory is only created once the archive is known to be a ZIP file.
	a, err := scan.Open(b.Bytes(), scanOptions...)
	if err != nil {
		return unzip.Result{}, describe(ctx, b.Bytes(), err)
	}

	dir := string(c.Output)
	if dir == "" {
		stem, _ := rawzip.StemAndExt(name)
		if dir, err = rawzip.MkExclDir(".", stem, 0755); err != nil {
			return unzip.Result{}, err
		}
	}

	w := &unzip.DirWriter{NoOverwrite: c.NoOverwrite}

	var reporter unzip.ProgressReporter
	switch {
	case c.Verbose:
		reporter = unzip.NewVerboseReporter(logger)
	case c.Progress:
		// the bar is advanced by the bytes being written instead.
	default:
		reporter = unzip.NewLogReporter(logger, 5*time.Second)
	}

	if c.Progress {
		var size int64
		for fh, err := range a.CentralDirectory() {
			if err != nil {
				return unzip.Result{}, err
			}

			if !fh.Mode().IsDir() {
				size += int64(fh.CompressedSize64)
			}
		}

		bar := internal.DefaultBytes(size, "extracting")
		defer bar.Close()
		w.Progress = bar
	}

	return unzip.ExtractBytes(ctx, b.Bytes(), dir, func(opts *unzip.Options) {
		opts.Writer = w
		opts.Concurrency = c.MaxConcurrency
		opts.UnwrapRoot = c.UnwrapRoot
		opts.ProgressReporter = reporter
		opts.ScanOptions = scanOptions
	})
}
