package loader

import (
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/rawzip/internal"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// WithProgressLogger adds a progress logger that logs load progress with the given interval.
//
// For example, if interval is `5*time.Second`, every 5 seconds, the given logger will print `loaded X / Y so far`
// where X is the number of bytes that have been loaded, Y the total number of expected bytes, both X and Y are
// displayed in a human-friendly format (e.g. 5 KiB, 1 MiB, etc.).
func WithProgressLogger(logger *log.Logger, interval time.Duration) func(*Options) {
	return func(opts *Options) {
		opts.Progress = func(size int64) io.WriteCloser {
			return &logLogger{
				logger: logger,
				rate:   &rate.Sometimes{Interval: interval},
				size:   size,
			}
		}
	}
}

// WithProgressBar adds a progress bar that displays load progress.
func WithProgressBar(description string, options ...progressbar.Option) func(*Options) {
	return func(opts *Options) {
		opts.Progress = func(size int64) io.WriteCloser {
			return &barLogger{bar: internal.DefaultBytes(size, description, options...)}
		}
	}
}

type logLogger struct {
	logger       *log.Logger
	rate         *rate.Sometimes
	offset, size int64
}

func (l *logLogger) Write(p []byte) (n int, err error) {
	n = len(p)
	l.offset += int64(n)

	l.rate.Do(func() {
		l.logger.Printf("loaded %s / %s so far", humanize.IBytes(uint64(l.offset)), humanize.IBytes(uint64(l.size)))
	})

	return n, nil
}

func (l *logLogger) Close() error {
	if l.offset == l.size {
		l.logger.Printf("loaded %s in total", humanize.IBytes(uint64(l.offset)))
	} else {
		l.logger.Printf("loaded %s / %s in total", humanize.IBytes(uint64(l.offset)), humanize.IBytes(uint64(l.size)))
	}

	return nil
}

type barLogger struct {
	bar *progressbar.ProgressBar
}

func (b *barLogger) Write(p []byte) (int, error) {
	// ignore all errors from progress bar.
	_, _ = b.bar.Write(p)
	return len(p), nil
}

func (b *barLogger) Close() error {
	return b.bar.Close()
}
