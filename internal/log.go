package internal

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Prefix creates a consistent prefix for all archive-based commands to use.
//
// i and n are the one-based ordinal and expected count.
func Prefix(i, n int, name string) string {
	return fmt.Sprintf(`[%d/%d] "%s" - `, i, n, TruncateRightWithSuffix(filepath.Base(name), 30, "..."))
}

// NewLogger returns a logger writing to os.Stderr with the prefix from Prefix.
func NewLogger(i, n int, name string) *log.Logger {
	return log.New(os.Stderr, Prefix(i, n, name), 0)
}

type loggerKey struct{}

// WithLogger attaches the logger to context.
func WithLogger(ctx context.Context, logger *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger attached to the given context, or log.Default if there is none.
func Logger(ctx context.Context) *log.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return logger
	}

	return log.Default()
}
