package unzip

import (
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/rawzip/zip/scan"
	"golang.org/x/time/rate"
)

// Event describes an entry that has just been processed by Extract.
type Event struct {
	// Entry is the entry that was processed.
	Entry scan.Entry
	// Path is where the entry was extracted to.
	Path string
	// Skipped is true if the Writer returned ErrSkipped for the entry so nothing was written.
	Skipped bool
	// Done is the number of entries processed so far, including Entry.
	Done int
	// Total is the number of entries in the archive.
	Total int
}

// ProgressReporter is called after each entry has been processed.
//
// Calls are serialised even if entries are extracted in parallel, but Event.Done is not guaranteed to follow central
// directory order in that case.
type ProgressReporter func(ev Event)

// NewLogReporter creates a ProgressReporter that logs `extracted X/Y files (Z) so far` at most once per interval, and
// once more when the last entry is processed.
//
// Skipped entries count towards X but not Z.
func NewLogReporter(logger *log.Logger, interval time.Duration) ProgressReporter {
	var (
		r                = &rate.Sometimes{Interval: interval}
		written, skipped uint64
	)

	return func(ev Event) {
		if ev.Skipped {
			skipped++
		} else {
			written += uint64(len(ev.Entry.Data))
		}

		suffix := ""
		if skipped != 0 {
			suffix = fmt.Sprintf(", %d skipped", skipped)
		}

		if ev.Done == ev.Total {
			logger.Printf("extracted %d/%d files (%s%s) in total", ev.Done, ev.Total, humanize.IBytes(written), suffix)
			return
		}

		r.Do(func() {
			logger.Printf("extracted %d/%d files (%s%s) so far", ev.Done, ev.Total, humanize.IBytes(written), suffix)
		})
	}
}

// NewVerboseReporter creates a ProgressReporter that logs every entry.
func NewVerboseReporter(logger *log.Logger) ProgressReporter {
	return func(ev Event) {
		switch {
		case ev.Entry.IsDir():
			logger.Printf(`[%d/%d] created "%s"`, ev.Done, ev.Total, ev.Path)
		case ev.Skipped:
			logger.Printf(`[%d/%d] skipped "%s"`, ev.Done, ev.Total, ev.Path)
		default:
			logger.Printf(`[%d/%d] extracted "%s" (%s)`, ev.Done, ev.Total, ev.Path, humanize.IBytes(uint64(len(ev.Entry.Data))))
		}
	}
}
