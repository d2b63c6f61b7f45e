package scan

import (
	"errors"
	"fmt"
)

var (
	// ErrStructureNotFound is returned if no end of central directory record was found.
	ErrStructureNotFound = errors.New("end of central directory not found; most likely not a ZIP file")

	// ErrMalformedHeader is returned if a signature check fails at a structural boundary, or if the end of central
	// directory record is too close to the end of the buffer to hold all of its fixed fields.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrTruncatedArchive is returned if decoding a header or slicing a payload would read past the end of the buffer.
	ErrTruncatedArchive = errors.New("truncated archive")

	// ErrUnsupportedCompressionMethod is returned for entries whose compression method is not zip.Store unless
	// [Options.AllowCompressed] is true.
	ErrUnsupportedCompressionMethod = errors.New("unsupported compression method")

	// ErrUnsupportedArchive is returned for ZIP64, multi-disk, and encrypted archives.
	ErrUnsupportedArchive = errors.New("unsupported archive")

	// ErrChecksum is returned if the CRC-32 of a stored payload does not match the central directory.
	ErrChecksum = errors.New("checksum error")
)

const (
	eocdRecord  = "end of central directory record"
	cdfhRecord  = "central directory file header"
	lfhRecord   = "local file header"
	payloadName = "file data"
)

// HeaderError decorates a decoding failure with the kind of record and its absolute offset in the archive.
type HeaderError struct {
	Record string
	Offset int64
	Err    error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s at offset 0x%x: %v", e.Record, e.Offset, e.Err)
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

func mismatchedSignature(got, expected uint32) error {
	return fmt.Errorf("%w: mismatched signature, got 0x%08x, expected 0x%08x", ErrMalformedHeader, got, expected)
}
