package scan

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"io/fs"
	"iter"
	"strings"
)

const (
	// DefaultMaxBytes is the default value of [Options.MaxBytes].
	//
	// It is the size of the largest possible EOCD record: 22 fixed bytes and a 65535-byte comment.
	DefaultMaxBytes int64 = eocdLen + maxCommentLen
)

// Options customises how an archive is scanned.
type Options struct {
	// MaxBytes can be given to limit the number of trailing bytes searched for the EOCD record.
	//
	// By default, DefaultMaxBytes is used. Set this to 0 to force scanning the entire buffer.
	MaxBytes int64

	// AllowCompressed returns the raw bytes of entries that are not zip.Store instead of failing with
	// ErrUnsupportedCompressionMethod.
	//
	// The payload is not decompressed so the bytes will not match the original file content.
	AllowCompressed bool

	// SkipChecksum disables the CRC-32 verification of stored entries.
	SkipChecksum bool
}

// CentralDirectory returns an iterator over the central directory file headers described by the given EOCD record.
//
// Exactly r.CDCount headers are decoded contiguously starting at r.CDOffset, each one advancing past its own name,
// extra, and comment fields. The iterator stops at the first error after yielding it. Nothing is cached: each range
// over the iterator decodes buf again from r.CDOffset and produces the same headers.
func CentralDirectory(buf []byte, r EOCDRecord) iter.Seq2[CDFileHeader, error] {
	return func(yield func(CDFileHeader, error) bool) {
		offset := int64(r.CDOffset)

		for i := range int(r.CDCount) {
			fh, next, err := decodeCDFileHeader(buf, offset)
			if err != nil {
				yield(fh, fmt.Errorf("read CD file header %d/%d error: %w", i+1, r.CDCount, err))
				return
			}

			if !yield(fh, nil) {
				return
			}

			offset = next
		}
	}
}

// ReadCentralDirectory collects all headers from CentralDirectory.
func ReadCentralDirectory(buf []byte, r EOCDRecord) ([]CDFileHeader, error) {
	headers := make([]CDFileHeader, 0, r.CDCount)
	for fh, err := range CentralDirectory(buf, r) {
		if err != nil {
			return nil, err
		}

		headers = append(headers, fh)
	}

	return headers, nil
}

// Payload returns the size bytes of file data that immediately follow the given local file header.
//
// The returned slice borrows buf and has its capacity capped so appending to it never overwrites the archive.
// ErrTruncatedArchive is returned if the data would extend past the end of buf.
func Payload(buf []byte, fh LocalFileHeader, size uint64) ([]byte, error) {
	start, n := fh.DataOffset, int64(len(buf))
	if start < 0 || start > n || size > uint64(n-start) {
		return nil, &HeaderError{
			Record: payloadName,
			Offset: start,
			Err:    fmt.Errorf("%w: need %d bytes, buffer has %d", ErrTruncatedArchive, size, max(0, n-start)),
		}
	}

	end := start + int64(size)
	return buf[start:end:end], nil
}

// Archive is a ZIP archive whose EOCD record has been located and decoded.
//
// The archive never modifies the buffer it was opened with, and all headers and payloads it returns borrow from it.
type Archive struct {
	buf  []byte
	eocd EOCDRecord
	opts Options
}

// Open locates and decodes the EOCD record of the ZIP archive in buf.
//
// ErrUnsupportedArchive is returned if the EOCD uses ZIP64 markers or describes a multi-disk archive.
func Open(buf []byte, optFns ...func(*Options)) (*Archive, error) {
	opts := Options{MaxBytes: DefaultMaxBytes}
	for _, fn := range optFns {
		fn(&opts)
	}

	offset, err := findEOCD(buf, opts.MaxBytes)
	if err != nil {
		return nil, err
	}

	r, err := DecodeEOCD(buf, offset)
	if err != nil {
		return nil, err
	}

	switch {
	case r.isZip64():
		return nil, &HeaderError{Record: eocdRecord, Offset: offset, Err: fmt.Errorf("%w: ZIP64 is not supported", ErrUnsupportedArchive)}
	case r.isMultiDisk():
		return nil, &HeaderError{Record: eocdRecord, Offset: offset, Err: fmt.Errorf("%w: multi-disk archive (disk %d, CD disk %d, %d/%d records on disk) is not supported", ErrUnsupportedArchive, r.DiskNumber, r.CDDiskNumber, r.CDCountOnDisk, r.CDCount)}
	}

	return &Archive{buf: buf, eocd: r, opts: opts}, nil
}

// EOCD returns the decoded end of central directory record.
func (a *Archive) EOCD() EOCDRecord {
	return a.eocd
}

// Len returns the size of the archive in bytes.
func (a *Archive) Len() int {
	return len(a.buf)
}

// CentralDirectory returns an iterator over the archive's central directory file headers.
func (a *Archive) CentralDirectory() iter.Seq2[CDFileHeader, error] {
	return CentralDirectory(a.buf, a.eocd)
}

// Entries returns an iterator over the archive's entries in central directory order.
//
// Each entry's local file header is decoded at the offset stated by its own central directory file header, never from
// the position of a previous entry. The iterator stops at the first error after yielding it.
func (a *Archive) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for fh, err := range a.CentralDirectory() {
			if err != nil {
				yield(Entry{}, err)
				return
			}

			e, err := a.Entry(fh)
			if err != nil {
				yield(e, fmt.Errorf("read entry %q error: %w", fh.Name, err))
				return
			}

			if !yield(e, nil) {
				return
			}
		}
	}
}

// Entry resolves the local file header and payload of the given central directory file header.
//
// The payload size is the compressed size from the local file header unless the data descriptor flag (bit 3) is set,
// in which case the local sizes are deferred and the central directory's compressed size is used instead.
func (a *Archive) Entry(fh CDFileHeader) (e Entry, err error) {
	e.Header = fh

	switch {
	case fh.isZip64():
		return e, &HeaderError{Record: cdfhRecord, Offset: fh.HeaderOffset, Err: fmt.Errorf("%w: ZIP64 is not supported", ErrUnsupportedArchive)}
	case fh.Flags&flagEncrypted != 0:
		return e, &HeaderError{Record: cdfhRecord, Offset: fh.HeaderOffset, Err: fmt.Errorf("%w: encryption is not supported", ErrUnsupportedArchive)}
	case fh.Method != zip.Store && !a.opts.AllowCompressed:
		return e, &HeaderError{Record: cdfhRecord, Offset: fh.HeaderOffset, Err: fmt.Errorf("%w: %d", ErrUnsupportedCompressionMethod, fh.Method)}
	}

	if e.Local, err = DecodeLocalFileHeader(a.buf, fh.Offset); err != nil {
		return e, err
	}

	if e.Local.Method != zip.Store && !a.opts.AllowCompressed {
		return e, &HeaderError{Record: lfhRecord, Offset: e.Local.Offset, Err: fmt.Errorf("%w: %d", ErrUnsupportedCompressionMethod, e.Local.Method)}
	}

	size := e.Local.CompressedSize64
	if e.Local.Flags&flagDataDescriptor != 0 {
		size = fh.CompressedSize64
	}

	if e.Data, err = Payload(a.buf, e.Local, size); err != nil {
		return e, err
	}

	if fh.Method == zip.Store && !a.opts.SkipChecksum {
		if sum := crc32.ChecksumIEEE(e.Data); sum != fh.CRC32 {
			return e, &HeaderError{Record: payloadName, Offset: e.Local.DataOffset, Err: fmt.Errorf("%w: got CRC-32 0x%08x, expected 0x%08x", ErrChecksum, sum, fh.CRC32)}
		}
	}

	return e, nil
}

// Entry is one file or directory of an archive: its central directory file header, its local file header, and its
// raw file data.
type Entry struct {
	Header CDFileHeader
	Local  LocalFileHeader
	Data   []byte
}

// Name returns the name from the central directory file header.
func (e Entry) Name() string {
	return e.Header.Name
}

// IsDir returns true if the entry is a directory, i.e. its name ends with a forward slash.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Header.Name, "/")
}

// Mode returns the permission and mode bits from the central directory file header.
func (e Entry) Mode() fs.FileMode {
	return e.Header.Mode()
}
