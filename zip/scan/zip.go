package scan

import (
	"archive/zip"
	"encoding/binary"
	"time"
)

const (
	lfhSig  = 0x04034b50
	cdfhSig = 0x02014b50
	eocdSig = 0x06054b50

	// lfhLen is the size of the fixed-size part of a local file header.
	lfhLen = 30
	// cdfhLen is the size of the fixed-size part of a central directory file header.
	cdfhLen = 46

	flagEncrypted      = 0x1
	flagDataDescriptor = 0x8
)

var (
	eocdSigBytes = putUint32(eocdSig)
)

func putUint32(v uint32) (b []byte) {
	b = make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// LocalFileHeader is a file header parsed from the local file headers of a ZIP file.
//
// Only the fields that exist in the local file header are populated in the embedded zip.FileHeader.
type LocalFileHeader struct {
	zip.FileHeader

	// Offset is the absolute offset of the local file header signature.
	Offset int64
	// DataOffset is the absolute offset of the first byte of file data, immediately after the name and extra fields.
	DataOffset int64
}

// DecodeLocalFileHeader decodes the local file header at the given offset, including its name and extra fields.
//
// A bad signature returns ErrMalformedHeader; reading past the end of buf returns ErrTruncatedArchive. Both are
// wrapped in a *HeaderError.
func DecodeLocalFileHeader(buf []byte, offset int64) (fh LocalFileHeader, err error) {
	c := newCursor(buf, offset)

	sig := c.uint32()
	if c.err == nil && sig != lfhSig {
		return fh, &HeaderError{Record: lfhRecord, Offset: offset, Err: mismatchedSignature(sig, lfhSig)}
	}

	fh.Offset = offset
	fh.ReaderVersion = c.uint16()
	fh.Flags = c.uint16()
	fh.Method = c.uint16()
	fh.ModifiedTime = c.uint16()
	fh.ModifiedDate = c.uint16()
	fh.CRC32 = c.uint32()
	fh.CompressedSize = c.uint32()
	fh.UncompressedSize = c.uint32()
	n, m := c.uint16(), c.uint16()
	name := c.bytes(int(n))
	fh.Extra = c.bytes(int(m))
	if c.err != nil {
		return fh, &HeaderError{Record: lfhRecord, Offset: offset, Err: c.err}
	}

	fh.Name = string(name)
	fh.CompressedSize64 = uint64(fh.CompressedSize)
	fh.UncompressedSize64 = uint64(fh.UncompressedSize)
	fh.Modified = msDosTimeToTime(fh.ModifiedDate, fh.ModifiedTime)
	fh.DataOffset = c.pos
	return fh, nil
}

// CDFileHeader is a file header parsed from the central directory file headers of a ZIP file.
type CDFileHeader struct {
	zip.FileHeader

	// DiskNumber is the disk number where the file starts.
	DiskNumber uint16
	// InternalAttrs are the internal file attributes.
	InternalAttrs uint16
	// Offset is the absolute offset of the file's local file header.
	Offset int64
	// HeaderOffset is the absolute offset of this central directory file header.
	HeaderOffset int64
}

// decodeCDFileHeader decodes the central directory file header at the given offset.
//
// Returns the offset of the next header, which is offset + 46 + the lengths of the name, extra, and comment fields.
func decodeCDFileHeader(buf []byte, offset int64) (fh CDFileHeader, next int64, err error) {
	c := newCursor(buf, offset)

	sig := c.uint32()
	if c.err == nil && sig != cdfhSig {
		return fh, offset, &HeaderError{Record: cdfhRecord, Offset: offset, Err: mismatchedSignature(sig, cdfhSig)}
	}

	fh.HeaderOffset = offset
	fh.CreatorVersion = c.uint16()
	fh.ReaderVersion = c.uint16()
	fh.Flags = c.uint16()
	fh.Method = c.uint16()
	fh.ModifiedTime = c.uint16()
	fh.ModifiedDate = c.uint16()
	fh.CRC32 = c.uint32()
	fh.CompressedSize = c.uint32()
	fh.UncompressedSize = c.uint32()
	n, m, k := c.uint16(), c.uint16(), c.uint16()
	fh.DiskNumber = c.uint16()
	fh.InternalAttrs = c.uint16()
	fh.ExternalAttrs = c.uint32()
	fh.Offset = int64(c.uint32())
	name := c.bytes(int(n))
	fh.Extra = c.bytes(int(m))
	comment := c.bytes(int(k))
	if c.err != nil {
		return fh, offset, &HeaderError{Record: cdfhRecord, Offset: offset, Err: c.err}
	}

	fh.Name, fh.Comment = string(name), string(comment)
	fh.CompressedSize64 = uint64(fh.CompressedSize)
	fh.UncompressedSize64 = uint64(fh.UncompressedSize)
	fh.Modified = msDosTimeToTime(fh.ModifiedDate, fh.ModifiedTime)

	return fh, c.pos, nil
}

// isZip64 returns true if any field of the header carries the ZIP64 marker.
func (fh *CDFileHeader) isZip64() bool {
	return fh.CompressedSize == 0xffffffff || fh.UncompressedSize == 0xffffffff || fh.Offset == 0xffffffff
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
//
// taken from https://go.dev/src/archive/zip/struct.go.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}
