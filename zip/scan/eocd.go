package scan

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// eocdLen is the size of the fixed-size part of the EOCD record.
	eocdLen = 22

	// maxCommentLen is the largest comment the EOCD can declare.
	maxCommentLen = 0xffff
)

// EOCDRecord models the end of central directory record of a ZIP file.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD).
type EOCDRecord struct {
	// Offset is the absolute offset of the EOCD signature.
	Offset int64
	// DiskNumber is number of this disk (or 0xffff for ZIP64).
	DiskNumber uint16
	// CDDiskNumber is disk where central directory starts (or 0xffff for ZIP64).
	CDDiskNumber uint16
	// CDCountOnDisk is the number of central directory records on this disk (or 0xffff for ZIP64).
	CDCountOnDisk uint16
	// CDCount is the total number of central directory records (or 0xffff for ZIP64).
	CDCount uint16
	// CDSize is size of central directory (bytes) (or 0xffffffff for ZIP64).
	CDSize uint32
	// CDOffset is offset of start of central directory, relative to start of archive (or 0xffffffff for ZIP64).
	CDOffset uint32
	// CommentLength is the declared length of Comment.
	CommentLength uint16
	// Comment is the comment section of the EOCD.
	Comment string
}

// FindEOCD searches buf backwards for the EOCD signature and returns its offset.
//
// The search starts at len(buf)-22 and walks back at most [Options.MaxBytes] bytes from the end of buf, which by
// default covers the largest possible comment. A candidate is only accepted if the comment length it declares fits
// inside buf; this skips signature bytes that happen to appear inside the comment itself. The candidate closest to the
// end of buf wins.
//
// ErrStructureNotFound is returned if buf is shorter than 22 bytes or no candidate was accepted.
func FindEOCD(buf []byte, optFns ...func(*Options)) (int64, error) {
	opts := &Options{MaxBytes: DefaultMaxBytes}
	for _, fn := range optFns {
		fn(opts)
	}

	return findEOCD(buf, opts.MaxBytes)
}

func findEOCD(buf []byte, maxBytes int64) (int64, error) {
	n := int64(len(buf))
	if n < eocdLen {
		return -1, fmt.Errorf("%w: need at least %d bytes, got %d", ErrStructureNotFound, eocdLen, n)
	}

	var lo int64
	if maxBytes > 0 && n > maxBytes {
		lo = n - maxBytes
	}

	// hi is exclusive so buf[lo:hi] can only contain signatures that start at or before n-22.
	for hi := n - eocdLen + 4; hi-lo >= 4; {
		i := bytes.LastIndex(buf[lo:hi], eocdSigBytes)
		if i == -1 {
			break
		}

		offset := lo + int64(i)
		if commentLen := int64(binary.LittleEndian.Uint16(buf[offset+20:])); offset+eocdLen+commentLen <= n {
			return offset, nil
		}

		hi = offset + 3
	}

	return -1, ErrStructureNotFound
}

// DecodeEOCD decodes the EOCD record at the given offset.
//
// If buf does not have room for the 22-byte fixed-size part at offset, the returned error matches both
// ErrMalformedHeader and ErrTruncatedArchive. A bad signature returns ErrMalformedHeader, and a comment that runs past
// the end of buf returns ErrTruncatedArchive.
func DecodeEOCD(buf []byte, offset int64) (r EOCDRecord, err error) {
	if offset < 0 || offset > int64(len(buf)) || int64(len(buf))-offset < eocdLen {
		return r, &HeaderError{
			Record: eocdRecord,
			Offset: offset,
			Err:    fmt.Errorf("%w: %w: need %d bytes, buffer has %d", ErrMalformedHeader, ErrTruncatedArchive, eocdLen, int64(len(buf))-max(0, offset)),
		}
	}

	c := newCursor(buf, offset)
	if sig := c.uint32(); sig != eocdSig {
		return r, &HeaderError{Record: eocdRecord, Offset: offset, Err: mismatchedSignature(sig, eocdSig)}
	}

	r.Offset = offset
	r.DiskNumber = c.uint16()
	r.CDDiskNumber = c.uint16()
	r.CDCountOnDisk = c.uint16()
	r.CDCount = c.uint16()
	r.CDSize = c.uint32()
	r.CDOffset = c.uint32()
	r.CommentLength = c.uint16()
	comment := c.bytes(int(r.CommentLength))
	if c.err != nil {
		return r, &HeaderError{Record: eocdRecord, Offset: offset, Err: fmt.Errorf("read comment error: %w", c.err)}
	}

	r.Comment = string(comment)
	return r, nil
}

// isZip64 returns true if any field of the EOCD carries the ZIP64 marker.
func (r EOCDRecord) isZip64() bool {
	return r.DiskNumber == 0xffff ||
		r.CDDiskNumber == 0xffff ||
		r.CDCountOnDisk == 0xffff ||
		r.CDCount == 0xffff ||
		r.CDSize == 0xffffffff ||
		r.CDOffset == 0xffffffff
}

// isMultiDisk returns true if the EOCD describes a split or spanned archive.
func (r EOCDRecord) isMultiDisk() bool {
	return r.DiskNumber != 0 || r.CDDiskNumber != 0 || r.CDCountOnDisk != r.CDCount
}
