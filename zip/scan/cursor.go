package scan

import (
	"encoding/binary"
	"fmt"
)

// cursor reads little-endian fields from buf starting at pos.
//
// Every read is bounds-checked. The first failure is kept in err and turns all subsequent reads into no-ops returning
// zero values, so a decoder can read a whole record and check err once at the end.
type cursor struct {
	buf []byte
	pos int64
	err error
}

func newCursor(buf []byte, offset int64) *cursor {
	c := &cursor{buf: buf, pos: offset}
	if offset < 0 || offset > int64(len(buf)) {
		c.err = fmt.Errorf("%w: offset %d is outside buffer of %d bytes", ErrTruncatedArchive, offset, len(buf))
	}

	return c
}

// next returns the next n bytes and advances the cursor past them.
//
// The returned slice borrows buf and has its capacity capped at n.
func (c *cursor) next(n int) []byte {
	if c.err != nil {
		return nil
	}

	if n < 0 || int64(len(c.buf))-c.pos < int64(n) {
		c.err = fmt.Errorf("%w: need %d bytes at offset %d, buffer has %d", ErrTruncatedArchive, n, c.pos, len(c.buf))
		return nil
	}

	i, j := c.pos, c.pos+int64(n)
	c.pos = j
	return c.buf[i:j:j]
}

func (c *cursor) uint16() uint16 {
	if b := c.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}

	return 0
}

func (c *cursor) uint32() uint32 {
	if b := c.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}

	return 0
}

func (c *cursor) bytes(n int) []byte {
	return c.next(n)
}

// skip advances the cursor by n bytes without returning them.
func (c *cursor) skip(n int) {
	c.next(n)
}
