package loader

import (
	"github.com/valyala/bytebufferpool"
)

// Buffer owns the bytes of one archive.
//
// Buffers returned by Load, LoadFile, and LoadS3 come from a shared pool; call Release once the archive and every
// slice borrowed from Bytes are no longer needed.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
	b  []byte
}

// FromBytes wraps caller-owned memory as a Buffer. Release is a no-op for such buffers.
func FromBytes(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Bytes returns the archive's content.
//
// The returned slice must be treated as read-only and must not be used after Release.
func (b *Buffer) Bytes() []byte {
	if b.bb != nil {
		return b.bb.B
	}

	return b.b
}

// Len returns the size of the archive in bytes.
func (b *Buffer) Len() int {
	return len(b.Bytes())
}

// Release returns the underlying memory to the pool. It is safe to call Release multiple times.
func (b *Buffer) Release() {
	if b.bb != nil {
		bytebufferpool.Put(b.bb)
		b.bb = nil
	}

	b.b = nil
}
