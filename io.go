package rawzip

import (
	"context"
	"fmt"
	"io"
)

// CopyBufferWithContext is a variant of io.CopyBuffer that is cancellable via context and returns the number of
// bytes written.
//
// If buf is nil, a new buffer of size 32*1024 is created. src's [io.WriterTo] and dst's [io.ReaderFrom] are ignored
// because those interfaces do not support context.
//
// The context is checked before the first read and after every write, so a very large buffer delays cancellation.
func CopyBufferWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (written int64, err error) {
	if buf == nil {
		buf = make([]byte, 32*1024)
	}

	for {
		if err = ctx.Err(); err != nil {
			return written, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)

			switch {
			case werr != nil:
				return written, werr
			case nw < nr:
				return written, io.ErrShortWrite
			case nw != nr:
				return written, fmt.Errorf("invalid write: expected to write %d bytes, wrote %d bytes instead", nr, nw)
			}
		}

		switch {
		case rerr == io.EOF:
			return written, nil
		case rerr != nil:
			return written, rerr
		}
	}
}
