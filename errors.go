package rawzip

import (
	"errors"
	"fmt"
)

var (
	// ErrIO is matched by every *IOError, i.e. any failure to read the archive or to write its contents.
	ErrIO = errors.New("I/O error")

	// ErrUnsafeEntryPath is returned if an entry's name is absolute or would resolve outside the output directory.
	ErrUnsafeEntryPath = errors.New("unsafe entry path")
)

// IOError is returned when reading the archive or writing extracted files fails.
//
// IOError matches ErrIO with errors.Is, and also unwraps to the underlying cause so checks such as
// `errors.Is(err, fs.ErrNotExist)` keep working.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Op, e.Path, e.Err)
}
