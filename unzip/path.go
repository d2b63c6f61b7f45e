package unzip

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/nguyengg/rawzip"
)

// SafeJoin joins an entry's name to the output directory.
//
// Backslashes in name are treated as separators. rawzip.ErrUnsafeEntryPath is returned if name is empty, absolute,
// starts with a drive letter such as "C:/", or would resolve outside dir after cleaning (e.g. "../evil.txt" or "a/../../evil.txt").
func SafeJoin(dir, name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))

	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty name", rawzip.ErrUnsafeEntryPath)
	case strings.HasPrefix(clean, "/"), hasDriveLetter(clean):
		return "", fmt.Errorf("%w: %q is absolute", rawzip.ErrUnsafeEntryPath, name)
	case clean == "..", strings.HasPrefix(clean, "../"), !filepath.IsLocal(filepath.FromSlash(clean)):
		return "", fmt.Errorf("%w: %q is outside output directory", rawzip.ErrUnsafeEntryPath, name)
	}

	p := filepath.Join(dir, filepath.FromSlash(clean))
	if rel, err := filepath.Rel(dir, p); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside output directory", rawzip.ErrUnsafeEntryPath, name)
	}

	return p, nil
}

// hasDriveLetter returns true if the slash-separated name starts with a drive such as "C:" or "C:/".
//
// A colon elsewhere is a valid file name character outside Windows, e.g. "a:b.txt", and filepath.IsLocal already rejects
// such names on Windows.
func hasDriveLetter(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}

	if c := name[0] | 0x20; c < 'a' || c > 'z' {
		return false
	}

	return len(name) == 2 || name[2] == '/'
}
