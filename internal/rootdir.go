package internal

import (
	"regexp"
	"strings"
)

var sep = regexp.MustCompile(`[\\/]`)

// RootDir is the common top-level directory of all entries in a ZIP archive, including the trailing `/`.
type RootDir string

// Trim removes the root directory from the given entry name.
//
// Backslashes are treated as separators. The root directory entry itself trims to an empty string.
func (r RootDir) Trim(name string) string {
	if r == "" {
		return name
	}

	return strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), string(r))
}

// FindZipRootDir returns the common root directory of the given file names in a ZIP archive.
//
// Given these three names (ZIP file paths must always be relative and using `/` as separator):
//
//	test/a.txt
//	test/path/b.txt
//	test/another/path/c.txt
//
// The common root directory of those files is `test/`. The returned value is empty if the given files have no common
// root directory.
func FindZipRootDir(names []string) (rootDir RootDir) {
	fn := NewZipRootDirFinder()

	var ok bool
	for _, name := range names {
		rootDir, ok = fn(name)
		if !ok {
			break
		}
	}

	return
}

// NewZipRootDirFinder returns a function that can be passed the file names to compute the common root.
//
// NewZipRootDirFinder is a functional variant of FindZipRootDir. It returns the current root dir and a boolean
// indicating whether there is a common root so far. As soon as the returned boolean value is false, the search can stop
// since there is no common root and subsequent calls will keep returning `"", false`.
func NewZipRootDirFinder() func(string) (rootDir RootDir, hasRoot bool) {
	noRoot, root := false, ""

	return func(name string) (RootDir, bool) {
		if noRoot {
			return "", false
		}

		paths := sep.Split(name, 2)
		if len(paths) == 1 || paths[0] == "" || paths[0] == "." || paths[0] == ".." {
			// this is a file at top level (or an odd path) so there is no root for sure.
			noRoot = true
			return "", false
		}

		switch root {
		case paths[0]:
		case "":
			root = paths[0]
		default:
			noRoot = true
			return "", false
		}

		return RootDir(root + "/"), true
	}
}
