// Package sri computes and verifies [Subresource Integrity] digests of extracted ZIP entries.
//
// [Subresource Integrity]: https://developer.mozilla.org/en-US/docs/Web/Security/Subresource_Integrity
package sri

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strings"
	"sync"
)

// ErrUnknownHash is returned when a hash function name or digest prefix is not recognised.
var ErrUnknownHash = errors.New("unknown hash function")

// Hash extends hash.Hash with SumToString to generate the base64-encoded cryptographic hash that can be used to verify
// [Subresource Integrity].
//
// [Subresource Integrity]: https://developer.mozilla.org/en-US/docs/Web/Security/Subresource_Integrity
type Hash interface {
	hash.Hash

	// Name returns the name of the hash function.
	Name() string

	// SumToString calls [hash.Hash.Sum] passing b and encodes the returned slice as a string prefixed with the hash
	// name, for example "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU".
	SumToString(b []byte) string
}

// New returns a new Hash for the given name.
//
// sha1, sha256, sha384, and sha512 are supported out of the box. Call Register to add more.
func New(name string) (Hash, error) {
	switch name {
	case "sha1":
		return NewSha1(), nil
	case "sha256":
		return NewSha256(), nil
	case "sha384":
		return NewSha384(), nil
	case "sha512":
		return NewSha512(), nil
	}

	if fn, ok := customHashers.Load(name); ok {
		return &hasher{Hash: fn.(func() hash.Hash)(), name: name}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownHash, name)
}

// NewSha1 returns a new Hash using sha1 as the hash function.
func NewSha1() Hash {
	return &hasher{Hash: sha1.New(), name: "sha1"}
}

// NewSha256 returns a new Hash using sha256 as the hash function.
func NewSha256() Hash {
	return &hasher{Hash: sha256.New(), name: "sha256"}
}

// NewSha384 returns a new Hash using sha384 as the hash function.
func NewSha384() Hash {
	return &hasher{Hash: sha512.New384(), name: "sha384"}
}

// NewSha512 returns a new Hash using sha512 as the hash function.
func NewSha512() Hash {
	return &hasher{Hash: sha512.New(), name: "sha512"}
}

// Digest returns the digest of data using the named hash function.
func Digest(name string, data []byte) (string, error) {
	h, err := New(name)
	if err != nil {
		return "", err
	}

	_, _ = h.Write(data)
	return h.SumToString(nil), nil
}

// parse returns the Hash for the given digest's prefix.
func parse(digest string) (Hash, error) {
	name, _, ok := strings.Cut(digest, "-")
	if !ok {
		return nil, fmt.Errorf("%w: digest %q has no hash prefix", ErrUnknownHash, digest)
	}

	return New(name)
}

var customHashers sync.Map

// Register can be used to register additional hash functions not supported out of the box.
func Register(name string, hashNewFn func() hash.Hash) {
	customHashers.Store(name, hashNewFn)
}

// hasher implements Hash.
type hasher struct {
	hash.Hash
	name string
}

func (h *hasher) Name() string {
	return h.name
}

func (h *hasher) SumToString(b []byte) string {
	return h.name + "-" + base64.RawStdEncoding.EncodeToString(h.Sum(b))
}

var _ Hash = (*hasher)(nil)
