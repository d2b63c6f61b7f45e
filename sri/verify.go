package sri

import (
	"crypto/subtle"
	"strings"
)

// Verify returns true if data matches at least one of the given digests.
//
// [Using Subresource Integrity] allows several digests to be given as match candidates, possibly using different hash
// functions. Each hash function is computed at most once. Digests are compared in constant time and may omit the
// base64 padding.
//
// An error is returned only if none of the digests uses a recognised hash function.
//
// [Using Subresource Integrity]: https://developer.mozilla.org/en-US/docs/Web/Security/Subresource_Integrity#using_subresource_integrity
func Verify(data []byte, digests ...string) (bool, error) {
	var (
		computed = make(map[string]string)
		firstErr error
	)

	for _, d := range digests {
		h, err := parse(d)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		actual, ok := computed[h.Name()]
		if !ok {
			_, _ = h.Write(data)
			actual = h.SumToString(nil)
			computed[h.Name()] = actual
		}

		if subtle.ConstantTimeCompare([]byte(actual), []byte(strings.TrimRight(d, "="))) == 1 {
			return true, nil
		}
	}

	if len(computed) == 0 && firstErr != nil {
		return false, firstErr
	}

	return false, nil
}
