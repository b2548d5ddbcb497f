// Package canon produces deterministic JSON encodings and digests of
// loosely typed values.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/goccy/go-json"
)

// Marshal encodes v as JSON with object keys sorted at every level.
func Marshal(v any) ([]byte, error) {
	return appendValue(nil, v)
}

// Sum returns the hex SHA-256 digest of the canonical encoding of v.
func Sum(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func appendValue(dst []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(dst, "null"...), nil
	case map[string]any:
		return appendMap(dst, val)
	case []any:
		return appendSlice(dst, val)
	}

	// Structs and typed containers are normalised through a JSON round
	// trip so their maps get sorted too.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || (b[0] != '{' && b[0] != '[') {
		return append(dst, b...), nil
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return appendValue(dst, generic)
}

func appendMap(dst []byte, m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	dst = append(dst, '{')
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		dst = append(dst, kb...)
		dst = append(dst, ':')
		if dst, err = appendValue(dst, m[k]); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func appendSlice(dst []byte, s []any) ([]byte, error) {
	dst = append(dst, '[')
	for i, v := range s {
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		if dst, err = appendValue(dst, v); err != nil {
			return nil, err
		}
	}
	return append(dst, ']'), nil
}
