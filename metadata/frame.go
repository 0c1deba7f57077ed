package metadata

import (
	"github.com/wippyai/godot-wasm-bindgen/errors"
)

// AppendLengthPrefixed appends varint(len(payload)) followed by payload.
func AppendLengthPrefixed(dst, payload []byte) []byte {
	dst = AppendVarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// ReadLengthPrefixed splits a varint-length-prefixed block off the front
// of b. The returned payload aliases b.
func ReadLengthPrefixed(b []byte) (payload, rest []byte, err error) {
	n, rest, err := DecodeVarint(b)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(rest)) {
		return nil, nil, errors.UnexpectedEOF(errors.PhaseMetadata, nil, int(min(n, 1<<31)), len(rest))
	}
	return rest[:n], rest[n:], nil
}

// appendFramed encodes a block with fill and prefixes it with its length.
func appendFramed(dst []byte, fill func([]byte) []byte) []byte {
	return AppendLengthPrefixed(dst, fill(nil))
}
