package metadata

import (
	"github.com/wippyai/godot-wasm-bindgen/errors"
)

// MaxVarintLen is the longest canonical encoding of a uint64.
const MaxVarintLen = 10

// Sentinel errors, matchable with errors.Is against any error returned by
// this package.
var (
	ErrOverflow      = errors.New(errors.PhaseMetadata, errors.KindOverflow).Build()
	ErrUnexpectedEOF = errors.New(errors.PhaseMetadata, errors.KindUnexpectedEOF).Build()
)

// DecodeVarint reads an unsigned LEB128 value from the front of b and
// returns it along with the unread remainder.
func DecodeVarint(b []byte) (uint64, []byte, error) {
	var v uint64
	for i := 0; i < len(b); i++ {
		c := b[i]
		// the tenth byte holds bit 63 only and cannot continue
		if i == MaxVarintLen-1 && c > 1 {
			return 0, nil, errors.Overflow(errors.PhaseMetadata, nil, 64)
		}
		v |= uint64(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			return v, b[i+1:], nil
		}
	}
	return 0, nil, errors.UnexpectedEOF(errors.PhaseMetadata, nil, len(b)+1, len(b))
}

// AppendVarint appends the canonical encoding of v to dst.
func AppendVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// EncodeVarint returns the canonical encoding of v.
func EncodeVarint(v uint64) []byte {
	return AppendVarint(make([]byte, 0, VarintLen(v)), v)
}

// VarintLen returns the number of bytes EncodeVarint(v) produces.
func VarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
