package metadata

import (
	"bytes"
	stderrors "errors"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/godot-wasm-bindgen/errors"
)

// Parser consumes a prefix of its input and returns the decoded value and
// the unread rest.
type Parser[T any] func(in []byte) (T, []byte, error)

// Varint parses an unsigned LEB128 value.
func Varint() Parser[uint64] {
	return DecodeVarint
}

// Byte parses a single byte.
func Byte() Parser[byte] {
	return func(in []byte) (byte, []byte, error) {
		if len(in) == 0 {
			return 0, nil, errors.UnexpectedEOF(errors.PhaseMetadata, nil, 1, 0)
		}
		return in[0], in[1:], nil
	}
}

// Tag matches a literal byte sequence. A mismatch is reported with kind.
func Tag(lit []byte, kind errors.Kind) Parser[[]byte] {
	return func(in []byte) ([]byte, []byte, error) {
		if len(in) < len(lit) {
			return nil, nil, errors.UnexpectedEOF(errors.PhaseMetadata, nil, len(lit), len(in))
		}
		if !bytes.Equal(in[:len(lit)], lit) {
			return nil, nil, errors.New(errors.PhaseMetadata, kind).
				Value(in[:len(lit)]).
				Detail("expected %v, got %v", lit, in[:len(lit)]).
				Build()
		}
		return in[:len(lit)], in[len(lit):], nil
	}
}

// AllConsuming runs p and fails if any input is left over.
func AllConsuming[T any](p Parser[T]) Parser[T] {
	return func(in []byte) (T, []byte, error) {
		v, rest, err := p(in)
		if err != nil {
			return v, nil, err
		}
		if len(rest) != 0 {
			var zero T
			return zero, nil, errors.TrailingData(errors.PhaseMetadata, nil, len(rest))
		}
		return v, rest, nil
	}
}

// LengthPrefixed reads a length-prefixed block and runs p over exactly
// that block.
func LengthPrefixed[T any](p Parser[T]) Parser[T] {
	inner := AllConsuming(p)
	return func(in []byte) (T, []byte, error) {
		var zero T
		block, rest, err := ReadLengthPrefixed(in)
		if err != nil {
			return zero, nil, err
		}
		v, _, err := inner(block)
		if err != nil {
			return zero, nil, err
		}
		return v, rest, nil
	}
}

// Many applies p until the input is exhausted. Any failure aborts.
func Many[T any](p Parser[T]) Parser[[]T] {
	return ManyMin(1, p)
}

// ManyMin applies p while at least n bytes remain and returns the
// shorter tail unconsumed. Any failure aborts.
func ManyMin[T any](n int, p Parser[T]) Parser[[]T] {
	return func(in []byte) ([]T, []byte, error) {
		var out []T
		for i := 0; len(in) >= n; i++ {
			v, rest, err := Context(index(i), p)(in)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, v)
			in = rest
		}
		return out, in, nil
	}
}

// Count reads a varint n and then applies p n times.
func Count[T any](p Parser[T]) Parser[[]T] {
	return func(in []byte) ([]T, []byte, error) {
		n, rest, err := DecodeVarint(in)
		if err != nil {
			return nil, nil, err
		}
		// every item takes at least one byte
		if n > uint64(len(rest)) {
			return nil, nil, errors.UnexpectedEOF(errors.PhaseMetadata, nil, int(min(n, 1<<31)), len(rest))
		}
		out := make([]T, 0, n)
		for i := uint64(0); i < n; i++ {
			v, r, err := Context(index(int(i)), p)(rest)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, v)
			rest = r
		}
		return out, rest, nil
	}
}

// Name reads a length-prefixed UTF-8 string.
func Name() Parser[string] {
	return func(in []byte) (string, []byte, error) {
		raw, rest, err := ReadLengthPrefixed(in)
		if err != nil {
			return "", nil, err
		}
		if !utf8.Valid(raw) {
			return "", nil, errors.InvalidUTF8(errors.PhaseMetadata, nil, raw)
		}
		return string(raw), rest, nil
	}
}

// Context prefixes the path of any structured error returned by p.
func Context[T any](segment string, p Parser[T]) Parser[T] {
	return func(in []byte) (T, []byte, error) {
		v, rest, err := p(in)
		if err != nil {
			var e *errors.Error
			if stderrors.As(err, &e) {
				e.Path = append([]string{segment}, e.Path...)
			}
		}
		return v, rest, err
	}
}

func index(i int) string { return strconv.Itoa(i) }
