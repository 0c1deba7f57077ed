package wasm

import (
	"github.com/wippyai/godot-wasm-bindgen/wasm/internal/binary"
)

// AppendULEB128 appends v in unsigned LEB128 form.
func AppendULEB128(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// AppendSLEB128 appends v in signed LEB128 form.
func AppendSLEB128(dst []byte, v int64) []byte {
	return binary.AppendVarint(dst, v)
}
