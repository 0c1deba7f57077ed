package engine

import "github.com/wippyai/godot-wasm-bindgen/wasm"

// locals hands out local indices after a function's parameters and
// renders them as compressed local declarations.
type locals struct {
	types []wasm.ValType
	base  uint32
}

func newLocals(params int) *locals {
	return &locals{base: uint32(params)}
}

func (l *locals) add(vt wasm.ValType) uint32 {
	l.types = append(l.types, vt)
	return l.base + uint32(len(l.types)-1)
}

func (l *locals) entries() []wasm.LocalEntry {
	var out []wasm.LocalEntry
	for _, vt := range l.types {
		if n := len(out); n > 0 && out[n-1].ValType == vt {
			out[n-1].Count++
			continue
		}
		out = append(out, wasm.LocalEntry{Count: 1, ValType: vt})
	}
	return out
}
