// Package wasm parses and encodes core WebAssembly binary modules.
//
// The decoder keeps function bodies, constant expressions and custom
// sections as raw bytes so that a module round-trips unchanged unless a
// caller edits it. Instruction-level work goes through DecodeInstructions
// and EncodeInstructions.
//
// Supported beyond the 1.0 MVP:
//   - reference types (funcref, externref, ref.null, ref.func, table ops)
//   - bulk memory and the data count section
//   - multi-memory memargs and memory64 limits
//   - tail calls, SIMD and atomics (decoded opaquely)
//
// # Parsing and encoding
//
//	m, err := wasm.ParseModule(data)
//	if err != nil {
//	    return err
//	}
//	out := m.Encode()
//
// # Index rewriting
//
// Remap rewrites function, global, table and memory references across a
// whole module or a single body:
//
//	rm := wasm.Remap{Func: func(i uint32) uint32 { return newIndex[i] }}
//	if err := rm.Module(m); err != nil {
//	    return err
//	}
//
// # Names
//
// ParseNames and Names.Encode handle the module and function subsections
// of the "name" custom section.
package wasm
