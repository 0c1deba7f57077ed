// Package metadata encodes and decodes the custom sections that describe a
// module's host-value boundary.
//
// The __godot_wasm_bindgen_data section is a sequence of records:
//
//	record  = version[4] varint(len) body
//	body    = varint(64) name args               ; export
//	        | varint(0)  name(module) name args  ; import
//	args    = varint(n) argtype*n varint(m) argtype*m
//	argtype = 0x01 (u8) .. 0x0B (godot value)
//
// The target_features section is varint(n) followed by n entries of a sign
// byte ('+' or '-') and a name.
//
// Decoding is built from the small Parser combinators in parser.go. Every
// decoder consumes its input completely; leftover bytes are an error.
package metadata
