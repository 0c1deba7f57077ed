// Package bindgen post-processes WebAssembly modules produced against the
// Godot guest API so that engine values can cross the module boundary as
// externref while guest code keeps working with plain i32 handles.
//
// A transformed module carries a small slot runtime: an externref table
// holding live host values, a 16-bit free list in a dedicated memory, and
// the functions godot_wasm.alloc, godot_wasm.free and godot_wasm.get that
// manage them. Known host imports are rewritten to adapters over that
// runtime, and exports and imports declared in the
// __godot_wasm_bindgen_data custom section are wrapped so their
// host-visible signatures use externref.
//
// # Usage
//
//	res, err := bindgen.Transform(ctx, input, bindgen.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	os.WriteFile("out.wasm", res.Output, 0o644)
//
// Transform is a single synchronous pass and holds no state between calls.
// Every failure is an *errors.Error carrying the phase and kind of the
// problem.
package bindgen
