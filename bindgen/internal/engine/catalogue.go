package engine

import (
	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/codegen"
	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/ir"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// arg is how one adapter parameter or result crosses the boundary.
type arg byte

const (
	argI32  arg = iota // passed through
	argSlot            // i32 slot in the guest, externref at the host
	argFunc            // funcref at the host, supplied by the adapter
)

func (a arg) hostType() wasm.ValType {
	switch a {
	case argSlot:
		return wasm.ValExtern
	case argFunc:
		return wasm.ValFuncRef
	}
	return wasm.ValI32
}

// target selects the namespace that receives the host import.
type target byte

const (
	targetNone    target = iota // adapter implemented locally
	targetPrimary               // primary namespace
	targetObject                // object namespace
)

// entry describes one catalogue import.
type entry struct {
	build   builder
	name    string
	slot    wasm.FuncType // type the guest imports
	host    []arg         // host import parameters
	results []arg         // host import results
	target  target
}

// builder emits an adapter body. host is the new import, or zero for
// targetNone entries.
type builder func(g *adapterGen, host ir.FuncID) ([]wasm.Instruction, []wasm.LocalEntry, error)

func slotType(params, results int) wasm.FuncType {
	ft := wasm.FuncType{}
	for i := 0; i < params; i++ {
		ft.Params = append(ft.Params, wasm.ValI32)
	}
	for i := 0; i < results; i++ {
		ft.Results = append(ft.Results, wasm.ValI32)
	}
	return ft
}

// hostType returns the signature of the replacement import.
func (e *entry) hostType() wasm.FuncType {
	ft := wasm.FuncType{}
	for _, a := range e.host {
		ft.Params = append(ft.Params, a.hostType())
	}
	for _, a := range e.results {
		ft.Results = append(ft.Results, a.hostType())
	}
	return ft
}

// forward builds an entry whose adapter forwards every guest parameter,
// resolving slots with get, and allocates a slot for a host value result.
func forward(t target, name string, results []arg, params ...arg) entry {
	return entry{
		name:    name,
		target:  t,
		slot:    slotType(len(params), len(results)),
		host:    params,
		results: results,
		build:   buildForward(params, results),
	}
}

func buildForward(params, results []arg) builder {
	return func(g *adapterGen, host ir.FuncID) ([]wasm.Instruction, []wasm.LocalEntry, error) {
		e := codegen.NewEmitter()
		for i, a := range params {
			e.LocalGet(uint32(i))
			if a == argSlot {
				e.Call(uint32(g.rt.Get))
			}
		}
		e.Call(uint32(host))
		for _, a := range results {
			if a == argSlot {
				e.Call(uint32(g.rt.Alloc))
			}
		}
		return e.End().Instrs(), nil, nil
	}
}

var (
	toI32  = []arg{argI32}
	toSlot = []arg{argSlot}
)

var typeNames = []string{
	"bool", "int", "float", "string", "vector2", "rect2", "vector3",
	"transform2d", "plane", "quat", "aabb", "basis", "transform", "color",
	"nodepath", "rid", "object", "dictionary", "array", "byte_array",
	"int_array", "float_array", "string_array", "vector2_array",
	"vector3_array", "color_array",
}

var primitiveNames = []string{
	"bool", "int", "float", "vector2", "vector3", "rect2", "transform2d",
	"plane", "quat", "aabb", "basis", "transform", "color",
}

var poolArrayNames = []string{
	"byte_array", "int_array", "float_array", "vector2_array",
	"vector3_array", "color_array",
}

// catalogue lists every import the rewriter knows, in processing order.
func catalogue() []entry {
	var out []entry

	// handle duplication and release are implemented by the runtime alone
	out = append(out,
		entry{name: "duplicate", slot: slotType(1, 1), build: func(g *adapterGen, _ ir.FuncID) ([]wasm.Instruction, []wasm.LocalEntry, error) {
			e := codegen.NewEmitter().LocalGet(0).Call(uint32(g.rt.Get)).Call(uint32(g.rt.Alloc)).End()
			return e.Instrs(), nil, nil
		}},
		entry{name: "delete", slot: slotType(1, 0), build: func(g *adapterGen, _ ir.FuncID) ([]wasm.Instruction, []wasm.LocalEntry, error) {
			e := codegen.NewEmitter().LocalGet(0).Call(uint32(g.rt.Free)).End()
			return e.Instrs(), nil, nil
		}},
	)

	for _, t := range typeNames {
		out = append(out, forward(targetPrimary, t+".is", toI32, argSlot))
	}
	for _, t := range primitiveNames {
		out = append(out,
			forward(targetPrimary, t+".read", toI32, argSlot, argI32),
			forward(targetPrimary, t+".write", toSlot, argI32),
		)
	}

	out = append(out,
		forward(targetObject, "string.len", toI32, argSlot),
		forward(targetObject, "string.read", toI32, argSlot, argI32),
		forward(targetObject, "string.write", toSlot, argI32, argI32),
	)

	out = append(out,
		forward(targetObject, "array.new", toSlot),
		forward(targetObject, "array.len", toI32, argSlot),
		forward(targetObject, "array.get", toSlot, argSlot, argI32),
		forward(targetObject, "array.set", nil, argSlot, argI32, argSlot),
		forward(targetObject, "array.count", toI32, argSlot, argSlot),
		forward(targetObject, "array.contains", toI32, argSlot, argSlot),
		forward(targetObject, "array.find", toI32, argSlot, argSlot, argI32),
		forward(targetObject, "array.rfind", toI32, argSlot, argSlot, argI32),
		forward(targetObject, "array.find_last", toI32, argSlot, argSlot),
		forward(targetObject, "array.invert", nil, argSlot),
		forward(targetObject, "array.sort", nil, argSlot),
		forward(targetObject, "array.clear", nil, argSlot),
		forward(targetObject, "array.duplicate", toSlot, argSlot),
		forward(targetObject, "array.remove", nil, argSlot, argI32),
		forward(targetObject, "array.erase", nil, argSlot, argSlot),
		forward(targetObject, "array.resize", nil, argSlot, argI32),
		forward(targetObject, "array.push", nil, argSlot, argSlot),
		forward(targetObject, "array.push_front", nil, argSlot, argSlot),
		forward(targetObject, "array.pop", toSlot, argSlot),
		forward(targetObject, "array.pop_front", toSlot, argSlot),
		forward(targetObject, "array.insert", nil, argSlot, argI32, argSlot),
	)

	for _, t := range poolArrayNames {
		out = append(out,
			forward(targetObject, t+".len", toI32, argSlot),
			forward(targetObject, t+".read", toI32, argSlot, argI32),
			forward(targetObject, t+".write", toSlot, argI32),
		)
	}

	out = append(out,
		forward(targetObject, "string_array.len", toI32, argSlot),
		forward(targetObject, "string_array.get", toSlot, argSlot, argI32),
		entry{
			name:    "string_array.get_many",
			target:  targetObject,
			slot:    slotType(4, 1),
			host:    []arg{argSlot, argI32, argFunc},
			results: toI32,
			build:   buildGetMany,
		},
		entry{
			name:    "string_array.build",
			target:  targetObject,
			slot:    slotType(2, 1),
			host:    []arg{argFunc},
			results: toSlot,
			build:   buildStringArray,
		},
	)
	return out
}

// buildGetMany: (array, index, start, end) -> continue flag. The host
// calls the helper once per element; the helper stores each element's
// slot at the cursor in the guest's memory until the cursor reaches end.
func buildGetMany(g *adapterGen, host ir.FuncID) ([]wasm.Instruction, []wasm.LocalEntry, error) {
	if err := g.requireMemory("string_array.get_many"); err != nil {
		return nil, nil, err
	}
	rt := g.rt

	const ref = 0
	hl := newLocals(1)
	cur := hl.add(wasm.ValI32)
	h := codegen.NewEmitter()
	h.GlobalGet(rt.Index).LocalTee(cur).
		LocalGet(ref).Call(uint32(rt.Alloc)).
		I32Store(0, codegen.Align32, 0)
	h.LocalGet(cur).I32Const(4).I32Add().LocalTee(cur).
		GlobalSet(rt.Index)
	h.LocalGet(cur).GlobalGet(rt.Limit).I32LtU().
		End()
	helper := g.helper("string_array.get_many",
		wasm.FuncType{Params: []wasm.ValType{wasm.ValExtern}, Results: []wasm.ValType{wasm.ValI32}},
		hl.entries(), h.Instrs())

	e := codegen.NewEmitter()
	e.LocalGet(0).Call(uint32(rt.Get)).
		LocalGet(1).
		RefFunc(uint32(helper))
	e.LocalGet(2).GlobalSet(rt.Index).
		LocalGet(3).GlobalSet(rt.Limit)
	e.Call(uint32(host)).End()
	return e.Instrs(), nil, nil
}

// buildStringArray: (start, end) -> slot. The host calls the helper with
// increasing n and stops once it reports no more elements.
func buildStringArray(g *adapterGen, host ir.FuncID) ([]wasm.Instruction, []wasm.LocalEntry, error) {
	if err := g.requireMemory("string_array.build"); err != nil {
		return nil, nil, err
	}
	rt := g.rt

	const n = 0
	hl := newLocals(1)
	addr := hl.add(wasm.ValI32)
	h := codegen.NewEmitter()
	h.GlobalGet(rt.Index).
		LocalGet(n).I32Const(4).I32Mul().
		I32Add().LocalTee(addr).
		GlobalGet(rt.Limit).I32GeU().
		If(codegen.BlockVoid).
		RefNullExtern().I32Const(0).Return().
		End()
	h.LocalGet(addr).I32Load(0, codegen.Align32, 0).
		Call(uint32(rt.Get)).
		I32Const(1).
		End()
	helper := g.helper("string_array.build",
		wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValExtern, wasm.ValI32}},
		hl.entries(), h.Instrs())

	e := codegen.NewEmitter()
	e.RefFunc(uint32(helper))
	e.LocalGet(0).GlobalSet(rt.Index).
		LocalGet(1).GlobalSet(rt.Limit)
	e.Call(uint32(host)).Call(uint32(rt.Alloc)).End()
	return e.Instrs(), nil, nil
}
