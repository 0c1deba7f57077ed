package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/codegen"
	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/ir"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// Runtime scaffold function names.
const (
	AllocName = "godot_wasm.alloc"
	FreeName  = "godot_wasm.free"
	GetName   = "godot_wasm.get"
)

const (
	pageSize  = 65536
	cellSize  = 2
	cellInUse = 0xFFFF
)

// Runtime records where the slot table runtime lives inside a module.
type Runtime struct {
	Table    uint32 // externref slot table
	Memory   uint32 // free-list cells, one u16 per slot
	Head     uint32 // free-list head
	Index    uint32 // scratch cursor for bulk adapters
	Limit    uint32 // scratch bound for bulk adapters
	Alloc    ir.FuncID
	Free     ir.FuncID
	Get      ir.FuncID
	Declared int // declarative element segment for ref.func targets

	// HasMainMemory reports whether the input defined or imported a
	// memory. Memory 0 is then the guest's own memory.
	HasMainMemory bool
}

// Declare adds a function to the declarative element segment so that
// ref.func may name it.
func (rt *Runtime) Declare(m *ir.Module, id ir.FuncID) {
	seg := &m.Wasm.Elements[rt.Declared]
	seg.FuncIdxs = append(seg.FuncIdxs, uint32(id))
}

func cellPages(limit uint32) uint64 {
	return (uint64(limit)*cellSize + pageSize - 1) / pageSize
}

func i32Init(v int32) []byte {
	return codegen.NewEmitter().I32Const(v).End().Bytes()
}

// InstallRuntime adds the slot table, its cell memory, the bookkeeping
// globals, the declarative element segment and the alloc, free and get
// functions.
func InstallRuntime(m *ir.Module, cfg Config) (*Runtime, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{HasMainMemory: m.NumMemories() > 0}

	maxSlots := uint64(cfg.TableLimit)
	rt.Table = m.AddTable(wasm.TableType{
		ElemType: wasm.ValExtern,
		Limits:   wasm.Limits{Min: 0, Max: &maxSlots},
	})
	pages := cellPages(cfg.TableLimit)
	rt.Memory = m.AddMemory(wasm.MemoryType{Limits: wasm.Limits{Min: pages, Max: &pages}})

	mutI32 := wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}
	rt.Head = m.AddGlobal(mutI32, i32Init(0))
	rt.Index = m.AddGlobal(mutI32, i32Init(0))
	rt.Limit = m.AddGlobal(mutI32, i32Init(0))

	rt.Declared = m.AddElement(wasm.Element{Flags: 3, Type: wasm.ValFuncRef})

	externToI32 := wasm.FuncType{Params: []wasm.ValType{wasm.ValExtern}, Results: []wasm.ValType{wasm.ValI32}}
	i32ToNone := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}
	i32ToExtern := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValExtern}}

	alloc, allocLocals := rt.allocBody(cfg.GrowChunk)
	rt.Alloc = m.AddFunc(AllocName, externToI32, allocLocals, alloc)
	free, freeLocals := rt.freeBody()
	rt.Free = m.AddFunc(FreeName, i32ToNone, freeLocals, free)
	rt.Get = m.AddFunc(GetName, i32ToExtern, nil, rt.getBody())

	Logger().Debug("installed slot runtime",
		zap.Uint32("table", rt.Table),
		zap.Uint32("memory", rt.Memory),
		zap.Uint32("limit", cfg.TableLimit),
		zap.Uint64("pages", pages))
	return rt, nil
}

// allocBody: (ref externref) -> slot.
func (rt *Runtime) allocBody(chunk uint32) ([]wasm.Instruction, []wasm.LocalEntry) {
	const ref = 0
	l := newLocals(1)
	i := l.add(wasm.ValI32)
	k := l.add(wasm.ValI32)
	end := l.add(wasm.ValI32)

	e := codegen.NewEmitter()
	e.LocalGet(ref).RefIsNull().
		If(codegen.BlockVoid).I32Const(0).Return().End()

	e.GlobalGet(rt.Head).LocalTee(i).
		TableSize(rt.Table).I32GeU().
		If(codegen.BlockVoid)
	// grow by one chunk and thread the new cells onto the free list
	e.RefNullExtern().I32Const(int32(chunk)).TableGrow(rt.Table).
		LocalTee(k).I32Const(-1).I32Eq().
		If(codegen.BlockVoid).Unreachable().End()
	e.LocalGet(k).I32Const(int32(chunk)).I32Add().LocalSet(end)
	e.Loop(codegen.BlockVoid).
		LocalGet(k).I32Const(1).I32Shl().
		LocalGet(k).I32Const(1).I32Add().
		I32Store16(rt.Memory, codegen.Align16, 0).
		LocalGet(k).I32Const(1).I32Add().LocalTee(k).
		LocalGet(end).I32LtU().
		BrIf(0).
		End()
	e.End()

	e.LocalGet(i).I32Const(1).I32Shl().
		I32Load16U(rt.Memory, codegen.Align16, 0).
		GlobalSet(rt.Head)
	e.LocalGet(i).LocalGet(ref).TableSet(rt.Table)
	e.LocalGet(i).I32Const(1).I32Shl().
		I32Const(cellInUse).
		I32Store16(rt.Memory, codegen.Align16, 0)
	e.LocalGet(i).I32Const(1).I32Add().
		End()
	return e.Instrs(), l.entries()
}

// freeBody: (slot i32).
func (rt *Runtime) freeBody() ([]wasm.Instruction, []wasm.LocalEntry) {
	const slot = 0
	l := newLocals(1)
	i := l.add(wasm.ValI32)

	e := codegen.NewEmitter()
	e.LocalGet(slot).I32Eqz().
		If(codegen.BlockVoid).Return().End()
	e.LocalGet(slot).I32Const(1).I32Sub().LocalTee(i).
		RefNullExtern().TableSet(rt.Table)
	e.LocalGet(i).I32Const(1).I32Shl().
		GlobalGet(rt.Head).
		I32Store16(rt.Memory, codegen.Align16, 0)
	e.LocalGet(i).GlobalSet(rt.Head).
		End()
	return e.Instrs(), l.entries()
}

// getBody: (slot i32) -> externref.
func (rt *Runtime) getBody() []wasm.Instruction {
	const slot = 0
	e := codegen.NewEmitter()
	e.LocalGet(slot).I32Eqz().
		If(codegen.BlockExt).
		RefNullExtern().
		Else().
		LocalGet(slot).I32Const(1).I32Sub().TableGet(rt.Table).
		End()
	e.End()
	return e.Instrs()
}
