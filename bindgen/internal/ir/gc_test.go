package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// sweepModule:
//
//	0 env.f (i32)->i32     live, called by helper
//	1 env.dead ()          dead
//	2 main ()              exported
//	3 helper (i32)->i32    called by main
//	4 dead ()              only in declarative segments
func sweepModule() *wasm.Module {
	i32 := []byte{wasm.OpI32Const, 0x00, wasm.OpEnd}
	return &wasm.Module{
		Types: []wasm.FuncType{typeVoid, typeI32},
		Imports: []wasm.Import{
			{Module: "env", Name: "f", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 1}},
			{Module: "env", Name: "dead", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
			{Module: "env", Name: "g", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &wasm.GlobalType{ValType: wasm.ValI32}}},
		},
		Funcs: []uint32{0, 1, 0},
		Tables: []wasm.TableType{
			{ElemType: wasm.ValExtern},
			{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 1}},
		},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Globals: []wasm.Global{
			{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: i32},
			{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: i32},
		},
		Exports: []wasm.Export{{Name: "main", Kind: wasm.KindFunc, Idx: 2}},
		Elements: []wasm.Element{
			{Flags: 3, FuncIdxs: []uint32{4}, Type: wasm.ValFuncRef},
			{Flags: 2, TableIdx: 1, Offset: i32, FuncIdxs: []uint32{2}, Type: wasm.ValFuncRef},
			{Flags: 3, FuncIdxs: []uint32{3, 4}, Type: wasm.ValFuncRef},
		},
		Code: []wasm.FuncBody{
			{Code: []byte{
				wasm.OpRefFunc, 0x03, wasm.OpDrop,
				wasm.OpI32Const, 0x01, wasm.OpCall, 0x03, wasm.OpDrop,
				wasm.OpEnd,
			}},
			{Code: []byte{
				wasm.OpGlobalGet, 0x02, wasm.OpDrop,
				wasm.OpLocalGet, 0x00, wasm.OpCall, 0x00,
				wasm.OpEnd,
			}},
			{Code: []byte{wasm.OpCall, 0x01, wasm.OpRefFunc, 0x04, wasm.OpDrop, wasm.OpEnd}},
		},
		Data: []wasm.DataSegment{{Offset: i32, Init: []byte("x")}},
	}
}

func TestSweep(t *testing.T) {
	m := lift(t, sweepModule())
	stats, err := m.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	want := SweepStats{Funcs: 1, Imports: 1, Globals: 1, Tables: 1, Elements: 1}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
	if !stats.Removed() {
		t.Error("Removed() = false")
	}

	out := lower(t, m)
	if len(out.Imports) != 2 || out.Imports[0].Name != "f" || out.Imports[1].Name != "g" {
		t.Errorf("imports = %+v", out.Imports)
	}
	if len(out.Funcs) != 2 || len(out.Tables) != 1 || len(out.Memories) != 1 || len(out.Globals) != 1 {
		t.Errorf("funcs %d tables %d memories %d globals %d",
			len(out.Funcs), len(out.Tables), len(out.Memories), len(out.Globals))
	}
	if out.Tables[0].ElemType != wasm.ValFuncRef {
		t.Error("wrong table kept")
	}

	// f 0, main 1, helper 2
	if len(out.Elements) != 2 {
		t.Fatalf("elements = %+v", out.Elements)
	}
	if out.Elements[0].TableIdx != 0 || out.Elements[0].FuncIdxs[0] != 1 {
		t.Errorf("active element = %+v", out.Elements[0])
	}
	if diff := cmp.Diff([]uint32{2}, out.Elements[1].FuncIdxs); diff != "" {
		t.Errorf("declarative members (-want +got):\n%s", diff)
	}

	helper, err := wasm.DecodeInstructions(out.Code[1].Code)
	if err != nil {
		t.Fatal(err)
	}
	if imm := helper[0].Imm.(wasm.GlobalImm); imm.GlobalIdx != 1 {
		t.Errorf("helper reads global %d, want 1", imm.GlobalIdx)
	}
}

func TestSweepFollowsGlobalInitializers(t *testing.T) {
	w := sweepModule()
	w.Exports = append(w.Exports, wasm.Export{Name: "g", Kind: wasm.KindGlobal, Idx: 1})
	w.Globals[0] = wasm.Global{
		Type: wasm.GlobalType{ValType: wasm.ValFuncRef},
		Init: []byte{wasm.OpRefFunc, 0x04, wasm.OpEnd},
	}
	m := lift(t, w)
	stats, err := m.Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Func(4); !ok {
		t.Error("function referenced from an exported global was removed")
	}
	if _, ok := m.FindImport("env", "dead"); !ok {
		t.Error("import called by a live function was removed")
	}
	if stats.Globals != 0 || stats.Elements != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSweepKeepsEverythingLive(t *testing.T) {
	m := lift(t, testModule())
	m.Wasm.Exports = append(m.Wasm.Exports, wasm.Export{Name: "unused", Kind: wasm.KindFunc, Idx: 3})
	stats, err := m.Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Removed() {
		t.Errorf("stats = %+v", stats)
	}
	if m.Len() != 4 {
		t.Errorf("len = %d", m.Len())
	}
}
