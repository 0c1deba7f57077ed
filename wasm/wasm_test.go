package wasm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func ptr[T any](v T) *T { return &v }

func sampleModule() *Module {
	return &Module{
		Types: []FuncType{
			{Params: []ValType{ValI32}, Results: []ValType{ValI32}},
			{},
		},
		Imports: []Import{
			{Module: "env", Name: "f", Desc: ImportDesc{Kind: KindFunc, TypeIdx: 0}},
			{Module: "env", Name: "g", Desc: ImportDesc{Kind: KindGlobal, Global: &GlobalType{ValType: ValI32}}},
		},
		Funcs:    []uint32{0, 1},
		Tables:   []TableType{{ElemType: ValFuncRef, Limits: Limits{Min: 1}}},
		Memories: []MemoryType{{Limits: Limits{Min: 1, Max: ptr[uint64](2)}}},
		Globals: []Global{
			{Type: GlobalType{ValType: ValI32, Mutable: true}, Init: []byte{OpI32Const, 0x05, OpEnd}},
		},
		Exports: []Export{{Name: "run", Kind: KindFunc, Idx: 1}},
		Elements: []Element{
			{Flags: 0, Offset: []byte{OpI32Const, 0x00, OpEnd}, FuncIdxs: []uint32{1}, Type: ValFuncRef},
			{Flags: 3, FuncIdxs: []uint32{2}, Type: ValFuncRef},
		},
		Code: []FuncBody{
			{Code: []byte{OpLocalGet, 0x00, OpCall, 0x00, OpEnd}},
			{Locals: []LocalEntry{{Count: 2, ValType: ValExtern}}, Code: []byte{OpRefFunc, 0x01, OpDrop, OpEnd}},
		},
		Data: []DataSegment{
			{Offset: []byte{OpI32Const, 0x00, OpEnd}, Init: []byte("hi")},
		},
		CustomSections: []CustomSection{{Name: "producers", Data: []byte{0x00}}},
	}
}

func TestModuleRoundTrip(t *testing.T) {
	m := sampleModule()
	parsed, err := ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if diff := cmp.Diff(m, parsed, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(parsed.Encode(), m.Encode()) {
		t.Error("re-encoding is not stable")
	}
}

func TestParseModuleHeader(t *testing.T) {
	if _, err := ParseModule([]byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0, 0, 0}); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("bad magic: got %v", err)
	}
	if _, err := ParseModule([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0, 0, 0}); !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("bad version: got %v", err)
	}
	if _, err := ParseModule([]byte{0x00, 0x61}); err == nil {
		t.Error("truncated header should fail")
	}
}

func TestParseModuleSectionOrder(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0, 0, 0}
	data = append(data, SectionFunction, 0x01, 0x00)
	data = append(data, SectionType, 0x01, 0x00)
	if _, err := ParseModule(data); err == nil {
		t.Fatal("expected out of order error")
	}
}

func TestParseModuleDataCountOrder(t *testing.T) {
	m := &Module{
		Types:     []FuncType{{}},
		Funcs:     []uint32{0},
		Code:      []FuncBody{{Code: []byte{OpEnd}}},
		DataCount: ptr[uint32](0),
	}
	parsed, err := ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if parsed.DataCount == nil || *parsed.DataCount != 0 {
		t.Errorf("DataCount = %v", parsed.DataCount)
	}
}

func TestInstructionsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"block loop br", []byte{OpBlock, 0x40, OpLoop, 0x7F, OpBr, 0x01, OpEnd, OpEnd, OpEnd}},
		{"br_table", []byte{OpBrTable, 0x02, 0x00, 0x01, 0x02, OpEnd}},
		{"multi-memory load", []byte{OpI32Load, 0x42, 0x01, 0x04, OpEnd}},
		{"table.grow", []byte{OpPrefixMisc, 0x0F, 0x00, OpEnd}},
		{"memory.copy", []byte{OpPrefixMisc, 0x0A, 0x00, 0x00, OpEnd}},
		{"sat trunc", []byte{OpPrefixMisc, 0x00, OpEnd}},
		{"typed select", []byte{OpSelectType, 0x01, byte(ValExtern), OpEnd}},
		{"ref.null extern", []byte{OpRefNull, byte(ValExtern), OpRefIsNull, OpEnd}},
		{"v128.const", append(append([]byte{OpPrefixSIMD, 0x0C}, make([]byte, 16)...), OpEnd)},
		{"lane load", []byte{OpPrefixSIMD, 0x54, 0x00, 0x00, 0x03, OpEnd}},
		{"atomic fence", []byte{OpPrefixAtomic, 0x03, 0x00, OpEnd}},
		{"consts", []byte{OpI32Const, 0x7F, OpI64Const, 0x80, 0x01, OpF32Const, 0, 0, 0x80, 0x3F, OpEnd}},
		{"numeric", []byte{OpI32Add, OpI32Extend8S, OpI64Extend32S, OpEnd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instrs, err := DecodeInstructions(tt.code)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := EncodeInstructions(instrs); !bytes.Equal(got, tt.code) {
				t.Errorf("encode = % x, want % x", got, tt.code)
			}
		})
	}
}

func TestDecodeInstructionsMemArg(t *testing.T) {
	instrs, err := DecodeInstructions([]byte{OpI32Load, 0x42, 0x01, 0x04})
	if err != nil {
		t.Fatal(err)
	}
	want := MemoryImm{Align: 2, MemIdx: 1, Offset: 4}
	if diff := cmp.Diff(want, instrs[0].Imm); diff != "" {
		t.Errorf("memarg (-want +got):\n%s", diff)
	}
}

func TestDecodeInstructionsErrors(t *testing.T) {
	for name, code := range map[string][]byte{
		"truncated call":  {OpCall},
		"unknown opcode":  {0xC5},
		"unknown misc op": {OpPrefixMisc, 0x20},
		"short v128":      {OpPrefixSIMD, 0x0C, 0x00},
	} {
		if _, err := DecodeInstructions(code); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestRemapModule(t *testing.T) {
	m := sampleModule()
	shift := func(i uint32) uint32 { return i + 1 }
	if err := (Remap{Func: shift}).Module(m); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(m.Code[0].Code, []byte{OpLocalGet, 0x00, OpCall, 0x01, OpEnd}) {
		t.Errorf("call not remapped: % x", m.Code[0].Code)
	}
	if !bytes.Equal(m.Code[1].Code, []byte{OpRefFunc, 0x02, OpDrop, OpEnd}) {
		t.Errorf("ref.func not remapped: % x", m.Code[1].Code)
	}
	if m.Exports[0].Idx != 2 {
		t.Errorf("export idx = %d, want 2", m.Exports[0].Idx)
	}
	if m.Elements[0].FuncIdxs[0] != 2 || m.Elements[1].FuncIdxs[0] != 3 {
		t.Errorf("element members = %v %v", m.Elements[0].FuncIdxs, m.Elements[1].FuncIdxs)
	}
	// local.get is not a function reference
	if m.Code[0].Code[1] != 0x00 {
		t.Error("local index was rewritten")
	}
}

func TestRemapWalk(t *testing.T) {
	code := []byte{
		OpGlobalGet, 0x03,
		OpTableGet, 0x01,
		OpPrefixMisc, 0x0C, 0x07, 0x02, // table.init elem 7 table 2
		OpPrefixMisc, 0x08, 0x05, 0x01, // memory.init data 5 mem 1
		OpEnd,
	}
	var globals, tables, memories []uint32
	rec := func(dst *[]uint32) func(uint32) uint32 {
		return func(i uint32) uint32 { *dst = append(*dst, i); return i }
	}
	rm := Remap{Global: rec(&globals), Table: rec(&tables), Memory: rec(&memories)}
	out, err := rm.Code(code)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, code) {
		t.Errorf("identity walk changed code: % x", out)
	}
	if diff := cmp.Diff([]uint32{3}, globals); diff != "" {
		t.Errorf("globals: %s", diff)
	}
	if diff := cmp.Diff([]uint32{1, 2}, tables); diff != "" {
		t.Errorf("tables: %s", diff)
	}
	if diff := cmp.Diff([]uint32{1}, memories); diff != "" {
		t.Errorf("memories: %s", diff)
	}
}

func TestNamesRoundTrip(t *testing.T) {
	n := &Names{Module: "game", Functions: map[uint32]string{3: "c", 0: "a", 1: "b"}}
	got, err := ParseNames(n.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(n, got); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestParseNamesSkipsLocals(t *testing.T) {
	data := []byte{
		0x02, 0x03, 0x01, 0x00, 0x00, // local names: one function with no locals
		0x01, 0x04, 0x01, 0x00, 0x01, 'f',
	}
	n, err := ParseNames(data)
	if err != nil {
		t.Fatal(err)
	}
	if n.Functions[0] != "f" || len(n.Functions) != 1 {
		t.Errorf("functions = %v", n.Functions)
	}
}

func TestModuleHelpers(t *testing.T) {
	m := sampleModule()
	if m.NumImportedFuncs() != 1 || m.NumImportedGlobals() != 1 || m.NumFuncs() != 3 {
		t.Errorf("counts: imported funcs %d, globals %d, funcs %d",
			m.NumImportedFuncs(), m.NumImportedGlobals(), m.NumFuncs())
	}
	if ft := m.GetFuncType(2); ft == nil || len(ft.Params) != 0 {
		t.Errorf("GetFuncType(2) = %v", ft)
	}
	if m.GetFuncType(9) != nil {
		t.Error("GetFuncType out of range should be nil")
	}
	if idx := m.AddType(FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}}); idx != 0 {
		t.Errorf("AddType reused = %d, want 0", idx)
	}
	if idx := m.AddType(FuncType{Params: []ValType{ValExtern}}); idx != 2 {
		t.Errorf("AddType new = %d, want 2", idx)
	}

	m.SetCustomSection("extra", []byte{1})
	m.SetCustomSection("extra", []byte{2})
	if cs, ok := m.CustomSection("extra"); !ok || cs.Data[0] != 2 {
		t.Error("SetCustomSection should replace")
	}
	if n := m.RemoveCustomSections("extra"); n != 1 {
		t.Errorf("removed %d sections", n)
	}
}
