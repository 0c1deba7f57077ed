package codegen

import (
	"bytes"
	"testing"

	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

func TestEmitter_NewAndReset(t *testing.T) {
	e := NewEmitter()
	if e.Len() != 0 {
		t.Errorf("new emitter should be empty, got len %d", e.Len())
	}
	e.I32Const(42).I32Const(100)
	if e.Len() != 2 {
		t.Errorf("len = %d, want 2", e.Len())
	}
	e.Reset()
	if e.Len() != 0 {
		t.Errorf("emitter should be empty after reset, got len %d", e.Len())
	}
}

func TestEmitter_CopyIsIndependent(t *testing.T) {
	e := NewEmitter().I32Const(1)
	snapshot := e.Copy()
	e.End()
	if len(snapshot) != 1 {
		t.Errorf("copy changed: len %d", len(snapshot))
	}
}

func TestEmitter_Encoding(t *testing.T) {
	tests := []struct {
		emit func(e *Emitter)
		want []byte
		name string
	}{
		{
			name: "block void",
			emit: func(e *Emitter) { e.Block(BlockVoid).End() },
			want: []byte{wasm.OpBlock, 0x40, wasm.OpEnd},
		},
		{
			name: "if i32 else",
			emit: func(e *Emitter) { e.If(BlockI32).I32Const(1).Else().I32Const(0).End() },
			want: []byte{wasm.OpIf, 0x7F, wasm.OpI32Const, 0x01, wasm.OpElse, wasm.OpI32Const, 0x00, wasm.OpEnd},
		},
		{
			name: "loop br_if",
			emit: func(e *Emitter) { e.Loop(BlockVoid).LocalGet(0).BrIf(0).End() },
			want: []byte{wasm.OpLoop, 0x40, wasm.OpLocalGet, 0x00, wasm.OpBrIf, 0x00, wasm.OpEnd},
		},
		{
			name: "table grow and size",
			emit: func(e *Emitter) { e.RefNullExtern().I32Const(16).TableGrow(2).TableSize(2) },
			want: []byte{
				wasm.OpRefNull, 0x6F, wasm.OpI32Const, 0x10,
				wasm.OpPrefixMisc, 0x0F, 0x02,
				wasm.OpPrefixMisc, 0x10, 0x02,
			},
		},
		{
			name: "cell store in second memory",
			emit: func(e *Emitter) { e.LocalGet(0).I32Const(-1).I32Store16(1, Align16, 0) },
			want: []byte{wasm.OpLocalGet, 0x00, wasm.OpI32Const, 0x7F, wasm.OpI32Store16, 0x41, 0x01, 0x00},
		},
		{
			name: "narrowing",
			emit: func(e *Emitter) { e.I32Const(255).I32And().I32Extend8S().I32Extend16S() },
			want: []byte{wasm.OpI32Const, 0xFF, 0x01, wasm.OpI32And, wasm.OpI32Extend8S, wasm.OpI32Extend16S},
		},
		{
			name: "refs",
			emit: func(e *Emitter) { e.RefFunc(3).RefIsNull().RefNullExtern().RefIsNull() },
			want: []byte{wasm.OpRefFunc, 0x03, wasm.OpRefIsNull, wasm.OpRefNull, 0x6F, wasm.OpRefIsNull},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter()
			tt.emit(e)
			if got := e.Bytes(); !bytes.Equal(got, tt.want) {
				t.Errorf("bytes = % x, want % x", got, tt.want)
			}
			instrs, err := wasm.DecodeInstructions(e.Bytes())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(instrs) != e.Len() {
				t.Errorf("decoded %d instructions, emitted %d", len(instrs), e.Len())
			}
		})
	}
}

func TestEmitter_CallCarriesIdentity(t *testing.T) {
	e := NewEmitter().Call(7)
	imm, ok := e.Instrs()[0].Imm.(wasm.CallImm)
	if !ok || imm.FuncIdx != 7 {
		t.Errorf("call immediate = %#v", e.Instrs()[0].Imm)
	}
}
