// Package codegen builds instruction sequences for synthesized functions.
package codegen

import (
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// Block types accepted by Block, Loop and If.
const (
	BlockVoid = wasm.BlockTypeVoid
	BlockI32  = wasm.BlockTypeI32
	BlockI64  = wasm.BlockTypeI64
	BlockExt  = wasm.BlockTypeExt
)

// Natural alignment exponents for memargs.
const (
	Align16 uint32 = 1
	Align32 uint32 = 2
)

// Emitter accumulates instructions. All methods return the receiver so
// sequences can be chained. Call and RefFunc take whatever function
// identity the caller's module uses; the emitter does not interpret it.
type Emitter struct {
	instrs []wasm.Instruction
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{instrs: make([]wasm.Instruction, 0, 32)}
}

// Instrs returns the accumulated instructions.
func (e *Emitter) Instrs() []wasm.Instruction { return e.instrs }

// Copy returns an independent copy of the accumulated instructions.
func (e *Emitter) Copy() []wasm.Instruction {
	out := make([]wasm.Instruction, len(e.instrs))
	copy(out, e.instrs)
	return out
}

// Bytes encodes the accumulated instructions.
func (e *Emitter) Bytes() []byte { return wasm.EncodeInstructions(e.instrs) }

// Len returns the number of instructions.
func (e *Emitter) Len() int { return len(e.instrs) }

// Reset discards all instructions.
func (e *Emitter) Reset() { e.instrs = e.instrs[:0] }

func (e *Emitter) emit(op byte, imm interface{}) *Emitter {
	e.instrs = append(e.instrs, wasm.Instruction{Opcode: op, Imm: imm})
	return e
}

// Op emits an instruction without immediates, such as a numeric operator.
func (e *Emitter) Op(op byte) *Emitter { return e.emit(op, nil) }

// EmitInstrs appends already built instructions.
func (e *Emitter) EmitInstrs(instrs ...wasm.Instruction) *Emitter {
	e.instrs = append(e.instrs, instrs...)
	return e
}

// Control flow

func (e *Emitter) Block(bt int32) *Emitter { return e.emit(wasm.OpBlock, wasm.BlockImm{Type: bt}) }
func (e *Emitter) Loop(bt int32) *Emitter  { return e.emit(wasm.OpLoop, wasm.BlockImm{Type: bt}) }
func (e *Emitter) If(bt int32) *Emitter    { return e.emit(wasm.OpIf, wasm.BlockImm{Type: bt}) }
func (e *Emitter) Else() *Emitter          { return e.Op(wasm.OpElse) }
func (e *Emitter) End() *Emitter           { return e.Op(wasm.OpEnd) }
func (e *Emitter) Return() *Emitter        { return e.Op(wasm.OpReturn) }
func (e *Emitter) Unreachable() *Emitter   { return e.Op(wasm.OpUnreachable) }

func (e *Emitter) BrIf(label uint32) *Emitter {
	return e.emit(wasm.OpBrIf, wasm.BranchImm{LabelIdx: label})
}

func (e *Emitter) Call(fn uint32) *Emitter {
	return e.emit(wasm.OpCall, wasm.CallImm{FuncIdx: fn})
}

// Variables

func (e *Emitter) LocalGet(idx uint32) *Emitter {
	return e.emit(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: idx})
}

func (e *Emitter) LocalSet(idx uint32) *Emitter {
	return e.emit(wasm.OpLocalSet, wasm.LocalImm{LocalIdx: idx})
}

func (e *Emitter) LocalTee(idx uint32) *Emitter {
	return e.emit(wasm.OpLocalTee, wasm.LocalImm{LocalIdx: idx})
}

func (e *Emitter) GlobalGet(idx uint32) *Emitter {
	return e.emit(wasm.OpGlobalGet, wasm.GlobalImm{GlobalIdx: idx})
}

func (e *Emitter) GlobalSet(idx uint32) *Emitter {
	return e.emit(wasm.OpGlobalSet, wasm.GlobalImm{GlobalIdx: idx})
}

// Constants

func (e *Emitter) I32Const(v int32) *Emitter { return e.emit(wasm.OpI32Const, wasm.I32Imm{Value: v}) }

// Memory. Offsets are byte offsets; align is the log2 exponent.

func (e *Emitter) I32Load(mem, align uint32, offset uint64) *Emitter {
	return e.emit(wasm.OpI32Load, wasm.MemoryImm{MemIdx: mem, Align: align, Offset: offset})
}

func (e *Emitter) I32Store(mem, align uint32, offset uint64) *Emitter {
	return e.emit(wasm.OpI32Store, wasm.MemoryImm{MemIdx: mem, Align: align, Offset: offset})
}

func (e *Emitter) I32Load16U(mem, align uint32, offset uint64) *Emitter {
	return e.emit(wasm.OpI32Load16U, wasm.MemoryImm{MemIdx: mem, Align: align, Offset: offset})
}

func (e *Emitter) I32Store16(mem, align uint32, offset uint64) *Emitter {
	return e.emit(wasm.OpI32Store16, wasm.MemoryImm{MemIdx: mem, Align: align, Offset: offset})
}

// References and tables

func (e *Emitter) RefNullExtern() *Emitter {
	return e.emit(wasm.OpRefNull, wasm.RefNullImm{Type: wasm.ValExtern})
}

func (e *Emitter) RefIsNull() *Emitter { return e.Op(wasm.OpRefIsNull) }

func (e *Emitter) RefFunc(fn uint32) *Emitter {
	return e.emit(wasm.OpRefFunc, wasm.RefFuncImm{FuncIdx: fn})
}

func (e *Emitter) TableGet(table uint32) *Emitter {
	return e.emit(wasm.OpTableGet, wasm.TableImm{TableIdx: table})
}

func (e *Emitter) TableSet(table uint32) *Emitter {
	return e.emit(wasm.OpTableSet, wasm.TableImm{TableIdx: table})
}

func (e *Emitter) TableSize(table uint32) *Emitter {
	return e.emit(wasm.OpPrefixMisc, wasm.MiscImm{SubOpcode: wasm.MiscTableSize, Operands: []uint32{table}})
}

func (e *Emitter) TableGrow(table uint32) *Emitter {
	return e.emit(wasm.OpPrefixMisc, wasm.MiscImm{SubOpcode: wasm.MiscTableGrow, Operands: []uint32{table}})
}

// Numeric shorthands used by the adapters.

func (e *Emitter) I32Add() *Emitter      { return e.Op(wasm.OpI32Add) }
func (e *Emitter) I32Sub() *Emitter      { return e.Op(wasm.OpI32Sub) }
func (e *Emitter) I32Mul() *Emitter      { return e.Op(wasm.OpI32Mul) }
func (e *Emitter) I32And() *Emitter      { return e.Op(wasm.OpI32And) }
func (e *Emitter) I32Shl() *Emitter      { return e.Op(wasm.OpI32Shl) }
func (e *Emitter) I32Eqz() *Emitter      { return e.Op(wasm.OpI32Eqz) }
func (e *Emitter) I32Eq() *Emitter       { return e.Op(wasm.OpI32Eq) }
func (e *Emitter) I32LtU() *Emitter      { return e.Op(wasm.OpI32LtU) }
func (e *Emitter) I32GeU() *Emitter      { return e.Op(wasm.OpI32GeU) }
func (e *Emitter) I32Extend8S() *Emitter { return e.Op(wasm.OpI32Extend8S) }

func (e *Emitter) I32Extend16S() *Emitter { return e.Op(wasm.OpI32Extend16S) }
