package wasm

import (
	"fmt"

	"github.com/wippyai/godot-wasm-bindgen/wasm/internal/binary"
)

// Instruction is a decoded instruction. Imm holds one of the *Imm types
// below, or nil for instructions without immediates.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// BlockImm holds the block type for block, loop and if.
type BlockImm struct {
	Type int32 // negative: single-byte form, >=0: type index
}

// BranchImm holds the label index for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the callee for call and return_call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

type LocalImm struct {
	LocalIdx uint32
}

type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm is a memarg. MemIdx is encoded only when non-zero.
type MemoryImm struct {
	Offset uint64
	Align  uint32
	MemIdx uint32
}

// MemoryIdxImm holds the memory index for memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

type I32Imm struct {
	Value int32
}

type I64Imm struct {
	Value int64
}

type F32Imm struct {
	Value float32
}

type F64Imm struct {
	Value float64
}

// MiscImm holds a 0xFC sub-opcode and its index operands in encoding order.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// TableImm holds the table index for table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// RefNullImm holds the reference type of ref.null.
type RefNullImm struct {
	Type ValType
}

// RefFuncImm holds the function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds the result types of a typed select.
type SelectTypeImm struct {
	Types []ValType
}

// SIMDImm holds a 0xFD sub-opcode and whichever immediates it takes.
type SIMDImm struct {
	MemArg    *MemoryImm
	LaneIdx   *byte
	V128Bytes []byte
	SubOpcode uint32
}

// AtomicImm holds a 0xFE sub-opcode and its memarg (nil for atomic.fence).
type AtomicImm struct {
	MemArg    *MemoryImm
	SubOpcode uint32
}

// DecodeInstructions decodes a flat instruction sequence.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)
	for r.Len() > 0 {
		start := r.Position()
		op, _ := r.ReadByte()
		imm, err := decodeImmediate(r, op)
		if err != nil {
			return nil, fmt.Errorf("opcode 0x%02x at offset %d: %w", op, start, err)
		}
		instrs = append(instrs, Instruction{Opcode: op, Imm: imm})
	}
	return instrs, nil
}

func decodeImmediate(r *binary.Reader, op byte) (interface{}, error) {
	switch {
	case op >= opNumericFirst && op <= opNumericLast:
		return nil, nil
	case op >= OpI32Load && op <= OpI64Store32:
		return readMemArg(r)
	}

	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect, OpRefIsNull:
		return nil, nil

	case OpBlock, OpLoop, OpIf:
		bt, err := binary.ReadVarint(r, 33)
		if err != nil {
			return nil, err
		}
		return BlockImm{Type: int32(bt)}, nil

	case OpBr, OpBrIf:
		l, err := r.ReadU32()
		return BranchImm{LabelIdx: l}, err

	case OpBrTable:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if int(n) > r.Len() {
			return nil, fmt.Errorf("br_table: %d labels exceed remaining input", n)
		}
		labels := make([]uint32, n)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
		def, err := r.ReadU32()
		return BrTableImm{Labels: labels, Default: def}, err

	case OpCall, OpReturnCall:
		f, err := r.ReadU32()
		return CallImm{FuncIdx: f}, err

	case OpCallIndirect, OpReturnCallIndirect:
		typ, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		tbl, err := r.ReadU32()
		return CallIndirectImm{TypeIdx: typ, TableIdx: tbl}, err

	case OpSelectType:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if int(n) > r.Len() {
			return nil, fmt.Errorf("select: %d types exceed remaining input", n)
		}
		types := make([]ValType, n)
		for i := range types {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			types[i] = ValType(b)
		}
		return SelectTypeImm{Types: types}, nil

	case OpLocalGet, OpLocalSet, OpLocalTee:
		l, err := r.ReadU32()
		return LocalImm{LocalIdx: l}, err

	case OpGlobalGet, OpGlobalSet:
		g, err := r.ReadU32()
		return GlobalImm{GlobalIdx: g}, err

	case OpTableGet, OpTableSet:
		t, err := r.ReadU32()
		return TableImm{TableIdx: t}, err

	case OpMemorySize, OpMemoryGrow:
		m, err := r.ReadU32()
		return MemoryIdxImm{MemIdx: m}, err

	case OpI32Const:
		v, err := r.ReadS32()
		return I32Imm{Value: v}, err
	case OpI64Const:
		v, err := r.ReadS64()
		return I64Imm{Value: v}, err
	case OpF32Const:
		v, err := r.ReadF32()
		return F32Imm{Value: v}, err
	case OpF64Const:
		v, err := r.ReadF64()
		return F64Imm{Value: v}, err

	case OpRefNull:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return RefNullImm{Type: ValType(b)}, nil

	case OpRefFunc:
		f, err := r.ReadU32()
		return RefFuncImm{FuncIdx: f}, err

	case OpPrefixMisc:
		return decodeMisc(r)
	case OpPrefixSIMD:
		return decodeSIMD(r)
	case OpPrefixAtomic:
		return decodeAtomic(r)
	}
	return nil, fmt.Errorf("unsupported opcode")
}

// miscOperandCount returns how many index operands follow a 0xFC sub-opcode.
func miscOperandCount(sub uint32) (int, bool) {
	switch {
	case sub <= MiscI64TruncSatF64U:
		return 0, true
	case sub == MiscMemoryInit, sub == MiscMemoryCopy, sub == MiscTableInit, sub == MiscTableCopy:
		return 2, true
	case sub <= MiscTableFill:
		return 1, true
	}
	return 0, false
}

func decodeMisc(r *binary.Reader) (interface{}, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	n, ok := miscOperandCount(sub)
	if !ok {
		return nil, fmt.Errorf("unknown 0xFC sub-opcode %d", sub)
	}
	imm := MiscImm{SubOpcode: sub}
	if n > 0 {
		imm.Operands = make([]uint32, n)
		for i := range imm.Operands {
			if imm.Operands[i], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
	}
	return imm, nil
}

func decodeSIMD(r *binary.Reader) (interface{}, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	imm := SIMDImm{SubOpcode: sub}
	switch {
	case sub <= SimdV128Store, sub == SimdV128Load32Zero, sub == SimdV128Load64Zero:
		m, err := readMemArg(r)
		if err != nil {
			return nil, err
		}
		imm.MemArg = &m
	case sub == SimdV128Const, sub == SimdI8x16Shuffle:
		if imm.V128Bytes, err = r.ReadBytes(16); err != nil {
			return nil, err
		}
	case sub >= SimdExtractFirst && sub <= SimdReplaceLast:
		lane, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		imm.LaneIdx = &lane
	case sub >= SimdV128Load8Lane && sub <= SimdV128Store64Lane:
		m, err := readMemArg(r)
		if err != nil {
			return nil, err
		}
		lane, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		imm.MemArg = &m
		imm.LaneIdx = &lane
	}
	return imm, nil
}

func decodeAtomic(r *binary.Reader) (interface{}, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if sub == AtomicFence {
		if _, err := r.ReadByte(); err != nil {
			return nil, err
		}
		return AtomicImm{SubOpcode: sub}, nil
	}
	m, err := readMemArg(r)
	if err != nil {
		return nil, err
	}
	return AtomicImm{SubOpcode: sub, MemArg: &m}, nil
}

// memIdxFlag in the alignment field signals an explicit memory index.
const memIdxFlag = 0x40

func readMemArg(r *binary.Reader) (MemoryImm, error) {
	align, err := r.ReadU32()
	if err != nil {
		return MemoryImm{}, err
	}
	var m MemoryImm
	if align&memIdxFlag != 0 {
		align &^= memIdxFlag
		if m.MemIdx, err = r.ReadU32(); err != nil {
			return MemoryImm{}, err
		}
	}
	m.Align = align
	m.Offset, err = r.ReadU64()
	return m, err
}

func writeMemArg(w *binary.Writer, m MemoryImm) {
	if m.MemIdx != 0 {
		w.WriteU32(m.Align | memIdxFlag)
		w.WriteU32(m.MemIdx)
	} else {
		w.WriteU32(m.Align)
	}
	w.WriteU64(m.Offset)
}

// EncodeInstructions encodes instructions back to bytecode.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for _, in := range instrs {
		encodeInstruction(w, in)
	}
	return w.Bytes()
}

func encodeInstruction(w *binary.Writer, in Instruction) {
	w.Byte(in.Opcode)
	switch imm := in.Imm.(type) {
	case nil:
	case BlockImm:
		w.WriteS64(int64(imm.Type))
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case CallIndirectImm:
		w.WriteU32(imm.TypeIdx)
		w.WriteU32(imm.TableIdx)
	case SelectTypeImm:
		w.WriteU32(uint32(len(imm.Types)))
		for _, t := range imm.Types {
			w.Byte(byte(t))
		}
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		w.WriteU32(imm.GlobalIdx)
	case TableImm:
		w.WriteU32(imm.TableIdx)
	case MemoryImm:
		writeMemArg(w, imm)
	case MemoryIdxImm:
		w.WriteU32(imm.MemIdx)
	case I32Imm:
		w.WriteS32(imm.Value)
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteF32(imm.Value)
	case F64Imm:
		w.WriteF64(imm.Value)
	case RefNullImm:
		w.Byte(byte(imm.Type))
	case RefFuncImm:
		w.WriteU32(imm.FuncIdx)
	case MiscImm:
		w.WriteU32(imm.SubOpcode)
		for _, op := range imm.Operands {
			w.WriteU32(op)
		}
	case SIMDImm:
		w.WriteU32(imm.SubOpcode)
		if imm.MemArg != nil {
			writeMemArg(w, *imm.MemArg)
		}
		if imm.V128Bytes != nil {
			w.WriteBytes(imm.V128Bytes)
		}
		if imm.LaneIdx != nil {
			w.Byte(*imm.LaneIdx)
		}
	case AtomicImm:
		w.WriteU32(imm.SubOpcode)
		if imm.MemArg != nil {
			writeMemArg(w, *imm.MemArg)
		} else {
			w.Byte(0)
		}
	default:
		panic(fmt.Sprintf("wasm: unknown immediate %T for opcode 0x%02x", imm, in.Opcode))
	}
}
