package wasm

// Remap rewrites index immediates. A nil field leaves that index space
// untouched. Elem covers element segment indices in table.init and
// elem.drop. Setting fields that record their argument and return it
// unchanged turns a remap into a reference walk.
type Remap struct {
	Func   func(uint32) uint32
	Global func(uint32) uint32
	Table  func(uint32) uint32
	Memory func(uint32) uint32
	Elem   func(uint32) uint32
}

func apply(f func(uint32) uint32, idx uint32) uint32 {
	if f == nil {
		return idx
	}
	return f(idx)
}

// Instructions rewrites the immediates of instrs in place.
func (rm Remap) Instructions(instrs []Instruction) {
	for i := range instrs {
		instrs[i].Imm = rm.immediate(instrs[i].Imm)
	}
}

func (rm Remap) immediate(imm interface{}) interface{} {
	switch v := imm.(type) {
	case CallImm:
		v.FuncIdx = apply(rm.Func, v.FuncIdx)
		return v
	case RefFuncImm:
		v.FuncIdx = apply(rm.Func, v.FuncIdx)
		return v
	case GlobalImm:
		v.GlobalIdx = apply(rm.Global, v.GlobalIdx)
		return v
	case CallIndirectImm:
		v.TableIdx = apply(rm.Table, v.TableIdx)
		return v
	case TableImm:
		v.TableIdx = apply(rm.Table, v.TableIdx)
		return v
	case MemoryImm:
		v.MemIdx = apply(rm.Memory, v.MemIdx)
		return v
	case MemoryIdxImm:
		v.MemIdx = apply(rm.Memory, v.MemIdx)
		return v
	case SIMDImm:
		if v.MemArg != nil {
			m := *v.MemArg
			m.MemIdx = apply(rm.Memory, m.MemIdx)
			v.MemArg = &m
		}
		return v
	case AtomicImm:
		if v.MemArg != nil {
			m := *v.MemArg
			m.MemIdx = apply(rm.Memory, m.MemIdx)
			v.MemArg = &m
		}
		return v
	case MiscImm:
		return rm.misc(v)
	}
	return imm
}

func (rm Remap) misc(v MiscImm) MiscImm {
	ops := append([]uint32(nil), v.Operands...)
	switch v.SubOpcode {
	case MiscMemoryInit: // dataidx, memidx
		ops[1] = apply(rm.Memory, ops[1])
	case MiscMemoryCopy: // dst, src
		ops[0] = apply(rm.Memory, ops[0])
		ops[1] = apply(rm.Memory, ops[1])
	case MiscMemoryFill:
		ops[0] = apply(rm.Memory, ops[0])
	case MiscTableInit: // elemidx, tableidx
		ops[0] = apply(rm.Elem, ops[0])
		ops[1] = apply(rm.Table, ops[1])
	case MiscElemDrop:
		ops[0] = apply(rm.Elem, ops[0])
	case MiscTableCopy:
		ops[0] = apply(rm.Table, ops[0])
		ops[1] = apply(rm.Table, ops[1])
	case MiscTableGrow, MiscTableSize, MiscTableFill:
		ops[0] = apply(rm.Table, ops[0])
	}
	v.Operands = ops
	return v
}

// Code decodes a body, remaps it and re-encodes it.
func (rm Remap) Code(code []byte) ([]byte, error) {
	instrs, err := DecodeInstructions(code)
	if err != nil {
		return nil, err
	}
	rm.Instructions(instrs)
	return EncodeInstructions(instrs), nil
}

// Expr remaps a constant expression. Empty expressions pass through.
func (rm Remap) Expr(expr []byte) ([]byte, error) {
	if len(expr) == 0 {
		return expr, nil
	}
	return rm.Code(expr)
}

// Module rewrites every index reference held by the module: function
// bodies, constant expressions, exports, the start function, element
// members and data segment memory indices. Index spaces themselves are
// not reordered; callers rearrange the declarations separately.
func (rm Remap) Module(m *Module) error {
	var err error
	for i := range m.Code {
		if m.Code[i].Code, err = rm.Code(m.Code[i].Code); err != nil {
			return err
		}
	}
	for i := range m.Globals {
		if m.Globals[i].Init, err = rm.Expr(m.Globals[i].Init); err != nil {
			return err
		}
	}
	for i := range m.Exports {
		e := &m.Exports[i]
		switch e.Kind {
		case KindFunc:
			e.Idx = apply(rm.Func, e.Idx)
		case KindTable:
			e.Idx = apply(rm.Table, e.Idx)
		case KindMemory:
			e.Idx = apply(rm.Memory, e.Idx)
		case KindGlobal:
			e.Idx = apply(rm.Global, e.Idx)
		}
	}
	if m.Start != nil {
		s := apply(rm.Func, *m.Start)
		m.Start = &s
	}
	for i := range m.Elements {
		e := &m.Elements[i]
		if e.IsActive() {
			e.TableIdx = apply(rm.Table, e.TableIdx)
			if e.TableIdx != 0 && e.Flags&0x02 == 0 {
				e.Flags |= 0x02
				if e.UsesExprs() && e.Type == 0 {
					e.Type = ValFuncRef
				}
			}
		}
		if e.Offset, err = rm.Expr(e.Offset); err != nil {
			return err
		}
		for j := range e.FuncIdxs {
			e.FuncIdxs[j] = apply(rm.Func, e.FuncIdxs[j])
		}
		for j := range e.Exprs {
			if e.Exprs[j], err = rm.Expr(e.Exprs[j]); err != nil {
				return err
			}
		}
	}
	for i := range m.Data {
		d := &m.Data[i]
		if d.IsActive() {
			d.MemIdx = apply(rm.Memory, d.MemIdx)
			if d.MemIdx != 0 {
				d.Flags = 2
			}
		}
		if d.Offset, err = rm.Expr(d.Offset); err != nil {
			return err
		}
	}
	return nil
}
