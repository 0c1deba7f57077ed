package wasm

import (
	"github.com/wippyai/godot-wasm-bindgen/wasm/internal/binary"
)

// Encode serializes the module. Empty sections are omitted and custom
// sections are written after the data section in their original order.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	vecSection(w, SectionType, len(m.Types), func(s *binary.Writer, i int) {
		s.Byte(FuncTypeByte)
		writeValTypes(s, m.Types[i].Params)
		writeValTypes(s, m.Types[i].Results)
	})

	vecSection(w, SectionImport, len(m.Imports), func(s *binary.Writer, i int) {
		imp := &m.Imports[i]
		s.WriteName(imp.Module)
		s.WriteName(imp.Name)
		s.Byte(imp.Desc.Kind)
		switch imp.Desc.Kind {
		case KindFunc:
			s.WriteU32(imp.Desc.TypeIdx)
		case KindTable:
			writeTableType(s, *imp.Desc.Table)
		case KindMemory:
			writeLimits(s, imp.Desc.Memory.Limits)
		case KindGlobal:
			writeGlobalType(s, *imp.Desc.Global)
		}
	})

	vecSection(w, SectionFunction, len(m.Funcs), func(s *binary.Writer, i int) {
		s.WriteU32(m.Funcs[i])
	})

	vecSection(w, SectionTable, len(m.Tables), func(s *binary.Writer, i int) {
		writeTableType(s, m.Tables[i])
	})

	vecSection(w, SectionMemory, len(m.Memories), func(s *binary.Writer, i int) {
		writeLimits(s, m.Memories[i].Limits)
	})

	vecSection(w, SectionGlobal, len(m.Globals), func(s *binary.Writer, i int) {
		writeGlobalType(s, m.Globals[i].Type)
		s.WriteBytes(m.Globals[i].Init)
	})

	vecSection(w, SectionExport, len(m.Exports), func(s *binary.Writer, i int) {
		exp := &m.Exports[i]
		s.WriteName(exp.Name)
		s.Byte(exp.Kind)
		s.WriteU32(exp.Idx)
	})

	if m.Start != nil {
		s := binary.NewWriter()
		s.WriteU32(*m.Start)
		writeSection(w, SectionStart, s.Bytes())
	}

	vecSection(w, SectionElement, len(m.Elements), func(s *binary.Writer, i int) {
		writeElement(s, &m.Elements[i])
	})

	if m.DataCount != nil {
		s := binary.NewWriter()
		s.WriteU32(*m.DataCount)
		writeSection(w, SectionDataCount, s.Bytes())
	}

	vecSection(w, SectionCode, len(m.Code), func(s *binary.Writer, i int) {
		body := binary.NewWriter()
		body.WriteU32(uint32(len(m.Code[i].Locals)))
		for _, l := range m.Code[i].Locals {
			body.WriteU32(l.Count)
			body.Byte(byte(l.ValType))
		}
		body.WriteBytes(m.Code[i].Code)
		s.WriteSized(body.Bytes())
	})

	vecSection(w, SectionData, len(m.Data), func(s *binary.Writer, i int) {
		d := &m.Data[i]
		s.WriteU32(d.Flags)
		if d.Flags == 2 {
			s.WriteU32(d.MemIdx)
		}
		if d.Flags != 1 {
			s.WriteBytes(d.Offset)
		}
		s.WriteSized(d.Init)
	})

	for _, cs := range m.CustomSections {
		s := binary.NewWriter()
		s.WriteName(cs.Name)
		s.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, s.Bytes())
	}

	return w.Bytes()
}

func vecSection(w *binary.Writer, id byte, n int, each func(*binary.Writer, int)) {
	if n == 0 {
		return
	}
	s := binary.NewWriter()
	s.WriteU32(uint32(n))
	for i := 0; i < n; i++ {
		each(s, i)
	}
	writeSection(w, id, s.Bytes())
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteSized(data)
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	var flags byte
	if l.Max != nil {
		flags |= LimitsHasMax
	}
	if l.Shared {
		flags |= LimitsShared
	}
	if l.Memory64 {
		flags |= LimitsMemory64
	}
	w.Byte(flags)
	w.WriteU64(l.Min)
	if l.Max != nil {
		w.WriteU64(*l.Max)
	}
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func writeElement(w *binary.Writer, e *Element) {
	w.WriteU32(e.Flags)
	if e.Flags&0x02 != 0 && e.Flags&0x01 == 0 {
		w.WriteU32(e.TableIdx)
	}
	if e.Flags&0x01 == 0 {
		w.WriteBytes(e.Offset)
	}
	if e.Flags&0x03 != 0 {
		if e.UsesExprs() {
			w.Byte(byte(e.Type))
		} else {
			w.Byte(e.ElemKind)
		}
	}
	if e.UsesExprs() {
		w.WriteU32(uint32(len(e.Exprs)))
		for _, expr := range e.Exprs {
			w.WriteBytes(expr)
		}
		return
	}
	w.WriteU32(uint32(len(e.FuncIdxs)))
	for _, idx := range e.FuncIdxs {
		w.WriteU32(idx)
	}
}
