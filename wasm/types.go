package wasm

import "strings"

// Module is a decoded core WebAssembly module. All cross references are
// raw indices in the combined (imports first) index spaces.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type indices of locally defined functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount is required when data indices appear in code.
	DataCount *uint32

	CustomSections []CustomSection
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	return valTypesEqual(f.Params, o.Params) && valTypesEqual(f.Results, o.Results)
}

func (f FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> (")
	for i, r := range f.Results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.String())
	}
	b.WriteByte(')')
	return b.String()
}

func valTypesEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ValType is a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// IsRef reports whether v is a reference type.
func (v ValType) IsRef() bool {
	return v == ValFuncRef || v == ValExtern
}

// Import is an imported function, table, memory, or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item. Kind selects the populated field.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Limits are size constraints for tables and memories.
type Limits struct {
	Max      *uint64
	Min      uint64
	Shared   bool
	Memory64 bool
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a module-defined global.
type Global struct {
	Type GlobalType
	Init []byte // constant expression including the trailing end
}

// Export describes an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element is an element segment.
// Flags select the encoding:
//   - bit 0: passive or declarative (no offset)
//   - bit 1: explicit table index (active) or declarative (passive)
//   - bit 2: members are expressions instead of function indices
type Element struct {
	Offset   []byte
	FuncIdxs []uint32
	Exprs    [][]byte
	Flags    uint32
	TableIdx uint32
	ElemKind byte
	Type     ValType
}

// Mode helpers for element segments.

// IsActive reports whether the segment initializes a table at instantiation.
func (e *Element) IsActive() bool { return e.Flags&0x01 == 0 }

// IsPassive reports whether the segment is passive.
func (e *Element) IsPassive() bool { return e.Flags&0x03 == 0x01 }

// IsDeclarative reports whether the segment only declares function references.
func (e *Element) IsDeclarative() bool { return e.Flags&0x03 == 0x03 }

// UsesExprs reports whether members are encoded as constant expressions.
func (e *Element) UsesExprs() bool { return e.Flags&0x04 != 0 }

// ElemType returns the reference type of the segment members.
func (e *Element) ElemType() ValType {
	if e.UsesExprs() && e.Flags&0x03 != 0 {
		return e.Type
	}
	// elemkind 0x00 and the implicit flag-4 form are both funcref
	return ValFuncRef
}

// Len returns the number of members.
func (e *Element) Len() int {
	if e.UsesExprs() {
		return len(e.Exprs)
	}
	return len(e.FuncIdxs)
}

// FuncBody is a function's local declarations and bytecode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // raw code including the final end opcode
}

// LocalEntry is a run of locals sharing a type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is a data segment.
// Flags: 0 active on memory 0, 1 passive, 2 active with explicit memory.
type DataSegment struct {
	Offset []byte
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// IsActive reports whether the segment initializes memory at instantiation.
func (d *DataSegment) IsActive() bool { return d.Flags != 1 }

// CustomSection is a named custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int { return m.countImports(KindFunc) }

// NumImportedGlobals returns the number of imported globals
func (m *Module) NumImportedGlobals() int { return m.countImports(KindGlobal) }

// NumImportedTables returns the number of imported tables
func (m *Module) NumImportedTables() int { return m.countImports(KindTable) }

// NumImportedMemories returns the number of imported memories
func (m *Module) NumImportedMemories() int { return m.countImports(KindMemory) }

func (m *Module) countImports(kind byte) int {
	n := 0
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == kind {
			n++
		}
	}
	return n
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() int { return m.NumImportedFuncs() + len(m.Funcs) }

// NumMemories returns the size of the memory index space.
func (m *Module) NumMemories() int { return m.NumImportedMemories() + len(m.Memories) }

// GetFuncType returns the signature of a function by index, or nil if out of range.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	var typeIdx uint32
	numImported := uint32(m.NumImportedFuncs())
	if funcIdx < numImported {
		n := funcIdx
		for i := range m.Imports {
			if m.Imports[i].Desc.Kind != KindFunc {
				continue
			}
			if n == 0 {
				typeIdx = m.Imports[i].Desc.TypeIdx
				break
			}
			n--
		}
	} else {
		local := funcIdx - numImported
		if int(local) >= len(m.Funcs) {
			return nil
		}
		typeIdx = m.Funcs[local]
	}
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// AddType adds a function type and returns its index, reusing an equal one.
func (m *Module) AddType(ft FuncType) uint32 {
	for i := range m.Types {
		if m.Types[i].Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// CustomSection returns the first custom section with the given name.
func (m *Module) CustomSection(name string) (*CustomSection, bool) {
	for i := range m.CustomSections {
		if m.CustomSections[i].Name == name {
			return &m.CustomSections[i], true
		}
	}
	return nil, false
}

// RemoveCustomSections deletes every custom section with the given name and
// returns how many were removed.
func (m *Module) RemoveCustomSections(name string) int {
	kept := m.CustomSections[:0]
	removed := 0
	for _, cs := range m.CustomSections {
		if cs.Name == name {
			removed++
			continue
		}
		kept = append(kept, cs)
	}
	m.CustomSections = kept
	return removed
}

// SetCustomSection replaces the first section with the given name or appends one.
func (m *Module) SetCustomSection(name string, data []byte) {
	if cs, ok := m.CustomSection(name); ok {
		cs.Data = data
		return
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data})
}
