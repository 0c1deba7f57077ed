// Package ir gives every function of a module a stable identity so that
// imports and functions can be added and removed without renumbering call
// sites by hand.
//
// While a module is lifted, every function reference (call, return_call,
// ref.func, element members, global initializers, exports and the start
// function) holds a FuncID. Lower assigns final indices, placing function
// imports first, and rewrites all references in one pass.
package ir

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// FuncID identifies a function for the lifetime of a Module. IDs of the
// original functions equal their indices in the input binary.
type FuncID uint32

// ImportRef names an imported function.
type ImportRef struct {
	Module string
	Name   string
}

func (r ImportRef) String() string { return r.Module + "." + r.Name }

// Func is an imported or locally defined function. Body is nil for imports
// and includes the final end opcode otherwise.
type Func struct {
	Import *ImportRef
	Name   string
	Locals []wasm.LocalEntry
	Body   []wasm.Instruction
	Type   uint32
	ID     FuncID
}

// IsImport reports whether f is an imported function.
func (f *Func) IsImport() bool { return f.Import != nil }

// Module is a lifted module. Wasm holds everything except functions; its
// Imports list only non-function imports and its function references are
// FuncIDs.
type Module struct {
	Wasm  *wasm.Module
	Name  string
	funcs map[FuncID]*Func
	order []FuncID
	next  FuncID
}

// Lift takes ownership of m and converts it into a Module.
func Lift(m *wasm.Module) (*Module, error) {
	if len(m.Funcs) != len(m.Code) {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"code"},
			fmt.Sprintf("%d function declarations but %d bodies", len(m.Funcs), len(m.Code)))
	}

	out := &Module{Wasm: m, funcs: make(map[FuncID]*Func)}

	var names *wasm.Names
	if cs, ok := m.CustomSection(wasm.CustomSectionName); ok {
		n, err := wasm.ParseNames(cs.Data)
		if err != nil {
			Logger().Warn("ignoring malformed name section", zap.Error(err))
		} else {
			names = n
			out.Name = n.Module
		}
		m.RemoveCustomSections(wasm.CustomSectionName)
	}

	var kept []wasm.Import
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			kept = append(kept, imp)
			continue
		}
		out.add(&Func{
			Import: &ImportRef{Module: imp.Module, Name: imp.Name},
			Type:   imp.Desc.TypeIdx,
		})
	}
	for i, typ := range m.Funcs {
		body, err := wasm.DecodeInstructions(m.Code[i].Code)
		if err != nil {
			return nil, errors.ParseFailed(fmt.Sprintf("body of function %d", out.next), err)
		}
		out.add(&Func{Type: typ, Locals: m.Code[i].Locals, Body: body})
	}
	if names != nil {
		for idx, name := range names.Functions {
			if f, ok := out.funcs[FuncID(idx)]; ok {
				f.Name = name
			}
		}
	}

	m.Imports = kept
	m.Funcs = nil
	m.Code = nil
	return out, nil
}

func (m *Module) add(f *Func) FuncID {
	f.ID = m.next
	m.next++
	m.funcs[f.ID] = f
	m.order = append(m.order, f.ID)
	return f.ID
}

// Func returns the function with the given identity.
func (m *Module) Func(id FuncID) (*Func, bool) {
	f, ok := m.funcs[id]
	return f, ok
}

// Funcs returns all functions in declaration order.
func (m *Module) Funcs() []*Func {
	out := make([]*Func, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.funcs[id])
	}
	return out
}

// Len returns the number of functions.
func (m *Module) Len() int { return len(m.order) }

// FuncType returns the signature of a function.
func (m *Module) FuncType(id FuncID) (wasm.FuncType, bool) {
	f, ok := m.funcs[id]
	if !ok || int(f.Type) >= len(m.Wasm.Types) {
		return wasm.FuncType{}, false
	}
	return m.Wasm.Types[f.Type], true
}

// AddType interns a signature and returns its type index.
func (m *Module) AddType(ft wasm.FuncType) uint32 { return m.Wasm.AddType(ft) }

// AddImport declares a new imported function.
func (m *Module) AddImport(module, name string, ft wasm.FuncType) FuncID {
	return m.add(&Func{
		Import: &ImportRef{Module: module, Name: name},
		Type:   m.AddType(ft),
	})
}

// AddFunc defines a new local function. body must end with the end opcode.
func (m *Module) AddFunc(name string, ft wasm.FuncType, locals []wasm.LocalEntry, body []wasm.Instruction) FuncID {
	return m.add(&Func{
		Name:   name,
		Type:   m.AddType(ft),
		Locals: locals,
		Body:   body,
	})
}

// FindImport returns the first imported function with the given name.
func (m *Module) FindImport(module, name string) (*Func, bool) {
	for _, id := range m.order {
		f := m.funcs[id]
		if f.Import != nil && f.Import.Module == module && f.Import.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Delete removes a function. References to it must already be gone.
func (m *Module) Delete(id FuncID) {
	if _, ok := m.funcs[id]; !ok {
		return
	}
	delete(m.funcs, id)
	m.order = slices.DeleteFunc(m.order, func(o FuncID) bool { return o == id })
}

// AddGlobal appends a global and returns its index.
func (m *Module) AddGlobal(gt wasm.GlobalType, init []byte) uint32 {
	m.Wasm.Globals = append(m.Wasm.Globals, wasm.Global{Type: gt, Init: init})
	return uint32(m.Wasm.NumImportedGlobals() + len(m.Wasm.Globals) - 1)
}

// AddTable appends a table and returns its index.
func (m *Module) AddTable(t wasm.TableType) uint32 {
	m.Wasm.Tables = append(m.Wasm.Tables, t)
	return uint32(m.Wasm.NumImportedTables() + len(m.Wasm.Tables) - 1)
}

// AddMemory appends a memory and returns its index.
func (m *Module) AddMemory(mt wasm.MemoryType) uint32 {
	m.Wasm.Memories = append(m.Wasm.Memories, mt)
	return uint32(m.Wasm.NumImportedMemories() + len(m.Wasm.Memories) - 1)
}

// AddElement appends an element segment and returns its index.
func (m *Module) AddElement(e wasm.Element) int {
	m.Wasm.Elements = append(m.Wasm.Elements, e)
	return len(m.Wasm.Elements) - 1
}

// NumMemories returns the size of the memory index space.
func (m *Module) NumMemories() int { return m.Wasm.NumMemories() }

// Lower assigns final function indices and produces an encodable module.
// The receiver is left unchanged.
func (m *Module) Lower() (*wasm.Module, error) {
	out := cloneRefs(m.Wasm)
	out.Imports = nil
	out.Funcs = nil
	out.Code = nil

	index := m.Index()
	for _, f := range m.Funcs() {
		if f.Import != nil {
			out.Imports = append(out.Imports, wasm.Import{
				Module: f.Import.Module,
				Name:   f.Import.Name,
				Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: f.Type},
			})
		}
	}
	out.Imports = append(out.Imports, m.Wasm.Imports...)
	for _, f := range m.Funcs() {
		if f.Import == nil {
			out.Funcs = append(out.Funcs, f.Type)
			out.Code = append(out.Code, wasm.FuncBody{
				Locals: f.Locals,
				Code:   wasm.EncodeInstructions(f.Body),
			})
		}
	}

	var dangling []FuncID
	rm := wasm.Remap{Func: func(id uint32) uint32 {
		idx, ok := index[FuncID(id)]
		if !ok {
			dangling = append(dangling, FuncID(id))
		}
		return idx
	}}
	if err := rm.Module(&out); err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "rewrite function indices")
	}
	if len(dangling) > 0 {
		return nil, errors.New(errors.PhaseEncode, errors.KindNotFound).
			Value(dangling).
			Detail("references to deleted functions %v", dangling).
			Build()
	}

	names := &wasm.Names{Module: m.Name, Functions: make(map[uint32]string)}
	for id, idx := range index {
		if name := m.funcs[id].Name; name != "" {
			names.Functions[idx] = name
		}
	}
	out.CustomSections = slices.Clone(m.Wasm.CustomSections)
	if names.Module != "" || len(names.Functions) > 0 {
		out.CustomSections = append(out.CustomSections, wasm.CustomSection{
			Name: wasm.CustomSectionName,
			Data: names.Encode(),
		})
	}
	return &out, nil
}

// Index returns the final index each function will receive from Lower.
func (m *Module) Index() map[FuncID]uint32 {
	index := make(map[FuncID]uint32, len(m.order))
	var n uint32
	for _, f := range m.Funcs() {
		if f.Import != nil {
			index[f.ID] = n
			n++
		}
	}
	for _, f := range m.Funcs() {
		if f.Import == nil {
			index[f.ID] = n
			n++
		}
	}
	return index
}
