package metadata

import (
	"fmt"
	"strings"

	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// ArgType is the declared kind of a parameter or result.
type ArgType byte

const (
	U8 ArgType = iota + 1
	I8
	U16
	I16
	U32
	I32
	U64
	I64
	F32
	F64
	// GodotValue is an opaque host value. It crosses the module boundary
	// as externref and is held by guest code as an i32 slot.
	GodotValue
)

var argTypeNames = [...]string{
	U8:         "u8",
	I8:         "i8",
	U16:        "u16",
	I16:        "i16",
	U32:        "u32",
	I32:        "i32",
	U64:        "u64",
	I64:        "i64",
	F32:        "f32",
	F64:        "f64",
	GodotValue: "godot_value",
}

// Valid reports whether t is one of the eleven defined kinds.
func (t ArgType) Valid() bool {
	return t >= U8 && t <= GodotValue
}

func (t ArgType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ArgType(%d)", byte(t))
	}
	return argTypeNames[t]
}

// ValType returns the WebAssembly value type t is carried as.
func (t ArgType) ValType() wasm.ValType {
	switch t {
	case U64, I64:
		return wasm.ValI64
	case F32:
		return wasm.ValF32
	case F64:
		return wasm.ValF64
	case GodotValue:
		return wasm.ValExtern
	}
	return wasm.ValI32
}

// Erase maps externref to i32. Every signature comparison between declared
// and actual types goes through it.
func Erase(t wasm.ValType) wasm.ValType {
	if t == wasm.ValExtern {
		return wasm.ValI32
	}
	return t
}

// EraseAll applies Erase to each element of types.
func EraseAll(types []wasm.ValType) []wasm.ValType {
	out := make([]wasm.ValType, len(types))
	for i, t := range types {
		out[i] = Erase(t)
	}
	return out
}

// FunctionArgs is a declared signature.
type FunctionArgs struct {
	Params  []ArgType
	Results []ArgType
}

// FuncType returns the host side signature: GodotValue as externref.
func (a FunctionArgs) FuncType() wasm.FuncType {
	return wasm.FuncType{Params: valTypes(a.Params), Results: valTypes(a.Results)}
}

// ErasedFuncType returns the guest side signature: GodotValue as i32.
func (a FunctionArgs) ErasedFuncType() wasm.FuncType {
	return wasm.FuncType{
		Params:  EraseAll(valTypes(a.Params)),
		Results: EraseAll(valTypes(a.Results)),
	}
}

func valTypes(args []ArgType) []wasm.ValType {
	out := make([]wasm.ValType, len(args))
	for i, a := range args {
		out[i] = a.ValType()
	}
	return out
}

func (a FunctionArgs) String() string {
	return "(" + joinArgs(a.Params) + ") -> (" + joinArgs(a.Results) + ")"
}

func joinArgs(args []ArgType) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// ExportFunction declares the signature of a module export.
type ExportFunction struct {
	Name string
	Args FunctionArgs
}

// ImportFunction declares the signature of a module import.
type ImportFunction struct {
	Module string
	Name   string
	Args   FunctionArgs
}

// Key returns the lookup key of the import.
func (f *ImportFunction) Key() ImportKey {
	return ImportKey{Module: f.Module, Name: f.Name}
}

// ImportKey identifies an import by namespace and name.
type ImportKey struct {
	Module string
	Name   string
}

func (k ImportKey) String() string { return k.Module + "." + k.Name }

// Symbol is one record of the bindgen section. Exactly one of Export and
// Import is set.
type Symbol struct {
	Export  *ExportFunction
	Import  *ImportFunction
	Version [4]byte
}

func (s Symbol) String() string {
	switch {
	case s.Export != nil:
		return "export " + s.Export.Name + s.Export.Args.String()
	case s.Import != nil:
		return "import " + s.Import.Key().String() + s.Import.Args.String()
	}
	return "empty symbol"
}

// BindgenData is the decoded bindgen section in record order.
type BindgenData struct {
	Symbols []Symbol
}

// Exports indexes the export records by name. Later records shadow earlier
// ones with the same name.
func (d *BindgenData) Exports() map[string]*ExportFunction {
	out := make(map[string]*ExportFunction)
	for _, s := range d.Symbols {
		if s.Export != nil {
			out[s.Export.Name] = s.Export
		}
	}
	return out
}

// Imports indexes the import records by (module, name).
func (d *BindgenData) Imports() map[ImportKey]*ImportFunction {
	out := make(map[ImportKey]*ImportFunction)
	for _, s := range d.Symbols {
		if s.Import != nil {
			out[s.Import.Key()] = s.Import
		}
	}
	return out
}

func (d *BindgenData) String() string {
	var b strings.Builder
	for i, s := range d.Symbols {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.String())
	}
	return b.String()
}
