package engine

import (
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/codegen"
	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/ir"
	"github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/metadata"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// checkSignature compares a declared signature, with host values erased to
// i32 slots, against the guest function type as it is.
func checkSignature(symbol string, declared metadata.FunctionArgs, actual wasm.FuncType) error {
	if len(declared.Params) != len(actual.Params) {
		return errors.LengthMismatch(errors.PhaseSubstitute, symbol, len(declared.Params), len(actual.Params))
	}
	if len(declared.Results) != len(actual.Results) {
		return errors.LengthMismatch(errors.PhaseSubstitute, symbol, len(declared.Results), len(actual.Results))
	}
	if err := compareTypes(symbol, "Parameter", declared.Params, actual.Params); err != nil {
		return err
	}
	return compareTypes(symbol, "Result", declared.Results, actual.Results)
}

func compareTypes(symbol, what string, declared []metadata.ArgType, actual []wasm.ValType) error {
	for i, d := range declared {
		want := metadata.Erase(d.ValType())
		if got := actual[i]; want != got {
			return errors.TypeMismatch(errors.PhaseSubstitute, symbol, what, i, want.String(), got.String())
		}
	}
	return nil
}

// narrow truncates or sign-extends a small integer held in an i32.
func narrow(e *codegen.Emitter, t metadata.ArgType) {
	switch t {
	case metadata.U8:
		e.I32Const(0xFF).I32And()
	case metadata.I8:
		e.I32Extend8S()
	case metadata.U16:
		e.I32Const(0xFFFF).I32And()
	case metadata.I16:
		e.I32Extend16S()
	}
}

// SubstituteExports wraps each function export named in exports. The
// wrapper has the declared signature with host values as externref,
// normalizes small integers, turns incoming host values into slots and
// resolves returned slots back into host values, releasing them. The
// export is repointed at the wrapper. It returns the wrapped export names.
func SubstituteExports(m *ir.Module, rt *Runtime, exports map[string]*metadata.ExportFunction) ([]string, error) {
	var wrapped []string
	for i := range m.Wasm.Exports {
		exp := &m.Wasm.Exports[i]
		if exp.Kind != wasm.KindFunc {
			continue
		}
		decl, ok := exports[exp.Name]
		if !ok {
			continue
		}
		callee := ir.FuncID(exp.Idx)
		ft, ok := m.FuncType(callee)
		if !ok {
			return nil, errors.NotFound(errors.PhaseSubstitute, "exported function", strconv.FormatUint(uint64(exp.Idx), 10))
		}
		if err := checkSignature(exp.Name, decl.Args, ft); err != nil {
			return nil, err
		}

		body, locals := exportWrapper(rt, callee, decl.Args)
		w := m.AddFunc(exp.Name, decl.Args.FuncType(), locals, body)
		exp.Idx = uint32(w)
		wrapped = append(wrapped, exp.Name)

		Logger().Debug("wrapped export",
			zap.String("name", exp.Name),
			zap.Stringer("signature", decl.Args))
	}
	return wrapped, nil
}

func exportWrapper(rt *Runtime, callee ir.FuncID, args metadata.FunctionArgs) ([]wasm.Instruction, []wasm.LocalEntry) {
	l := newLocals(len(args.Params))
	results := make([]uint32, len(args.Results))
	for j, r := range args.Results {
		results[j] = l.add(r.ValType())
	}
	var tmp uint32
	if slices.Contains(args.Results, metadata.GodotValue) {
		tmp = l.add(wasm.ValI32)
	}

	e := codegen.NewEmitter()
	for i, p := range args.Params {
		e.LocalGet(uint32(i))
		narrow(e, p)
		if p == metadata.GodotValue {
			e.Call(uint32(rt.Alloc))
		}
	}
	e.Call(uint32(callee))
	for j := len(args.Results) - 1; j >= 0; j-- {
		if args.Results[j] == metadata.GodotValue {
			e.LocalTee(tmp).Call(uint32(rt.Get)).LocalSet(results[j]).
				LocalGet(tmp).Call(uint32(rt.Free))
			continue
		}
		e.LocalSet(results[j])
	}
	for _, r := range results {
		e.LocalGet(r)
	}
	e.End()
	return e.Instrs(), l.entries()
}

// SubstituteImports replaces each function import named in imports with a
// fresh import carrying the declared signature and a wrapper that keeps
// the old guest side signature. Host value parameters are resolved and
// their slots released; results are normalized or given a slot. Callers
// of the old import are relinked to the wrapper.
func SubstituteImports(m *ir.Module, rt *Runtime, imports map[metadata.ImportKey]*metadata.ImportFunction) ([]Rewrite, error) {
	subst := make(map[ir.FuncID]ir.FuncID)
	var rewrites []Rewrite
	for _, f := range m.Funcs() {
		if f.Import == nil {
			continue
		}
		key := metadata.ImportKey{Module: f.Import.Module, Name: f.Import.Name}
		decl, ok := imports[key]
		if !ok {
			continue
		}
		ft, _ := m.FuncType(f.ID)
		if err := checkSignature(key.String(), decl.Args, ft); err != nil {
			return nil, err
		}

		host := m.AddImport(key.Module, key.Name, decl.Args.FuncType())
		name := f.Name
		if name == "" {
			name = key.String()
		}
		body, locals := importWrapper(rt, host, decl.Args)
		subst[f.ID] = m.AddFunc(name, decl.Args.ErasedFuncType(), locals, body)
		rewrites = append(rewrites, Rewrite{Old: *f.Import, New: *f.Import, Adapter: name})

		Logger().Debug("wrapped import",
			zap.String("import", key.String()),
			zap.Stringer("signature", decl.Args))
	}
	if err := m.Relink(subst); err != nil {
		return nil, err
	}
	return rewrites, nil
}

func importWrapper(rt *Runtime, host ir.FuncID, args metadata.FunctionArgs) ([]wasm.Instruction, []wasm.LocalEntry) {
	l := newLocals(len(args.Params))
	results := make([]uint32, len(args.Results))
	for j, r := range args.Results {
		results[j] = l.add(metadata.Erase(r.ValType()))
	}

	e := codegen.NewEmitter()
	for i, p := range args.Params {
		e.LocalGet(uint32(i))
		if p == metadata.GodotValue {
			e.Call(uint32(rt.Get)).LocalGet(uint32(i)).Call(uint32(rt.Free))
		}
	}
	e.Call(uint32(host))
	for j := len(args.Results) - 1; j >= 0; j-- {
		narrow(e, args.Results[j])
		if args.Results[j] == metadata.GodotValue {
			e.Call(uint32(rt.Alloc))
		}
		e.LocalSet(results[j])
	}
	for _, r := range results {
		e.LocalGet(r)
	}
	e.End()
	return e.Instrs(), l.entries()
}
