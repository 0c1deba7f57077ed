package ir

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// Relink redirects every reference to a key of subst to its value and then
// deletes the key functions. References are rewritten in function bodies
// (call, return_call, ref.func), element segment members, global
// initializers, function exports and the start function.
//
// Values are not followed further: a value that is itself a key is a
// caller error.
func (m *Module) Relink(subst map[FuncID]FuncID) error {
	if len(subst) == 0 {
		return nil
	}
	for from, to := range subst {
		if _, ok := subst[to]; ok {
			return errors.New(errors.PhaseLink, errors.KindInvalidInput).
				Value(from).
				Detail("replacement for function %d is itself replaced", from).
				Build()
		}
		if _, ok := m.funcs[to]; !ok {
			return errors.NotFound(errors.PhaseLink, "replacement function", fmt.Sprint(to))
		}
	}

	rewritten := 0
	rm := wasm.Remap{Func: func(id uint32) uint32 {
		if to, ok := subst[FuncID(id)]; ok {
			rewritten++
			return uint32(to)
		}
		return id
	}}
	for _, f := range m.funcs {
		if f.Body != nil {
			rm.Instructions(f.Body)
		}
	}
	if err := rm.Module(m.Wasm); err != nil {
		return errors.Wrap(errors.PhaseLink, errors.KindInvalidData, err, "relink module references")
	}
	for from := range subst {
		m.Delete(from)
	}
	Logger().Debug("relinked functions",
		zap.Int("replaced", len(subst)),
		zap.Int("references", rewritten))
	return nil
}

// References calls visit for every function reference held anywhere in the
// module, whether or not the referring code is reachable.
func (m *Module) References(visit func(FuncID)) {
	rm := wasm.Remap{Func: func(id uint32) uint32 {
		visit(FuncID(id))
		return id
	}}
	for _, id := range m.order {
		if body := m.funcs[id].Body; body != nil {
			rm.Instructions(body)
		}
	}
	snapshot := cloneRefs(m.Wasm)
	// previously decoded expressions cannot fail to decode again
	_ = rm.Module(&snapshot)
}

// cloneRefs copies w deeply enough that a Remap over the copy leaves w
// untouched.
func cloneRefs(w *wasm.Module) wasm.Module {
	out := *w
	out.Exports = slices.Clone(w.Exports)
	out.Globals = slices.Clone(w.Globals)
	out.Data = slices.Clone(w.Data)
	out.Elements = make([]wasm.Element, len(w.Elements))
	for i, e := range w.Elements {
		e.FuncIdxs = slices.Clone(e.FuncIdxs)
		e.Exprs = slices.Clone(e.Exprs)
		out.Elements[i] = e
	}
	return out
}
