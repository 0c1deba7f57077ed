package engine

import (
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/ir"
	"github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// Rewrite records one replaced import.
type Rewrite struct {
	Old     ir.ImportRef
	New     ir.ImportRef
	Adapter string
}

// adapterGen carries what adapter builders need.
type adapterGen struct {
	m  *ir.Module
	rt *Runtime
}

func (g *adapterGen) requireMemory(name string) error {
	if g.rt.HasMainMemory {
		return nil
	}
	return errors.New(errors.PhaseRewrite, errors.KindMissingMemory).
		Symbol(name).
		Detail("adapter writes slots to linear memory but the module has none").
		Build()
}

// helper adds a callback function taken by ref.func and declares it.
func (g *adapterGen) helper(name string, ft wasm.FuncType, locals []wasm.LocalEntry, body []wasm.Instruction) ir.FuncID {
	id := g.m.AddFunc(adapterPrefix+name+".helper", ft, locals, body)
	g.rt.Declare(g.m, id)
	return id
}

const adapterPrefix = "godot_wasm."

// RewriteHostImports replaces every catalogue import found in the primary
// namespace with an adapter and relinks callers to it. Imports the
// catalogue does not know are left alone.
func RewriteHostImports(m *ir.Module, rt *Runtime, cfg Config) ([]Rewrite, error) {
	present := mapset.NewThreadUnsafeSet[string]()
	for _, f := range m.Funcs() {
		if f.Import != nil && f.Import.Module == cfg.PrimaryNamespace {
			present.Add(f.Import.Name)
		}
	}
	if present.Cardinality() == 0 {
		return nil, nil
	}

	g := &adapterGen{m: m, rt: rt}
	known := mapset.NewThreadUnsafeSet[string]()
	subst := make(map[ir.FuncID]ir.FuncID)
	var rewrites []Rewrite

	for _, ent := range catalogue() {
		known.Add(ent.name)
		if !present.Contains(ent.name) {
			continue
		}
		old, ok := m.FindImport(cfg.PrimaryNamespace, ent.name)
		if !ok {
			continue
		}
		symbol := cfg.PrimaryNamespace + "." + ent.name
		if ft, _ := m.FuncType(old.ID); !ft.Equal(ent.slot) {
			return nil, errors.New(errors.PhaseRewrite, errors.KindTypeMismatch).
				Symbol(symbol).
				Detail("import has type %s, adapter expects %s", ft, ent.slot).
				Build()
		}

		var host ir.FuncID
		rw := Rewrite{Old: *old.Import, Adapter: adapterPrefix + ent.name}
		if ent.target != targetNone {
			ns := cfg.PrimaryNamespace
			if ent.target == targetObject {
				ns = cfg.ObjectNamespace
			}
			host = m.AddImport(ns, ent.name, ent.hostType())
			rw.New = ir.ImportRef{Module: ns, Name: ent.name}
		}

		body, locals, err := ent.build(g, host)
		if err != nil {
			return nil, err
		}
		adapter := m.AddFunc(rw.Adapter, ent.slot, locals, body)
		subst[old.ID] = adapter
		rewrites = append(rewrites, rw)

		Logger().Debug("rewrote host import",
			zap.String("import", symbol),
			zap.String("adapter", rw.Adapter))
	}

	if unknown := present.Difference(known); unknown.Cardinality() > 0 {
		Logger().Debug("imports without adapter left in place",
			zap.String("namespace", cfg.PrimaryNamespace),
			zap.Strings("names", unknown.ToSlice()))
	}

	if err := m.Relink(subst); err != nil {
		return nil, err
	}
	return rewrites, nil
}
