package ir

import (
	"slices"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// SweepStats counts what Sweep removed.
type SweepStats struct {
	Funcs    int
	Imports  int
	Globals  int
	Tables   int
	Memories int
	Elements int
}

// Removed reports whether anything was removed.
func (s SweepStats) Removed() bool {
	return s.Funcs+s.Imports+s.Globals+s.Tables+s.Memories+s.Elements > 0
}

type liveSet struct {
	funcs    mapset.Set[FuncID]
	globals  mapset.Set[uint32]
	tables   mapset.Set[uint32]
	memories mapset.Set[uint32]
	elems    mapset.Set[uint32]

	funcQueue   []FuncID
	globalQueue []uint32
}

func newLiveSet() *liveSet {
	return &liveSet{
		funcs:    mapset.NewThreadUnsafeSet[FuncID](),
		globals:  mapset.NewThreadUnsafeSet[uint32](),
		tables:   mapset.NewThreadUnsafeSet[uint32](),
		memories: mapset.NewThreadUnsafeSet[uint32](),
		elems:    mapset.NewThreadUnsafeSet[uint32](),
	}
}

// recorder returns a remap that marks every index it sees and changes
// nothing.
func (l *liveSet) recorder() wasm.Remap {
	return wasm.Remap{
		Func: func(id uint32) uint32 {
			if l.funcs.Add(FuncID(id)) {
				l.funcQueue = append(l.funcQueue, FuncID(id))
			}
			return id
		},
		Global: func(idx uint32) uint32 {
			if l.globals.Add(idx) {
				l.globalQueue = append(l.globalQueue, idx)
			}
			return idx
		},
		Table: func(idx uint32) uint32 {
			l.tables.Add(idx)
			return idx
		},
		Memory: func(idx uint32) uint32 {
			l.memories.Add(idx)
			return idx
		},
		Elem: func(idx uint32) uint32 {
			l.elems.Add(idx)
			return idx
		},
	}
}

// Sweep removes functions, globals, tables and memories that nothing live
// refers to, then compacts the global, table, memory and element index
// spaces. Roots are exports, the start function, active and passive
// element segments, active data segments and every non-function import.
// Declarative segments do not keep their members alive; they are pruned to
// live functions and dropped when empty.
func (m *Module) Sweep() (SweepStats, error) {
	w := m.Wasm
	live := newLiveSet()
	rec := live.recorder()

	walkExpr := func(expr []byte) error {
		_, err := rec.Expr(expr)
		return err
	}

	for i := 0; i < w.NumImportedGlobals(); i++ {
		live.globals.Add(uint32(i))
	}
	for i := 0; i < w.NumImportedTables(); i++ {
		live.tables.Add(uint32(i))
	}
	for i := 0; i < w.NumImportedMemories(); i++ {
		live.memories.Add(uint32(i))
	}

	roots := cloneRefs(w)
	roots.Globals = nil
	roots.Elements = slices.DeleteFunc(roots.Elements, func(e wasm.Element) bool { return e.IsDeclarative() })
	roots.Data = slices.DeleteFunc(roots.Data, func(d wasm.DataSegment) bool { return !d.IsActive() })
	if err := rec.Module(&roots); err != nil {
		return SweepStats{}, errors.Wrap(errors.PhaseLink, errors.KindInvalidData, err, "walk roots")
	}
	for i, e := range w.Elements {
		if !e.IsDeclarative() {
			live.elems.Add(uint32(i))
		}
	}

	importedGlobals := uint32(w.NumImportedGlobals())
	for len(live.funcQueue) > 0 || len(live.globalQueue) > 0 {
		for len(live.funcQueue) > 0 {
			id := live.funcQueue[len(live.funcQueue)-1]
			live.funcQueue = live.funcQueue[:len(live.funcQueue)-1]
			f, ok := m.funcs[id]
			if !ok {
				return SweepStats{}, errors.NotFound(errors.PhaseLink, "function", strconv.FormatUint(uint64(id), 10))
			}
			if f.Body != nil {
				rec.Instructions(f.Body)
			}
		}
		for len(live.globalQueue) > 0 {
			idx := live.globalQueue[len(live.globalQueue)-1]
			live.globalQueue = live.globalQueue[:len(live.globalQueue)-1]
			if idx < importedGlobals {
				continue
			}
			local := int(idx - importedGlobals)
			if local >= len(w.Globals) {
				return SweepStats{}, errors.NotFound(errors.PhaseLink, "global", strconv.FormatUint(uint64(idx), 10))
			}
			if err := walkExpr(w.Globals[local].Init); err != nil {
				return SweepStats{}, errors.Wrap(errors.PhaseLink, errors.KindInvalidData, err, "walk global initializer")
			}
		}
	}

	var stats SweepStats
	for _, f := range m.Funcs() {
		if live.funcs.Contains(f.ID) {
			continue
		}
		Logger().Debug("sweeping function", zap.Uint32("id", uint32(f.ID)), zap.String("name", f.Name))
		if f.Import != nil {
			stats.Imports++
		} else {
			stats.Funcs++
		}
		m.Delete(f.ID)
	}

	elemMap, err := m.pruneDeclarative(live, &stats)
	if err != nil {
		return stats, err
	}

	globalMap := make(map[uint32]uint32)
	w.Globals, stats.Globals = compact(w.Globals, importedGlobals, live.globals, globalMap)
	tableMap := make(map[uint32]uint32)
	w.Tables, stats.Tables = compact(w.Tables, uint32(w.NumImportedTables()), live.tables, tableMap)
	memMap := make(map[uint32]uint32)
	w.Memories, stats.Memories = compact(w.Memories, uint32(w.NumImportedMemories()), live.memories, memMap)

	rm := wasm.Remap{
		Global: lookup(globalMap),
		Table:  lookup(tableMap),
		Memory: lookup(memMap),
		Elem:   lookup(elemMap),
	}
	for _, id := range m.order {
		if body := m.funcs[id].Body; body != nil {
			rm.Instructions(body)
		}
	}
	if err := rm.Module(w); err != nil {
		return stats, errors.Wrap(errors.PhaseLink, errors.KindInvalidData, err, "compact indices")
	}

	Logger().Debug("sweep finished",
		zap.Int("funcs", stats.Funcs),
		zap.Int("imports", stats.Imports),
		zap.Int("globals", stats.Globals),
		zap.Int("tables", stats.Tables),
		zap.Int("memories", stats.Memories),
		zap.Int("elements", stats.Elements))
	return stats, nil
}

// pruneDeclarative drops dead members from declarative segments and drops
// segments left empty unless an instruction names them. It returns the
// element index mapping.
func (m *Module) pruneDeclarative(live *liveSet, stats *SweepStats) (map[uint32]uint32, error) {
	w := m.Wasm
	elemMap := make(map[uint32]uint32)
	kept := w.Elements[:0]
	for i, e := range w.Elements {
		if e.IsDeclarative() {
			if e.UsesExprs() {
				var exprs [][]byte
				for _, expr := range e.Exprs {
					ok, err := exprIsLive(expr, live.funcs)
					if err != nil {
						return nil, errors.Wrap(errors.PhaseLink, errors.KindInvalidData, err, "prune element segment")
					}
					if ok {
						exprs = append(exprs, expr)
					}
				}
				e.Exprs = exprs
			} else {
				var idxs []uint32
				for _, id := range e.FuncIdxs {
					if live.funcs.Contains(FuncID(id)) {
						idxs = append(idxs, id)
					}
				}
				e.FuncIdxs = idxs
			}
			if e.Len() == 0 && !live.elems.Contains(uint32(i)) {
				stats.Elements++
				continue
			}
		}
		elemMap[uint32(i)] = uint32(len(kept))
		kept = append(kept, e)
	}
	w.Elements = kept
	return elemMap, nil
}

// exprIsLive reports whether an element expression refers only to live
// functions.
func exprIsLive(expr []byte, funcs mapset.Set[FuncID]) (bool, error) {
	instrs, err := wasm.DecodeInstructions(expr)
	if err != nil {
		return false, err
	}
	for _, in := range instrs {
		if imm, ok := in.Imm.(wasm.RefFuncImm); ok && !funcs.Contains(FuncID(imm.FuncIdx)) {
			return false, nil
		}
	}
	return true, nil
}

// compact keeps the local entries whose absolute index is live, filling
// mapping for every surviving index, imported ones included.
func compact[T any](locals []T, imported uint32, live mapset.Set[uint32], mapping map[uint32]uint32) ([]T, int) {
	for i := uint32(0); i < imported; i++ {
		mapping[i] = i
	}
	kept := locals[:0]
	removed := 0
	for i, v := range locals {
		idx := imported + uint32(i)
		if !live.Contains(idx) {
			removed++
			continue
		}
		mapping[idx] = imported + uint32(len(kept))
		kept = append(kept, v)
	}
	return kept, removed
}

func lookup(mapping map[uint32]uint32) func(uint32) uint32 {
	return func(idx uint32) uint32 {
		if to, ok := mapping[idx]; ok {
			return to
		}
		return idx
	}
}
