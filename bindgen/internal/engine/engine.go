package engine

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/ir"
	"github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/metadata"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// Defaults for Config.
const (
	DefaultPrimaryNamespace        = "godot_wasm"
	DefaultObjectNamespace         = "godot_object_v2"
	DefaultTableLimit       uint32 = 65520
	DefaultGrowChunk        uint32 = 16

	// MaxTableLimit is the largest slot count a 16-bit cell can address.
	MaxTableLimit uint32 = 65535
)

// MultiMemoryFeature is added to target_features when present.
const MultiMemoryFeature = "multi-memory"

// Config configures the transformation engine.
type Config struct {
	PrimaryNamespace string
	ObjectNamespace  string
	TableLimit       uint32
	GrowChunk        uint32
	MarkMultiMemory  bool
	Sweep            bool
}

// DefaultConfig returns the configuration used by the command line tool.
func DefaultConfig() Config {
	return Config{
		PrimaryNamespace: DefaultPrimaryNamespace,
		ObjectNamespace:  DefaultObjectNamespace,
		TableLimit:       DefaultTableLimit,
		GrowChunk:        DefaultGrowChunk,
		MarkMultiMemory:  true,
		Sweep:            true,
	}
}

func (c Config) validate() error {
	switch {
	case c.PrimaryNamespace == "" || c.ObjectNamespace == "":
		return errors.InvalidInput(errors.PhaseConfig, "namespaces must not be empty")
	case c.GrowChunk == 0:
		return errors.InvalidInput(errors.PhaseConfig, "grow chunk must be positive")
	case c.TableLimit == 0 || c.TableLimit > MaxTableLimit:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.TableLimit).
			Detail("table limit %d outside 1..%d", c.TableLimit, MaxTableLimit).
			Build()
	case c.TableLimit%c.GrowChunk != 0:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.TableLimit).
			Detail("table limit %d is not a multiple of grow chunk %d", c.TableLimit, c.GrowChunk).
			Build()
	}
	return nil
}

// FuncInfo describes one function of the output module.
type FuncInfo struct {
	Import *ir.ImportRef
	Name   string
	Type   wasm.FuncType
	Index  uint32
}

// Output is the result of a transformation.
type Output struct {
	Module   *wasm.Module
	Bindgen  *metadata.BindgenData
	Features *metadata.TargetFeatures
	Binary   []byte

	// Rewritten lists catalogue imports followed by substituted imports.
	Rewritten []Rewrite
	Exports   []string
	Funcs     []FuncInfo
	Swept     ir.SweepStats
}

// Engine runs the transformation pipeline. It holds no state between
// Transform calls.
type Engine struct {
	cfg Config
}

// New creates an engine after validating cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Transform rewrites a module binary. The context is checked between
// phases.
//
// The transformation:
//  1. Parses the module and its target_features and bindgen sections
//  2. Lifts functions into the identity graph
//  3. Installs the slot table runtime
//  4. Replaces catalogue imports with adapters
//  5. Substitutes declared exports and imports, dropping the bindgen section
//  6. Sweeps unreachable code
//  7. Marks multi-memory in target_features
//  8. Lowers and encodes the result
func (e *Engine) Transform(ctx context.Context, data []byte) (*Output, error) {
	w, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.ParseFailed("module", err)
	}

	out := &Output{}
	if cs, ok := w.CustomSection(metadata.TargetFeaturesSection); ok {
		if out.Features, err = metadata.ParseTargetFeatures(cs.Data); err != nil {
			return nil, err
		}
	}
	if cs, ok := w.CustomSection(metadata.SectionName); ok {
		if out.Bindgen, err = metadata.ParseBindgenData(cs.Data); err != nil {
			return nil, err
		}
		Logger().Debug("decoded bindgen data", zap.Int("symbols", len(out.Bindgen.Symbols)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := ir.Lift(w)
	if err != nil {
		return nil, err
	}
	rt, err := InstallRuntime(m, e.cfg)
	if err != nil {
		return nil, err
	}
	if out.Rewritten, err = RewriteHostImports(m, rt, e.cfg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if out.Bindgen != nil {
		m.Wasm.RemoveCustomSections(metadata.SectionName)
		if out.Exports, err = SubstituteExports(m, rt, out.Bindgen.Exports()); err != nil {
			return nil, err
		}
		subs, err := SubstituteImports(m, rt, out.Bindgen.Imports())
		if err != nil {
			return nil, err
		}
		out.Rewritten = append(out.Rewritten, subs...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.cfg.Sweep {
		if out.Swept, err = m.Sweep(); err != nil {
			return nil, err
		}
	}

	if out.Features != nil && e.cfg.MarkMultiMemory {
		out.Features.Enable(MultiMemoryFeature)
		m.Wasm.SetCustomSection(metadata.TargetFeaturesSection, out.Features.Encode())
	}

	out.Funcs = listFuncs(m)
	if out.Module, err = m.Lower(); err != nil {
		return nil, err
	}
	out.Binary = out.Module.Encode()

	Logger().Debug("transformed module",
		zap.Int("input", len(data)),
		zap.Int("output", len(out.Binary)),
		zap.Int("rewritten", len(out.Rewritten)),
		zap.Int("exports", len(out.Exports)))
	return out, nil
}

func listFuncs(m *ir.Module) []FuncInfo {
	index := m.Index()
	out := make([]FuncInfo, 0, m.Len())
	for _, f := range m.Funcs() {
		ft, _ := m.FuncType(f.ID)
		out = append(out, FuncInfo{Index: index[f.ID], Name: f.Name, Type: ft, Import: f.Import})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
