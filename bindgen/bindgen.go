package bindgen

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/engine"
	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/ir"
	"github.com/wippyai/godot-wasm-bindgen/metadata"
)

// Defaults for Options.
const (
	DefaultPrimaryNamespace = engine.DefaultPrimaryNamespace
	DefaultObjectNamespace  = engine.DefaultObjectNamespace
	DefaultTableLimit       = engine.DefaultTableLimit
	DefaultGrowChunk        = engine.DefaultGrowChunk
	MaxTableLimit           = engine.MaxTableLimit
)

// ImportRef names an imported function.
type ImportRef = ir.ImportRef

// Rewrite records one import that was redirected to a generated adapter.
type Rewrite = engine.Rewrite

// FuncInfo describes one function of the output module.
type FuncInfo = engine.FuncInfo

// SweepStats counts what dead code removal dropped.
type SweepStats = ir.SweepStats

// Options configures Transform. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	// PrimaryNamespace is the import module of the guest API.
	PrimaryNamespace string
	// ObjectNamespace is the import module of the externref host API.
	ObjectNamespace string
	// TableLimit caps the number of slots. It must be a multiple of
	// GrowChunk and no larger than MaxTableLimit.
	TableLimit uint32
	// GrowChunk is how many slots the table grows by when the free list
	// runs dry.
	GrowChunk uint32
	// MarkMultiMemory adds multi-memory to an existing target_features
	// section.
	MarkMultiMemory bool
	// Sweep removes functions and entities nothing can reach.
	Sweep bool
}

// DefaultOptions returns the options the command line tool starts from.
func DefaultOptions() Options {
	c := engine.DefaultConfig()
	return Options{
		PrimaryNamespace: c.PrimaryNamespace,
		ObjectNamespace:  c.ObjectNamespace,
		TableLimit:       c.TableLimit,
		GrowChunk:        c.GrowChunk,
		MarkMultiMemory:  c.MarkMultiMemory,
		Sweep:            c.Sweep,
	}
}

func (o Options) config() engine.Config {
	return engine.Config{
		PrimaryNamespace: o.PrimaryNamespace,
		ObjectNamespace:  o.ObjectNamespace,
		TableLimit:       o.TableLimit,
		GrowChunk:        o.GrowChunk,
		MarkMultiMemory:  o.MarkMultiMemory,
		Sweep:            o.Sweep,
	}
}

// Validate reports whether the options are usable.
func (o Options) Validate() error {
	_, err := engine.New(o.config())
	return err
}

// Result is the outcome of a successful Transform.
type Result struct {
	// Bindgen is nil when the input had no bindgen section.
	Bindgen *metadata.BindgenData
	// Features is nil when the input had no target_features section.
	Features *metadata.TargetFeatures

	Output    []byte
	Rewritten []Rewrite
	// Exports lists the wrapped exports in declaration order.
	Exports []string
	Funcs   []FuncInfo
	Swept   SweepStats

	InputSize  int
	OutputSize int
}

// Transform rewrites a module binary.
//
// The transformation:
//   - Installs the slot table runtime (table, free list memory and the
//     alloc, free and get functions)
//   - Replaces known guest API imports with adapters over host externref
//     functions
//   - Wraps exports and imports declared in the bindgen section and drops
//     the section
//   - Removes unreachable functions, globals, tables, memories and
//     element segments
//
// Nothing is returned on failure; there is no partial output.
func Transform(ctx context.Context, input []byte, opts Options) (*Result, error) {
	eng, err := engine.New(opts.config())
	if err != nil {
		return nil, err
	}
	out, err := eng.Transform(ctx, input)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Bindgen:    out.Bindgen,
		Features:   out.Features,
		Output:     out.Binary,
		Rewritten:  out.Rewritten,
		Exports:    out.Exports,
		Funcs:      out.Funcs,
		Swept:      out.Swept,
		InputSize:  len(input),
		OutputSize: len(out.Binary),
	}
	Logger().Info("transformed module",
		zap.Int("input_size", res.InputSize),
		zap.Int("output_size", res.OutputSize),
		zap.Int("functions", len(res.Funcs)),
		zap.Int("swept_functions", res.Swept.Funcs))
	return res, nil
}
