package bindgen

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// Verify compiles a transformed module to check that it validates.
//
// wazero has no multi-memory support, so a module that ends up with more
// than one memory (every module that had its own memory before the slot
// runtime was added) is reported as unsupported rather than invalid.
func Verify(ctx context.Context, bin []byte) error {
	m, err := wasm.ParseModule(bin)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "parse output")
	}
	if n := m.NumMemories(); n > 1 {
		return errors.Unsupported(errors.PhaseVerify, fmt.Sprintf("validation of a module with %d memories", n))
	}

	cfg := wazero.NewRuntimeConfig().WithCoreFeatures(api.CoreFeaturesV2)
	r := wazero.NewRuntimeWithConfig(ctx, cfg)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "compile output")
	}
	defer compiled.Close(ctx)

	Logger().Debug("verified module",
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return nil
}
