package main

import (
	"os"

	"github.com/pelletier/go-toml"

	"github.com/wippyai/godot-wasm-bindgen/bindgen"
	werrors "github.com/wippyai/godot-wasm-bindgen/errors"
)

// fileConfig is the TOML configuration file. Keys that are absent keep
// their defaults.
//
//	primary_namespace = "godot_wasm"
//	object_namespace = "godot_object_v2"
//	table_limit = 65520
//	grow_chunk = 16
//	mark_multi_memory = true
//	sweep = true
type fileConfig struct {
	PrimaryNamespace *string `toml:"primary_namespace"`
	ObjectNamespace  *string `toml:"object_namespace"`
	TableLimit       *uint32 `toml:"table_limit"`
	GrowChunk        *uint32 `toml:"grow_chunk"`
	MarkMultiMemory  *bool   `toml:"mark_multi_memory"`
	Sweep            *bool   `toml:"sweep"`
}

// loadOptions returns the default options overlaid with the file at path.
// An empty path yields the defaults.
func loadOptions(path string) (bindgen.Options, error) {
	opts := bindgen.DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, werrors.Load("read config "+path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return opts, werrors.Wrap(werrors.PhaseConfig, werrors.KindInvalidData, err, "parse config "+path)
	}

	if fc.PrimaryNamespace != nil {
		opts.PrimaryNamespace = *fc.PrimaryNamespace
	}
	if fc.ObjectNamespace != nil {
		opts.ObjectNamespace = *fc.ObjectNamespace
	}
	if fc.TableLimit != nil {
		opts.TableLimit = *fc.TableLimit
	}
	if fc.GrowChunk != nil {
		opts.GrowChunk = *fc.GrowChunk
	}
	if fc.MarkMultiMemory != nil {
		opts.MarkMultiMemory = *fc.MarkMultiMemory
	}
	if fc.Sweep != nil {
		opts.Sweep = *fc.Sweep
	}
	return opts, opts.Validate()
}
