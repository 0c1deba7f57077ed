package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/wippyai/godot-wasm-bindgen/bindgen"
	werrors "github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/metadata"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

// writeModule writes a module exporting echo, declared in the bindgen
// section with nParams host value parameters, and returns its path.
func writeModule(t *testing.T, nParams int, withMemory bool) string {
	t.Helper()
	i32ToI32 := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
	w := &wasm.Module{
		Types:   []wasm.FuncType{i32ToI32},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "echo", Kind: wasm.KindFunc, Idx: 0}},
		Code:    []wasm.FuncBody{{Code: []byte{wasm.OpLocalGet, 0x00, wasm.OpEnd}}},
	}
	if withMemory {
		w.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
		w.Exports = append(w.Exports, wasm.Export{Name: "memory", Kind: wasm.KindMemory, Idx: 0})
	}
	params := make([]metadata.ArgType, nParams)
	for i := range params {
		params[i] = metadata.GodotValue
	}
	bg := &metadata.BindgenData{Symbols: []metadata.Symbol{{
		Version: metadata.Version,
		Export: &metadata.ExportFunction{
			Name: "echo",
			Args: metadata.FunctionArgs{Params: params, Results: []metadata.ArgType{metadata.GodotValue}},
		},
	}}}
	w.CustomSections = append(w.CustomSections, wasm.CustomSection{Name: metadata.SectionName, Data: bg.Encode()})

	path := filepath.Join(t.TempDir(), "in.wasm")
	if err := os.WriteFile(path, w.Encode(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunWritesOutput(t *testing.T) {
	in := writeModule(t, 1, false)
	out := filepath.Join(t.TempDir(), "out.wasm")

	stdout, _, err := execute(t, in, "-o", out, "-q", "--verify")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "" {
		t.Errorf("quiet run printed %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	if _, ok := m.CustomSection(metadata.SectionName); ok {
		t.Error("bindgen section left in output")
	}
}

func TestRunListing(t *testing.T) {
	stdout, _, err := execute(t, writeModule(t, 1, false))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{
		"Bindgen symbols",
		"export echo (godot_value) -> (godot_value)",
		"Functions",
		"godot_wasm.alloc",
		"(externref) -> (externref)",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("listing lacks %q:\n%s", want, stdout)
		}
	}
}

func TestRunFailureWritesNothing(t *testing.T) {
	in := writeModule(t, 2, false)
	out := filepath.Join(t.TempDir(), "out.wasm")

	_, _, err := execute(t, in, "-o", out)
	var e *werrors.Error
	if !errors.As(err, &e) || e.Kind != werrors.KindLengthMismatch {
		t.Fatalf("err = %v, want length mismatch", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output written despite failure: %v", err)
	}
}

func TestRunMissingInput(t *testing.T) {
	_, _, err := execute(t, filepath.Join(t.TempDir(), "absent.wasm"))
	var e *werrors.Error
	if !errors.As(err, &e) || e.Phase != werrors.PhaseLoad {
		t.Errorf("err = %v, want load error", err)
	}
	if _, _, err := execute(t); err == nil {
		t.Error("missing argument accepted")
	}
}

func TestRunVerifyWarnsOnMultiMemory(t *testing.T) {
	_, stderr, err := execute(t, writeModule(t, 1, true), "-q", "--verify")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr, "Warning:") {
		t.Errorf("stderr = %q, want a warning", stderr)
	}
}

func TestRunInteractiveNeedsTerminal(t *testing.T) {
	_, _, err := execute(t, writeModule(t, 1, false), "-i")
	if !errors.Is(err, werrors.New(werrors.PhaseConfig, werrors.KindInvalidInput).Build()) {
		t.Errorf("err = %v, want config error", err)
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	opts, err := loadOptions("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(bindgen.DefaultOptions(), opts); diff != "" {
		t.Errorf("empty path (-want +got):\n%s", diff)
	}

	opts, err = loadOptions(write("partial.toml", "table_limit = 32\nsweep = false\nobject_namespace = \"host\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := bindgen.DefaultOptions()
	want.TableLimit = 32
	want.Sweep = false
	want.ObjectNamespace = "host"
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("partial file (-want +got):\n%s", diff)
	}

	if _, err := loadOptions(write("bad.toml", "table_limit = 33\n")); err == nil {
		t.Error("limit that is not a multiple of the chunk accepted")
	}
	if _, err := loadOptions(write("syntax.toml", "table_limit = = 1\n")); err == nil {
		t.Error("malformed file accepted")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	opts := &options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.addFlags(flags)
	if err := flags.Parse([]string{"--table-limit", "64", "--no-sweep"}); err != nil {
		t.Fatal(err)
	}

	bo := bindgen.DefaultOptions()
	opts.apply(flags, &bo)
	if bo.TableLimit != 64 || bo.Sweep {
		t.Errorf("options = %+v", bo)
	}
	if bo.GrowChunk != bindgen.DefaultGrowChunk {
		t.Errorf("unchanged flag overrode grow chunk: %d", bo.GrowChunk)
	}
}

func TestInspector(t *testing.T) {
	data, err := os.ReadFile(writeModule(t, 1, false))
	if err != nil {
		t.Fatal(err)
	}
	res, err := bindgen.Transform(t.Context(), data, bindgen.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	m := newInspectorModel("in.wasm", res)
	if m.View() != "Loading..." {
		t.Errorf("view before sizing = %q", m.View())
	}
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	if !strings.Contains(m.View(), "godot_wasm.alloc") {
		t.Errorf("functions view:\n%s", m.View())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.filtering {
		t.Fatal("slash should start filtering")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("get")})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filtering {
		t.Error("enter should stop filtering")
	}
	funcs := m.visibleFuncs()
	if len(funcs) != 1 || funcs[0].Name != "godot_wasm.get" {
		t.Errorf("filtered = %+v", funcs)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.tab != tabSymbols || !strings.Contains(m.View(), "export echo") {
		t.Errorf("symbols view:\n%s", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce a quit message")
	}
}
