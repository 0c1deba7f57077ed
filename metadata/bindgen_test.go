package metadata

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"pgregory.net/rapid"

	werrors "github.com/wippyai/godot-wasm-bindgen/errors"
	"github.com/wippyai/godot-wasm-bindgen/wasm"
)

func argTypeGen() *rapid.Generator[ArgType] {
	return rapid.Map(rapid.ByteRange(byte(U8), byte(GodotValue)), func(b byte) ArgType { return ArgType(b) })
}

func argsGen() *rapid.Generator[FunctionArgs] {
	return rapid.Custom(func(t *rapid.T) FunctionArgs {
		return FunctionArgs{
			Params:  rapid.SliceOfN(argTypeGen(), 0, 8).Draw(t, "params"),
			Results: rapid.SliceOfN(argTypeGen(), 0, 4).Draw(t, "results"),
		}
	})
}

func symbolGen() *rapid.Generator[Symbol] {
	return rapid.Custom(func(t *rapid.T) Symbol {
		s := Symbol{Version: Version}
		if rapid.Bool().Draw(t, "export") {
			s.Export = &ExportFunction{
				Name: rapid.String().Draw(t, "name"),
				Args: argsGen().Draw(t, "args"),
			}
		} else {
			s.Import = &ImportFunction{
				Module: rapid.String().Draw(t, "module"),
				Name:   rapid.String().Draw(t, "name"),
				Args:   argsGen().Draw(t, "args"),
			}
		}
		return s
	})
}

func TestBindgenDataRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := &BindgenData{Symbols: rapid.SliceOfN(symbolGen(), 0, 6).Draw(t, "symbols")}
		got, err := ParseBindgenData(d.Encode())
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if diff := cmp.Diff(d, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("round trip (-want +got):\n%s", diff)
		}
	})
}

func TestParseBindgenDataKnownBytes(t *testing.T) {
	// export "f" (godot_value) -> (godot_value)
	data := []byte{1, 0, 0, 0, 0x07, 0x40, 0x01, 'f', 0x01, 0x0b, 0x01, 0x0b}
	d, err := ParseBindgenData(data)
	if err != nil {
		t.Fatal(err)
	}
	want := &BindgenData{Symbols: []Symbol{{
		Version: Version,
		Export: &ExportFunction{Name: "f", Args: FunctionArgs{
			Params:  []ArgType{GodotValue},
			Results: []ArgType{GodotValue},
		}},
	}}}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !bytes.Equal(d.Encode(), data) {
		t.Errorf("Encode = %x, want %x", d.Encode(), data)
	}
}

func TestParseBindgenDataErrors(t *testing.T) {
	valid := (&BindgenData{Symbols: []Symbol{{
		Import: &ImportFunction{Module: "env", Name: "g", Args: FunctionArgs{Params: []ArgType{I32}}},
	}}}).Encode()

	tests := []struct {
		name string
		data []byte
		kind werrors.Kind
	}{
		{"unsupported version", append([]byte{2, 0, 0, 0}, valid[4:]...), werrors.KindUnsupportedVersion},
		{"short tail only", []byte{1, 0}, werrors.KindTrailingData},
		{"unknown discriminant", []byte{1, 0, 0, 0, 0x01, 0x05}, werrors.KindUnrecognizedSymbol},
		{"trailing body bytes", []byte{1, 0, 0, 0, 0x06, 0x40, 0x00, 0x00, 0x00, 0xff, 0xff}, werrors.KindTrailingData},
		{"truncated body", []byte{1, 0, 0, 0, 0x09, 0x40}, werrors.KindUnexpectedEOF},
		{"invalid utf8", []byte{1, 0, 0, 0, 0x05, 0x40, 0x01, 0xff, 0x00, 0x00}, werrors.KindInvalidUTF8},
		{"trailing garbage", append(append([]byte(nil), valid...), 0x01), werrors.KindTrailingData},
		{"trailing version only", append(append([]byte(nil), valid...), 1, 0, 0, 0), werrors.KindTrailingData},
		{"truncated second record", append(append([]byte(nil), valid...), 1, 0, 0, 0, 0x09), werrors.KindUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBindgenData(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			var e *werrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("not a structured error: %v", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", e.Kind, tt.kind, err)
			}
		})
	}
}

func TestTrailingGarbageReportsRemainder(t *testing.T) {
	valid := (&BindgenData{Symbols: []Symbol{{
		Export: &ExportFunction{Name: "f"},
	}}}).Encode()
	_, err := ParseBindgenData(append(valid, 0xAA, 0xBB))
	var e *werrors.Error
	if !errors.As(err, &e) || e.Kind != werrors.KindTrailingData {
		t.Fatalf("err = %v, want trailing data", err)
	}
	if e.Value != 2 {
		t.Errorf("remaining = %v, want 2", e.Value)
	}
}

func TestAppendToRejectsEmptySymbol(t *testing.T) {
	tests := map[string]Symbol{
		"neither": {},
		"both": {
			Export: &ExportFunction{Name: "f"},
			Import: &ImportFunction{Module: "env", Name: "g"},
		},
	}
	for name, sym := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("AppendTo did not panic")
				}
			}()
			sym.AppendTo(nil)
		})
	}
}

func TestArgTypeBoundaries(t *testing.T) {
	for _, code := range []byte{0, 12, 0xff} {
		_, _, err := parseArgType([]byte{code})
		var e *werrors.Error
		if !errors.As(err, &e) || e.Kind != werrors.KindInvalidArgType {
			t.Errorf("code %d: err = %v, want invalid_arg_type", code, err)
		}
	}
	want := []ArgType{U8, I8, U16, I16, U32, I32, U64, I64, F32, F64, GodotValue}
	for i, w := range want {
		got, _, err := parseArgType([]byte{byte(i + 1)})
		if err != nil || got != w {
			t.Errorf("code %d: got %v, %v; want %v", i+1, got, err, w)
		}
	}
}

func TestArgTypeErrorPath(t *testing.T) {
	data := []byte{1, 0, 0, 0, 0x06, 0x40, 0x01, 'f', 0x01, 0x0c, 0x00}
	_, err := ParseBindgenData(data)
	var e *werrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v", err)
	}
	if diff := cmp.Diff([]string{"0", "export", "params", "0"}, e.Path); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}
}

func TestArgTypeValType(t *testing.T) {
	tests := map[ArgType]wasm.ValType{
		U8: wasm.ValI32, I8: wasm.ValI32, U16: wasm.ValI32, I16: wasm.ValI32,
		U32: wasm.ValI32, I32: wasm.ValI32, U64: wasm.ValI64, I64: wasm.ValI64,
		F32: wasm.ValF32, F64: wasm.ValF64, GodotValue: wasm.ValExtern,
	}
	for at, want := range tests {
		if got := at.ValType(); got != want {
			t.Errorf("%s.ValType() = %s, want %s", at, got, want)
		}
	}
	if Erase(wasm.ValExtern) != wasm.ValI32 || Erase(wasm.ValF64) != wasm.ValF64 {
		t.Error("Erase mapping wrong")
	}
	args := FunctionArgs{Params: []ArgType{GodotValue, U8}, Results: []ArgType{GodotValue}}
	if got := args.ErasedFuncType(); !got.Equal(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}) {
		t.Errorf("ErasedFuncType = %s", got)
	}
}

func TestLookupShadowing(t *testing.T) {
	first := &ExportFunction{Name: "f"}
	second := &ExportFunction{Name: "f", Args: FunctionArgs{Params: []ArgType{I32}}}
	imp := &ImportFunction{Module: "env", Name: "f"}
	d := &BindgenData{Symbols: []Symbol{{Export: first}, {Import: imp}, {Export: second}}}

	if got := d.Exports()["f"]; got != second {
		t.Error("later export should shadow earlier")
	}
	if got := d.Imports()[ImportKey{Module: "env", Name: "f"}]; got != imp {
		t.Error("import lookup failed")
	}
	if len(d.Exports()) != 1 || len(d.Imports()) != 1 {
		t.Error("exports and imports must be keyed separately")
	}
}

func TestTargetFeatures(t *testing.T) {
	data := []byte{0x02, '+', 0x0f}
	data = append(data, "reference-types"...)
	data = append(data, '-', 0x04)
	data = append(data, "simd"...)

	tf, err := ParseTargetFeatures(data)
	if err != nil {
		t.Fatal(err)
	}
	want := &TargetFeatures{Features: []Feature{
		{Name: "reference-types", Enabled: true},
		{Name: "simd"},
	}}
	if diff := cmp.Diff(want, tf); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if !bytes.Equal(tf.Encode(), data) {
		t.Errorf("Encode = %x", tf.Encode())
	}

	if !tf.Enable("multi-memory") || tf.Enable("multi-memory") {
		t.Error("Enable should add once")
	}
	if !tf.Has("multi-memory") || tf.Has("simd") {
		t.Error("Has reports wrong state")
	}
}

func TestTargetFeaturesRejectsSign(t *testing.T) {
	for _, sign := range []byte{0x00, '*'} {
		_, err := ParseTargetFeatures([]byte{0x01, sign, 0x01, 'x'})
		var e *werrors.Error
		if !errors.As(err, &e) || e.Kind != werrors.KindUnknownFeatureFlag {
			t.Fatalf("sign 0x%02x: err = %v", sign, err)
		}
		if e.Detail == "" {
			t.Error("error should describe the flag")
		}
	}
}

func TestTargetFeaturesTrailing(t *testing.T) {
	_, err := ParseTargetFeatures([]byte{0x00, 0x00})
	if !errors.Is(err, werrors.New("", werrors.KindTrailingData).Build()) {
		t.Errorf("err = %v, want trailing data", err)
	}
}
