package metadata

import (
	"github.com/wippyai/godot-wasm-bindgen/errors"
)

// SectionName is the custom section carrying BindgenData.
const SectionName = "__godot_wasm_bindgen_data"

// Version is the only record version understood.
var Version = [4]byte{1, 0, 0, 0}

// Symbol discriminants.
const (
	tagImport uint64 = 0
	tagExport uint64 = 64
)

// recordHeader is the shortest input that can start a record: the version
// and a one byte length.
var recordHeader = len(Version) + 1

// ParseBindgenData decodes a complete bindgen section. Every byte must
// belong to a record; a tail too short to start one is trailing data.
func ParseBindgenData(b []byte) (*BindgenData, error) {
	syms, _, err := AllConsuming(ManyMin(recordHeader, parseSymbol))(b)
	if err != nil {
		return nil, err
	}
	return &BindgenData{Symbols: syms}, nil
}

func parseSymbol(in []byte) (Symbol, []byte, error) {
	_, rest, err := Context("version", Tag(Version[:], errors.KindUnsupportedVersion))(in)
	if err != nil {
		return Symbol{}, nil, err
	}
	sym, rest, err := LengthPrefixed(parseSymbolBody)(rest)
	if err != nil {
		return Symbol{}, nil, err
	}
	sym.Version = Version
	return sym, rest, nil
}

func parseSymbolBody(in []byte) (Symbol, []byte, error) {
	tag, rest, err := DecodeVarint(in)
	if err != nil {
		return Symbol{}, nil, err
	}
	switch tag {
	case tagExport:
		f, rest, err := Context("export", parseExport)(rest)
		return Symbol{Export: f}, rest, err
	case tagImport:
		f, rest, err := Context("import", parseImport)(rest)
		return Symbol{Import: f}, rest, err
	}
	return Symbol{}, nil, errors.New(errors.PhaseMetadata, errors.KindUnrecognizedSymbol).
		Value(tag).
		Detail("unrecognized symbol kind %d", tag).
		Build()
}

func parseExport(in []byte) (*ExportFunction, []byte, error) {
	name, rest, err := Context("name", Name())(in)
	if err != nil {
		return nil, nil, err
	}
	args, rest, err := parseFunctionArgs(rest)
	if err != nil {
		return nil, nil, err
	}
	return &ExportFunction{Name: name, Args: args}, rest, nil
}

func parseImport(in []byte) (*ImportFunction, []byte, error) {
	module, rest, err := Context("module", Name())(in)
	if err != nil {
		return nil, nil, err
	}
	name, rest, err := Context("name", Name())(rest)
	if err != nil {
		return nil, nil, err
	}
	args, rest, err := parseFunctionArgs(rest)
	if err != nil {
		return nil, nil, err
	}
	return &ImportFunction{Module: module, Name: name, Args: args}, rest, nil
}

func parseFunctionArgs(in []byte) (FunctionArgs, []byte, error) {
	params, rest, err := Context("params", Count(parseArgType))(in)
	if err != nil {
		return FunctionArgs{}, nil, err
	}
	results, rest, err := Context("results", Count(parseArgType))(rest)
	if err != nil {
		return FunctionArgs{}, nil, err
	}
	return FunctionArgs{Params: params, Results: results}, rest, nil
}

func parseArgType(in []byte) (ArgType, []byte, error) {
	b, rest, err := Byte()(in)
	if err != nil {
		return 0, nil, err
	}
	t := ArgType(b)
	if !t.Valid() {
		return 0, nil, errors.New(errors.PhaseMetadata, errors.KindInvalidArgType).
			Value(b).
			Detail("invalid argument type %d", b).
			Build()
	}
	return t, rest, nil
}

// Encode serializes the records. ParseBindgenData(d.Encode()) equals d.
func (d *BindgenData) Encode() []byte {
	var out []byte
	for _, s := range d.Symbols {
		out = s.AppendTo(out)
	}
	return out
}

// AppendTo appends the encoded record to dst. The record is always written
// with the current Version. It panics unless exactly one of Export and
// Import is set, since no record can represent anything else.
func (s Symbol) AppendTo(dst []byte) []byte {
	if (s.Export == nil) == (s.Import == nil) {
		panic("metadata: symbol must set exactly one of Export and Import")
	}
	dst = append(dst, Version[:]...)
	return appendFramed(dst, func(b []byte) []byte {
		if s.Export != nil {
			b = AppendVarint(b, tagExport)
			b = appendName(b, s.Export.Name)
			return s.Export.Args.appendTo(b)
		}
		b = AppendVarint(b, tagImport)
		b = appendName(b, s.Import.Module)
		b = appendName(b, s.Import.Name)
		return s.Import.Args.appendTo(b)
	})
}

func (a FunctionArgs) appendTo(dst []byte) []byte {
	dst = appendArgTypes(dst, a.Params)
	return appendArgTypes(dst, a.Results)
}

func appendArgTypes(dst []byte, args []ArgType) []byte {
	dst = AppendVarint(dst, uint64(len(args)))
	for _, a := range args {
		dst = append(dst, byte(a))
	}
	return dst
}

func appendName(dst []byte, s string) []byte {
	return AppendLengthPrefixed(dst, []byte(s))
}
