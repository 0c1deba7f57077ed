package wasm

import (
	"errors"
	"fmt"
	"io"

	"github.com/wippyai/godot-wasm-bindgen/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

type sectionParser struct {
	parse func(*binary.Reader, *Module) error
	name  string
}

var sectionParsers = map[byte]sectionParser{
	SectionCustom:    {parseCustomSection, "custom"},
	SectionType:      {parseTypeSection, "type"},
	SectionImport:    {parseImportSection, "import"},
	SectionFunction:  {parseFunctionSection, "function"},
	SectionTable:     {parseTableSection, "table"},
	SectionMemory:    {parseMemorySection, "memory"},
	SectionGlobal:    {parseGlobalSection, "global"},
	SectionExport:    {parseExportSection, "export"},
	SectionStart:     {parseStartSection, "start"},
	SectionElement:   {parseElementSection, "element"},
	SectionCode:      {parseCodeSection, "code"},
	SectionData:      {parseDataSection, "data"},
	SectionDataCount: {parseDataCountSection, "data count"},
}

// ParseModule decodes a core WebAssembly binary.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	lastOrder := 0
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		p, ok := sectionParsers[id]
		if !ok {
			return nil, r.WrapError("section header", fmt.Errorf("unknown section ID 0x%02x", id))
		}
		if id != SectionCustom {
			order := sectionOrder(id)
			if order <= lastOrder {
				return nil, fmt.Errorf("%s section appears out of order", p.name)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError(p.name+" section size", err)
		}
		sr, err := r.Sub(int(size))
		if err != nil {
			return nil, r.WrapError(p.name+" section", err)
		}
		if err := p.parse(sr, m); err != nil {
			return nil, fmt.Errorf("%s section: %w", p.name, err)
		}
		if sr.Len() != 0 {
			return nil, fmt.Errorf("%s section: %d trailing bytes", p.name, sr.Len())
		}
	}
	return m, nil
}

// sectionOrder returns the canonical position of a section. DataCount sits
// between Element and Code even though its ID is larger.
func sectionOrder(id byte) int {
	switch id {
	case SectionDataCount:
		return int(SectionElement) + 1
	case SectionCode, SectionData:
		return int(id) + 1
	}
	return int(id)
}

// readVec reads a count followed by that many items.
func readVec(r *binary.Reader, each func(*binary.Reader) error) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	if int(n) > r.Len() {
		return fmt.Errorf("vector of %d items exceeds section size", n)
	}
	for i := uint32(0); i < n; i++ {
		if err := each(r); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	data, err := r.ReadRemaining()
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return fmt.Errorf("unsupported type form 0x%02x", form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
		return nil
	})
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	var out []ValType
	err := readVec(r, func(r *binary.Reader) error {
		vt, err := readValType(r)
		out = append(out, vt)
		return err
	})
	return out, err
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch v := ValType(b); v {
	case ValI32, ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExtern:
		return v, nil
	}
	return 0, fmt.Errorf("unsupported value type 0x%02x", b)
}

func parseImportSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		var imp Import
		var err error
		if imp.Module, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Name, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Desc.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		switch imp.Desc.Kind {
		case KindFunc:
			imp.Desc.TypeIdx, err = r.ReadU32()
		case KindTable:
			var t TableType
			t, err = readTableType(r)
			imp.Desc.Table = &t
		case KindMemory:
			var mt MemoryType
			mt.Limits, err = readLimits(r)
			imp.Desc.Memory = &mt
		case KindGlobal:
			var g GlobalType
			g, err = readGlobalType(r)
			imp.Desc.Global = &g
		default:
			return fmt.Errorf("unsupported import kind 0x%02x", imp.Desc.Kind)
		}
		if err != nil {
			return fmt.Errorf("import %s.%s: %w", imp.Module, imp.Name, err)
		}
		m.Imports = append(m.Imports, imp)
		return nil
	})
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		idx, err := r.ReadU32()
		m.Funcs = append(m.Funcs, idx)
		return err
	})
}

func parseTableSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		t, err := readTableType(r)
		m.Tables = append(m.Tables, t)
		return err
	})
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		l, err := readLimits(r)
		m.Memories = append(m.Memories, MemoryType{Limits: l})
		return err
	})
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readInitExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
		return nil
	})
}

func parseExportSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		var exp Export
		var err error
		if exp.Name, err = r.ReadName(); err != nil {
			return err
		}
		if exp.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		if exp.Kind > KindGlobal {
			return fmt.Errorf("export %q: unsupported kind 0x%02x", exp.Name, exp.Kind)
		}
		if exp.Idx, err = r.ReadU32(); err != nil {
			return err
		}
		m.Exports = append(m.Exports, exp)
		return nil
	})
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func parseElementSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		if flags > 7 {
			return fmt.Errorf("invalid element segment flags %d", flags)
		}
		e := Element{Flags: flags, Type: ValFuncRef}
		if flags&0x02 != 0 && flags&0x01 == 0 {
			if e.TableIdx, err = r.ReadU32(); err != nil {
				return err
			}
		}
		if flags&0x01 == 0 {
			if e.Offset, err = readInitExpr(r); err != nil {
				return err
			}
		}
		if flags&0x03 != 0 {
			if e.UsesExprs() {
				if e.Type, err = readValType(r); err != nil {
					return err
				}
			} else if e.ElemKind, err = r.ReadByte(); err != nil {
				return err
			}
		}
		if e.UsesExprs() {
			err = readVec(r, func(r *binary.Reader) error {
				expr, err := readInitExpr(r)
				e.Exprs = append(e.Exprs, expr)
				return err
			})
		} else {
			err = readVec(r, func(r *binary.Reader) error {
				idx, err := r.ReadU32()
				e.FuncIdxs = append(e.FuncIdxs, idx)
				return err
			})
		}
		if err != nil {
			return err
		}
		m.Elements = append(m.Elements, e)
		return nil
	})
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		br, err := r.Sub(int(size))
		if err != nil {
			return err
		}
		var body FuncBody
		var total uint64
		err = readVec(br, func(br *binary.Reader) error {
			count, err := br.ReadU32()
			if err != nil {
				return err
			}
			total += uint64(count)
			if total > 50000 {
				return fmt.Errorf("too many locals")
			}
			vt, err := readValType(br)
			body.Locals = append(body.Locals, LocalEntry{Count: count, ValType: vt})
			return err
		})
		if err != nil {
			return err
		}
		if body.Code, err = br.ReadRemaining(); err != nil {
			return err
		}
		m.Code = append(m.Code, body)
		return nil
	})
}

func parseDataSection(r *binary.Reader, m *Module) error {
	return readVec(r, func(r *binary.Reader) error {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		d := DataSegment{Flags: flags}
		switch flags {
		case 0:
		case 1:
		case 2:
			if d.MemIdx, err = r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid data segment flags %d", flags)
		}
		if flags != 1 {
			if d.Offset, err = readInitExpr(r); err != nil {
				return err
			}
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		if d.Init, err = r.ReadBytes(int(n)); err != nil {
			return err
		}
		m.Data = append(m.Data, d)
		return nil
	})
}

func parseDataCountSection(r *binary.Reader, m *Module) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.DataCount = &n
	return nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags&^(LimitsHasMax|LimitsShared|LimitsMemory64) != 0 {
		return Limits{}, fmt.Errorf("invalid limits flags 0x%02x", flags)
	}
	l := Limits{
		Shared:   flags&LimitsShared != 0,
		Memory64: flags&LimitsMemory64 != 0,
	}
	if l.Min, err = r.ReadU64(); err != nil {
		return Limits{}, err
	}
	if flags&LimitsHasMax != 0 {
		max, err := r.ReadU64()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &max
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	et, err := readValType(r)
	if err != nil {
		return TableType{}, err
	}
	if !et.IsRef() {
		return TableType{}, fmt.Errorf("table element type %s is not a reference", et)
	}
	l, err := readLimits(r)
	return TableType{ElemType: et, Limits: l}, err
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid global mutability %d", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

// readInitExpr returns the raw bytes of a constant expression, including
// the terminating end.
func readInitExpr(r *binary.Reader) ([]byte, error) {
	start := r.Position()
	for {
		op, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("unterminated constant expression: %w", io.ErrUnexpectedEOF)
			}
			return nil, err
		}
		if op == OpEnd {
			break
		}
		if _, err := decodeImmediate(r, op); err != nil {
			return nil, fmt.Errorf("constant expression opcode 0x%02x: %w", op, err)
		}
	}
	return r.Slice(start, r.Position()), nil
}
