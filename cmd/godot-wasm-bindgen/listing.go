package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/docker/go-units"

	"github.com/wippyai/godot-wasm-bindgen/bindgen"
	"github.com/wippyai/godot-wasm-bindgen/metadata"
)

// listing prints a transformation result. Colours are only emitted when
// the writer is a terminal.
type listing struct {
	w io.Writer

	title   lipgloss.Style
	section lipgloss.Style
	name    lipgloss.Style
	typ     lipgloss.Style
	dim     lipgloss.Style
	header  lipgloss.Style
}

func newListing(w io.Writer) *listing {
	r := lipgloss.NewRenderer(w)
	return &listing{
		w: w,
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		section: r.NewStyle().Bold(true),
		name:    r.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		typ:     r.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("#666666")),
		header:  r.NewStyle().Bold(true).Padding(0, 1),
	}
}

func (l *listing) render(path string, res *bindgen.Result) {
	fmt.Fprintf(l.w, "%s %s  %s -> %s\n\n",
		l.title.Render("godot-wasm-bindgen"), path,
		units.HumanSize(float64(res.InputSize)),
		units.HumanSize(float64(res.OutputSize)))

	l.symbols(res.Bindgen)
	l.features(res.Features)
	l.rewrites(res.Rewritten)
	l.funcs(res.Funcs)
	if s := res.Swept; s.Removed() {
		fmt.Fprintln(l.w, l.dim.Render(fmt.Sprintf(
			"swept %d functions, %d imports, %d globals, %d tables, %d memories, %d element segments",
			s.Funcs, s.Imports, s.Globals, s.Tables, s.Memories, s.Elements)))
	}
}

func (l *listing) heading(text string, n int) {
	fmt.Fprintf(l.w, "%s %s\n", l.section.Render(text), l.dim.Render("("+strconv.Itoa(n)+")"))
}

func (l *listing) symbols(d *metadata.BindgenData) {
	if d == nil {
		fmt.Fprintln(l.w, l.dim.Render("no bindgen section"))
		fmt.Fprintln(l.w)
		return
	}
	l.heading("Bindgen symbols", len(d.Symbols))
	for _, s := range d.Symbols {
		switch {
		case s.Export != nil:
			fmt.Fprintf(l.w, "  export %s %s\n", l.name.Render(s.Export.Name), l.typ.Render(s.Export.Args.String()))
		case s.Import != nil:
			fmt.Fprintf(l.w, "  import %s %s\n", l.name.Render(s.Import.Key().String()), l.typ.Render(s.Import.Args.String()))
		}
	}
	fmt.Fprintln(l.w)
}

func (l *listing) features(tf *metadata.TargetFeatures) {
	if tf == nil {
		return
	}
	parts := make([]string, len(tf.Features))
	for i, f := range tf.Features {
		sign := "-"
		if f.Enabled {
			sign = "+"
		}
		parts[i] = sign + f.Name
	}
	l.heading("Target features", len(parts))
	fmt.Fprintf(l.w, "  %s\n\n", strings.Join(parts, " "))
}

func (l *listing) rewrites(rws []bindgen.Rewrite) {
	if len(rws) == 0 {
		return
	}
	l.heading("Rewritten imports", len(rws))
	for _, rw := range rws {
		target := l.dim.Render("no host import")
		if rw.New.Module != "" {
			target = rw.New.String()
		}
		fmt.Fprintf(l.w, "  %s -> %s via %s\n", l.name.Render(rw.Old.String()), target, rw.Adapter)
	}
	fmt.Fprintln(l.w)
}

func (l *listing) funcs(fs []bindgen.FuncInfo) {
	l.heading("Functions", len(fs))
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(l.dim).
		Headers("INDEX", "NAME", "TYPE", "IMPORT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return l.header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, f := range fs {
		imp := ""
		if f.Import != nil {
			imp = f.Import.String()
		}
		t.Row(strconv.FormatUint(uint64(f.Index), 10), f.Name, f.Type.String(), imp)
	}
	fmt.Fprintln(l.w, t.Render())
}
