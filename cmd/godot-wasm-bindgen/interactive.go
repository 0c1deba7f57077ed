package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/godot-wasm-bindgen/bindgen"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectorTab int

const (
	tabFunctions inspectorTab = iota
	tabSymbols
	tabRewrites
	numTabs
)

var tabTitles = [numTabs]string{"Functions", "Symbols", "Rewrites"}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Next   key.Binding
	Filter key.Binding
	Done   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Next, k.Filter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Done}}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Done:   key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter/esc", "stop filtering")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// chromeHeight is the number of lines around the viewport.
const chromeHeight = 6

type inspectorModel struct {
	res      *bindgen.Result
	filename string

	help      help.Model
	filter    textinput.Model
	viewport  viewport.Model
	ready     bool
	filtering bool
	tab       inspectorTab
	selected  int
}

func newInspectorModel(filename string, res *bindgen.Result) *inspectorModel {
	ti := textinput.New()
	ti.Prompt = "filter: "
	ti.Placeholder = "function name"
	ti.Width = 40
	return &inspectorModel{
		res:      res,
		filename: filename,
		help:     help.New(),
		filter:   ti,
	}
}

func (m *inspectorModel) Init() tea.Cmd { return nil }

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			if key.Matches(msg, keys.Done) {
				m.filtering = false
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.selected = 0
			m.refresh()
			return m, cmd
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.tab = (m.tab + 1) % numTabs
			m.selected = 0
			m.viewport.GotoTop()
			m.refresh()
			return m, nil
		case key.Matches(msg, keys.Filter) && m.tab == tabFunctions:
			m.filtering = true
			return m, m.filter.Focus()
		case key.Matches(msg, keys.Up) && m.tab == tabFunctions:
			if m.selected > 0 {
				m.selected--
			}
			m.refresh()
			return m, nil
		case key.Matches(msg, keys.Down) && m.tab == tabFunctions:
			if m.selected < len(m.visibleFuncs())-1 {
				m.selected++
			}
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *inspectorModel) visibleFuncs() []bindgen.FuncInfo {
	q := strings.ToLower(m.filter.Value())
	if q == "" {
		return m.res.Funcs
	}
	var out []bindgen.FuncInfo
	for _, f := range m.res.Funcs {
		if strings.Contains(strings.ToLower(f.Name), q) {
			out = append(out, f)
		}
	}
	return out
}

// refresh renders the active tab into the viewport and keeps the
// selection visible.
func (m *inspectorModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.content())
	if m.tab != tabFunctions {
		return
	}
	switch {
	case m.selected < m.viewport.YOffset:
		m.viewport.SetYOffset(m.selected)
	case m.selected >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(m.selected - m.viewport.Height + 1)
	}
}

func (m *inspectorModel) content() string {
	var b strings.Builder
	switch m.tab {
	case tabFunctions:
		funcs := m.visibleFuncs()
		if len(funcs) == 0 {
			b.WriteString(dimStyle.Render("no matching functions"))
		}
		for i, f := range funcs {
			line := fmt.Sprintf("%4d %s %s", f.Index, f.Name, f.Type)
			if f.Import != nil {
				line += " import " + f.Import.String()
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + formatFunc(f))
			}
			b.WriteByte('\n')
		}

	case tabSymbols:
		if m.res.Bindgen == nil {
			b.WriteString(dimStyle.Render("no bindgen section"))
			break
		}
		for _, s := range m.res.Bindgen.Symbols {
			b.WriteString(s.String())
			b.WriteByte('\n')
		}

	case tabRewrites:
		if len(m.res.Rewritten) == 0 {
			b.WriteString(dimStyle.Render("no imports rewritten"))
		}
		for _, rw := range m.res.Rewritten {
			target := "no host import"
			if rw.New.Module != "" {
				target = rw.New.String()
			}
			fmt.Fprintf(&b, "%s -> %s via %s\n", funcStyle.Render(rw.Old.String()), target, rw.Adapter)
		}
	}
	return b.String()
}

func formatFunc(f bindgen.FuncInfo) string {
	s := fmt.Sprintf("%4d %s %s", f.Index, funcStyle.Render(f.Name), typeStyle.Render(f.Type.String()))
	if f.Import != nil {
		s += dimStyle.Render(" import " + f.Import.String())
	}
	return s
}

func (m *inspectorModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("godot-wasm-bindgen"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	tabs := make([]string, numTabs)
	for i, title := range tabTitles {
		if inspectorTab(i) == m.tab {
			tabs[i] = activeTabStyle.Render(title)
		} else {
			tabs[i] = tabStyle.Render(title)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func runInspector(filename string, res *bindgen.Result) error {
	p := tea.NewProgram(newInspectorModel(filename, res), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
