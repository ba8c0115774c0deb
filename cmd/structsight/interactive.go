package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/structsight/analyzer"
	"github.com/wippyai/structsight/layout"
	"github.com/wippyai/structsight/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	savingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var (
	archCycle     = []string{"x64", "x86", "arm64"}
	compilerCycle = []string{"clang", "msvc"}
)

const listWidth = 32

type interactiveModel struct {
	ctx      context.Context
	app      *app
	filename string
	opts     runOptions

	res      analyzer.Result
	err      error
	visible  []*layout.TypeLayout
	selected int

	filter    textinput.Model
	filtering bool
	view      viewport.Model
	ready     bool
}

type analyzedMsg struct {
	res analyzer.Result
	err error
}

func newInteractiveModel(ctx context.Context, a *app, filename string, opts runOptions) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter types"
	ti.Width = listWidth - 2
	return &interactiveModel{
		ctx:      ctx,
		app:      a,
		filename: filename,
		opts:     opts,
		filter:   ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.analyze()
}

// analyze runs the analysis off the update loop with a snapshot of the
// current options.
func (m *interactiveModel) analyze() tea.Cmd {
	ctx, a, filename, opts := m.ctx, m.app, m.filename, m.opts
	return func() tea.Msg {
		res, err := a.analyzeFile(ctx, filename, opts)
		return analyzedMsg{res: res, err: err}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w, h := max(20, msg.Width-listWidth-2), max(5, msg.Height-4)
		if !m.ready {
			m.view = viewport.New(w, h)
			m.ready = true
		} else {
			m.view.Width, m.view.Height = w, h
		}
		m.refresh()
		return m, nil

	case analyzedMsg:
		m.res, m.err = msg.res, msg.err
		m.applyFilter()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filter.Blur()
				if msg.String() == "esc" {
					m.filter.SetValue("")
				}
				m.applyFilter()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}

		case "down", "j":
			if m.selected < len(m.visible)-1 {
				m.selected++
				m.refresh()
			}

		case "/":
			m.filtering = true
			return m, m.filter.Focus()

		case "a":
			m.opts.arch = next(archCycle, m.opts.arch)
			return m, m.analyze()

		case "c":
			m.opts.compiler = next(compilerCycle, m.opts.compiler)
			return m, m.analyze()

		case "r":
			m.app.cxx.InvalidateDocument(m.filename)
			m.app.wit.InvalidateDocument(m.filename)
			return m, m.analyze()
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

// next returns the element after cur in cycle, wrapping around.
func next(cycle []string, cur string) string {
	for i, v := range cycle {
		if strings.EqualFold(v, cur) {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, tl := range m.res.Layouts {
		if q == "" || strings.Contains(strings.ToLower(tl.QualifiedName), q) {
			m.visible = append(m.visible, tl)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(0, len(m.visible)-1)
	}
	m.refresh()
}

// refresh renders the selected layout into the viewport.
func (m *interactiveModel) refresh() {
	if !m.ready {
		return
	}
	var b strings.Builder
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case len(m.visible) == 0:
		_ = report.Text(&b, analyzer.Result{
			Success:      m.res.Success,
			ErrorMessage: m.res.ErrorMessage,
			Layouts:      []*layout.TypeLayout{},
			Diagnostics:  m.res.Diagnostics,
		}, report.TextOptions{Color: true, Width: m.view.Width})
	default:
		_ = report.Text(&b, analyzer.Result{
			Success: true,
			Layouts: []*layout.TypeLayout{m.visible[m.selected]},
		}, report.TextOptions{Color: true, Width: m.view.Width})
	}
	m.view.SetContent(b.String())
	m.view.GotoTop()
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Analyzing..."
	}

	var list strings.Builder
	if m.filtering || m.filter.Value() != "" {
		list.WriteString(m.filter.View())
		list.WriteString("\n\n")
	}
	for i, tl := range m.visible {
		name := tl.QualifiedName
		if len(name) > listWidth-8 {
			name = name[:listWidth-9] + "…"
		}
		line := fmt.Sprintf("%-*s %4d", listWidth-8, name, tl.TotalSize)
		if len(tl.Suggestions) > 0 {
			line += savingStyle.Render(" *")
		}
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	header := titleStyle.Render("structsight") + " " + m.filename + " " +
		helpStyle.Render(m.opts.arch+"/"+m.opts.compiler)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(listWidth).Render(list.String()),
		"  ",
		m.view.View(),
	)
	help := helpStyle.Render("↑/↓ select • / filter • a arch • c compiler • r reload • pgup/pgdn scroll • q quit")
	return header + "\n\n" + body + "\n" + help
}

func (a *app) runInteractive(ctx context.Context, filename string, opts runOptions) error {
	p := tea.NewProgram(newInteractiveModel(ctx, a, filename, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
