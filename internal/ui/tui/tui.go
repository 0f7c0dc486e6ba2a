// Package tui implements the interactive inspector over a composed
// image (§11.4): a list of loaded objects, a detail panel, and a
// query box driving link.ComposedImage's Owner/FindSymbol surface.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/elfcle/clego/internal/link"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#56B6C2"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF80C0"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	panelStyle  = lipgloss.NewStyle().Padding(1, 2).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#505050"))
)

// objectItem adapts *object.Object to bubbles/list's Item interface.
type objectItem struct {
	path   string
	detail string
}

func (i objectItem) Title() string       { return i.path }
func (i objectItem) Description() string { return i.detail }
func (i objectItem) FilterValue() string { return i.path }

// model is the bubbletea Model driving the inspector.
type model struct {
	img    *link.ComposedImage
	list   list.Model
	input  textinput.Model
	result string
	width  int
	height int
}

func newModel(img *link.ComposedImage) model {
	items := make([]list.Item, 0, len(img.Objects))
	for _, o := range img.Objects {
		items = append(items, objectItem{
			path: o.Path,
			detail: fmt.Sprintf("base=0x%x segments=%d imports=%d exports=%d",
				o.RebaseAddr, len(o.Segments), len(o.Imports()), len(o.Exports())),
		})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "loaded objects"

	ti := textinput.New()
	ti.Placeholder = "symbol name or 0xADDRESS, Enter to query"
	ti.CharLimit = 128

	return model{img: img, list: l, input: ti}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height/2)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.input.Focused() {
				m.input.Blur()
			} else {
				m.input.Focus()
			}
			return m, nil
		case "enter":
			if m.input.Focused() {
				m.result = m.runQuery(strings.TrimSpace(m.input.Value()))
				return m, nil
			}
		}
	}

	var cmds []tea.Cmd
	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) runQuery(q string) string {
	if q == "" {
		return ""
	}
	if addr, ok := parseAddress(q); ok {
		if obj, found := m.img.Owner(addr); found {
			return okStyle.Render(fmt.Sprintf("0x%x is owned by %s", addr, obj.Path))
		}
		return errorStyle.Render(fmt.Sprintf("no object owns 0x%x", addr))
	}
	if addr, found := m.img.FindSymbol(q); found {
		return okStyle.Render(fmt.Sprintf("%s resolves to 0x%x", q, addr))
	}
	return errorStyle.Render(fmt.Sprintf("symbol %q not found in any dependency", q))
}

func parseAddress(s string) (uint64, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return addr, true
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("clego inspector"))
	b.WriteString("\n\n")
	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString(borderStyle.Render(fmt.Sprintf("min=0x%x max=0x%x objects=%d", m.img.MinAddress(), m.img.MaxAddress(), len(m.img.Objects))))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	if m.result != "" {
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(m.result))
	}
	b.WriteString("\n")
	b.WriteString(borderStyle.Render("tab: focus query · enter: run query · q: quit"))
	return b.String()
}

// Run starts the interactive inspector over img, blocking until the
// user quits.
func Run(img *link.ComposedImage) error {
	p := tea.NewProgram(newModel(img), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
