package tui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// Tab identifies one pane of the results browser
type Tab int

const (
	TabSummary Tab = iota
	TabCycles
	TabCoupling
	TabViolations
	TabModules
	tabCount
)

// String returns the tab label
func (t Tab) String() string {
	switch t {
	case TabSummary:
		return "Summary"
	case TabCycles:
		return "Cycles"
	case TabCoupling:
		return "Coupling"
	case TabViolations:
		return "Violations"
	case TabModules:
		return "Modules"
	default:
		return "Unknown"
	}
}

// chromeHeight is the vertical space taken by the header, tab bar and
// help line around the content area.
const chromeHeight = 6

// moduleItem adapts a module to the list component
type moduleItem struct {
	module *depgraph.Module
}

func (i moduleItem) Title() string { return i.module.Path }

func (i moduleItem) Description() string {
	return fmt.Sprintf("%d imports, %d imported by, %d exports",
		i.module.ImportCount, i.module.ImportedByCount, len(i.module.Exports))
}

func (i moduleItem) FilterValue() string { return i.module.Path }

// BrowserModel is the interactive browser over one analysis report
type BrowserModel struct {
	report *depgraph.Report
	root   string
	cfg    depgraph.Config
	styles *Styles

	tab      Tab
	viewport viewport.Model
	modules  list.Model
	help     help.Model
	keys     keyMap

	width    int
	height   int
	quitting bool
}

type keyMap struct {
	NextTab key.Binding
	PrevTab key.Binding
	Up      key.Binding
	Down    key.Binding
	Filter  key.Binding
	Quit    key.Binding
}

func (km keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		km.NextTab,
		km.Up,
		km.Down,
		km.Filter,
		km.Quit,
	}
}

func (km keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.NextTab, km.PrevTab},
		{km.Up, km.Down, km.Filter},
		{km.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev tab"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter modules"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// NewBrowserModel creates a browser over the given report. cfg supplies
// the coupling thresholds used to color badges.
func NewBrowserModel(root string, report *depgraph.Report, cfg depgraph.Config) BrowserModel {
	paths := make([]string, 0, len(report.Modules))
	for path := range report.Modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	items := make([]list.Item, 0, len(paths))
	for _, path := range paths {
		items = append(items, moduleItem{module: report.Modules[path]})
	}

	l := list.New(items, list.NewDefaultDelegate(), 80, 24-chromeHeight)
	l.Title = "Modules"
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	vp := viewport.New(80, 24-chromeHeight)

	m := BrowserModel{
		report:   report,
		root:     root,
		cfg:      cfg,
		styles:   DefaultStyles(),
		tab:      TabSummary,
		viewport: vp,
		modules:  l,
		help:     help.New(),
		keys:     newKeyMap(),
		width:    80,
		height:   24,
	}
	m.setContent()
	return m
}

// Init implements tea.Model
func (m BrowserModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentHeight := msg.Height - chromeHeight
		if contentHeight < 1 {
			contentHeight = 1
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = contentHeight
		m.modules.SetSize(msg.Width, contentHeight)
		m.setContent()
		return m, nil

	case tea.KeyMsg:
		// While the module filter is typing, every key belongs to the list.
		if m.tab == TabModules && m.modules.FilterState() == list.Filtering {
			m.modules, cmd = m.modules.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.NextTab):
			m.tab = (m.tab + 1) % tabCount
			m.setContent()
			return m, nil

		case key.Matches(msg, m.keys.PrevTab):
			m.tab = (m.tab + tabCount - 1) % tabCount
			m.setContent()
			return m, nil
		}
	}

	if m.tab == TabModules {
		m.modules, cmd = m.modules.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// setContent loads the active tab's text into the viewport. The modules
// tab renders through the list instead.
func (m *BrowserModel) setContent() {
	switch m.tab {
	case TabSummary:
		m.viewport.SetContent(m.renderSummary())
	case TabCycles:
		m.viewport.SetContent(m.renderCycles())
	case TabCoupling:
		m.viewport.SetContent(m.renderCoupling())
	case TabViolations:
		m.viewport.SetContent(m.renderViolations())
	}
	m.viewport.GotoTop()
}

// View implements tea.Model
func (m BrowserModel) View() string {
	if m.quitting {
		return ""
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderTabs())

	if m.tab == TabModules {
		sections = append(sections, m.modules.View())
	} else {
		sections = append(sections, m.viewport.View())
	}

	sections = append(sections, m.renderBottom())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m BrowserModel) renderHeader() string {
	title := m.styles.Title.Render(fmt.Sprintf("Strata Analysis - %s", m.root))
	counts := fmt.Sprintf("%d modules  %d cycles  %d coupling  %d violations",
		len(m.report.Modules),
		len(m.report.Cycles),
		len(m.report.CouplingIssues),
		len(m.report.LayerViolations))
	countsStyled := m.styles.Help.Render(counts)
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", countsStyled)
}

func (m BrowserModel) renderTabs() string {
	var tabs []string
	for t := TabSummary; t < tabCount; t++ {
		if t == m.tab {
			tabs = append(tabs, m.styles.ActiveTab.Render(t.String()))
		} else {
			tabs = append(tabs, m.styles.Tab.Render(t.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m BrowserModel) renderBottom() string {
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return m.styles.Help.Render(helpView)
}
