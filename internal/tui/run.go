package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// Browse starts the interactive results browser over a finished analysis.
// It blocks until the user quits.
func Browse(root string, report *depgraph.Report, cfg depgraph.Config) error {
	model := NewBrowserModel(root, report, cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
