package cli

import (
	"context"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"planboard/internal/core/ports"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	filtering := m.issueList.FilterState() == list.Filtering || m.nodeList.FilterState() == list.Filtering
	if !filtering {
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.mode == panelIssues {
				m.mode = panelNodes
			} else {
				m.mode = panelIssues
			}
			return m, nil
		case "t":
			m.showTrend = !m.showTrend
			return m, nil
		}
	} else if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.mode != panelNodes {
		var cmd tea.Cmd
		m.issueList, cmd = m.issueList.Update(msg)
		return m, cmd
	}

	if !filtering {
		switch msg.String() {
		case "enter":
			return refreshNodeDetails(m, selectedNodeID(m))
		case "esc", "backspace":
			if m.hasDetails || m.detailsErr != "" {
				m.hasDetails = false
				m.detailsErr = ""
				m.selectedDepIndex = 0
				return m, nil
			}
		case "j":
			if m.hasDetails && len(m.details.Dependencies) > 0 {
				if m.selectedDepIndex < len(m.details.Dependencies)-1 {
					m.selectedDepIndex++
				}
				return m, nil
			}
		case "k":
			if m.hasDetails && len(m.details.Dependencies) > 0 {
				if m.selectedDepIndex > 0 {
					m.selectedDepIndex--
				}
				return m, nil
			}
		case "o":
			if !m.hasDetails || len(m.details.Dependencies) == 0 {
				return m, nil
			}
			target := m.details.Dependencies[m.selectedDepIndex]
			m.selectedDepIndex = 0
			return refreshNodeDetails(m, target)
		}
	}

	var cmd tea.Cmd
	m.nodeList, cmd = m.nodeList.Update(msg)
	return m, cmd
}

func selectedNodeID(m model) string {
	if len(m.nodes) == 0 {
		return ""
	}
	if it, ok := m.nodeList.SelectedItem().(item); ok {
		return it.title
	}
	return m.nodes[0].ID
}

// refreshNodeDetails loads the dependency report for id into the detail pane.
func refreshNodeDetails(m model, id string) (model, tea.Cmd) {
	if m.inspector == nil || id == "" {
		return m, nil
	}
	report, err := m.inspector.NodeDependencies(context.Background(), m.snapshot, ports.DependencyQuery{NodeID: id})
	if err != nil {
		m.detailsErr = err.Error()
		m.hasDetails = false
		return m, nil
	}
	m.details = report
	m.detailsErr = ""
	m.hasDetails = true
	if m.selectedDepIndex >= len(report.Dependencies) {
		m.selectedDepIndex = 0
	}
	return m, nil
}
