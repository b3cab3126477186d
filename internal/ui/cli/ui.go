package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"planboard/internal/core/ports"
	"planboard/internal/data/history"
	"planboard/internal/engine/graph"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

// nodeInspector is the slice of the plan service the explorer panel needs.
type nodeInspector interface {
	NodeDependencies(ctx context.Context, snap graph.Snapshot, q ports.DependencyQuery) (ports.DependencyReport, error)
}

type panelMode int

const (
	panelIssues panelMode = iota
	panelNodes
)

type model struct {
	issueList   list.Model
	nodeList    list.Model
	mode        panelMode
	inspector   nodeInspector
	trendReport *history.TrendReport
	showTrend   bool

	snapshot   graph.Snapshot
	nodes      []graph.Node
	errors     int
	warnings   int
	cycles     int
	orphans    int
	written    int
	lastErr    string
	lastUpdate time.Time

	details          ports.DependencyReport
	hasDetails       bool
	detailsErr       string
	selectedDepIndex int
}

// updateMsg carries one pipeline result into the program.
type updateMsg struct {
	analysis *ports.Analysis
	written  int
	err      error
	at       time.Time
}

func updateMsgFrom(u ports.WatchUpdate) updateMsg {
	return updateMsg{analysis: u.Analysis, written: len(u.Written), err: u.Err, at: u.At}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 8
		if height < 5 {
			height = 5
		}
		m.issueList.SetSize(width, height)
		m.nodeList.SetSize(width, height)
	case updateMsg:
		m.lastUpdate = msg.at
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else {
			m.lastErr = ""
		}
		if msg.analysis == nil {
			break
		}
		m = m.applyAnalysis(*msg.analysis)
		m.written = msg.written
		if m.hasDetails {
			m, _ = refreshNodeDetails(m, m.details.NodeID)
		}
	}

	var cmd tea.Cmd
	if m.mode == panelIssues {
		m.issueList, cmd = m.issueList.Update(msg)
	} else {
		m.nodeList, cmd = m.nodeList.Update(msg)
	}
	return m, cmd
}

func (m model) applyAnalysis(a ports.Analysis) model {
	m.snapshot = a.Snapshot
	m.nodes = graph.NewIndex(a.Snapshot.Nodes, a.Snapshot.Edges).Nodes()
	m.errors = len(a.Rings.Errors())
	m.warnings = len(a.Rings.Warnings())
	m.cycles = len(a.Dependencies.Cycles)
	m.orphans = len(a.Evaluation.Orphans)

	items := []list.Item{}
	for _, v := range a.Rings.Violations {
		items = append(items, item{
			title: fmt.Sprintf("Ring %s: %s", v.Severity, v.Check),
			desc:  fmt.Sprintf("%s: %s", v.NodeID, v.Message),
		})
	}
	for _, c := range a.Dependencies.Cycles {
		items = append(items, item{
			title: "Dependency Cycle",
			desc:  strings.Join(c.Cycle, " -> ") + " -> " + c.Cycle[0],
		})
	}
	for _, issue := range a.Evaluation.Issues {
		items = append(items, item{
			title: "Association: " + string(issue.Kind),
			desc:  fmt.Sprintf("%s: %s", issue.NodeID, issue.Message),
		})
	}
	for _, id := range a.Evaluation.Orphans {
		items = append(items, item{title: "Orphan", desc: id})
	}
	m.issueList.SetItems(items)

	nodeItems := make([]list.Item, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodeItems = append(nodeItems, item{
			title: n.ID,
			desc:  fmt.Sprintf("%s | ring %d | %s | %s", n.Label, n.Ring, n.Type, n.Domain),
		})
	}
	m.nodeList.SetItems(nodeItems)
	return m
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d nodes | %d edges | %d outputs",
		m.lastUpdate.Format("15:04:05"), len(m.snapshot.Nodes), len(m.snapshot.Edges), m.written))

	var summary string
	switch {
	case m.lastErr != "":
		summary = errorStyle.Render("Pipeline error: " + m.lastErr)
	case m.errors == 0 && m.warnings == 0 && m.cycles == 0 && m.orphans == 0:
		summary = successStyle.Render("Plan Clean")
	default:
		summary = fmt.Sprintf("%s | %s | %s",
			errorStyle.Render(fmt.Sprintf("%d errors, %d cycles", m.errors, m.cycles)),
			warningStyle.Render(fmt.Sprintf("%d warnings", m.warnings)),
			warningStyle.Render(fmt.Sprintf("%d orphans", m.orphans)))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Planboard Monitor"), status, summary)
	help := renderHelp(m)

	body := m.issueList.View()
	if m.mode == panelNodes {
		body = renderNodePanel(m)
	}
	if m.showTrend {
		body += "\n\n" + renderTrendOverlay(m.trendReport)
	}

	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}

func initialModel(inspector nodeInspector, trendReport *history.TrendReport) model {
	issueList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	issueList.Title = "Detected Issues"
	issueList.SetShowStatusBar(false)
	issueList.SetFilteringEnabled(true)

	nodeList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	nodeList.Title = "Node Explorer"
	nodeList.SetShowStatusBar(false)
	nodeList.SetFilteringEnabled(true)

	return model{
		issueList:   issueList,
		nodeList:    nodeList,
		mode:        panelIssues,
		inspector:   inspector,
		trendReport: trendReport,
		lastUpdate:  time.Now(),
	}
}
