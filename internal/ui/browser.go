package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"fathom/internal/traceout"
)

type sortOrder uint8

const (
	sortByStart sortOrder = iota
	sortByDuration
)

func (o sortOrder) label() string {
	switch o {
	case sortByDuration:
		return "duration"
	default:
		return "start"
	}
}

type browserModel struct {
	source  string
	records []traceout.Record
	stats   []traceout.Stat
	vp      viewport.Model
	order   sortOrder
	summary bool
	width   int
	ready   bool
}

// NewBrowserModel returns a Bubble Tea model that browses trace records
// loaded from the file at source.
func NewBrowserModel(source string, records []traceout.Record) tea.Model {
	return &browserModel{
		source:  source,
		records: records,
		stats:   traceout.Summarize(records),
		order:   sortByStart,
		width:   80,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "s":
			if m.order == sortByStart {
				m.order = sortByDuration
			} else {
				m.order = sortByStart
			}
			m.vp.SetContent(m.content())
			m.vp.GotoTop()
			return m, nil
		case "tab":
			m.summary = !m.summary
			m.vp.SetContent(m.content())
			m.vp.GotoTop()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		// Two header lines plus the footer.
		height := msg.Height - 3
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.vp.SetContent(m.content())
		return m, nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *browserModel) View() string {
	if !m.ready {
		return "loading trace..."
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	mode := fmt.Sprintf("records by %s", m.order.label())
	if m.summary {
		mode = "summary by total time"
	}
	header := titleStyle.Render(fmt.Sprintf("%s  (%d records, %s)",
		truncate(m.source, m.width/2), len(m.records), mode))
	footer := dimStyle.Render("tab: records/summary  s: sort  q: quit")

	return header + "\n" + m.vp.View() + "\n" + footer
}

func (m *browserModel) content() string {
	if m.summary {
		return m.summaryContent()
	}
	return m.recordsContent()
}

func (m *browserModel) recordsContent() string {
	nameWidth := m.width - 38
	if nameWidth < 16 {
		nameWidth = 16
	}

	rows := make([]traceout.Record, len(m.records))
	copy(rows, m.records)
	if m.order == sortByDuration {
		sortRecordsByDuration(rows)
	}

	var b strings.Builder
	headStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	b.WriteString(headStyle.Render(fmt.Sprintf("%-*s %12s %12s %8s",
		nameWidth, "name", "start (us)", "dur (us)", "gid")))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%-*s %12.1f %12.1f %8d\n",
			nameWidth, truncate(r.Name, nameWidth), r.StartUS, r.DurUS, r.GID))
	}
	return b.String()
}

func (m *browserModel) summaryContent() string {
	nameWidth := m.width - 46
	if nameWidth < 16 {
		nameWidth = 16
	}

	var b strings.Builder
	headStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	b.WriteString(headStyle.Render(fmt.Sprintf("%-*s %7s %12s %12s %12s",
		nameWidth, "name", "count", "total (us)", "avg (us)", "max (us)")))
	b.WriteString("\n")
	for _, st := range m.stats {
		b.WriteString(fmt.Sprintf("%-*s %7d %12.1f %12.1f %12.1f\n",
			nameWidth, truncate(st.Name, nameWidth), st.Count, st.TotalUS, st.AvgUS, st.MaxUS))
	}
	return b.String()
}

// sortRecordsByDuration orders longest-first, keeping equal durations in
// start order.
func sortRecordsByDuration(rows []traceout.Record) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DurUS > rows[j].DurUS })
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
