package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/status"
)

const watchInterval = 250 * time.Millisecond

var (
	barDoneStyle = lipgloss.NewStyle().Foreground(colorGreen)
	barTodoStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// WatchModel - live view of a refresh in progress
// =============================================================================

type (
	outstandingMsg struct {
		n   int
		err error
	}
	artifactMsg struct {
		art *artifact.Artifact
		err error
	}
)

// WatchModel polls the outstanding-job counter of one artifact until it
// drains, then loads and shows the refreshed record.
type WatchModel struct {
	ctx      context.Context
	tracker  status.Tracker
	store    artifact.Store
	id       string
	interval time.Duration

	Total       int
	Outstanding int
	Artifact    *artifact.Artifact
	Err         error
	Aborted     bool
	started     time.Time
}

// NewWatchModel watches artifact id. total is the job count of the run
// being watched, used to draw progress.
func NewWatchModel(ctx context.Context, tracker status.Tracker, store artifact.Store, id string, total int) WatchModel {
	return WatchModel{
		ctx:         ctx,
		tracker:     tracker,
		store:       store,
		id:          id,
		interval:    watchInterval,
		Total:       total,
		Outstanding: total,
		started:     time.Now(),
	}
}

func (m WatchModel) poll() tea.Msg {
	n, err := m.tracker.Outstanding(m.ctx, m.id)
	return outstandingMsg{n: n, err: err}
}

func (m WatchModel) load() tea.Msg {
	art, err := m.store.Get(m.ctx, m.id)
	return artifactMsg{art: art, err: err}
}

func (m WatchModel) Init() tea.Cmd {
	return m.poll
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = true
			return m, tea.Quit
		}
	case outstandingMsg:
		if msg.err != nil {
			m.Err = msg.err
			return m, tea.Quit
		}
		m.Outstanding = msg.n
		m.Total = max(m.Total, msg.n)
		if msg.n == 0 {
			return m, m.load
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return m.poll() })
	case artifactMsg:
		m.Artifact, m.Err = msg.art, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Refreshing " + m.id))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n\n")

	done := m.Total - m.Outstanding
	b.WriteString("  ")
	b.WriteString(progressBar(done, m.Total, 30))
	b.WriteString(fmt.Sprintf("  %d/%d jobs", done, m.Total))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s", time.Since(m.started).Round(time.Second))))
	b.WriteString("\n")

	if m.Artifact != nil {
		if cur := m.Artifact.Current(); len(cur) > 0 {
			b.WriteString("\n")
			b.WriteString(metricsTable(cur))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// progressBar draws done out of total as a bar of width cells.
func progressBar(done, total, width int) string {
	filled := width
	if total > 0 {
		filled = width * done / total
	}
	filled = min(max(filled, 0), width)
	return barDoneStyle.Render(strings.Repeat("█", filled)) +
		barTodoStyle.Render(strings.Repeat("░", width-filled))
}
