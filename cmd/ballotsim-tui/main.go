// Command ballotsim-tui is a terminal monitor for an in-progress run.
// It polls the run directory and shows sealed participant records as
// workers finish them.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/civiclab/ballotsim/pkg/runlog"
)

const (
	pollRate       = time.Second
	maxRows        = 30
	viewportHeight = 20
)

// Styles
var (
	mainStyle   = lipgloss.NewStyle().MarginLeft(1)
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)
	statusStyle  = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	personaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(22)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type tickMsg time.Time

type dataMsg struct {
	records []runlog.RunRecord
	err     error
}

type model struct {
	dir      string
	spinner  spinner.Model
	viewport viewport.Model
	records  []runlog.RunRecord
	err      error
	ready    bool
}

func initialModel(dir string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		dir:      dir,
		spinner:  s,
		viewport: vp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.dir),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case tickMsg:
		return m, tea.Batch(fetchData(m.dir), tick())

	case dataMsg:
		m.err = msg.err
		if msg.err == nil {
			m.records = msg.records
			m.ready = true
			m.viewport.SetContent(renderRecords(m.records))
		}
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("ballotsim run monitor"))
	b.WriteString("\n")

	completed, failed := 0, 0
	for _, rec := range m.records {
		switch rec.Status {
		case runlog.StatusCompleted:
			completed++
		case runlog.StatusFailed:
			failed++
		}
	}

	status := fmt.Sprintf("%s %s sealed=%d %s %s",
		m.spinner.View(),
		statusStyle.Render("watching "+m.dir),
		len(m.records),
		okStyle.Render(fmt.Sprintf("completed=%d", completed)),
		failStyle.Render(fmt.Sprintf("failed=%d", failed)))
	b.WriteString(status)
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(subtleStyle.Render("waiting for first sealed record..."))
	}
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("q to quit"))
	return mainStyle.Render(b.String())
}

func renderRecords(records []runlog.RunRecord) string {
	var b strings.Builder
	start := 0
	if len(records) > maxRows {
		start = len(records) - maxRows
	}
	for _, rec := range records[start:] {
		when := rec.StartedAt.Local().Format("15:04:05")
		outcome := okStyle.Render(string(rec.Status))
		if rec.Status == runlog.StatusFailed {
			msg := ""
			if rec.Error != nil {
				msg = " " + *rec.Error
			}
			outcome = failStyle.Render(string(rec.Status) + msg)
		}
		condition := "-"
		if rec.Condition != nil {
			condition = *rec.Condition
		}
		fmt.Fprintf(&b, "%s %s cond=%s steps=%-2d %s\n",
			timeStyle.Render(when),
			personaStyle.Render(rec.PersonaID),
			condition,
			len(rec.Steps),
			outcome)
	}
	return b.String()
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchData(dir string) tea.Cmd {
	return func() tea.Msg {
		records, err := runlog.ReadRun(dir)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{records: records}
	}
}

func main() {
	var dir string
	flag.StringVar(&dir, "dir", "", "run directory to watch (e.g. runs/<run-id>)")
	flag.Parse()
	if dir == "" {
		fmt.Fprintln(os.Stderr, "Usage: ballotsim-tui --dir runs/<run-id>")
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(dir))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI failed: %v\n", err)
		os.Exit(1)
	}
}
