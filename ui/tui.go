package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 100 * time.Millisecond

// TUIModel implements the tea.Model interface
type TUIModel struct {
	source *Progress
	logs   *LogBuffer
	cancel func()

	state    *UIState
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	width  int
	height int

	// Styles
	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	streamStyle  lipgloss.Style
	logStyle     lipgloss.Style
	helpStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
}

// TUIUpdateMsg is sent periodically to update the UI state
type TUIUpdateMsg struct {
	State *UIState
}

// NewTUIModel builds the dashboard over source. logs may be nil. cancel, when
// set, is called if the user quits before the run is done.
func NewTUIModel(source *Progress, logs *LogBuffer, cancel func()) TUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	prog := progress.New(progress.WithDefaultGradient())

	return TUIModel{
		source:       source,
		logs:         logs,
		cancel:       cancel,
		state:        source.Snapshot(),
		spinner:      s,
		progress:     prog,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		streamStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		logStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
}

func (m TUIModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.refresh(),
	)
}

func (m TUIModel) refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return TUIUpdateMsg{State: m.source.Snapshot()}
	})
}

func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.state.Done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-14, 10)

		headerHeight := 5
		footerHeight := 2
		m.viewport = viewport.New(msg.Width, max(msg.Height-headerHeight-footerHeight, 1))

	case TUIUpdateMsg:
		m.state = msg.State
		if m.state.Done {
			return m, tea.Quit
		}
		cmds = append(cmds, m.refresh())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m TUIModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder
	st := m.state

	phase := st.Phase
	if phase == "" {
		phase = "starting"
	}
	header := fmt.Sprintf("%s gstage %s %s", m.spinner.View(), m.titleStyle.Render(phase), m.infoStyle.Render(st.Detail))
	sb.WriteString(header + "\n")

	// Global Progress
	var percent float64
	if st.TotalBytes > 0 {
		percent = min(float64(st.CompletedBytes)/float64(st.TotalBytes), 1)
	}

	opsInfo := fmt.Sprintf("ETA: %s | Workers: %d/%d | Files: %d/%d | %s / %s | %s",
		formatETA(percent, st.ThroughputBPms, st.TotalBytes, st.CompletedBytes),
		st.ActiveWorkers, st.MaxWorkers,
		st.CompletedFiles, st.TotalFiles,
		formatBytes(st.CompletedBytes), formatBytes(st.TotalBytes),
		formatSpeed(st.ThroughputBPms*1000))
	if st.FailedFiles > 0 {
		opsInfo += m.errorStyle.Render(fmt.Sprintf(" | Failed: %d", st.FailedFiles))
	}

	sb.WriteString(m.infoStyle.Render(opsInfo) + "\n")
	sb.WriteString(m.progress.ViewAs(percent) + "\n\n")

	// Active Streams
	var content strings.Builder
	content.WriteString("Active Streams:\n")
	if len(st.ActiveStreams) == 0 {
		content.WriteString(m.infoStyle.Render("No active streams...") + "\n")
	} else {
		for _, s := range st.ActiveStreams {
			speedStr := formatSpeed(s.BytesSec)
			bar := m.infoStyle.Render("size unknown")
			if s.Progress >= 0 {
				bar = m.progress.ViewAs(s.Progress)
			}
			truncatePath := s.FilePath
			if len(truncatePath) > 40 {
				truncatePath = "..." + truncatePath[len(truncatePath)-37:]
			}

			// Format: [===       ] 30% | 45 MB/s | /path/to/file
			content.WriteString(fmt.Sprintf("%s | %-10s | %s\n",
				bar, m.streamStyle.Render(speedStr), truncatePath))
		}
	}

	// Log pane takes whatever height the streams leave.
	if m.logs != nil {
		room := m.viewport.Height - strings.Count(content.String(), "\n") - 1
		if room > 0 {
			content.WriteString("\nLog:\n")
			for _, line := range m.logs.Lines(room) {
				content.WriteString(m.logStyle.Render(line) + "\n")
			}
		}
	}

	m.viewport.SetContent(content.String())
	sb.WriteString(m.viewport.View())

	// Footer
	help := m.helpStyle.Render("q/ctrl+c: quit")
	switch {
	case st.Done && st.Err != "":
		help = m.errorStyle.Render("Failed: "+st.Err) + " Press 'q' to exit."
	case st.Done:
		help = m.successStyle.Render("Run Complete!") + " Press 'q' to exit."
	}
	sb.WriteString("\n" + help)

	return sb.String()
}

// Dashboard runs the TUI program for the lifetime of a run.
type Dashboard struct {
	program *tea.Program
}

// NewDashboard prepares a full-screen dashboard over source.
func NewDashboard(source *Progress, logs *LogBuffer, cancel func()) *Dashboard {
	return &Dashboard{
		program: tea.NewProgram(NewTUIModel(source, logs, cancel), tea.WithAltScreen()),
	}
}

// Run blocks until the run is done or the user quits.
func (d *Dashboard) Run() error {
	_, err := d.program.Run()
	return err
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec >= 1024*1024*1024 {
		return fmt.Sprintf("%.2f GB/s", bytesPerSec/(1024*1024*1024))
	} else if bytesPerSec >= 1024*1024 {
		return fmt.Sprintf("%.2f MB/s", bytesPerSec/(1024*1024))
	} else if bytesPerSec >= 1024 {
		return fmt.Sprintf("%.2f KB/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

func formatETA(progress float64, bytesPerMs float64, totalBytes, completedBytes int64) string {
	if progress == 0 || bytesPerMs <= 0 || totalBytes == 0 {
		return "Calculating..."
	}

	remainingBytes := totalBytes - completedBytes
	if remainingBytes <= 0 {
		return "0s"
	}

	remainingMs := float64(remainingBytes) / bytesPerMs
	d := time.Duration(remainingMs) * time.Millisecond

	if d.Hours() > 24 {
		return "> 1d"
	}

	return d.Round(time.Second).String()
}
