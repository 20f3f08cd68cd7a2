package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"webresearch/internal/pipeline"
	"webresearch/internal/ranking"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// stageMsg reports pipeline progress to the TUI.
type stageMsg struct {
	label   string
	percent float64
}

// pipelineDoneMsg is sent once ProcessContent returns.
type pipelineDoneMsg struct{}

var (
	progressTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	progressLogStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

const maxProgressWidth = 72

type progressModel struct {
	spinner spinner.Model
	bar     progress.Model
	label   string
	percent float64
	history []string
	done    bool
	cancel  context.CancelFunc
}

func newProgressModel(cancel context.CancelFunc) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 48
	return progressModel{
		spinner: sp,
		bar:     bar,
		label:   "Starting",
		cancel:  cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxProgressWidth)
	case stageMsg:
		if m.label != "Starting" {
			m.history = append(m.history, m.label)
		}
		m.label = msg.label
		if msg.percent > m.percent {
			m.percent = msg.percent
		}
	case pipelineDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	var sb strings.Builder
	sb.WriteString(progressTitleStyle.Render("webresearch"))
	sb.WriteString("\n\n")
	for _, h := range m.history {
		sb.WriteString(progressLogStyle.Render("  ✓ " + h))
		sb.WriteString("\n")
	}
	if !m.done {
		fmt.Fprintf(&sb, "%s %s\n", m.spinner.View(), m.label)
	}
	sb.WriteString("\n")
	sb.WriteString(m.bar.ViewAs(m.percent))
	sb.WriteString("\n")
	return sb.String()
}

// runWithProgress runs fn while rendering a progress view on stderr. Quitting
// the view cancels fn's context.
func runWithProgress(ctx context.Context, fn func(context.Context, pipeline.Observer) (*pipeline.Result, error)) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(cancel), tea.WithOutput(os.Stderr))

	var (
		res    *pipeline.Result
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		res, runErr = fn(ctx, progressObserver(p.Send))
		p.Send(pipelineDoneMsg{})
	}()

	_, teaErr := p.Run()
	cancel()
	<-done

	if runErr != nil {
		return nil, runErr
	}
	if teaErr != nil {
		return nil, fmt.Errorf("progress view: %w", teaErr)
	}
	return res, nil
}

// progressObserver maps pipeline events onto stage messages.
func progressObserver(send func(tea.Msg)) pipeline.Observer {
	stage := func(percent float64, format string, args ...interface{}) {
		send(stageMsg{label: fmt.Sprintf(format, args...), percent: percent})
	}
	return pipeline.ObserverFuncs{
		ScrapingStart: func(urls []string) {
			stage(0.05, "Scraping %d URLs", len(urls))
		},
		ScrapingComplete: func(ok, failed int) {
			stage(0.40, "Scraped %d pages, %d failed", ok, failed)
		},
		ProcessingStart: func(n int) {
			stage(0.45, "Cleaning %d documents", n)
		},
		ChunkingComplete: func(n int) {
			stage(0.60, "Split into %d chunks", n)
		},
		AnalysisStart: func(n int) {
			stage(0.65, "Scoring %d chunks", n)
		},
		AnalysisComplete: func(s ranking.Stats) {
			stage(0.95, "Kept %d of %d chunks", s.ReturnedChunks, s.TotalChunks)
		},
		Complete: func(*pipeline.Result) {
			stage(1, "Done")
		},
	}
}

// newLineObserver prints one line per pipeline event.
func newLineObserver(w io.Writer) pipeline.Observer {
	return progressObserver(func(msg tea.Msg) {
		if s, ok := msg.(stageMsg); ok {
			fmt.Fprintln(w, progressLogStyle.Render(fmt.Sprintf("[%3.0f%%] %s", s.percent*100, s.label)))
		}
	})
}
