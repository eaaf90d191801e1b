// Package status implements the terminal progress view shown while a
// document's requirement details are fetched.
package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/pkg/buildinfo"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// ProgressMsg reports that one requirement detail fetch finished.
type ProgressMsg struct {
	Index  int
	Total  int
	VulnID string
}

// DoneMsg ends the view with the aggregation result.
type DoneMsg struct {
	Doc *compliance.CompleteDocument
	Err error
}

var quitKey = key.NewBinding(
	key.WithKeys("q", "ctrl+c", "esc"),
	key.WithHelp("q", "cancel"),
)

// FetchModel is the Bubbletea model for the fetch progress view.
type FetchModel struct {
	key     trackr.DocumentKey
	bar     progress.Model
	index   int
	total   int
	current string
	recent  []string

	doc       *compliance.CompleteDocument
	err       error
	done      bool
	cancelled bool
	width     int
}

// maxRecent bounds the list of recently fetched ids.
const maxRecent = 5

// NewFetchModel creates the progress view for one document.
func NewFetchModel(k trackr.DocumentKey) FetchModel {
	return FetchModel{
		key: k,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init implements tea.Model.
func (m FetchModel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m FetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 4
		if w > 60 {
			w = 60
		}
		if w < 10 {
			w = 10
		}
		m.bar.Width = w
		return m, nil

	case ProgressMsg:
		m.index = msg.Index
		m.total = msg.Total
		m.current = msg.VulnID
		m.recent = append(m.recent, msg.VulnID)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.doc = msg.Doc
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// Percent returns the completed fraction in [0, 1].
func (m FetchModel) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.index) / float64(m.total)
}

// Cancelled reports whether the user quit before the fetch finished.
func (m FetchModel) Cancelled() bool {
	return m.cancelled
}

// View renders the progress view.
func (m FetchModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(
		titleStyle.Render("cyber-trackr") +
			dimStyle.Render(" "+buildinfo.Version) +
			dimStyle.Render(" | "+m.key.String())))
	b.WriteString("\n\n")

	if m.done {
		b.WriteString(renderResult(m.doc, m.err))
		return b.String()
	}

	b.WriteString("  ")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString("\n")
	if m.total == 0 {
		b.WriteString(dimStyle.Render("  Fetching requirement list..."))
	} else {
		b.WriteString(fmt.Sprintf("  %d/%d  %s", m.index, m.total, currentStyle.Render(m.current)))
	}
	b.WriteString("\n")
	for _, id := range m.recent {
		b.WriteString(dimStyle.Render("    " + id))
		b.WriteString("\n")
	}

	b.WriteString(footerStyle.Render(fmt.Sprintf(" [%s] %s", quitKey.Help().Key, quitKey.Help().Desc)))
	return b.String()
}

// FetchFunc runs one aggregation, reporting progress through onProgress.
type FetchFunc func(ctx context.Context, onProgress compliance.ProgressFunc) (*compliance.CompleteDocument, error)

// Run shows the progress view on out while fetch runs. Quitting the view
// cancels the fetch; its partial result and error are still returned.
func Run(ctx context.Context, k trackr.DocumentKey, out io.Writer, fetch FetchFunc) (*compliance.CompleteDocument, error) {
	return run(ctx, k, fetch, tea.WithOutput(out))
}

func run(ctx context.Context, k trackr.DocumentKey, fetch FetchFunc, opts ...tea.ProgramOption) (*compliance.CompleteDocument, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewFetchModel(k), append(opts, tea.WithContext(ctx))...)

	type result struct {
		doc *compliance.CompleteDocument
		err error
	}
	results := make(chan result, 1)
	go func() {
		doc, err := fetch(ctx, func(index, total int, vulnID string) {
			p.Send(ProgressMsg{Index: index, Total: total, VulnID: vulnID})
		})
		results <- result{doc, err}
		p.Send(DoneMsg{Doc: doc, Err: err})
	}()

	_, runErr := p.Run()
	// Either the fetch finished or the view is gone; stop the fetch in
	// both cases and wait for it.
	cancel()
	res := <-results
	if res.err == nil && runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return res.doc, fmt.Errorf("progress view: %w", runErr)
	}
	return res.doc, res.err
}
