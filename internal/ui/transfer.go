package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/natanlao/rdx/internal/tasks"
)

// RunFunc starts the transfer and reports progress on the channel. The
// channel is owned by the model; RunFunc must not close it.
type RunFunc func(progress chan<- tasks.ProgressUpdate) (*tasks.Report, error)

// TransferModel renders a running transfer: current phase, a progress bar
// for the per-item loops, and the final report.
type TransferModel struct {
	run          RunFunc
	cancel       context.CancelFunc
	progressChan chan tasks.ProgressUpdate
	doneChan     chan transferCompleteMsg
	update       tasks.ProgressUpdate
	bar          progress.Model
	spin         spinner.Model
	report       *tasks.Report
	err          error
	aborting     bool
	done         bool
}

type progressUpdateMsg tasks.ProgressUpdate

type transferCompleteMsg struct {
	report *tasks.Report
	err    error
}

// NewTransferModel creates a model that will invoke run once started.
// cancel is called when the user aborts; the run must honor it and return,
// which is what delivers the final (partial) report.
func NewTransferModel(run RunFunc, cancel context.CancelFunc) *TransferModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &TransferModel{
		run:    run,
		cancel: cancel,
		bar:    progress.New(progress.WithDefaultGradient()),
		spin:   sp,
	}
}

// Report returns the transfer's final report, nil until completion.
func (m *TransferModel) Report() (*tasks.Report, error) {
	return m.report, m.err
}

// Init starts the transfer goroutine and the spinner.
func (m *TransferModel) Init() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan transferCompleteMsg, 1)

	go func() {
		report, err := m.run(m.progressChan)
		m.doneChan <- transferCompleteMsg{report: report, err: err}
		close(m.progressChan)
	}()

	return tea.Batch(m.spin.Tick, m.waitForProgress())
}

func (m *TransferModel) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return <-m.doneChan
		}
		return progressUpdateMsg(update)
	}
}

// Update handles incoming messages and updates the model state.
func (m *TransferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			// Cancel the run's context and keep the screen up; the engine
			// stops between items and the completion message quits with the
			// partial report.
			if m.cancel != nil && !m.aborting {
				m.aborting = true
				m.cancel()
			}
			return m, nil
		}
		return m, nil

	case progressUpdateMsg:
		m.update = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case transferCompleteMsg:
		m.report = msg.report
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current phase and progress.
func (m *TransferModel) View() string {
	if m.done {
		return m.renderResult()
	}

	var phase string
	switch m.update.Phase {
	case tasks.FetchSource:
		phase = "Fetching source snapshot..."
	case tasks.FetchDest:
		phase = "Fetching destination snapshot..."
	case tasks.Subscriptions:
		phase = "Applying subscriptions"
	case tasks.Friends:
		phase = "Applying friends"
	case tasks.UnsaveItems:
		phase = "Unsaving extra items"
	case tasks.SaveItems:
		phase = "Saving items"
	case tasks.CopyPreferences:
		phase = "Copying preferences..."
	default:
		phase = "Starting..."
	}

	if m.aborting {
		phase = "Aborting, waiting for the current item..."
	}

	title := styles.title.Render("Account Transfer")
	line := fmt.Sprintf("%s %s", m.spin.View(), phase)

	var bar string
	if m.update.Total > 0 {
		bar = "\n" + m.bar.ViewAs(float64(m.update.Step)/float64(m.update.Total))
	}

	help := styles.help.Render("q to abort")
	return fmt.Sprintf("%s\n%s\n%s\n\n%s\n\n%s\n", title, line, m.update.Message, bar, help)
}

func (m *TransferModel) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Transfer failed: %v\n", m.err))
	}
	if m.report == nil {
		return styles.err.Render("No report available\n")
	}

	title := styles.ok.Render("✓ Transfer Complete")
	body := fmt.Sprintf(
		"\nSubscriptions: %d applied, %d failed\nFriends: %d applied, %d failed\nUnsaved: %d applied, %d failed\nSaved: %d applied, %d failed\nPreferences copied: %d\n",
		m.report.Subscriptions.Applied, m.report.Subscriptions.Failed(),
		m.report.Friends.Applied, m.report.Friends.Failed(),
		m.report.Unsaved.Applied, m.report.Unsaved.Failed(),
		m.report.Saved.Applied, m.report.Saved.Failed(),
		m.report.Preferences,
	)

	return fmt.Sprintf("%s\n%s", title, body)
}
