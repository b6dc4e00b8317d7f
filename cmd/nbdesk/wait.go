package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/nbdesk/cmd/nbdesk/internal/styles"
	"github.com/germanamz/nbdesk/pkg/reconcile"
)

// opDoneMsg is sent when the awaited operation completed.
type opDoneMsg struct{}

// waitModel shows a spinner until an operation is done or the user cancels.
type waitModel struct {
	spin      spinner.Model
	label     string
	done      <-chan struct{}
	finished  bool
	cancelled bool
}

func newWaitModel(label string, done <-chan struct{}) waitModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Spinner{
			Frames: []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"},
			FPS:    spinner.Dot.FPS,
		}),
		spinner.WithStyle(styles.SpinnerStyle),
	)
	return waitModel{spin: s, label: label, done: done}
}

func waitDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return opDoneMsg{}
	}
}

func (m waitModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitDone(m.done))
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case opDoneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.finished || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s %s %s\n", m.spin.View(), m.label, styles.DimStyle.Render("(ctrl+c to cancel)"))
}

// wait blocks until op is done. Interactive sessions that run the process
// in another window get a spinner; otherwise the process output streams to
// this terminal and a plain line announces it. Cancelling ctx or pressing
// ctrl+c kills the process.
func (a *app) wait(ctx context.Context, op *reconcile.Operation, label string) error {
	if !a.newWindow() {
		_, _ = fmt.Fprintf(a.stderr, "%s %s\n", styles.DimStyle.Render("→"), label)
		if err := op.Wait(ctx); err != nil && ctx.Err() != nil {
			op.Cancel()
			return ctx.Err()
		}
		return op.Err()
	}

	p := tea.NewProgram(newWaitModel(label, op.Done()),
		tea.WithContext(ctx),
		tea.WithInput(a.stdin),
		tea.WithOutput(a.stderr),
	)
	final, err := p.Run()
	if err != nil {
		op.Cancel()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("wait for %s: %w", op.Target, err)
	}
	if m, ok := final.(waitModel); ok && m.cancelled {
		op.Cancel()
		return context.Canceled
	}

	<-op.Done()
	return op.Err()
}

// report prints the outcome of an operation.
func (a *app) report(op *reconcile.Operation, err error, success string) error {
	if err != nil {
		return fmt.Errorf("%s %s: %w", op.Action, op.Target, err)
	}
	a.println(styles.SuccessStyle.Render("✓") + " " + success)
	return nil
}
