package reconcile

import (
	"context"

	"github.com/germanamz/nbdesk/pkg/runner"
)

// Process is a started command as seen by the session.
type Process interface {
	Pid() int
	Done() <-chan struct{}
	Err() error
	Cancel()
}

// Starter launches command lines in a project directory.
type Starter interface {
	Start(ctx context.Context, dir, commandLine string, newWindow bool) (Process, error)
}

// RunnerStarter starts commands with a runner.Runner.
type RunnerStarter struct {
	Runner *runner.Runner
}

// Start implements Starter.
func (s RunnerStarter) Start(ctx context.Context, dir, commandLine string, newWindow bool) (Process, error) {
	h, err := s.Runner.Run(ctx, dir, commandLine, newWindow)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// Action names what an Operation does.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUninstall Action = "uninstall"
	ActionUpgrade   Action = "upgrade"
	ActionRun       Action = "run"
)

// Operation is an in-flight install, uninstall, upgrade or run. Done is
// closed after the process exited and the session refreshed its state.
type Operation struct {
	Action Action
	// Target is the feature module or distribution name.
	Target  string
	Command string

	proc Process
	done chan struct{}
	err  error
}

// Pid returns the process id.
func (o *Operation) Pid() int { return o.proc.Pid() }

// Done is closed when the operation completed.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Err returns the process result after Done: nil, a *runner.ExitError or a
// cancellation error.
func (o *Operation) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the operation completed or ctx is done.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel kills the process. Done is still closed afterwards.
func (o *Operation) Cancel() {
	o.proc.Cancel()
	<-o.done
}
