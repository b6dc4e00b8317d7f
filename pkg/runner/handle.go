package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"vawter.tech/stopper"
)

// Handle tracks a started process. The temporary script is removed once,
// when the process exits, whether it finished or was cancelled.
type Handle struct {
	// Script is the generated script path; it no longer exists after Done.
	Script string

	cmd    *exec.Cmd
	cancel context.CancelFunc
	sctx   *stopper.Context
	log    *slog.Logger

	done      chan struct{}
	err       error
	cleanup   sync.Once
	mu        sync.Mutex
	cancelled bool
}

func newHandle(ctx context.Context, cmd *exec.Cmd, script string, cancel context.CancelFunc, log *slog.Logger) *Handle {
	h := &Handle{
		Script: script,
		cmd:    cmd,
		cancel: cancel,
		sctx:   stopper.WithContext(ctx),
		log:    log,
		done:   make(chan struct{}),
	}

	h.sctx.Defer(h.removeScript)
	h.sctx.Go(func(sctx *stopper.Context) error {
		err := cmd.Wait()
		h.removeScript()
		h.finish(err)
		sctx.Stop(0)
		return nil
	})

	return h
}

func (h *Handle) removeScript() {
	h.cleanup.Do(func() {
		if err := os.Remove(h.Script); err != nil && !os.IsNotExist(err) {
			h.log.Warn("remove script", "path", h.Script, "error", err)
		}
	})
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	cancelled := h.cancelled
	h.mu.Unlock()

	var ee *exec.ExitError
	switch {
	case err == nil:
	case cancelled:
		err = fmt.Errorf("runner: %w", context.Canceled)
	case errors.As(err, &ee):
		err = &ExitError{Code: ee.ExitCode()}
	default:
		err = fmt.Errorf("runner: wait: %w", err)
	}

	h.err = err
	h.log.Info("process finished", "pid", h.Pid(), "exit_code", h.cmd.ProcessState.ExitCode(), "error", err)
	close(h.done)
}

// Pid returns the OS process id.
func (h *Handle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}

	return h.cmd.Process.Pid
}

// Done is closed when the process has exited and the script is removed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the process result once Done is closed: nil, an *ExitError,
// or a wrapped context.Canceled after Cancel.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the process exits or ctx is done. Returning because of
// ctx does not stop the process.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel kills the process and waits for cleanup to finish.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()

	h.cancel()
	h.sctx.Stop(time.Second)
	_ = h.sctx.Wait()
	<-h.done
}
