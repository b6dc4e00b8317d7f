package reconcile

import (
	"context"
	"fmt"

	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/pyenv"
)

// Enable turns the feature on. Packaged features must be installed first.
func (s *Session) Enable(ctx context.Context, kind catalog.Kind, module string) error {
	f, err := s.feature(kind, module)
	if err != nil {
		return err
	}

	if !f.IsBuiltin() {
		ok, err := s.IsInstalled(ctx, kind, module)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotInstalled, f.ProjectLink)
		}
	}

	return s.setEnabled(kind, f, true)
}

// Disable turns the feature off.
func (s *Session) Disable(_ context.Context, kind catalog.Kind, module string) error {
	f, err := s.feature(kind, module)
	if err != nil {
		return err
	}

	return s.setEnabled(kind, f, false)
}

// Toggle flips the feature and returns its new enabled state.
func (s *Session) Toggle(ctx context.Context, kind catalog.Kind, module string) (bool, error) {
	f, err := s.feature(kind, module)
	if err != nil {
		return false, err
	}

	enabled, err := s.acc.Enabled(kind, s.Dir())
	if err != nil {
		return false, err
	}

	if enabled.Has(f.ModuleName) {
		return false, s.Disable(ctx, kind, f.ModuleName)
	}

	return true, s.Enable(ctx, kind, f.ModuleName)
}

func (s *Session) setEnabled(kind catalog.Kind, f catalog.Feature, on bool) error {
	if err := s.acc.SetEnabled(kind, s.Dir(), f, on); err != nil {
		return err
	}

	s.log.Info("feature toggled", "kind", kind, "feature", f.ModuleName, "enabled", on)
	s.changed()

	return nil
}

// Install starts installing the feature's package. The row is busy until
// the returned operation is done; the feature is not enabled afterwards.
func (s *Session) Install(ctx context.Context, kind catalog.Kind, module string) (*Operation, error) {
	f, err := s.feature(kind, module)
	if err != nil {
		return nil, err
	}
	if f.IsBuiltin() {
		return nil, fmt.Errorf("%w: %s", ErrBuiltin, f.ModuleName)
	}

	cmd := pyenv.PipInstall(s.python(), []string{f.ProjectLink}, pyenv.PipOptions{Index: s.opts.Index})
	name, extras := pyenv.ParseRequirement(f.ProjectLink)
	keys := append([]string{rowKey(kind, f.ModuleName)}, packageKeys(append([]string{name}, extras...))...)

	return s.start(ctx, ActionInstall, f.ModuleName, cmd, keys...)
}

// Uninstall starts removing the feature's package. Uninstalling an enabled
// feature is allowed; the configuration keeps referring to it.
func (s *Session) Uninstall(ctx context.Context, kind catalog.Kind, module string) (*Operation, error) {
	f, err := s.feature(kind, module)
	if err != nil {
		return nil, err
	}
	if f.IsBuiltin() {
		return nil, fmt.Errorf("%w: %s", ErrBuiltin, f.ModuleName)
	}

	if enabled, err := s.acc.Enabled(kind, s.Dir()); err == nil && enabled.Has(f.ModuleName) {
		s.log.Warn("uninstalling an enabled feature", "kind", kind, "feature", f.ModuleName)
	}

	targets := UninstallTargets(f.ProjectLink)
	cmd := pyenv.PipUninstall(s.python(), targets, !s.opts.NewWindow)
	keys := append([]string{rowKey(kind, f.ModuleName)}, packageKeys(targets)...)

	return s.start(ctx, ActionUninstall, f.ModuleName, cmd, keys...)
}

// UninstallTargets returns the distributions to remove for a project link.
// A link with extras such as nonebot2[fastapi] names the extras, so the
// shared base package stays installed.
func UninstallTargets(projectLink string) []string {
	name, extras := pyenv.ParseRequirement(projectLink)
	if len(extras) > 0 {
		return extras
	}

	return []string{name}
}

// Packages lists the distributions installed in the target environment.
func (s *Session) Packages(ctx context.Context) ([]pyenv.Distribution, error) {
	return s.snap.Get(ctx)
}

// UpgradePackage starts upgrading a distribution.
func (s *Session) UpgradePackage(ctx context.Context, name string) (*Operation, error) {
	cmd := pyenv.PipInstall(s.python(), []string{name}, pyenv.PipOptions{Upgrade: true, Index: s.opts.Index})

	return s.start(ctx, ActionUpgrade, name, cmd, packageKey(name))
}

// UninstallPackage starts removing a distribution.
func (s *Session) UninstallPackage(ctx context.Context, name string) (*Operation, error) {
	cmd := pyenv.PipUninstall(s.python(), []string{name}, !s.opts.NewWindow)

	return s.start(ctx, ActionUninstall, name, cmd, packageKey(name))
}

// RunProject starts the bot of the target directory.
func (s *Session) RunProject(ctx context.Context) (*Operation, error) {
	if !s.isProject() {
		return nil, fmt.Errorf("%w: %s", ErrNotProject, s.Dir())
	}

	return s.start(ctx, ActionRun, s.Dir(), pyenv.RunBot(s.python()), runKey)
}

// packageKeys returns the keys of the distributions pip touches, so
// features sharing a package (OneBot V11 and V12) never run pip on it at once.
func packageKeys(names []string) []string {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, packageKey(n))
	}
	return keys
}

// start claims every key, launches cmd and tracks it until it exits. It
// fails with ErrBusy when any key is held by another operation.
func (s *Session) start(ctx context.Context, action Action, target, cmd string, keys ...string) (*Operation, error) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	for _, key := range keys {
		if _, ok := s.inflight[key]; ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrBusy, key)
		}
	}

	op := &Operation{Action: action, Target: target, Command: cmd, done: make(chan struct{})}
	for _, key := range keys {
		s.inflight[key] = op
	}
	s.mu.Unlock()

	proc, err := s.starter.Start(ctx, s.Dir(), cmd, s.opts.NewWindow)
	if err != nil {
		s.release(keys)
		op.err = err
		close(op.done)
		return nil, err
	}

	s.mu.Lock()
	op.proc = proc
	closing := s.closing
	s.mu.Unlock()

	s.log.Info("operation started", "action", action, "target", target, "pid", proc.Pid())

	go s.await(keys, op)

	if closing {
		proc.Cancel()
	}

	return op, nil
}

func (s *Session) await(keys []string, op *Operation) {
	<-op.proc.Done()
	err := op.proc.Err()

	if op.Action != ActionRun {
		s.snap.Invalidate()
	}
	s.release(keys)

	if err != nil {
		s.log.Warn("operation failed", "action", op.Action, "target", op.Target, "pid", op.proc.Pid(), "error", err)
	} else {
		s.log.Info("operation finished", "action", op.Action, "target", op.Target, "pid", op.proc.Pid())
	}

	op.err = err
	s.changed()
	close(op.done)
}

func (s *Session) release(keys []string) {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.inflight, key)
	}
	s.mu.Unlock()
}

// Close cancels every running operation and waits for them to finish.
// Operations still starting are cancelled as soon as their process exists,
// and no new operation can start afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closing = true
	ops := make(map[*Operation]Process, len(s.inflight))
	for _, op := range s.inflight {
		ops[op] = op.proc
	}
	s.mu.Unlock()

	for op, proc := range ops {
		if proc != nil {
			proc.Cancel()
		}
		<-op.done
	}
}
