package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/logging"
	"github.com/germanamz/nbdesk/pkg/prefs"
	"github.com/germanamz/nbdesk/pkg/projectcfg"
	"github.com/germanamz/nbdesk/pkg/projectdir"
	"github.com/germanamz/nbdesk/pkg/pyenv"
	"github.com/germanamz/nbdesk/pkg/reconcile"
	"github.com/germanamz/nbdesk/pkg/runner"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	project  string
	index    string
	registry []string
	logLevel string
	headless bool
}

// app wires the library packages together for one CLI invocation.
type app struct {
	opts globalOptions

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Seams replaced by tests. Nil values select the real implementations.
	interp      pyenv.Interpreter
	starter     reconcile.Starter
	prefsPath   string
	interactive *bool

	dir      projectdir.Dir
	prefs    *prefs.Store
	cat      *catalog.Catalog
	log      *slog.Logger
	closeLog logging.CloseFunc
	acc      *projectcfg.Accessor
	runner   *runner.Runner
	session  *reconcile.Session
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdin: os.Stdin, stdout: stdout, stderr: stderr}
}

// setup resolves the target directory and builds the shared services. It
// runs before every command.
func (a *app) setup(cmd *cobra.Command) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	a.dir = projectdir.New(resolveProjectDir(a.opts.project, cwd))

	if err := a.setupLogger(); err != nil {
		return err
	}

	if err := a.setupPrefs(); err != nil {
		return err
	}

	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	for _, spec := range a.opts.registry {
		if err := mergeRegistry(cat, spec); err != nil {
			return err
		}
	}
	a.cat = cat

	a.acc = projectcfg.NewAccessor(a.log)
	a.runner = runner.New(a.log)
	if !a.newWindow() {
		a.runner.Output = a.stdout
	}

	starter := a.starter
	if starter == nil {
		starter = reconcile.RunnerStarter{Runner: a.runner}
	}

	a.session = reconcile.NewSession(a.dir.Root(), a.cat, pyenv.NewInspector(a.interp, a.log), a.acc, starter, reconcile.Options{
		Index:     a.index(),
		NewWindow: a.newWindow(),
		Logger:    a.log,
	})

	a.log.Debug("session ready", "dir", a.dir.Root(), "command", cmd.CommandPath(), "new_window", a.newWindow())

	return nil
}

func (a *app) setupLogger() error {
	level := slog.LevelWarn
	if a.opts.logLevel != "" {
		l, err := logging.ParseLevel(a.opts.logLevel)
		if err != nil {
			return err
		}
		level = l
	}

	opts := logging.Options{Level: level, Stderr: a.stderr}
	if a.dir.IsProject() {
		if err := projectdir.EnsureLocal(a.dir); err == nil {
			opts.File = a.dir.LogPath()
		}
	}

	log, closeFn, err := logging.New(opts)
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeFn

	return nil
}

func (a *app) setupPrefs() error {
	path := a.prefsPath
	if path == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	store, err := prefs.New(path)
	if err != nil {
		return err
	}
	a.prefs = store

	return nil
}

// mergeRegistry adds the records of a registry export given as
// kind=path, for example plugins=./plugins.json.
func mergeRegistry(cat *catalog.Catalog, spec string) error {
	name, path, ok := strings.Cut(spec, "=")
	if !ok || path == "" {
		return fmt.Errorf("registry %q: want kind=path", spec)
	}

	kind, err := catalog.ParseKind(name)
	if err != nil {
		return err
	}

	features, err := catalog.LoadRegistry(path)
	if err != nil {
		return err
	}

	return cat.Merge(kind, features)
}

// close releases resources after the command finished. It is safe to call
// more than once.
func (a *app) close() {
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	if a.closeLog != nil {
		_ = a.closeLog()
		a.closeLog = nil
	}
}

// index returns the package index: the flag or NBDESK_INDEX, then the
// stored preference.
func (a *app) index() string {
	if a.opts.index != "" {
		return a.opts.index
	}
	if a.prefs != nil {
		return a.prefs.Index()
	}
	return ""
}

// newWindow reports whether package-manager processes open a terminal
// window. --headless and non-interactive sessions always run in place.
func (a *app) newWindow() bool {
	if a.opts.headless || !a.isInteractive() {
		return false
	}
	return a.prefs != nil && a.prefs.NewWindow()
}

func (a *app) isInteractive() bool {
	if a.interactive != nil {
		return *a.interactive
	}
	return isTerminal(a.stdin) && isTerminal(a.stdout)
}

// remember records the target directory as a recent project.
func (a *app) remember() {
	if !a.dir.IsProject() {
		return
	}
	if err := a.prefs.AddRecent(a.dir.Root()); err != nil {
		a.log.Warn("cannot update recent projects", "error", err)
	}
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) println(args ...any) {
	_, _ = fmt.Fprintln(a.stdout, args...)
}

// warnConfig reports a configuration error that did not stop the command.
func (a *app) warnConfig(err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprintln(a.stderr, warning(err.Error()))
}

func (a *app) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
