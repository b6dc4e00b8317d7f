// Package reconcile joins the feature catalog, the project's configuration
// and its installed packages into per-feature rows, and drives the actions
// that move a row between states: enabling and disabling (a synchronous
// config write) and installing or uninstalling (a package-manager process).
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/projectcfg"
	"github.com/germanamz/nbdesk/pkg/projectdir"
	"github.com/germanamz/nbdesk/pkg/pyenv"
)

var (
	// ErrBuiltin is returned when installing or uninstalling a feature that
	// has no package.
	ErrBuiltin = errors.New("reconcile: feature is builtin")
	// ErrBusy is returned when the row already has an operation running.
	ErrBusy = errors.New("reconcile: operation already in progress")
	// ErrClosed is returned when starting an operation after Close.
	ErrClosed = errors.New("reconcile: session closed")
	// ErrNotInstalled is returned when enabling a packaged feature that is
	// not installed.
	ErrNotInstalled = errors.New("reconcile: feature is not installed")
	// ErrNotProject is returned when running a directory that is not a bot
	// project.
	ErrNotProject = errors.New("reconcile: not a bot project")
	// ErrUnknownFeature is returned for modules the catalog does not list.
	ErrUnknownFeature = errors.New("reconcile: unknown feature")
)

// Options tunes a Session.
type Options struct {
	// Index is the package index passed to pip, empty for the default.
	Index string
	// NewWindow runs package-manager processes in a terminal window.
	NewWindow bool
	// Logger receives operation events. Nil discards.
	Logger *slog.Logger
	// OnChange is called after a config write and after an operation
	// completed.
	OnChange func()
	// Python resolves the interpreter for a directory. Nil means
	// pyenv.FindPython.
	Python func(dir string) string
}

// Session holds the state shared by every action on one target directory:
// the catalog, a lazily refreshed snapshot of installed distributions, the
// config accessor and the process starter.
type Session struct {
	cat     *catalog.Catalog
	snap    *pyenv.Snapshot
	acc     *projectcfg.Accessor
	starter Starter
	opts    Options
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]*Operation
	closing  bool
}

// NewSession creates a Session targeting dir.
func NewSession(dir string, cat *catalog.Catalog, insp *pyenv.Inspector, acc *projectcfg.Accessor, starter Starter, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Python == nil {
		opts.Python = pyenv.FindPython
	}

	return &Session{
		cat:      cat,
		snap:     pyenv.NewSnapshot(insp, dir),
		acc:      acc,
		starter:  starter,
		opts:     opts,
		log:      log,
		inflight: make(map[string]*Operation),
	}
}

// Dir returns the target directory.
func (s *Session) Dir() string { return s.snap.Dir() }

// SetDir retargets the session and invalidates the installed snapshot.
func (s *Session) SetDir(dir string) { s.snap.SetDir(dir) }

// Snapshot exposes the installed-distribution cache, for watching.
func (s *Session) Snapshot() *pyenv.Snapshot { return s.snap }

// Catalog returns the session catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.cat }

// Rows returns one row per catalog feature of kind. When the project
// configuration cannot be read the rows are still returned, all disabled,
// together with the error.
func (s *Session) Rows(ctx context.Context, kind catalog.Kind) ([]Row, error) {
	installed, err := s.snap.Installed(ctx)
	if err != nil {
		return nil, err
	}

	enabled, cfgErr := s.acc.Enabled(kind, s.Dir())

	features := s.cat.Features(kind)
	rows := make([]Row, 0, len(features))
	for _, f := range features {
		r := newRow(f, installed, enabled)
		r.Busy = s.isBusy(rowKey(kind, f.ModuleName))
		rows = append(rows, r)
	}

	return rows, cfgErr
}

// Row returns the row of one feature.
func (s *Session) Row(ctx context.Context, kind catalog.Kind, module string) (Row, error) {
	f, err := s.feature(kind, module)
	if err != nil {
		return Row{}, err
	}

	installed, err := s.snap.Installed(ctx)
	if err != nil {
		return Row{}, err
	}

	enabled, cfgErr := s.acc.Enabled(kind, s.Dir())

	r := newRow(f, installed, enabled)
	r.Busy = s.isBusy(rowKey(kind, f.ModuleName))

	return r, cfgErr
}

// IsInstalled reports whether the feature's package is installed. Builtin
// features are always installed.
func (s *Session) IsInstalled(ctx context.Context, kind catalog.Kind, module string) (bool, error) {
	f, err := s.feature(kind, module)
	if err != nil {
		return false, err
	}
	if f.IsBuiltin() {
		return true, nil
	}

	installed, err := s.snap.Installed(ctx)
	if err != nil {
		return false, err
	}

	return installed.Satisfies(f.ProjectLink), nil
}

func (s *Session) feature(kind catalog.Kind, module string) (catalog.Feature, error) {
	f, ok := s.cat.Lookup(kind, module)
	if !ok {
		return catalog.Feature{}, fmt.Errorf("%w: %s %q", ErrUnknownFeature, kind, module)
	}

	return f, nil
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

func (s *Session) python() string { return s.opts.Python(s.Dir()) }

func rowKey(kind catalog.Kind, module string) string { return string(kind) + "/" + module }

func packageKey(name string) string { return "package/" + pyenv.Normalize(name) }

const runKey = "run"

func (s *Session) isBusy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.inflight[key]

	return ok
}

// isProject reports whether the target directory holds a bot project.
func (s *Session) isProject() bool {
	return projectdir.New(s.Dir()).IsProject()
}
