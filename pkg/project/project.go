// Package project scaffolds new bot projects: the manifest, env files and
// entry script, an optional isolated environment and the initial package
// install.
package project

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/projectcfg"
	"github.com/germanamz/nbdesk/pkg/projectdir"
	"github.com/germanamz/nbdesk/pkg/pyenv"
	"github.com/germanamz/nbdesk/pkg/runner"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

var (
	// ErrInstallFailed is returned when the initial package install exits
	// with a non-zero status.
	ErrInstallFailed = errors.New("project: cannot install packages")
	// ErrNotEmpty is returned when the target directory already has content.
	ErrNotEmpty = errors.New("project: directory is not empty")
)

// CommandRunner runs a program to completion in dir.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands with os/exec, streaming output to Output. A
// non-zero exit is reported as *runner.ExitError.
type ExecRunner struct {
	Output io.Writer
}

// Run implements CommandRunner.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // name is a resolved python interpreter
	cmd.Dir = dir
	if r.Output != nil {
		cmd.Stdout = r.Output
		cmd.Stderr = r.Output
	}

	err := cmd.Run()

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &runner.ExitError{Code: ee.ExitCode()}
	}

	return err
}

// Options describes a project to create.
type Options struct {
	// Dir is the project directory. It must be missing or empty.
	Dir      string
	Drivers  []catalog.Feature
	Adapters []catalog.Feature
	// Dev adds the src/plugins layout for developing local plugins.
	Dev bool
	// Venv creates an isolated environment in .venv.
	Venv bool
	// NoInstall skips installing nonebot2 and the selected packages.
	NoInstall bool
	// Index is the package index for the install, empty for the default.
	Index string
	// Python is the host interpreter used to create the venv. Empty means
	// pyenv.HostPython().
	Python string
	// Runner runs venv creation and pip. Nil means ExecRunner.
	Runner CommandRunner
	// Accessor writes the manifest. Nil creates one.
	Accessor *projectcfg.Accessor
	Logger   *slog.Logger
}

type adapterView struct {
	ModuleName string
	Alias      string
}

type templateData struct {
	Name     string
	Driver   string
	Adapters []adapterView
}

// Create scaffolds the project described by opts.
func Create(ctx context.Context, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	run := opts.Runner
	if run == nil {
		run = ExecRunner{}
	}
	acc := opts.Accessor
	if acc == nil {
		acc = projectcfg.NewAccessor(log)
	}

	if err := prepareDir(opts.Dir); err != nil {
		return err
	}

	p := projectdir.New(opts.Dir)
	data := newTemplateData(p, opts)

	files := []struct{ tmpl, path string }{
		{"pyproject.toml.tmpl", p.ManifestPath()},
		{"env.tmpl", p.EnvPath()},
		{"env.dev.tmpl", p.EnvFilePath("dev")},
		{"env.prod.tmpl", p.EnvFilePath("prod")},
		{"bot.py.tmpl", p.BotPath()},
	}
	for _, f := range files {
		if err := render(f.tmpl, f.path, data); err != nil {
			return err
		}
	}

	if err := acc.SaveManifest(p.ManifestPath(), manifestFor(opts)); err != nil {
		return err
	}

	if opts.Dev {
		if err := os.MkdirAll(p.PluginsDir(), 0o750); err != nil {
			return fmt.Errorf("project: create plugins dir: %w", err)
		}
	}

	log.Info("project scaffolded", "dir", p.Root(), "drivers", len(opts.Drivers), "adapters", len(opts.Adapters))

	if opts.Venv {
		host := opts.Python
		if host == "" {
			host = pyenv.HostPython()
		}
		if err := run.Run(ctx, p.Root(), host, "-m", "venv", "--prompt", data.Name, projectdir.VenvName); err != nil {
			return fmt.Errorf("project: create venv: %w", err)
		}
		log.Info("venv created", "dir", p.VenvDir())
	}

	if opts.NoInstall {
		return nil
	}

	python := pyenv.FindPython(p.Root())
	if !opts.Venv && opts.Python != "" {
		python = opts.Python
	}

	args := pyenv.PipInstallArgs(InstallSpecs(opts.Drivers, opts.Adapters), pyenv.PipOptions{Upgrade: true, Index: opts.Index})
	if err := run.Run(ctx, p.Root(), python, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	log.Info("packages installed", "dir", p.Root())

	return nil
}

// InstallSpecs returns nonebot2 followed by the project links of the
// selected packaged features, without duplicates.
func InstallSpecs(drivers, adapters []catalog.Feature) []string {
	specs := []string{"nonebot2"}
	seen := map[string]bool{"nonebot2": true}

	for _, f := range append(append([]catalog.Feature{}, drivers...), adapters...) {
		if f.IsBuiltin() || seen[f.ProjectLink] {
			continue
		}
		seen[f.ProjectLink] = true
		specs = append(specs, f.ProjectLink)
	}

	return specs
}

func prepareDir(dir string) error {
	if dir == "" {
		return errors.New("project: directory is required")
	}

	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("project: read dir: %w", err)
	case len(entries) > 0:
		return fmt.Errorf("%w: %s", ErrNotEmpty, dir)
	default:
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("project: remove empty dir: %w", err)
		}
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("project: create dir: %w", err)
	}

	return nil
}

func newTemplateData(p projectdir.Dir, opts Options) templateData {
	modules := make([]string, 0, len(opts.Drivers))
	for _, d := range opts.Drivers {
		modules = append(modules, d.ModuleName)
	}

	data := templateData{
		Name:   strings.ReplaceAll(p.Name(), " ", "-"),
		Driver: projectcfg.NewEnabledSet(modules...).String(),
	}

	for _, a := range opts.Adapters {
		data.Adapters = append(data.Adapters, adapterView{ModuleName: a.ModuleName, Alias: AdapterAlias(a.ModuleName)})
	}

	return data
}

// AdapterAlias derives the import alias bot.py uses for an adapter module:
// nonebot.adapters.onebot.v11 becomes ONEBOT_V11Adapter.
func AdapterAlias(module string) string {
	name := strings.TrimPrefix(module, "nonebot.adapters.")
	name = strings.NewReplacer(".", "_", "-", "_").Replace(name)

	return strings.ToUpper(name) + "Adapter"
}

func manifestFor(opts Options) projectcfg.Manifest {
	m := projectcfg.Manifest{
		Plugins:        []string{},
		PluginDirs:     []string{},
		BuiltinPlugins: []string{},
	}
	for _, a := range opts.Adapters {
		m.AddAdapter(projectcfg.AdapterRecord{Name: a.Name, ModuleName: a.ModuleName})
	}
	if opts.Dev {
		m.PluginDirs = []string{filepath.ToSlash(filepath.Join("src", "plugins"))}
	}

	return m
}

func render(name, path string, data templateData) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("project: render %s: %w", name, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // project file, not secret
		return fmt.Errorf("project: write %s: %w", filepath.Base(path), err)
	}

	return nil
}
