package pyenv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
)

// Interpreter reports the site directories of a Python interpreter.
type Interpreter interface {
	SiteDirs(ctx context.Context, python string) ([]string, error)
}

// siteScript prints the interpreter's global and user site directories as a
// JSON array.
const siteScript = "import json, site; print(json.dumps(site.getsitepackages() + [site.getusersitepackages()]))"

// ExecInterpreter asks a real interpreter for its site directories.
type ExecInterpreter struct{}

// SiteDirs runs python with a short script and decodes its output.
func (ExecInterpreter) SiteDirs(ctx context.Context, python string) ([]string, error) {
	cmd := exec.CommandContext(ctx, python, "-c", siteScript) //nolint:gosec // interpreter path comes from FindPython

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pyenv: query site dirs: %w\n%s", err, stderr.String())
	}

	var dirs []string
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &dirs); err != nil {
		return nil, fmt.Errorf("pyenv: decode site dirs: %w", err)
	}

	return dirs, nil
}

// Inspector enumerates installed distributions for a project directory.
type Inspector struct {
	interp Interpreter
	log    *slog.Logger
}

// NewInspector creates an Inspector. A nil interp uses ExecInterpreter and a
// nil log discards output.
func NewInspector(interp Interpreter, log *slog.Logger) *Inspector {
	if interp == nil {
		interp = ExecInterpreter{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Inspector{interp: interp, log: log}
}

// SiteDirs returns the directories scanned for dir: the project's venv
// site-packages when present, otherwise the host interpreter's site
// directories. A host interpreter that cannot be queried yields nil.
func (i *Inspector) SiteDirs(ctx context.Context, dir string) []string {
	if venv := SitePackages(dir); len(venv) > 0 {
		return venv
	}

	python := HostPython()

	dirs, err := i.interp.SiteDirs(ctx, python)
	if err != nil {
		i.log.Warn("host interpreter unavailable", "python", python, "error", err)
		return nil
	}

	return dirs
}

// Distributions lists the distributions visible to the project's
// interpreter. A missing environment is not an error; it degrades to the
// host interpreter's global packages. Only context cancellation is reported.
func (i *Inspector) Distributions(ctx context.Context, dir string) ([]Distribution, error) {
	dirs := i.SiteDirs(ctx, dir)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dists := ScanSiteDirs(dirs...)
	if len(dists) == 0 && len(SitePackages(dir)) > 0 {
		// An empty venv falls back to the host like a missing one.
		if host, err := i.interp.SiteDirs(ctx, HostPython()); err == nil {
			dists = ScanSiteDirs(host...)
		}
	}

	i.log.Debug("inspected environment", "dir", dir, "site_dirs", len(dirs), "distributions", len(dists))

	return dists, nil
}

// Installed returns the set of installed distribution names for dir.
func (i *Inspector) Installed(ctx context.Context, dir string) (InstalledSet, error) {
	dists, err := i.Distributions(ctx, dir)
	if err != nil {
		return InstalledSet{}, err
	}

	return SetOf(dists), nil
}
