// Package pyenv inspects the Python environment a bot project runs in. It
// locates the interpreter (preferring the project's .venv), enumerates the
// installed distributions by scanning package metadata directories, caches the
// result in a Snapshot and builds package-manager command lines.
package pyenv

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/germanamz/nbdesk/pkg/projectdir"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// hostCandidates are probed in order when the project has no isolated
// environment.
var hostCandidates = []string{"python3", "python"}

// VenvPython returns the interpreter path inside the project's .venv without
// checking that it exists.
func VenvPython(dir string) string {
	venv := projectdir.New(dir).VenvDir()
	if runtime.GOOS == "windows" {
		return filepath.Join(venv, "Scripts", "python.exe")
	}

	return filepath.Join(venv, "bin", "python")
}

// FindPython returns the project's .venv interpreter when present, otherwise
// the host interpreter.
func FindPython(dir string) string {
	if p := VenvPython(dir); fileExists(p) {
		return p
	}

	return HostPython()
}

// HostPython returns the first host interpreter found on PATH. When none is
// found the bare command name is returned so that the failure surfaces when
// the command runs.
func HostPython() string {
	for _, c := range hostCandidates {
		if p, err := lookPath(c); err == nil {
			return p
		}
	}

	return hostCandidates[0]
}

// SitePackages returns every site-packages directory below the project's
// .venv, sorted. Returns nil when the project has no isolated environment.
func SitePackages(dir string) []string {
	venv := projectdir.New(dir).VenvDir()

	var found []string
	_ = filepath.WalkDir(venv, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if d.IsDir() && d.Name() == "site-packages" {
			found = append(found, path)
			return filepath.SkipDir
		}

		return nil
	})

	sort.Strings(found)

	return found
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
