// Package projectdir encapsulates all path knowledge for a NoneBot project
// directory. It provides a Dir value object with accessors for the manifest,
// env files, the isolated Python environment and nbdesk's own local state,
// plus an upward search used to locate a project from any of its subdirectories.
package projectdir

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File and directory names that make up a project.
const (
	ManifestName = "pyproject.toml"
	BotName      = "bot.py"
	EnvName      = ".env"
	VenvName     = ".venv"
	LocalName    = ".nbdesk"
)

// Dir is a value object that resolves paths within a project directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at the given path. The path is converted to an
// absolute path. No I/O is performed.
func New(root string) Dir {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

// Root returns the absolute path to the project directory.
func (d Dir) Root() string { return d.root }

// Name returns the project directory's base name.
func (d Dir) Name() string { return filepath.Base(d.root) }

// ManifestPath returns the path to pyproject.toml.
func (d Dir) ManifestPath() string { return filepath.Join(d.root, ManifestName) }

// BotPath returns the path to the bot.py entry script.
func (d Dir) BotPath() string { return filepath.Join(d.root, BotName) }

// EnvPath returns the path to the base .env file.
func (d Dir) EnvPath() string { return filepath.Join(d.root, EnvName) }

// EnvFilePath returns the path to the environment specific .env.<env> file.
func (d Dir) EnvFilePath(env string) string {
	return filepath.Join(d.root, EnvName+"."+env)
}

// VenvDir returns the path to the project's isolated Python environment.
func (d Dir) VenvDir() string { return filepath.Join(d.root, VenvName) }

// PluginsDir returns the path used for locally developed plugins.
func (d Dir) PluginsDir() string { return filepath.Join(d.root, "src", "plugins") }

// LocalDir returns the path to nbdesk's local (gitignored) state directory.
func (d Dir) LocalDir() string { return filepath.Join(d.root, LocalName) }

// LogPath returns the path to the log file inside the local directory.
func (d Dir) LogPath() string { return filepath.Join(d.root, LocalName, "nbdesk.log") }

// GitignorePath returns the path to the .gitignore inside the local directory.
func (d Dir) GitignorePath() string { return filepath.Join(d.root, LocalName, ".gitignore") }

// EnvFiles returns the sorted base names of all .env* files in the project
// root (non-recursive). Returns nil if there are none.
func (d Dir) EnvFiles() []string {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), EnvName) {
			continue
		}
		names = append(names, e.Name())
	}

	sort.Strings(names)

	return names
}

// Exists reports whether the root directory exists on disk.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}

// HasVenv reports whether the project has an isolated Python environment.
func (d Dir) HasVenv() bool {
	info, err := os.Stat(d.VenvDir())

	return err == nil && info.IsDir()
}

// IsProject reports whether the directory looks like a bot project, which is
// the case when it contains pyproject.toml or bot.py.
func (d Dir) IsProject() bool {
	return isFile(d.ManifestPath()) || isFile(d.BotPath())
}

// FindUp walks from start towards the filesystem root and returns the first
// directory that contains a regular file with one of the given names.
func FindUp(start string, names ...string) (Dir, bool) {
	cur := New(start).Root()
	for {
		for _, n := range names {
			if isFile(filepath.Join(cur, n)) {
				return Dir{root: cur}, true
			}
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return Dir{}, false
		}

		cur = parent
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
