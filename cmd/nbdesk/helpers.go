package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/germanamz/nbdesk/pkg/projectdir"
)

// envPrefix marks the dotenv keys nbdesk reads for itself. Everything else in
// a project's .env belongs to the bot and must not reach processes nbdesk
// starts, where it would override the .env.<ENVIRONMENT> chain.
const envPrefix = "NBDESK_"

// loadDotEnv exports the NBDESK_* variables defined in path. Variables that
// are already set win. Missing files are ignored.
func loadDotEnv(path string) error {
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for k, v := range vars {
		if !strings.HasPrefix(k, envPrefix) {
			continue
		}
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}

// envOr returns the value of the environment variable key, or def when it is
// unset or empty.
func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f any) bool {
	file, ok := f.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd())) //nolint:gosec // fd fits in int
}

// terminalWidth returns the width of f, or 100 when it is not a terminal.
func terminalWidth(f any) int {
	if file, ok := f.(*os.File); ok {
		if w, _, err := term.GetSize(int(file.Fd())); err == nil && w > 0 { //nolint:gosec // fd fits in int
			return w
		}
	}
	return 100
}

// resolveProjectDir picks the directory to operate on. Priority:
// 1. Explicit --project flag (or NBDESK_PROJECT)
// 2. The nearest parent of cwd holding pyproject.toml or bot.py
// 3. cwd itself
func resolveProjectDir(explicit, cwd string) string {
	if explicit != "" {
		if filepath.IsAbs(explicit) {
			return filepath.Clean(explicit)
		}
		return filepath.Join(cwd, explicit)
	}

	if d, ok := projectdir.FindUp(cwd, projectdir.ManifestName, projectdir.BotName); ok {
		return d.Root()
	}

	return projectdir.New(cwd).Root()
}

// envFilePath maps an env file argument to a path inside the project. Empty
// means .env, a bare environment name such as "prod" means .env.prod and
// anything else is taken relative to the project root.
func envFilePath(p projectdir.Dir, name string) string {
	switch {
	case name == "":
		return p.EnvPath()
	case filepath.IsAbs(name):
		return name
	case strings.HasPrefix(name, projectdir.EnvName) || strings.ContainsAny(name, `/\`):
		return filepath.Join(p.Root(), name)
	default:
		return p.EnvFilePath(name)
	}
}

// renderMarkdown converts markdown text to terminal-formatted output. Any
// renderer failure falls back to the raw text.
func renderMarkdown(text string, width int) string {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
