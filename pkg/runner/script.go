package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/germanamz/nbdesk/pkg/projectdir"
	"github.com/germanamz/nbdesk/pkg/pyenv"
)

// ScriptPrefix starts the name of every generated script.
const ScriptPrefix = "nbdtk-"

// PauseMessage is shown before a terminal window closes.
const PauseMessage = "Press any key to continue..."

// BuildScript renders the launch script for goos. The script activates the
// .venv of dir when it exists, changes to dir, runs commandLine and exits
// with its status. With pause it waits for a key press first.
func BuildScript(goos, dir, commandLine string, pause bool) string {
	venv := projectdir.New(dir).VenvDir()
	q := func(s string) string { return pyenv.QuoteFor(goos, s) }

	var b strings.Builder
	if goos == "windows" {
		b.WriteString("@echo off\r\n")
		if activate := filepath.Join(venv, "Scripts", "activate.bat"); fileExists(activate) {
			fmt.Fprintf(&b, "call %s\r\n", q(activate))
		}
		fmt.Fprintf(&b, "cd /d %s\r\n", q(dir))
		b.WriteString(commandLine + "\r\n")
		b.WriteString("set NBDTK_STATUS=%ERRORLEVEL%\r\n")
		if pause {
			b.WriteString("pause\r\n")
		}
		b.WriteString("exit /b %NBDTK_STATUS%\r\n")

		return b.String()
	}

	b.WriteString("#!/usr/bin/env bash\n")
	if activate := filepath.Join(venv, "bin", "activate"); fileExists(activate) {
		fmt.Fprintf(&b, ". %s\n", q(activate))
	}
	fmt.Fprintf(&b, "cd %s || exit 1\n", q(dir))
	b.WriteString(commandLine + "\n")
	b.WriteString("status=$?\n")
	if pause {
		fmt.Fprintf(&b, "echo\nread -n1 -s -r -p %s\necho\n", q(PauseMessage))
	}
	b.WriteString("exit $status\n")

	return b.String()
}

func (r *Runner) writeScript(dir, commandLine string, pause bool) (string, error) {
	ext := ".sh"
	if r.goos() == "windows" {
		ext = ".bat"
	}

	f, err := os.CreateTemp(r.TempDir, ScriptPrefix+"*"+ext)
	if err != nil {
		return "", fmt.Errorf("runner: create script: %w", err)
	}
	path := f.Name()

	_, err = f.WriteString(BuildScript(r.goos(), dir, commandLine, pause))
	if err == nil {
		err = f.Chmod(0o755)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("runner: write script: %w", err)
	}

	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
