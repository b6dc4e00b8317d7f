package runner

import (
	"fmt"
	"os/exec"
)

type terminal struct {
	bin string
	// argv builds the arguments that run script inside the terminal.
	argv func(script string) []string
	// open returns the arguments that open an idle terminal in dir.
	open func(dir string) []string
}

func bashArgs(flag string) func(string) []string {
	return func(script string) []string { return []string{flag, "bash", script} }
}

func noArgs(string) []string { return nil }

// terminals returns the emulators probed for goos, in order of preference.
func terminals(goos string) []terminal {
	switch goos {
	case "windows":
		return []terminal{{
			bin:  "cmd.exe",
			argv: func(script string) []string { return []string{"/c", "start", "/wait", "cmd.exe", "/c", script} },
			open: func(string) []string { return []string{"/c", "start", "cmd.exe"} },
		}}
	case "darwin":
		return []terminal{{
			bin:  "open",
			argv: func(script string) []string { return []string{"-W", "-a", "Terminal", script} },
			open: func(dir string) []string { return []string{"-a", "Terminal", dir} },
		}}
	default:
		return []terminal{
			{
				bin:  "gnome-terminal",
				argv: func(script string) []string { return []string{"--wait", "--", "bash", script} },
				open: func(dir string) []string { return []string{"--working-directory=" + dir} },
			},
			{bin: "konsole", argv: bashArgs("-e"), open: func(dir string) []string { return []string{"--workdir", dir} }},
			{bin: "xfce4-terminal", argv: bashArgs("-x"), open: func(dir string) []string { return []string{"--working-directory=" + dir} }},
			{bin: "xterm", argv: bashArgs("-e"), open: noArgs},
			{bin: "st", argv: bashArgs("-e"), open: noArgs},
		}
	}
}

func (r *Runner) findTerminal() (terminal, string, error) {
	for _, t := range terminals(r.goos()) {
		if path, err := r.lookPath(t.bin); err == nil {
			return t, path, nil
		}
	}

	return terminal{}, "", ErrNoTerminal
}

func (r *Runner) terminalCommand(script string) ([]string, error) {
	t, path, err := r.findTerminal()
	if err != nil {
		return nil, err
	}

	return append([]string{path}, t.argv(script)...), nil
}

// OpenTerminal opens an interactive terminal in dir without waiting for it.
func (r *Runner) OpenTerminal(dir string) error {
	t, path, err := r.findTerminal()
	if err != nil {
		return err
	}

	cmd := exec.Command(path, t.open(dir)...) //nolint:gosec // path is a known terminal emulator
	cmd.Dir = dir

	return r.detach(cmd)
}

// SystemOpen opens path (a file, directory or URL) with the desktop's
// default handler.
func (r *Runner) SystemOpen(path string) error {
	var argv []string
	switch r.goos() {
	case "windows":
		argv = []string{"cmd.exe", "/c", "start", "", path}
	case "darwin":
		argv = []string{"open", path}
	default:
		argv = []string{"xdg-open", path}
	}

	bin, err := r.lookPath(argv[0])
	if err != nil {
		return fmt.Errorf("runner: open %s: %w", path, err)
	}

	return r.detach(exec.Command(bin, argv[1:]...)) //nolint:gosec // bin is the platform opener
}

func (r *Runner) detach(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("runner: start %s: %w", cmd.Path, err)
	}

	r.logger().Debug("detached process", "pid", cmd.Process.Pid, "path", cmd.Path)

	return cmd.Process.Release()
}
