package pyenv

import (
	"runtime"
	"strings"
)

// PipOptions tunes an install command.
type PipOptions struct {
	Upgrade bool
	Index   string // custom package index URL, empty for the default
}

// PipInstall builds `"<python>" -m pip install [-U] [-i INDEX] "<spec>"...`.
func PipInstall(python string, specs []string, opts PipOptions) string {
	parts := []string{Quote(python), "-m", "pip", "install"}
	if opts.Upgrade {
		parts = append(parts, "-U")
	}
	if opts.Index != "" {
		parts = append(parts, "-i", Quote(opts.Index))
	}

	return strings.Join(append(parts, quoteAll(specs)...), " ")
}

// PipUninstall builds `"<python>" -m pip uninstall [-y] "<spec>"...`. yes
// skips pip's confirmation prompt, which is required when no terminal is
// attached.
func PipUninstall(python string, specs []string, yes bool) string {
	parts := []string{Quote(python), "-m", "pip", "uninstall"}
	if yes {
		parts = append(parts, "-y")
	}

	return strings.Join(append(parts, quoteAll(specs)...), " ")
}

// PipInstallArgs returns the argument vector for running pip install
// without a shell.
func PipInstallArgs(specs []string, opts PipOptions) []string {
	args := []string{"-m", "pip", "install"}
	if opts.Upgrade {
		args = append(args, "-U")
	}
	if opts.Index != "" {
		args = append(args, "-i", opts.Index)
	}

	return append(args, specs...)
}

// RunBot builds the command line that starts the bot through nb-cli.
func RunBot(python string) string {
	return Quote(python) + " -m nb_cli run"
}

// Quote wraps s in double quotes for the platform shell used by the run
// scripts (bash, or cmd.exe on Windows).
func Quote(s string) string { return QuoteFor(runtime.GOOS, s) }

// QuoteFor is Quote for the shell of goos.
func QuoteFor(goos, s string) string {
	if goos == "windows" {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}

	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

	return `"` + r.Replace(s) + `"`
}

func quoteAll(specs []string) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = Quote(s)
	}

	return out
}
