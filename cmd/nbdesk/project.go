package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/germanamz/nbdesk/cmd/nbdesk/internal/styles"
	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/project"
	"github.com/germanamz/nbdesk/pkg/projectdir"
	"github.com/germanamz/nbdesk/pkg/pyenv"
	"github.com/germanamz/nbdesk/pkg/reconcile"
)

// createFlags are the answers of the create wizard.
type createFlags struct {
	dir       string
	drivers   []string
	adapters  []string
	dev       bool
	venv      bool
	noInstall bool
	python    string
}

func newCreateCommand(a *app) *cobra.Command {
	var f createFlags

	cmd := &cobra.Command{
		Use:   "create [dir]",
		Short: "Scaffold a new bot project",
		Long: `Create writes pyproject.toml, .env files and bot.py into an empty directory,
optionally creates a virtual environment and installs nonebot2 with the
selected drivers and adapters. Without --driver or --adapter an interactive
terminal gets a wizard.`,
		Example: `  nbdesk create mybot --driver ~fastapi --adapter "OneBot V11" --venv`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				f.dir = args[0]
			}
			wizard := a.isInteractive() && !cmd.Flags().Changed("driver") && !cmd.Flags().Changed("adapter")
			if wizard {
				if err := createWizard(a.cat, &f); err != nil {
					return err
				}
			}
			if strings.TrimSpace(f.dir) == "" {
				return errors.New("create: missing project directory")
			}
			return a.create(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&f.drivers, "driver", "d", nil, "driver module or name (repeatable)")
	flags.StringSliceVarP(&f.adapters, "adapter", "a", nil, "adapter module or name (repeatable)")
	flags.BoolVar(&f.dev, "dev", false, "create src/plugins and register it as a plugin dir")
	flags.BoolVar(&f.venv, "venv", true, "create a .venv virtual environment")
	flags.BoolVar(&f.noInstall, "no-install", false, "skip installing packages")
	flags.StringVar(&f.python, "python", "", "host interpreter used to create the venv (default python3 or python on PATH)")

	return cmd
}

func (a *app) create(cmd *cobra.Command, f createFlags) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	dir := f.dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}

	drivers, err := a.features(catalog.KindDriver, f.drivers)
	if err != nil {
		return err
	}
	adapters, err := a.features(catalog.KindAdapter, f.adapters)
	if err != nil {
		return err
	}

	err = project.Create(a.context(cmd), project.Options{
		Dir:       dir,
		Drivers:   drivers,
		Adapters:  adapters,
		Dev:       f.dev,
		Venv:      f.venv,
		NoInstall: f.noInstall,
		Index:     a.index(),
		Python:    f.python,
		Runner:    project.ExecRunner{Output: a.stdout},
		Accessor:  a.acc,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	if err := a.prefs.AddRecent(dir); err != nil {
		a.log.Warn("cannot update recent projects", "error", err)
	}

	a.printf("%s created %s\n", styles.SuccessStyle.Render("✓"), dir)
	a.printf("  %s\n", styles.DimStyle.Render("nbdesk -C "+pyenv.Quote(dir)+" run"))

	return nil
}

func (a *app) features(kind catalog.Kind, args []string) ([]catalog.Feature, error) {
	out := make([]catalog.Feature, 0, len(args))
	for _, arg := range args {
		f, err := a.feature(kind, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.context(cmd)
			op, err := a.session.RunProject(ctx)
			if err != nil {
				return err
			}
			a.remember()
			err = a.wait(ctx, op, "running "+a.dir.Name())
			return a.report(op, err, a.dir.Name()+" stopped")
		},
	}
}

func newOpenCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the project directory in the file manager",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.runner.SystemOpen(a.dir.Root())
		},
	}
}

func newTerminalCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "terminal",
		Short: "Open a terminal window in the project directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.runner.OpenTerminal(a.dir.Root())
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the project, its environment and enabled features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.printStatus(cmd)
			return nil
		},
	}
}

func (a *app) printStatus(cmd *cobra.Command) {
	t := newTable("", "")
	var valueStyles []lipgloss.Style
	add := func(label, value string, style lipgloss.Style) {
		t.add(label, value)
		valueStyles = append(valueStyles, style)
	}
	yesNo := func(label string, ok bool) {
		if ok {
			add(label, "yes", styles.SuccessStyle)
			return
		}
		add(label, "no", styles.MissingStyle)
	}
	orDefault := func(label, value, def string) {
		if value == "" {
			add(label, def, styles.DimStyle)
			return
		}
		add(label, value, lipgloss.NewStyle())
	}

	add("directory", a.dir.Root(), lipgloss.NewStyle())
	yesNo("project", a.dir.IsProject())
	yesNo("venv", a.dir.HasVenv())
	orDefault("python", pyenv.FindPython(a.dir.Root()), "not found")
	orDefault("index", a.index(), "default")
	yesNo("new window", a.newWindow())

	for _, kind := range catalog.Kinds {
		enabled, err := a.acc.Enabled(kind, a.dir.Root())
		if err != nil {
			add(kind.Plural(), err.Error(), styles.WarningStyle)
			continue
		}
		orDefault(kind.Plural(), strings.Join(enabled.Items(), ", "), "none")
	}

	if files := a.dir.EnvFiles(); len(files) > 0 {
		add("env files", strings.Join(files, ", "), lipgloss.NewStyle())
	}

	if rows, err := a.session.Rows(a.context(cmd), catalog.KindPlugin); err == nil {
		var missing []string
		for _, r := range rows {
			if r.Enabled && r.State == reconcile.StateUninstalled {
				missing = append(missing, r.Feature.ModuleName)
			}
		}
		if len(missing) > 0 {
			add("not installed", strings.Join(missing, ", "), styles.WarningStyle)
		}
	}

	t.style = func(row, col int) lipgloss.Style {
		if col == 0 {
			return styles.DimStyle
		}
		return valueStyles[row]
	}

	// Skip the empty header line.
	_, body, _ := strings.Cut(t.String(), "\n")
	_, _ = fmt.Fprint(a.stdout, body)
}

func newRecentCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently used projects",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			recent := a.prefs.Recent()
			if len(recent) == 0 {
				a.println(styles.DimStyle.Render("no recent projects"))
				return nil
			}
			for _, dir := range recent {
				mark := styles.MarkOther
				if dir == a.dir.Root() {
					mark = styles.AccentStyle.Render(styles.MarkCurrent)
				}
				line := dir
				if !projectdir.New(dir).Exists() {
					line = styles.MissingStyle.Render(dir + " (missing)")
				}
				a.println(mark + line)
			}
			return nil
		},
	}
}
