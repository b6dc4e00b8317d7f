package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/germanamz/nbdesk/cmd/nbdesk/internal/styles"
	"github.com/germanamz/nbdesk/pkg/envedit"
	"github.com/germanamz/nbdesk/pkg/projectcfg"
)

// errNeedsTerminal is returned by interactive commands run without a TTY.
var errNeedsTerminal = errors.New("this command needs an interactive terminal")

func newEnvCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect and edit the project's .env files",
		Example: `  # Show the resolved value of a key
  nbdesk env get DRIVER

  # Set keys in .env.prod
  nbdesk env set -f prod HOST=0.0.0.0 PORT=8080

  # Edit .env interactively with a diff preview
  nbdesk env edit`,
	}

	cmd.AddCommand(newEnvFilesCommand(a))
	cmd.AddCommand(newEnvShowCommand(a))
	cmd.AddCommand(newEnvGetCommand(a))
	cmd.AddCommand(newEnvSetCommand(a))
	cmd.AddCommand(newEnvUnsetCommand(a))
	cmd.AddCommand(newEnvEditCommand(a))

	return cmd
}

func newEnvFilesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List the project's env files",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			files, err := a.acc.EnvFiles(a.dir.Root())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				a.println(styles.DimStyle.Render("no env files"))
				return nil
			}
			for _, f := range files {
				a.println(f)
			}
			return nil
		},
	}
}

func newEnvShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [file]",
		Short: "Print the entries of an env file (default .env)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}
			ed, err := envedit.Open(envFilePath(a.dir, name), a.acc.Locker())
			if err != nil {
				return err
			}

			t := newTable("KEY", "VALUE")
			for _, e := range ed.Entries() {
				t.add(e.Key, e.Value)
			}
			_, _ = fmt.Fprint(a.stdout, t.String())
			return nil
		},
	}
}

func newEnvGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Resolve a key through .env and .env.<ENVIRONMENT>",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := projectcfg.FindEnvKey(a.dir.Root(), args[0])
			if err != nil {
				return err
			}
			if !res.Found {
				return fmt.Errorf("%s is not set (new definitions go to %s)", args[0], filepath.Base(res.Path))
			}
			a.printf("%s %s\n", res.Value, styles.DimStyle.Render("("+filepath.Base(res.Path)+")"))
			return nil
		},
	}
}

func newEnvSetCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Set keys in an env file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ed, err := envedit.Open(envFilePath(a.dir, file), a.acc.Locker())
			if err != nil {
				return err
			}
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("%q: want KEY=VALUE", arg)
				}
				if err := ed.Set(strings.TrimSpace(key), value); err != nil {
					return err
				}
			}
			return a.saveEnv(ed)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "env file name or environment (default .env)")

	return cmd
}

func newEnvUnsetCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "unset KEY...",
		Short: "Remove keys from an env file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ed, err := envedit.Open(envFilePath(a.dir, file), a.acc.Locker())
			if err != nil {
				return err
			}
			for _, key := range args {
				ed.Unset(key)
			}
			return a.saveEnv(ed)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "env file name or environment (default .env)")

	return cmd
}

func newEnvEditCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit an env file in a form, with a diff preview before saving",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !a.isInteractive() {
				return errNeedsTerminal
			}
			ed, err := envedit.Open(envFilePath(a.dir, file), a.acc.Locker())
			if err != nil {
				return err
			}

			entries, err := envForm(ed)
			if err != nil {
				return err
			}
			if err := ed.Replace(entries); err != nil {
				return err
			}
			if !ed.Dirty() {
				a.println(styles.DimStyle.Render("no changes"))
				return nil
			}

			a.println(colorDiff(ed.Diff()))
			save := true
			if err := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().Title("Save changes to " + filepath.Base(ed.Path()) + "?").Value(&save),
			)).Run(); err != nil {
				return err
			}
			if !save {
				a.println(styles.DimStyle.Render("discarded"))
				return nil
			}
			return a.saveEnv(ed)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "env file name or environment (default .env)")

	return cmd
}

// envForm asks for a value per existing key plus one new entry. Clearing a
// value removes the key.
func envForm(ed *envedit.Editor) ([]projectcfg.EnvEntry, error) {
	current := ed.Entries()
	values := make([]string, len(current))
	fields := make([]huh.Field, 0, len(current)+2)
	for i, e := range current {
		values[i] = e.Value
		fields = append(fields, huh.NewInput().Title(e.Key).Value(&values[i]))
	}

	var newKey, newValue string
	fields = append(fields,
		huh.NewInput().Title("New key").Description("leave empty to add nothing").Value(&newKey).Validate(validateEnvKey),
		huh.NewInput().Title("New value").Value(&newValue),
	)

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return nil, err
	}

	out := make([]projectcfg.EnvEntry, 0, len(current)+1)
	for i, e := range current {
		out = append(out, projectcfg.EnvEntry{Key: e.Key, Value: values[i]})
	}
	out = append(out, projectcfg.EnvEntry{Key: strings.TrimSpace(newKey), Value: newValue})

	return out, nil
}

func validateEnvKey(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return envedit.ValidateKey(s)
}

func (a *app) saveEnv(ed *envedit.Editor) error {
	if !ed.Dirty() {
		a.println(styles.DimStyle.Render("no changes"))
		return nil
	}
	if err := ed.Save(); err != nil {
		return err
	}
	a.log.Info("env file saved", "path", ed.Path())
	a.printf("%s %s saved\n", styles.SuccessStyle.Render("✓"), filepath.Base(ed.Path()))
	return nil
}

// colorDiff styles a unified diff line by line.
func colorDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			lines[i] = styles.DimStyle.Render(l)
		case strings.HasPrefix(l, "@@"):
			lines[i] = styles.DiffHunkStyle.Render(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = styles.DiffAddStyle.Render(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = styles.DiffDelStyle.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
