package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/germanamz/nbdesk/cmd/nbdesk/internal/styles"
	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/reconcile"
)

// newFeatureCommand creates the drivers, adapters or plugins command.
func newFeatureCommand(a *app, kind catalog.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:     kind.Plural(),
		Aliases: []string{string(kind)},
		Short:   fmt.Sprintf("Manage the project's %s", kind.Plural()),
		Example: fmt.Sprintf(`  # List %[1]s with their state
  nbdesk %[1]s list

  # Install the package of a %[2]s, then enable it
  nbdesk %[1]s install <module>
  nbdesk %[1]s enable <module>`, kind.Plural(), kind),
	}

	cmd.AddCommand(newFeatureListCommand(a, kind))
	cmd.AddCommand(newFeatureSwitchCommand(a, kind, "enable", true))
	cmd.AddCommand(newFeatureSwitchCommand(a, kind, "disable", false))
	cmd.AddCommand(newFeatureToggleCommand(a, kind))
	cmd.AddCommand(newFeatureInstallCommand(a, kind))
	cmd.AddCommand(newFeatureUninstallCommand(a, kind))
	cmd.AddCommand(newFeatureInfoCommand(a, kind))

	return cmd
}

func newFeatureListCommand(a *app, kind catalog.Kind) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s and their state", kind.Plural()),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.context(cmd)
			snap := a.session.Snapshot()
			changed := snap.Changed()
			if err := a.printRows(cmd, kind); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			cleanup, err := snap.Watch(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changed:
					changed = snap.Changed()
					a.println()
					if err := a.printRows(cmd, kind); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "print the list again whenever the environment changes")

	return cmd
}

func (a *app) printRows(cmd *cobra.Command, kind catalog.Kind) error {
	rows, err := a.session.Rows(a.context(cmd), kind)
	if rows == nil && err != nil {
		return err
	}
	a.warnConfig(err)

	t := newTable("STATE", "NAME", "MODULE", "PACKAGE", "DESCRIPTION")
	for _, r := range rows {
		pkg := r.Feature.ProjectLink
		if r.Feature.IsBuiltin() {
			pkg = "-"
		}
		t.add(rowState(r), r.Feature.Name, r.Feature.ModuleName, pkg, firstLine(r.Feature.Desc))
	}
	t.style = func(row, col int) lipgloss.Style {
		if col == 0 {
			return stateStyle(rows[row])
		}
		if col == 4 {
			return styles.DimStyle
		}
		return lipgloss.NewStyle()
	}

	_, _ = fmt.Fprint(a.stdout, t.String())

	return nil
}

// rowState is the label shown in the STATE column.
func rowState(r reconcile.Row) string {
	switch {
	case r.Busy:
		return "busy"
	case r.State == reconcile.StateBuiltin && r.Enabled:
		return "enabled"
	default:
		return r.State.String()
	}
}

func stateStyle(r reconcile.Row) lipgloss.Style {
	switch {
	case r.Busy:
		return styles.BusyStyle
	case r.Enabled:
		return styles.EnabledStyle
	case r.State == reconcile.StateBuiltin:
		return styles.BuiltinStyle
	case r.State == reconcile.StateUninstalled:
		return styles.MissingStyle
	default:
		return styles.DisabledStyle
	}
}

func newFeatureSwitchCommand(a *app, kind catalog.Kind, verb string, on bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <module|name>...",
		Short: fmt.Sprintf("%s %s in the project configuration", titleCase(verb), kind.Plural()),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			for _, arg := range args {
				f, err := a.feature(kind, arg)
				if err != nil {
					return err
				}
				if on {
					err = a.session.Enable(ctx, kind, f.ModuleName)
				} else {
					err = a.session.Disable(ctx, kind, f.ModuleName)
				}
				if err != nil {
					return err
				}
				a.printf("%s %s %sd\n", styles.SuccessStyle.Render("✓"), f.Name, verb)
			}
			a.remember()
			return nil
		},
	}
}

func newFeatureToggleCommand(a *app, kind catalog.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <module|name>",
		Short: fmt.Sprintf("Flip a %s between enabled and disabled", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.feature(kind, args[0])
			if err != nil {
				return err
			}
			on, err := a.session.Toggle(a.context(cmd), kind, f.ModuleName)
			if err != nil {
				return err
			}
			state := "disabled"
			if on {
				state = "enabled"
			}
			a.printf("%s %s %s\n", styles.SuccessStyle.Render("✓"), f.Name, state)
			a.remember()
			return nil
		},
	}
}

func newFeatureInstallCommand(a *app, kind catalog.Kind) *cobra.Command {
	var enable bool

	cmd := &cobra.Command{
		Use:   "install <module|name>",
		Short: fmt.Sprintf("Install the package of a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			f, err := a.feature(kind, args[0])
			if err != nil {
				return err
			}
			op, err := a.session.Install(ctx, kind, f.ModuleName)
			if err != nil {
				return err
			}
			err = a.wait(ctx, op, fmt.Sprintf("installing %s (%s)", f.Name, f.ProjectLink))
			if err := a.report(op, err, f.Name+" installed"); err != nil {
				return err
			}
			if enable {
				if err := a.session.Enable(ctx, kind, f.ModuleName); err != nil {
					return err
				}
				a.printf("%s %s enabled\n", styles.SuccessStyle.Render("✓"), f.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&enable, "enable", "e", false, "enable the feature once installed")

	return cmd
}

func newFeatureUninstallCommand(a *app, kind catalog.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <module|name>",
		Short: fmt.Sprintf("Remove the package of a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			f, err := a.feature(kind, args[0])
			if err != nil {
				return err
			}
			row, rowErr := a.session.Row(ctx, kind, f.ModuleName)
			op, err := a.session.Uninstall(ctx, kind, f.ModuleName)
			if err != nil {
				return err
			}
			err = a.wait(ctx, op, fmt.Sprintf("uninstalling %s (%s)", f.Name, strings.Join(reconcile.UninstallTargets(f.ProjectLink), " ")))
			if err := a.report(op, err, f.Name+" uninstalled"); err != nil {
				return err
			}
			if rowErr == nil && row.Enabled {
				_, _ = fmt.Fprintln(a.stderr, warning(fmt.Sprintf("%s is still enabled in the project configuration", f.Name)))
			}
			return nil
		},
	}
}

func newFeatureInfoCommand(a *app, kind catalog.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "info <module|name>",
		Short: fmt.Sprintf("Describe a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.feature(kind, args[0])
			if err != nil {
				return err
			}
			row, err := a.session.Row(a.context(cmd), kind, f.ModuleName)
			if err != nil && row.Feature.ModuleName == "" {
				return err
			}
			a.println(renderMarkdown(featureMarkdown(row), terminalWidth(a.stdout)))
			return nil
		},
	}
}

// feature resolves a module name or display name.
func (a *app) feature(kind catalog.Kind, arg string) (catalog.Feature, error) {
	f, ok := a.cat.Lookup(kind, arg)
	if !ok {
		return catalog.Feature{}, fmt.Errorf("%w: %s %q (see nbdesk %s list)", reconcile.ErrUnknownFeature, kind, arg, kind.Plural())
	}
	return f, nil
}

// featureMarkdown describes a feature row as markdown.
func featureMarkdown(r reconcile.Row) string {
	f := r.Feature
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", f.Name)
	if f.Desc != "" {
		fmt.Fprintf(&sb, "%s\n\n", f.Desc)
	}

	fmt.Fprintf(&sb, "- **Kind:** %s\n", f.Kind)
	fmt.Fprintf(&sb, "- **Module:** `%s`\n", f.ModuleName)
	if f.IsBuiltin() {
		sb.WriteString("- **Package:** builtin\n")
	} else {
		fmt.Fprintf(&sb, "- **Package:** `%s`\n", f.ProjectLink)
	}
	fmt.Fprintf(&sb, "- **State:** %s\n", rowState(r))
	if f.Author != "" {
		fmt.Fprintf(&sb, "- **Author:** %s\n", f.Author)
	}
	if f.Homepage != "" {
		fmt.Fprintf(&sb, "- **Homepage:** %s\n", f.Homepage)
	}
	if f.IsOfficial {
		sb.WriteString("- **Official**\n")
	}
	if len(f.Tags) > 0 {
		fmt.Fprintf(&sb, "- **Tags:** %s\n", strings.Join(f.Tags, ", "))
	}

	return sb.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func warning(s string) string {
	return styles.WarningStyle.Render("warning:") + " " + s
}
