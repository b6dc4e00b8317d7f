package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/germanamz/nbdesk/cmd/nbdesk/internal/styles"
	"github.com/germanamz/nbdesk/pkg/pyenv"
)

func newPackagesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "packages",
		Aliases: []string{"pkg"},
		Short:   "Manage the distributions installed in the project environment",
	}

	cmd.AddCommand(newPackagesListCommand(a))
	cmd.AddCommand(newPackagesInfoCommand(a))
	cmd.AddCommand(newPackagesUpgradeCommand(a))
	cmd.AddCommand(newPackagesUninstallCommand(a))

	return cmd
}

func newPackagesListCommand(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dists, err := a.session.Packages(a.context(cmd))
			if err != nil {
				return err
			}

			t := newTable("NAME", "VERSION", "SUMMARY")
			for _, d := range sortedDists(dists) {
				if filter != "" && !strings.Contains(pyenv.Normalize(d.Name), pyenv.Normalize(filter)) {
					continue
				}
				t.add(d.Name, d.Version, d.Summary)
			}
			t.style = func(_, col int) lipgloss.Style {
				if col == 2 {
					return styles.DimStyle
				}
				return lipgloss.NewStyle()
			}
			_, _ = fmt.Fprint(a.stdout, t.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only show names containing this text")

	return cmd
}

func newPackagesInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Describe an installed distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.distribution(cmd, args[0])
			if err != nil {
				return err
			}
			a.println(renderMarkdown(distMarkdown(d), terminalWidth(a.stdout)))
			return nil
		},
	}
}

func newPackagesUpgradeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <name>",
		Short: "Upgrade a distribution to its latest version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			op, err := a.session.UpgradePackage(ctx, args[0])
			if err != nil {
				return err
			}
			err = a.wait(ctx, op, "upgrading "+args[0])
			return a.report(op, err, args[0]+" upgraded")
		},
	}
}

func newPackagesUninstallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove an installed distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			d, err := a.distribution(cmd, args[0])
			if err != nil {
				return err
			}
			op, err := a.session.UninstallPackage(ctx, d.Name)
			if err != nil {
				return err
			}
			err = a.wait(ctx, op, "uninstalling "+d.Name)
			return a.report(op, err, d.Name+" uninstalled")
		},
	}
}

// distribution finds an installed distribution by normalized name.
func (a *app) distribution(cmd *cobra.Command, name string) (pyenv.Distribution, error) {
	dists, err := a.session.Packages(a.context(cmd))
	if err != nil {
		return pyenv.Distribution{}, err
	}
	want := pyenv.Normalize(name)
	for _, d := range dists {
		if pyenv.Normalize(d.Name) == want {
			return d, nil
		}
	}
	return pyenv.Distribution{}, fmt.Errorf("package %q is not installed in %s", name, a.dir.Root())
}

func sortedDists(dists []pyenv.Distribution) []pyenv.Distribution {
	out := slices.Clone(dists)
	slices.SortFunc(out, func(x, y pyenv.Distribution) int {
		return strings.Compare(pyenv.Normalize(x.Name), pyenv.Normalize(y.Name))
	})
	return out
}

func distMarkdown(d pyenv.Distribution) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s %s\n\n", d.Name, d.Version)
	if d.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", d.Summary)
	}
	if d.Location != "" {
		fmt.Fprintf(&sb, "- **Location:** `%s`\n", d.Location)
	}
	return sb.String()
}
