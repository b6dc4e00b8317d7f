package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/germanamz/nbdesk/pkg/catalog"
)

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nbdesk",
		Short: "Manage NoneBot projects from the terminal",
		Long: `nbdesk scaffolds NoneBot projects, toggles drivers, adapters and plugins
in the project configuration, installs their packages into the project's
Python environment and edits the project's .env files.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.opts.project, "project", "C", envOr("NBDESK_PROJECT", ""), "project directory (default: nearest parent with pyproject.toml or bot.py)")
	flags.StringVarP(&a.opts.index, "index", "i", envOr("NBDESK_INDEX", ""), "package index URL passed to pip")
	flags.StringVar(&a.opts.logLevel, "log-level", envOr("NBDESK_LOG_LEVEL", "warn"), "terminal log level: debug, info, warn or error")
	flags.BoolVar(&a.opts.headless, "headless", false, "run package-manager processes in this terminal instead of a new window")
	flags.StringArrayVar(&a.opts.registry, "registry", nil, "merge a registry export, as kind=path (repeatable)")

	// Add subcommands
	rootCmd.AddCommand(newCreateCommand(a))
	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newOpenCommand(a))
	rootCmd.AddCommand(newTerminalCommand(a))
	rootCmd.AddCommand(newStatusCommand(a))
	for _, kind := range catalog.Kinds {
		rootCmd.AddCommand(newFeatureCommand(a, kind))
	}
	rootCmd.AddCommand(newEnvCommand(a))
	rootCmd.AddCommand(newPackagesCommand(a))
	rootCmd.AddCommand(newMirrorsCommand(a))
	rootCmd.AddCommand(newRecentCommand(a))
	rootCmd.AddCommand(newWindowCommand(a))

	return rootCmd
}
