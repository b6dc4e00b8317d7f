package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/germanamz/nbdesk/cmd/nbdesk/internal/styles"
)

func newMirrorsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirrors",
		Short: "List package index mirrors and the one in use",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			current := a.index()
			for i, m := range a.cat.Mirrors() {
				mark := styles.MarkOther
				line := fmt.Sprintf("%d  %s", i+1, m)
				if sameIndex(m, current) {
					mark = styles.AccentStyle.Render(styles.MarkCurrent)
					line = styles.AccentStyle.Render(line)
				}
				a.println(mark + line)
			}
			if current == "" {
				a.println(styles.DimStyle.Render("using pip's default index"))
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "use <number|url>",
		Short: "Remember a package index for future commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			index, err := pickMirror(a.cat.Mirrors(), args[0])
			if err != nil {
				return err
			}
			if err := a.prefs.SetIndex(index); err != nil {
				return err
			}
			a.printf("%s package index set to %s\n", styles.SuccessStyle.Render("✓"), index)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Go back to pip's default index",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.prefs.SetIndex(""); err != nil {
				return err
			}
			a.printf("%s package index reset\n", styles.SuccessStyle.Render("✓"))
			return nil
		},
	})

	return cmd
}

// pickMirror accepts a 1-based position in mirrors or an http(s) URL.
func pickMirror(mirrors []string, arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(mirrors) {
			return "", fmt.Errorf("mirror %d out of range 1-%d", n, len(mirrors))
		}
		return mirrors[n-1], nil
	}
	if !strings.HasPrefix(arg, "https://") && !strings.HasPrefix(arg, "http://") {
		return "", fmt.Errorf("mirror %q: want a number or an http(s) URL", arg)
	}
	return arg, nil
}

func sameIndex(a, b string) bool {
	return b != "" && strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func newWindowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "window [on|off]",
		Short:     "Show or set whether package-manager processes open a terminal window",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				state := "off"
				if a.prefs.NewWindow() {
					state = "on"
				}
				a.println(state)
				return nil
			}

			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("window: want on or off, got %q", args[0])
			}
			if err := a.prefs.SetNewWindow(on); err != nil {
				return err
			}
			a.printf("%s new window %s\n", styles.SuccessStyle.Render("✓"), args[0])
			return nil
		},
	}
}
