package styles

import "github.com/charmbracelet/lipgloss"

// GitHub terminal light theme palette.
var (
	ColorFg      = lipgloss.Color("#24292f") // primary foreground
	ColorMuted   = lipgloss.Color("#656d76") // muted/dim text
	ColorAccent  = lipgloss.Color("#0969da") // accent blue
	ColorError   = lipgloss.Color("#cf222e") // error red
	ColorSuccess = lipgloss.Color("#1a7f37") // success green
	ColorWarning = lipgloss.Color("#9a6700") // warning amber
	ColorMagenta = lipgloss.Color("#8250df") // purple/magenta
)

// Centralized style definitions for the CLI.
var (
	// Table styles.
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorFg)

	// Feature state styles.
	EnabledStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)
	DisabledStyle = lipgloss.NewStyle().Foreground(ColorFg)
	MissingStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	BuiltinStyle  = lipgloss.NewStyle().Foreground(ColorMagenta)
	BusyStyle     = lipgloss.NewStyle().Foreground(ColorWarning)

	// Spinner / animation styles.
	SpinnerStyle = lipgloss.NewStyle().Foreground(ColorMagenta)

	// General utility styles.
	DimStyle     = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle  = lipgloss.NewStyle().Foreground(ColorAccent)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorError)

	// Diff preview styles.
	DiffAddStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	DiffDelStyle  = lipgloss.NewStyle().Foreground(ColorError)
	DiffHunkStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// Markers used in front of list entries.
const (
	MarkCurrent = "● "
	MarkOther   = "  "
)
