package reconcile

import (
	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/projectcfg"
	"github.com/germanamz/nbdesk/pkg/pyenv"
)

// State is the reconciled state of one feature row.
type State int

const (
	StateUninstalled State = iota
	StateInstalledDisabled
	StateInstalledEnabled
	// StateBuiltin marks features without a package. They are always
	// installed; Row.Enabled still reflects the configuration.
	StateBuiltin
)

// String returns a human readable state name.
func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalledDisabled:
		return "disabled"
	case StateInstalledEnabled:
		return "enabled"
	case StateBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Row is a catalog feature joined with the project's state.
type Row struct {
	Feature   catalog.Feature
	State     State
	Installed bool
	Enabled   bool
	// Busy is set while an install or uninstall for the row is running.
	Busy bool
}

func newRow(f catalog.Feature, installed pyenv.InstalledSet, enabled projectcfg.EnabledSet) Row {
	r := Row{Feature: f, Enabled: enabled.Has(f.ModuleName)}

	switch {
	case f.IsBuiltin():
		r.State = StateBuiltin
		r.Installed = true
	case !installed.Satisfies(f.ProjectLink):
		r.State = StateUninstalled
	case r.Enabled:
		r.State = StateInstalledEnabled
		r.Installed = true
	default:
		r.State = StateInstalledDisabled
		r.Installed = true
	}

	return r
}
