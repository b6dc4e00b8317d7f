package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/germanamz/nbdesk/pkg/catalog"
)

// createWizard fills f interactively. Values already set by flags are the
// defaults.
func createWizard(cat *catalog.Catalog, f *createFlags) error {
	if len(f.drivers) == 0 {
		f.drivers = []string{"~fastapi"}
	}

	var fields []huh.Field
	if f.dir == "" {
		fields = append(fields, huh.NewInput().
			Title("Project directory").
			Description("created if missing, must be empty").
			Value(&f.dir).
			Validate(validateRequired))
	}
	fields = append(fields,
		huh.NewMultiSelect[string]().
			Title("Drivers").
			Options(featureOptions(cat.Features(catalog.KindDriver), f.drivers)...).
			Value(&f.drivers),
		huh.NewMultiSelect[string]().
			Title("Adapters").
			Options(featureOptions(cat.Features(catalog.KindAdapter), f.adapters)...).
			Value(&f.adapters),
	)

	if err := huh.NewForm(
		huh.NewGroup(fields...),
		huh.NewGroup(
			huh.NewConfirm().Title("Create src/plugins for your own plugins?").Value(&f.dev),
			huh.NewConfirm().Title("Create a virtual environment (.venv)?").Value(&f.venv),
			huh.NewConfirm().Title("Skip installing packages?").Value(&f.noInstall),
		),
	).Run(); err != nil {
		return err
	}

	f.drivers = withoutBuiltinNone(cat, f.drivers)

	return nil
}

func featureOptions(features []catalog.Feature, selected []string) []huh.Option[string] {
	opts := make([]huh.Option[string], len(features))
	for i, ft := range features {
		label := ft.Name
		if ft.Desc != "" {
			label += " - " + firstLine(ft.Desc)
		}
		opts[i] = huh.NewOption(label, ft.ModuleName).Selected(containsFold(selected, ft.ModuleName, ft.Name))
	}
	return opts
}

// withoutBuiltinNone drops the "no driver" choice when a real driver was
// picked as well.
func withoutBuiltinNone(cat *catalog.Catalog, drivers []string) []string {
	if len(drivers) < 2 {
		return drivers
	}
	out := drivers[:0:0]
	for _, d := range drivers {
		if f, ok := cat.Lookup(catalog.KindDriver, d); ok && f.IsBuiltin() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func containsFold(list []string, candidates ...string) bool {
	for _, s := range list {
		for _, c := range candidates {
			if strings.EqualFold(s, c) {
				return true
			}
		}
	}
	return false
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}
