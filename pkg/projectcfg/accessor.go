package projectcfg

import (
	"fmt"
	"log/slog"

	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/projectdir"
)

// DriverKey is the env key listing enabled drivers.
const DriverKey = "DRIVER"

// Accessor reads and writes the enabled state of features. Drivers live in
// the env file chain, adapters and plugins in the [tool.nonebot] table of
// pyproject.toml. All writes go through a per-path lock and are atomic.
type Accessor struct {
	locker *FileLocker
	log    *slog.Logger
}

// NewAccessor creates an Accessor. A nil logger discards output.
func NewAccessor(log *slog.Logger) *Accessor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Accessor{locker: NewFileLocker(), log: log}
}

// Enabled returns the enabled modules of kind for the project at or above
// dir. A manifest without a [tool.nonebot] table yields an empty set.
func (a *Accessor) Enabled(kind catalog.Kind, dir string) (EnabledSet, error) {
	switch kind {
	case catalog.KindDriver:
		lookup, err := FindEnvKey(dir, DriverKey)
		if err != nil {
			return EnabledSet{}, err
		}
		return ParseDriverValue(lookup.Value), nil

	case catalog.KindAdapter, catalog.KindPlugin:
		path, err := FindManifest(dir)
		if err != nil {
			return EnabledSet{}, err
		}

		f, err := LoadManifest(path)
		if err != nil {
			return EnabledSet{}, err
		}

		if kind == catalog.KindAdapter {
			return f.Manifest.AdapterModules(), nil
		}
		return f.Manifest.PluginModules(), nil
	}

	return EnabledSet{}, fmt.Errorf("projectcfg: unknown feature kind %q", kind)
}

// SetEnabled turns feature on or off for the project at or above dir.
// Entries the catalog does not know about are preserved.
func (a *Accessor) SetEnabled(kind catalog.Kind, dir string, feature catalog.Feature, on bool) error {
	switch kind {
	case catalog.KindDriver:
		return a.UpdateEnvKeyFunc(dir, DriverKey, func(old string) string {
			set := ParseDriverValue(old)
			if on {
				set = set.With(feature.ModuleName)
			} else {
				set = set.Without(feature.ModuleName)
			}
			return set.String()
		})

	case catalog.KindAdapter:
		return a.UpdateManifest(dir, func(m *Manifest) error {
			if on {
				m.AddAdapter(AdapterRecord{Name: feature.Name, ModuleName: feature.ModuleName})
			} else {
				m.RemoveAdapter(feature.ModuleName)
			}
			return nil
		})

	case catalog.KindPlugin:
		return a.UpdateManifest(dir, func(m *Manifest) error {
			if feature.IsBuiltin() {
				m.BuiltinPlugins = toggleList(m.BuiltinPlugins, feature.ModuleName, on)
			} else {
				m.Plugins = toggleList(m.Plugins, feature.ModuleName, on)
			}
			return nil
		})
	}

	return fmt.Errorf("projectcfg: unknown feature kind %q", kind)
}

func toggleList(list []string, module string, on bool) []string {
	set := NewEnabledSet(list...)
	if on {
		if set.Has(module) {
			return list
		}
		return append(list, module)
	}

	return set.Without(module).Items()
}

// UpdateManifest loads the manifest at or above dir, applies fn and writes
// the result back. Nothing is written when fn fails.
func (a *Accessor) UpdateManifest(dir string, fn func(*Manifest) error) error {
	path, err := FindManifest(dir)
	if err != nil {
		return err
	}

	return a.locker.With(path, func() error {
		f, err := LoadManifest(path)
		if err != nil {
			return err
		}

		if err := fn(&f.Manifest); err != nil {
			return err
		}

		data, err := f.Render()
		if err != nil {
			return err
		}

		if err := WriteFileAtomic(path, data); err != nil {
			return err
		}

		a.log.Info("manifest updated", "path", path)

		return nil
	})
}

// SaveManifest writes m as the [tool.nonebot] table of the manifest at path,
// creating the file when it does not exist.
func (a *Accessor) SaveManifest(path string, m Manifest) error {
	return a.locker.With(path, func() error {
		f, err := LoadManifest(path)
		if err != nil {
			if !isNotFound(err) {
				return err
			}
			f = &ManifestFile{Path: path}
		}

		f.Manifest = m

		data, err := f.Render()
		if err != nil {
			return err
		}

		return WriteFileAtomic(path, data)
	})
}

// EnvFiles lists the env files of the project at or above dir.
func (a *Accessor) EnvFiles(dir string) ([]string, error) {
	p, err := FindEnvProject(dir)
	if err != nil {
		if p, ok := projectdir.FindUp(dir, projectdir.ManifestName); ok {
			return p.EnvFiles(), nil
		}
		return nil, err
	}

	return p.EnvFiles(), nil
}

// Locker exposes the accessor's file locker so other writers of the same
// files serialize with it.
func (a *Accessor) Locker() *FileLocker { return a.locker }
