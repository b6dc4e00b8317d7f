package projectcfg

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/germanamz/nbdesk/pkg/catalog"
)

var (
	fastapi = catalog.Feature{Kind: catalog.KindDriver, Name: "FastAPI", ModuleName: "fastapi_driver", ProjectLink: "nonebot2[fastapi]"}
	httpx   = catalog.Feature{Kind: catalog.KindDriver, Name: "HTTPX", ModuleName: "~httpx", ProjectLink: "nonebot2[httpx]"}
	console = catalog.Feature{Kind: catalog.KindAdapter, Name: "Console", ModuleName: "nonebot.adapters.console", ProjectLink: "nonebot-adapter-console"}
	echo    = catalog.Feature{Kind: catalog.KindPlugin, Name: "echo", ModuleName: "echo"}
	status  = catalog.Feature{Kind: catalog.KindPlugin, Name: "status", ModuleName: "nonebot_plugin_status", ProjectLink: "nonebot-plugin-status"}
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAccessor_DriverToggle(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	writeFile(t, env, "HOST=127.0.0.1\nDRIVER=\n")

	a := NewAccessor(nil)

	require.NoError(t, a.SetEnabled(catalog.KindDriver, dir, fastapi, true))
	assert.Equal(t, "HOST=127.0.0.1\nDRIVER=fastapi_driver\n", readFile(t, env))

	set, err := a.Enabled(catalog.KindDriver, dir)
	require.NoError(t, err)
	assert.True(t, set.Has("fastapi_driver"))

	require.NoError(t, a.SetEnabled(catalog.KindDriver, dir, fastapi, false))
	assert.Equal(t, "HOST=127.0.0.1\nDRIVER=\n", readFile(t, env))
}

func TestAccessor_DriverRemovePreservesOrder(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	writeFile(t, env, "DRIVER=a+b\n")

	a := NewAccessor(nil)
	require.NoError(t, a.SetEnabled(catalog.KindDriver, dir, catalog.Feature{ModuleName: "a"}, false))

	assert.Equal(t, "DRIVER=b\n", readFile(t, env))
}

func TestAccessor_DriverUsesEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "ENVIRONMENT=prod\n")
	writeFile(t, filepath.Join(dir, ".env.prod"), "DRIVER=~httpx\n")

	a := NewAccessor(nil)

	set, err := a.Enabled(catalog.KindDriver, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"~httpx"}, set.Items())

	require.NoError(t, a.SetEnabled(catalog.KindDriver, dir, fastapi, true))
	assert.Equal(t, "DRIVER=fastapi_driver+~httpx\n", readFile(t, filepath.Join(dir, ".env.prod")))
	assert.Equal(t, "ENVIRONMENT=prod\n", readFile(t, filepath.Join(dir, ".env")))
}

func TestAccessor_DriverKeyAddedToEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "ENVIRONMENT=dev\n")
	writeFile(t, filepath.Join(dir, ".env.dev"), "LOG_LEVEL=DEBUG\n")

	a := NewAccessor(nil)
	require.NoError(t, a.SetEnabled(catalog.KindDriver, dir, httpx, true))

	assert.Equal(t, "LOG_LEVEL=DEBUG\nDRIVER=~httpx\n", readFile(t, filepath.Join(dir, ".env.dev")))
}

func TestAccessor_DriverRecursiveFind(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "DRIVER=~httpx\n")
	deep := filepath.Join(root, "src", "plugins", "x")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	set, err := NewAccessor(nil).Enabled(catalog.KindDriver, deep)
	require.NoError(t, err)
	assert.True(t, set.Has("~httpx"))
}

func TestAccessor_DriverNoEnvFile(t *testing.T) {
	a := NewAccessor(nil)

	_, err := a.Enabled(catalog.KindDriver, t.TempDir())
	assert.ErrorIs(t, err, ErrConfigNotFound)

	err = a.SetEnabled(catalog.KindDriver, t.TempDir(), fastapi, true)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestAccessor_AdapterToggle(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[project]\nname = \"bot\"\n")

	a := NewAccessor(nil)

	set, err := a.Enabled(catalog.KindAdapter, dir)
	require.NoError(t, err)
	assert.Zero(t, set.Len())

	require.NoError(t, a.SetEnabled(catalog.KindAdapter, dir, console, true))
	require.NoError(t, a.SetEnabled(catalog.KindAdapter, dir, console, true))

	f, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, f.Manifest.Adapters, 1)
	assert.Equal(t, AdapterRecord{Name: "Console", ModuleName: "nonebot.adapters.console"}, f.Manifest.Adapters[0])

	require.NoError(t, a.SetEnabled(catalog.KindAdapter, dir, console, false))

	set, err = a.Enabled(catalog.KindAdapter, dir)
	require.NoError(t, err)
	assert.Zero(t, set.Len())
	assert.Contains(t, readFile(t, path), "[project]\nname = \"bot\"")
}

func TestAccessor_PluginToggle(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[tool.nonebot]\nplugins = [\"orphan_plugin\"]\n")

	a := NewAccessor(nil)
	require.NoError(t, a.SetEnabled(catalog.KindPlugin, dir, status, true))
	require.NoError(t, a.SetEnabled(catalog.KindPlugin, dir, echo, true))

	f, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan_plugin", "nonebot_plugin_status"}, f.Manifest.Plugins)
	assert.Equal(t, []string{"echo"}, f.Manifest.BuiltinPlugins)

	require.NoError(t, a.SetEnabled(catalog.KindPlugin, dir, status, false))
	require.NoError(t, a.SetEnabled(catalog.KindPlugin, dir, echo, false))

	f, err = LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan_plugin"}, f.Manifest.Plugins)
	assert.Empty(t, f.Manifest.BuiltinPlugins)
}

func TestAccessor_ManifestRecursiveFind(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "A")
	c := filepath.Join(a, "B", "C")
	require.NoError(t, os.MkdirAll(c, 0o755))
	writeManifest(t, a, "[tool.nonebot]\nbuiltin_plugins = [\"echo\"]\n")

	set, err := NewAccessor(nil).Enabled(catalog.KindPlugin, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, set.Items())
}

func TestAccessor_SchemaErrorAbortsWrite(t *testing.T) {
	dir := t.TempDir()
	const doc = "[tool.nonebot]\nplugins = 3\n"
	path := writeManifest(t, dir, doc)

	err := NewAccessor(nil).SetEnabled(catalog.KindPlugin, dir, status, true)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, doc, readFile(t, path))
}

func TestAccessor_SaveManifestCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")

	err := NewAccessor(nil).SaveManifest(path, Manifest{PluginDirs: []string{"src/plugins"}})
	require.NoError(t, err)

	f, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/plugins"}, f.Manifest.PluginDirs)
}

func TestAccessor_EnvFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "")
	writeFile(t, filepath.Join(dir, ".env.prod"), "")
	writeFile(t, filepath.Join(dir, ".env.dev"), "")

	files, err := NewAccessor(nil).EnvFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".env", ".env.dev", ".env.prod"}, files)
}

func TestAccessor_ConcurrentPluginToggles(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "")
	a := NewAccessor(nil)

	names := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Go(func() {
			f := catalog.Feature{Kind: catalog.KindPlugin, ModuleName: n, ProjectLink: n}
			assert.NoError(t, a.SetEnabled(catalog.KindPlugin, dir, f, true))
		})
	}
	wg.Wait()

	f, err := LoadManifest(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, names, f.Manifest.Plugins)
}

func TestAccessor_ConcurrentDriverToggles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "DRIVER=\n")
	a := NewAccessor(nil)

	names := []string{"d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8"}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Go(func() {
			f := catalog.Feature{Kind: catalog.KindDriver, ModuleName: n}
			assert.NoError(t, a.SetEnabled(catalog.KindDriver, dir, f, true))
		})
	}
	wg.Wait()

	set, err := a.Enabled(catalog.KindDriver, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, names, set.Items())
}

func TestAccessor_UpdateEnvKeyFuncSeesCurrentValue(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	writeFile(t, env, "ENVIRONMENT=dev\n")
	writeFile(t, filepath.Join(dir, ".env.dev"), "PORT=8080\n")
	a := NewAccessor(nil)

	var seen []string
	bump := func(old string) string {
		seen = append(seen, old)
		return old + "0"
	}

	require.NoError(t, a.UpdateEnvKeyFunc(dir, "PORT", bump))
	require.NoError(t, a.UpdateEnvKeyFunc(dir, "PORT", bump))

	assert.Equal(t, []string{"8080", "80800"}, seen)
	assert.Equal(t, "PORT=808000\n", readFile(t, filepath.Join(dir, ".env.dev")))
	assert.Equal(t, "ENVIRONMENT=dev\n", readFile(t, env))
}

func TestAccessor_PluginToggleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyproject.toml")
	a := NewAccessor(nil)

	pool := []string{"echo", "single_session", "nonebot_plugin_status", "nonebot_plugin_apscheduler", "orphan"}

	rapid.Check(t, func(rt *rapid.T) {
		enabled := rapid.SliceOfDistinct(rapid.SampledFrom(pool), rapid.ID[string]).Draw(rt, "enabled")
		module := rapid.SampledFrom(pool).Draw(rt, "module")
		builtin := rapid.Bool().Draw(rt, "builtin")

		m := Manifest{}
		if builtin {
			m.BuiltinPlugins = enabled
		} else {
			m.Plugins = enabled
		}
		if err := a.SaveManifest(path, m); err != nil {
			rt.Fatalf("save: %v", err)
		}

		before, err := a.Enabled(catalog.KindPlugin, dir)
		if err != nil {
			rt.Fatalf("enabled: %v", err)
		}

		f := catalog.Feature{Kind: catalog.KindPlugin, ModuleName: module}
		if !builtin {
			f.ProjectLink = module
		}

		first, second := true, false
		if before.Has(module) {
			first, second = false, true
		}
		if err := a.SetEnabled(catalog.KindPlugin, dir, f, first); err != nil {
			rt.Fatalf("toggle: %v", err)
		}
		if err := a.SetEnabled(catalog.KindPlugin, dir, f, second); err != nil {
			rt.Fatalf("toggle back: %v", err)
		}

		after, err := a.Enabled(catalog.KindPlugin, dir)
		if err != nil {
			rt.Fatalf("enabled: %v", err)
		}
		for _, p := range pool {
			if before.Has(p) != after.Has(p) {
				rt.Fatalf("membership of %q changed: %v -> %v", p, before.Items(), after.Items())
			}
		}
	})
}
