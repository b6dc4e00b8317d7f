package pyenv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPython_PrefersVenv(t *testing.T) {
	dir := t.TempDir()
	py := VenvPython(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(py), 0o750))
	require.NoError(t, os.WriteFile(py, nil, 0o700))

	assert.Equal(t, py, FindPython(dir))
}

func TestFindPython_FallsBackToHost(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })

	lookPath = func(name string) (string, error) {
		if name == "python" {
			return "/usr/bin/python", nil
		}
		return "", errors.New("not found")
	}

	assert.Equal(t, "/usr/bin/python", FindPython(t.TempDir()))
}

func TestHostPython_NothingOnPath(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })

	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	assert.Equal(t, "python3", HostPython())
}

func TestSitePackages(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, SitePackages(dir))

	site := venvSite(t, dir)
	assert.Equal(t, []string{site}, SitePackages(dir))
}

func TestParseMetadata(t *testing.T) {
	d, ok := parseMetadata(strings.NewReader("Metadata-Version: 2.1\nName: nonebot2\nVersion: 2.3.0\nSummary: An asynchronous python bot framework.\nClassifier: Framework :: Robot Framework\n\nbody"))
	require.True(t, ok)
	assert.Equal(t, "nonebot2", d.Name)
	assert.Equal(t, "2.3.0", d.Version)
	assert.Equal(t, "An asynchronous python bot framework.", d.Summary)
}

func TestParseMetadata_NoName(t *testing.T) {
	_, ok := parseMetadata(strings.NewReader("Version: 1.0\n\n"))
	assert.False(t, ok)
}

func TestScanSiteDirs(t *testing.T) {
	site := venvSite(t, t.TempDir())
	installDist(t, site, "fastapi", "0.110.0")
	installDist(t, site, "Nonebot2", "2.3.0")

	// Broken metadata falls back to the directory name.
	broken := filepath.Join(site, "httpx-0.27.0.dist-info")
	require.NoError(t, os.MkdirAll(broken, 0o750))

	// Legacy egg-info file.
	require.NoError(t, os.WriteFile(filepath.Join(site, "six-1.16.0.egg-info"), []byte("Name: six\nVersion: 1.16.0\n"), 0o600))

	// Unrelated entries are ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(site, "fastapi"), 0o750))

	dists := ScanSiteDirs(site)

	names := make([]string, len(dists))
	for i, d := range dists {
		names[i] = d.Name
		assert.Equal(t, site, d.Location)
	}
	assert.Equal(t, []string{"fastapi", "httpx", "Nonebot2", "six"}, names)
	assert.Equal(t, "0.27.0", dists[1].Version)
}

func TestScanSiteDirs_FirstWins(t *testing.T) {
	a := venvSite(t, t.TempDir())
	b := venvSite(t, t.TempDir())
	installDist(t, a, "pydantic", "2.7.0")
	installDist(t, b, "pydantic", "1.10.0")

	dists := ScanSiteDirs(a, b)
	require.Len(t, dists, 1)
	assert.Equal(t, "2.7.0", dists[0].Version)
}

func TestInspector_UsesVenv(t *testing.T) {
	dir := t.TempDir()
	installDist(t, venvSite(t, dir), "fastapi", "0.110.0")

	interp := &fakeInterpreter{}
	dists, err := NewInspector(interp, nil).Distributions(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, dists, 1)
	assert.Equal(t, "fastapi", dists[0].Name)
	assert.Zero(t, interp.calls.Load())
}

func TestInspector_DegradesToHost(t *testing.T) {
	host := t.TempDir()
	installDist(t, host, "nb_cli", "1.4.0")

	interp := &fakeInterpreter{dirs: []string{host, filepath.Join(host, "missing")}}
	set, err := NewInspector(interp, nil).Installed(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.True(t, set.Has("nb-cli"))
}

func TestInspector_HostUnavailable(t *testing.T) {
	interp := &fakeInterpreter{err: errors.New("boom")}

	dists, err := NewInspector(interp, nil).Distributions(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, dists)
}

func TestInspector_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInspector(&fakeInterpreter{}, nil).Distributions(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "nonebot-plugin-status", Normalize("nonebot_plugin_status"))
	assert.Equal(t, "zope-interface", Normalize("Zope.Interface"))
	assert.Equal(t, "a-b", Normalize("A--_.b"))
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		extras []string
	}{
		{in: "nonebot2", name: "nonebot2"},
		{in: "nonebot2[fastapi]", name: "nonebot2", extras: []string{"fastapi"}},
		{in: "nonebot2[fastapi, httpx]>=2.0", name: "nonebot2", extras: []string{"fastapi", "httpx"}},
		{in: "nonebot-adapter-onebot>=2.4; python_version>'3.8'", name: "nonebot-adapter-onebot"},
		{in: "", name: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, extras := ParseRequirement(tt.in)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.extras, extras)
		})
	}
}

func TestInstalledSet_Satisfies(t *testing.T) {
	set := NewInstalledSet("NoneBot2", "FastAPI", "nonebot_adapter_onebot")

	assert.True(t, set.Satisfies("nonebot2[fastapi]"))
	assert.False(t, set.Satisfies("nonebot2[httpx]"))
	assert.True(t, set.Satisfies("nonebot-adapter-onebot"))
	assert.False(t, set.Satisfies("nonebot-adapter-qq"))
	assert.True(t, set.Satisfies(""))
	assert.Equal(t, 3, set.Len())
}

func TestInstalledSet_Zero(t *testing.T) {
	var set InstalledSet

	assert.False(t, set.Has("anything"))
	assert.Zero(t, set.Len())
}

func TestPipCommands(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix quoting")
	}

	assert.Equal(t,
		`"/p/python" -m pip install -U -i "https://mirror/simple" "nonebot2[fastapi]"`,
		PipInstall("/p/python", []string{"nonebot2[fastapi]"}, PipOptions{Upgrade: true, Index: "https://mirror/simple"}),
	)
	assert.Equal(t,
		`"/p/python" -m pip install "a" "b"`,
		PipInstall("/p/python", []string{"a", "b"}, PipOptions{}),
	)
	assert.Equal(t,
		`"/p/python" -m pip uninstall -y "httpx"`,
		PipUninstall("/p/python", []string{"httpx"}, true),
	)
	assert.Equal(t, `"/p/python" -m nb_cli run`, RunBot("/p/python"))
	assert.Equal(t,
		[]string{"-m", "pip", "install", "-U", "-i", "idx", "nonebot2"},
		PipInstallArgs([]string{"nonebot2"}, PipOptions{Upgrade: true, Index: "idx"}),
	)
}

func TestQuote_EscapesShellMetacharacters(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix quoting")
	}

	assert.Equal(t, `"a \"b\" \$HOME \`+"`"+`x\`+"`"+`"`, Quote("a \"b\" $HOME `x`"))
}
