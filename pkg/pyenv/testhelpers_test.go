package pyenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeInterpreter returns fixed site directories and counts calls.
type fakeInterpreter struct {
	dirs  []string
	err   error
	calls atomic.Int32
}

func (f *fakeInterpreter) SiteDirs(_ context.Context, _ string) ([]string, error) {
	f.calls.Add(1)
	return f.dirs, f.err
}

// venvSite creates <dir>/.venv/lib/python3.12/site-packages.
func venvSite(t *testing.T, dir string) string {
	t.Helper()

	site := filepath.Join(dir, ".venv", "lib", "python3.12", "site-packages")
	require.NoError(t, os.MkdirAll(site, 0o750))

	return site
}

// installDist writes a minimal dist-info directory into site.
func installDist(t *testing.T, site, name, version string) {
	t.Helper()

	info := filepath.Join(site, fmt.Sprintf("%s-%s.dist-info", name, version))
	require.NoError(t, os.MkdirAll(info, 0o750))

	meta := fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: %s\nSummary: The %s package\n\nLong description.\n", name, version, name)
	require.NoError(t, os.WriteFile(filepath.Join(info, "METADATA"), []byte(meta), 0o600))
}
