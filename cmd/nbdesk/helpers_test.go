package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/nbdesk/pkg/projectdir"
)

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv_SetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NBDESK_TEST_DOTENV=hello\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NBDESK_TEST_DOTENV") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv("NBDESK_TEST_DOTENV"))
}

func TestLoadDotEnv_SkipsProjectVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "ENVIRONMENT=dev\nDRIVER=~fastapi\nNBDESK_TEST_DOTENV_INDEX=https://example.invalid/simple\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DRIVER", "")
	require.NoError(t, os.Unsetenv("DRIVER"))
	t.Cleanup(func() { _ = os.Unsetenv("NBDESK_TEST_DOTENV_INDEX") })

	require.NoError(t, loadDotEnv(path))

	_, ok := os.LookupEnv("DRIVER")
	assert.False(t, ok)
	assert.Equal(t, "https://example.invalid/simple", os.Getenv("NBDESK_TEST_DOTENV_INDEX"))
}

func TestLoadDotEnv_KeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NBDESK_TEST_DOTENV_KEEP=file\n"), 0o600))
	t.Setenv("NBDESK_TEST_DOTENV_KEEP", "shell")

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "shell", os.Getenv("NBDESK_TEST_DOTENV_KEEP"))
}

func TestEnvOr(t *testing.T) {
	t.Setenv("NBDESK_TEST_ENVOR", " value ")
	assert.Equal(t, "value", envOr("NBDESK_TEST_ENVOR", "def"))

	t.Setenv("NBDESK_TEST_ENVOR", "")
	assert.Equal(t, "def", envOr("NBDESK_TEST_ENVOR", "def"))
}

func TestResolveProjectDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), nil, 0o600))
	nested := filepath.Join(root, "src", "plugins")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	t.Run("explicit absolute", func(t *testing.T) {
		other := t.TempDir()
		assert.Equal(t, other, resolveProjectDir(other, nested))
	})

	t.Run("explicit relative", func(t *testing.T) {
		assert.Equal(t, filepath.Join(nested, "bot"), resolveProjectDir("bot", nested))
	})

	t.Run("nearest project", func(t *testing.T) {
		assert.Equal(t, projectdir.New(root).Root(), resolveProjectDir("", nested))
	})

	t.Run("cwd fallback", func(t *testing.T) {
		plain := t.TempDir()
		assert.Equal(t, projectdir.New(plain).Root(), resolveProjectDir("", plain))
	})
}

func TestEnvFilePath(t *testing.T) {
	p := projectdir.New("/srv/bot")

	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"default", "", filepath.Join(p.Root(), ".env")},
		{"environment", "prod", filepath.Join(p.Root(), ".env.prod")},
		{"file name", ".env.dev", filepath.Join(p.Root(), ".env.dev")},
		{"relative path", filepath.Join("conf", "x.env"), filepath.Join(p.Root(), "conf", "x.env")},
		{"absolute", filepath.Join(string(filepath.Separator), "tmp", ".env"), filepath.Join(string(filepath.Separator), "tmp", ".env")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, envFilePath(p, tt.arg))
		})
	}
}

func TestPickMirror(t *testing.T) {
	mirrors := []string{"https://a.example/simple", "https://b.example/simple"}

	got, err := pickMirror(mirrors, "2")
	require.NoError(t, err)
	assert.Equal(t, mirrors[1], got)

	got, err = pickMirror(mirrors, "https://c.example/simple")
	require.NoError(t, err)
	assert.Equal(t, "https://c.example/simple", got)

	_, err = pickMirror(mirrors, "3")
	require.Error(t, err)

	_, err = pickMirror(mirrors, "ftp://nope")
	require.Error(t, err)
}

func TestSameIndex(t *testing.T) {
	assert.True(t, sameIndex("https://a.example/simple/", "https://a.example/simple"))
	assert.False(t, sameIndex("https://a.example/simple", ""))
}

func TestColorDiff_KeepsLines(t *testing.T) {
	diff := "--- a\n+++ b\n@@ -1 +1 @@\n-A=1\n+A=2\n"
	out := colorDiff(diff)

	assert.Len(t, strings.Split(out, "\n"), 5)
	assert.Contains(t, out, "+A=2")
	assert.Contains(t, out, "-A=1")
}

func TestValidateEnvKey(t *testing.T) {
	require.NoError(t, validateEnvKey(""))
	require.NoError(t, validateEnvKey("PORT"))
	require.Error(t, validateEnvKey("1PORT"))
}

func TestFirstLineAndTitleCase(t *testing.T) {
	assert.Equal(t, "one", firstLine("  one\ntwo"))
	assert.Equal(t, "Enable", titleCase("enable"))
	assert.Empty(t, titleCase(""))
}
