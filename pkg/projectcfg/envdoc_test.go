package projectcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_PreservesLayout(t *testing.T) {
	src := "# bot settings\nENVIRONMENT=dev\n\nDRIVER=~fastapi+~httpx\nHOST=127.0.0.1 # local\n"

	doc, err := ParseEnv([]byte(src))
	require.NoError(t, err)

	v, ok := doc.Get("DRIVER")
	assert.True(t, ok)
	assert.Equal(t, "~fastapi+~httpx", v)

	v, _ = doc.Get("HOST")
	assert.Equal(t, "127.0.0.1", v)

	assert.Equal(t, src, string(doc.Bytes()))
}

func TestEnvDoc_SetRewritesInPlace(t *testing.T) {
	doc, err := ParseEnv([]byte("A=1\nDRIVER=a+b\n# tail\n"))
	require.NoError(t, err)

	doc.Set("DRIVER", "b")

	assert.Equal(t, "A=1\nDRIVER=b\n# tail\n", string(doc.Bytes()))
}

func TestEnvDoc_SetEmptyKeepsKey(t *testing.T) {
	doc, err := ParseEnv([]byte("DRIVER=~fastapi\n"))
	require.NoError(t, err)

	doc.Set("DRIVER", "")

	assert.Equal(t, "DRIVER=\n", string(doc.Bytes()))
	v, ok := doc.Get("DRIVER")
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestEnvDoc_SetCollapsesDuplicates(t *testing.T) {
	doc, err := ParseEnv([]byte("K=1\nX=2\nK=3\n"))
	require.NoError(t, err)

	v, _ := doc.Get("K")
	assert.Equal(t, "3", v)

	doc.Set("K", "4")

	assert.Equal(t, "X=2\nK=4\n", string(doc.Bytes()))
}

func TestEnvDoc_SetAppends(t *testing.T) {
	doc, err := ParseEnv([]byte("A=1"))
	require.NoError(t, err)

	doc.Set("B", "two words")

	out := string(doc.Bytes())
	assert.Equal(t, "A=1\nB=\"two words\"\n", out)

	again, err := ParseEnv([]byte(out))
	require.NoError(t, err)
	v, _ := again.Get("B")
	assert.Equal(t, "two words", v)
}

func TestEnvDoc_Unset(t *testing.T) {
	doc, err := ParseEnv([]byte("A=1\nB=2\nA=3\n"))
	require.NoError(t, err)

	doc.Unset("A")

	assert.Equal(t, "B=2\n", string(doc.Bytes()))
	_, ok := doc.Get("A")
	assert.False(t, ok)
}

func TestEnvDoc_Entries(t *testing.T) {
	doc, err := ParseEnv([]byte("# c\nB=2\nA=1\nB=3\nexport C=x\n"))
	require.NoError(t, err)

	assert.Equal(t, []EnvEntry{
		{Key: "B", Value: "3"},
		{Key: "A", Value: "1"},
		{Key: "C", Value: "x"},
	}, doc.Entries())
}

func TestReadEnvFile_Missing(t *testing.T) {
	doc, err := ReadEnvFile(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	assert.Empty(t, doc.Entries())
	assert.Nil(t, doc.Bytes())
}

func TestWriteFileAtomic_KeepsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\n"), 0o600))

	require.NoError(t, WriteFileAtomic(path, []byte("A=2\n")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A=2\n", string(data))
}
