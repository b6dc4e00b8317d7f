package projectcfg

import (
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic replaces path with data through a temp file and rename so
// a crash never leaves a half-written config behind. An existing file keeps
// its permissions.
func WriteFileAtomic(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("projectcfg: write %s: %w", path, err)
	}

	return nil
}
