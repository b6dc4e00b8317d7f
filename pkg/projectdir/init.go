package projectdir

import (
	"fmt"
	"os"
)

const gitignoreContent = "*\n"

// EnsureLocal creates the local state directory and its .gitignore if they
// are missing. It is safe to call multiple times.
func EnsureLocal(d Dir) error {
	if err := os.MkdirAll(d.LocalDir(), 0o750); err != nil {
		return fmt.Errorf("projectdir: create local dir: %w", err)
	}

	if _, err := os.Stat(d.GitignorePath()); err == nil {
		return nil
	}

	if err := os.WriteFile(d.GitignorePath(), []byte(gitignoreContent), 0o600); err != nil {
		return fmt.Errorf("projectdir: gitignore: %w", err)
	}

	return nil
}
