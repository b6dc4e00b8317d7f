// Package envedit edits a single env file of a project: it loads the ordered
// entries, applies changes in memory, renders a unified diff of the pending
// changes and saves them atomically. Lines that are not touched, comments
// included, are written back unchanged.
package envedit

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/germanamz/nbdesk/pkg/projectcfg"
)

var (
	// ErrInvalidKey is returned for keys that are not valid env identifiers.
	ErrInvalidKey = errors.New("envedit: invalid key")
	// ErrConflict is returned by Save when the file changed on disk since
	// it was opened.
	ErrConflict = errors.New("envedit: file changed since it was opened")
)

var keyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Editor holds the pending state of one env file.
type Editor struct {
	path   string
	orig   []byte
	doc    *projectcfg.EnvDoc
	locker *projectcfg.FileLocker
}

// Open loads the env file at path. A missing file opens as empty and is
// created on Save. locker serializes Save with other writers of the file;
// nil uses a private locker.
func Open(path string, locker *projectcfg.FileLocker) (*Editor, error) {
	orig, err := os.ReadFile(path) //nolint:gosec // path is a project env file
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("envedit: read %s: %w", path, err)
	}

	doc, err := projectcfg.ParseEnv(orig)
	if err != nil {
		return nil, err
	}

	if locker == nil {
		locker = projectcfg.NewFileLocker()
	}

	return &Editor{path: path, orig: orig, doc: doc, locker: locker}, nil
}

// Path returns the edited file.
func (e *Editor) Path() string { return e.path }

// Entries returns the current entries in file order.
func (e *Editor) Entries() []projectcfg.EnvEntry { return e.doc.Entries() }

// Get returns the current value of key.
func (e *Editor) Get(key string) (string, bool) { return e.doc.Get(key) }

// ValidateKey reports ErrInvalidKey for keys that are not env identifiers.
func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Set defines key.
func (e *Editor) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	e.doc.Set(key, value)

	return nil
}

// Unset removes key.
func (e *Editor) Unset(key string) { e.doc.Unset(key) }

// Replace makes entries the complete content of the file, the way a table
// editor submits it. Keys missing from entries are removed. Rows with an
// empty key are skipped, and so are rows with an empty value unless the key
// already existed with an empty value.
func (e *Editor) Replace(entries []projectcfg.EnvEntry) error {
	keep := make(map[string]string, len(entries))
	var order []string

	for _, en := range entries {
		if en.Key == "" {
			continue
		}
		if err := ValidateKey(en.Key); err != nil {
			return err
		}
		if en.Value == "" {
			if old, ok := e.doc.Get(en.Key); !ok || old != "" {
				continue
			}
		}
		if _, dup := keep[en.Key]; !dup {
			order = append(order, en.Key)
		}
		keep[en.Key] = en.Value
	}

	for _, cur := range e.doc.Entries() {
		if _, ok := keep[cur.Key]; !ok {
			e.doc.Unset(cur.Key)
		}
	}

	for _, k := range order {
		if old, ok := e.doc.Get(k); ok && old == keep[k] {
			continue
		}
		e.doc.Set(k, keep[k])
	}

	return nil
}

// Content renders the pending file content.
func (e *Editor) Content() []byte { return e.doc.Bytes() }

// Dirty reports whether there are unsaved changes.
func (e *Editor) Dirty() bool { return !bytes.Equal(e.orig, e.Content()) }

// Diff returns a unified diff of the pending changes, empty when there are
// none.
func (e *Editor) Diff() string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(e.orig)),
		B:        difflib.SplitLines(string(e.Content())),
		FromFile: e.path,
		ToFile:   e.path,
		Context:  3,
	}

	result, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(diff error: %v)", err)
	}

	return result
}

// Save writes the pending content atomically. Saving an unchanged editor is
// a no-op. Save fails with ErrConflict and writes nothing when the file no
// longer holds the content it was opened with.
func (e *Editor) Save() error {
	if !e.Dirty() {
		return nil
	}

	content := e.Content()

	err := e.locker.With(e.path, func() error {
		current, err := os.ReadFile(e.path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("envedit: read %s: %w", e.path, err)
		}
		if !bytes.Equal(current, e.orig) {
			return fmt.Errorf("%w: %s", ErrConflict, e.path)
		}

		return projectcfg.WriteFileAtomic(e.path, content)
	})
	if err != nil {
		return err
	}

	e.orig = content

	return nil
}
