package projectcfg

import (
	"path/filepath"
	"sync"
)

// pathLock guards one file. users counts the goroutines holding or waiting
// for it.
type pathLock struct {
	sync.Mutex
	users int
}

// FileLocker serializes read-modify-write cycles on project files within the
// process. Paths are compared in absolute, cleaned form, so ".env" and
// "/srv/bot/.env" share a lock when the working directory is /srv/bot.
type FileLocker struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

// NewFileLocker creates an empty FileLocker.
func NewFileLocker() *FileLocker {
	return &FileLocker{locks: make(map[string]*pathLock)}
}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// With runs fn while holding the lock for path. The entry for path is
// dropped again once nobody uses it.
func (fl *FileLocker) With(path string, fn func() error) error {
	key := lockKey(path)

	fl.mu.Lock()
	l := fl.locks[key]
	if l == nil {
		l = &pathLock{}
		fl.locks[key] = l
	}
	l.users++
	fl.mu.Unlock()

	l.Lock()
	defer func() {
		l.Unlock()

		fl.mu.Lock()
		if l.users--; l.users == 0 {
			delete(fl.locks, key)
		}
		fl.mu.Unlock()
	}()

	return fn()
}
