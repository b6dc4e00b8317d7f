package pyenv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// Snapshot caches the distributions of one project directory. It refreshes
// lazily on Get after being invalidated, which happens when the directory
// changes, when Invalidate is called (e.g. after an install completes) or
// when a watched site directory changes. The zero value is not usable; use
// NewSnapshot.
type Snapshot struct {
	insp *Inspector

	mu     sync.Mutex
	dir    string
	dists  []Distribution
	valid  bool
	signal chan struct{}
}

// NewSnapshot creates a snapshot for dir backed by insp.
func NewSnapshot(insp *Inspector, dir string) *Snapshot {
	return &Snapshot{
		insp:   insp,
		dir:    dir,
		signal: make(chan struct{}),
	}
}

// Dir returns the directory the snapshot describes.
func (s *Snapshot) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dir
}

// SetDir points the snapshot at another directory and invalidates it.
func (s *Snapshot) SetDir(dir string) {
	s.mu.Lock()
	s.dir = dir
	s.invalidateLocked()
	s.mu.Unlock()
}

// Invalidate drops the cached distributions and wakes goroutines waiting on
// Changed.
func (s *Snapshot) Invalidate() {
	s.mu.Lock()
	s.invalidateLocked()
	s.mu.Unlock()
}

func (s *Snapshot) invalidateLocked() {
	s.valid = false
	s.dists = nil
	close(s.signal)
	s.signal = make(chan struct{})
}

// Changed returns a channel that is closed at the next invalidation.
func (s *Snapshot) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.signal
}

// Get returns the cached distributions, inspecting the environment first if
// the cache is invalid. The returned slice must not be modified.
func (s *Snapshot) Get(ctx context.Context) ([]Distribution, error) {
	s.mu.Lock()
	if s.valid {
		d := s.dists
		s.mu.Unlock()
		return d, nil
	}
	dir := s.dir
	sig := s.signal
	s.mu.Unlock()

	dists, err := s.insp.Distributions(ctx, dir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Only publish when nothing invalidated the snapshot meanwhile.
	if s.signal == sig {
		s.dists = dists
		s.valid = true
	}
	s.mu.Unlock()

	return dists, nil
}

// Installed returns the installed set from the cached distributions.
func (s *Snapshot) Installed(ctx context.Context) (InstalledSet, error) {
	dists, err := s.Get(ctx)
	if err != nil {
		return InstalledSet{}, err
	}

	return SetOf(dists), nil
}

// WatchCleanupFunc stops a watch and waits for its goroutine to exit.
type WatchCleanupFunc func() error

// Watch invalidates the snapshot whenever an entry is created, removed or
// renamed in one of the current site directories. Events are debounced
// because pip touches many files per install.
func (s *Snapshot) Watch(ctx context.Context) (WatchCleanupFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("pyenv: watch: %w", err)
	}

	dirs := s.insp.SiteDirs(ctx, s.Dir())
	added := 0
	for _, d := range dirs {
		if err := watcher.Add(d); err == nil {
			added++
		}
	}
	if added == 0 {
		_ = watcher.Close()
		return func() error { return nil }, nil
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() { _ = watcher.Close() })

	var (
		mu        sync.Mutex
		debouncer *time.Timer
	)

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			mu.Lock()
			if debouncer != nil {
				debouncer.Stop()
			}
			mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				mu.Lock()
				if debouncer != nil {
					debouncer.Stop()
				}
				debouncer = time.AfterFunc(200*time.Millisecond, s.Invalidate)
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				s.insp.log.Warn("site directory watch error", "error", err)
			}
		}

		return nil
	})

	return func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}, nil
}
