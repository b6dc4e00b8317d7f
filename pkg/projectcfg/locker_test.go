package projectcfg

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocker_SerializesSamePath(t *testing.T) {
	fl := NewFileLocker()
	var current, peak int64

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_ = fl.With("/p/.env", func() error {
				c := atomic.AddInt64(&current, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if c <= old || atomic.CompareAndSwapInt64(&peak, old, c) {
						break
					}
				}
				atomic.AddInt64(&current, -1)
				return nil
			})
		})
	}
	wg.Wait()

	assert.Equal(t, int64(1), peak)
	assert.Empty(t, fl.locks)
}

func TestFileLocker_RelativeAndAbsoluteShareLock(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, lockKey(filepath.Join(wd, ".env")), lockKey(".env"))
	assert.Equal(t, lockKey("/p/.env"), lockKey("/p/sub/../.env"))
}

func TestFileLocker_ReturnsError(t *testing.T) {
	fl := NewFileLocker()
	boom := errors.New("boom")

	require.ErrorIs(t, fl.With("/p/.env", func() error { return boom }), boom)
	assert.Empty(t, fl.locks)
}
