package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/germanamz/nbdesk/pkg/catalog"
	"github.com/germanamz/nbdesk/pkg/projectcfg"
	"github.com/germanamz/nbdesk/pkg/pyenv"
)

const testCatalog = `
drivers:
  - name: None
    module_name: "~none"
  - name: FastAPI
    module_name: fastapi_driver
    project_link: nonebot2[fastapi]
  - name: HTTPX
    module_name: "~httpx"
    project_link: nonebot2[httpx]
adapters:
  - name: Console
    module_name: nonebot.adapters.console
    project_link: nonebot-adapter-console
  - name: OneBot V11
    module_name: nonebot.adapters.onebot.v11
    project_link: nonebot-adapter-onebot
  - name: OneBot V12
    module_name: nonebot.adapters.onebot.v12
    project_link: nonebot-adapter-onebot
plugins:
  - name: echo
    module_name: echo
  - name: status
    module_name: nonebot_plugin_status
    project_link: nonebot-plugin-status
`

// hostSite serves a fixed site directory as the host interpreter's.
type hostSite struct{ dir string }

func (h hostSite) SiteDirs(context.Context, string) ([]string, error) {
	return []string{h.dir}, nil
}

type fakeProc struct {
	pid       int
	done      chan struct{}
	err       error
	once      sync.Once
	cancelled atomic.Bool
}

func (p *fakeProc) Pid() int              { return p.pid }
func (p *fakeProc) Done() <-chan struct{} { return p.done }
func (p *fakeProc) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *fakeProc) Cancel() {
	p.cancelled.Store(true)
	p.finish(context.Canceled)
}

func (p *fakeProc) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

type startCall struct {
	dir       string
	cmd       string
	newWindow bool
}

type fakeStarter struct {
	mu    sync.Mutex
	calls []startCall
	procs []*fakeProc
	err   error
}

func (s *fakeStarter) Start(_ context.Context, dir, cmd string, newWindow bool) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, startCall{dir: dir, cmd: cmd, newWindow: newWindow})
	if s.err != nil {
		return nil, s.err
	}

	p := &fakeProc{pid: 1000 + len(s.procs), done: make(chan struct{})}
	s.procs = append(s.procs, p)

	return p, nil
}

func (s *fakeStarter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixture struct {
	dir     string
	site    string
	starter *fakeStarter
	session *Session
	changes atomic.Int32
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	f := &fixture{
		dir:     t.TempDir(),
		site:    t.TempDir(),
		starter: &fakeStarter{},
	}

	opts.OnChange = func() { f.changes.Add(1) }
	opts.Python = func(string) string { return "/py/bin/python" }

	insp := pyenv.NewInspector(hostSite{dir: f.site}, nil)
	f.session = NewSession(f.dir, cat, insp, projectcfg.NewAccessor(nil), f.starter, opts)

	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) install(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		f.installQuietly(t, n)
	}
	f.session.Snapshot().Invalidate()
}

// installQuietly adds a distribution without invalidating the snapshot.
func (f *fixture) installQuietly(t *testing.T, name string) {
	t.Helper()
	info := filepath.Join(f.site, name+"-1.0.dist-info")
	require.NoError(t, os.MkdirAll(info, 0o755))
	meta := fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: 1.0\n", name)
	require.NoError(t, os.WriteFile(filepath.Join(info, "METADATA"), []byte(meta), 0o644))
}
