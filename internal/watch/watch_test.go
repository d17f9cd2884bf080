package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) handle(_ context.Context, files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, files)
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func startWatcher(t *testing.T, root string, handler Handler, opts ...Option) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := New(root, handler, append([]Option{WithDebounce(100 * time.Millisecond)}, opts...)...)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not become ready")
	}
}

func TestWatchBatchesSourceFiles(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	rec := &recorder{}
	startWatcher(t, root, rec.handle)

	a := filepath.Join(root, "a.cpp")
	b := filepath.Join(root, "b.h")
	require.NoError(t, os.WriteFile(a, []byte("int a;\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("int b;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x\n"), 0o644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	var seen []string
	for _, batch := range rec.snapshot() {
		seen = append(seen, batch...)
	}
	assert.Contains(t, seen, a)
	assert.Contains(t, seen, b)
	assert.NotContains(t, seen, filepath.Join(root, "notes.txt"))
}

func TestWatchNewAndExcludedDirectories(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))

	rec := &recorder{}
	startWatcher(t, root, rec.handle, WithExcludeDirs([]string{"build"}))

	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "gen.cpp"), []byte("int g;\n"), 0o644))

	sub := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// 等待新目录被加入监听
	time.Sleep(200 * time.Millisecond)
	src := filepath.Join(sub, "main.c")
	require.NoError(t, os.WriteFile(src, []byte("int main(void) { return 0; }\n"), 0o644))

	require.Eventually(t, func() bool {
		for _, batch := range rec.snapshot() {
			for _, f := range batch {
				if f == src {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	for _, batch := range rec.snapshot() {
		assert.NotContains(t, batch, filepath.Join(root, "build", "gen.cpp"))
	}
}

func TestWatchHandlerErrorKeepsRunning(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		calls int
	)
	startWatcher(t, root, func(context.Context, []string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("scan failed")
	})

	path := filepath.Join(root, "x.cc")
	require.NoError(t, os.WriteFile(path, []byte("int x;\n"), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	before := calls
	mu.Unlock()

	require.NoError(t, os.WriteFile(path, []byte("int x = 1;\n"), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls > before
	}, 5*time.Second, 20*time.Millisecond)
}

func TestExisting(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "b.cpp")
	require.NoError(t, os.WriteFile(kept, nil, 0o644))

	files := existing(map[string]bool{
		kept:                           true,
		filepath.Join(dir, "gone.cpp"): true,
		dir:                            true,
	})
	assert.Equal(t, []string{kept}, files)
}
