package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// DefaultDebounce 合并连续文件事件的等待时间
const DefaultDebounce = 300 * time.Millisecond

// Handler 处理一批变更的源文件，批次之间串行执行
type Handler func(ctx context.Context, files []string) error

// Watcher 监听目录树中的 C/C++ 源文件变更
type Watcher struct {
	root        string
	excludeDirs map[string]bool
	debounce    time.Duration
	handler     Handler
	logger      hclog.Logger
	ready       chan struct{}
}

// Option 监听器选项
type Option func(*Watcher)

func WithLogger(logger hclog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExcludeDirs 不监听的目录名
func WithExcludeDirs(dirs []string) Option {
	return func(w *Watcher) {
		for _, d := range dirs {
			w.excludeDirs[d] = true
		}
	}
}

// New 创建监听器
func New(root string, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		root:        root,
		excludeDirs: make(map[string]bool),
		debounce:    DefaultDebounce,
		handler:     handler,
		logger:      hclog.NewNullLogger(),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready 所有目录都已加入监听后关闭
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run 阻塞直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	if err := w.addRecursive(watcher, w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	close(w.ready)
	w.logger.Info("watching for changes", "root", w.root, "debounce", w.debounce)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.track(watcher, ev) {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)

		case <-timer.C:
			batch := existing(pending)
			pending = make(map[string]bool)
			if len(batch) == 0 {
				continue
			}
			w.logger.Debug("change batch", "files", len(batch))
			if err := w.handler(ctx, batch); err != nil {
				w.logger.Error("re-scan failed", "error", err)
			}
		}
	}
}

// track 判断事件是否需要触发扫描，新建目录会被加入监听
func (w *Watcher) track(watcher *fsnotify.Watcher, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(watcher, ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return false
		}
	}
	return core.IsSourceFile(ev.Name)
}

func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.excludeDirs[info.Name()] {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// existing 仍然存在的文件，已排序
func existing(pending map[string]bool) []string {
	files := make([]string, 0, len(pending))
	for path := range pending {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files
}
