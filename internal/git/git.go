package git

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// Mode 增量分析模式
type Mode int

const (
	// ModeWorkspace 工作区未暂存的修改
	ModeWorkspace Mode = iota
	// ModeStaged 暂存区的修改
	ModeStaged
	// ModeBranch 与分支的合并基点之后的修改
	ModeBranch
	// ModeCommit 指定提交之后的修改
	ModeCommit
	// ModePR PR 模式，自动检测目标分支
	ModePR
)

var modeNames = map[Mode]string{
	ModeWorkspace: "workspace",
	ModeStaged:    "staged",
	ModeBranch:    "branch",
	ModeCommit:    "commit",
	ModePR:        "pr",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode 解析模式名称
func ParseMode(name string) (Mode, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for mode, n := range modeNames {
		if n == lower {
			return mode, nil
		}
	}
	return ModeWorkspace, fmt.Errorf("unknown incremental mode %q (expected workspace, staged, branch, commit or pr)", name)
}

// ErrNotRepository 路径不在 Git 仓库中
var ErrNotRepository = errors.New("not a git repository")

// Changes 变更的源文件和新增行
type Changes struct {
	// Files 变更且仍存在的 C/C++ 源文件绝对路径，已排序
	Files []string
	// Lines 文件绝对路径 -> 新增或修改的行号（1 基）
	Lines map[string]map[int]bool
}

// Contains 判断某行是否属于变更
func (c *Changes) Contains(file string, line int) bool {
	lines, ok := c.Lines[file]
	return ok && lines[line]
}

// Repository 对 go-git 仓库的封装
type Repository struct {
	repo   *git.Repository
	root   string
	logger hclog.Logger
}

// Open 打开 path 所在的仓库，向上查找 .git
func Open(path string, logger hclog.Logger) (*Repository, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotRepository)
		}
		return nil, fmt.Errorf("failed to open repository %q: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	return &Repository{repo: repo, root: wt.Filesystem.Root(), logger: logger}, nil
}

// IsRepository 判断 path 是否在 Git 仓库中
func IsRepository(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// Root 工作区根目录
func (r *Repository) Root() string {
	return r.root
}

// CurrentBranch 当前分支名，分离 HEAD 时返回 HEAD
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "HEAD", nil
}

// DefaultBranch 依次尝试 main、master 和 origin/HEAD 指向的分支
func (r *Repository) DefaultBranch() string {
	for _, name := range []string{"main", "master"} {
		if _, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true); err == nil {
			return name
		}
	}
	if ref, err := r.repo.Reference(plumbing.NewRemoteHEADReferenceName("origin"), false); err == nil {
		if ref.Type() == plumbing.SymbolicReference {
			return ref.Target().Short()
		}
	}
	return "main"
}

// Changes 按模式收集变更，ref 为分支或提交，可为空
func (r *Repository) Changes(mode Mode, ref string) (*Changes, error) {
	var (
		patches map[string]*diff.FileDiff
		err     error
	)

	switch mode {
	case ModeWorkspace:
		patches, err = r.workspacePatches()
	case ModeStaged:
		patches, err = r.stagedPatches()
	case ModeBranch:
		if ref == "" {
			ref = r.DefaultBranch()
		}
		patches, err = r.mergeBasePatches(ref)
	case ModeCommit:
		if ref == "" {
			return nil, fmt.Errorf("commit mode requires a reference")
		}
		patches, err = r.commitPatches(ref)
	case ModePR:
		base := ref
		if base == "" {
			if env, ok := DetectPREnvironment(os.Getenv); ok && env.BaseBranch != "" {
				r.logger.Info("pull request environment detected", "provider", env.Provider, "base", env.BaseBranch, "number", env.Number)
				base = env.BaseBranch
			} else {
				base = r.DefaultBranch()
			}
		}
		patches, err = r.mergeBasePatches(base)
	default:
		return nil, fmt.Errorf("unsupported incremental mode %s", mode)
	}
	if err != nil {
		return nil, err
	}

	return r.collect(patches)
}

// collect 过滤源文件并解析新增行
func (r *Repository) collect(patches map[string]*diff.FileDiff) (*Changes, error) {
	changes := &Changes{Lines: make(map[string]map[int]bool)}

	for rel, fd := range patches {
		if !core.IsSourceFile(rel) {
			continue
		}
		abs := filepath.Join(r.root, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		changes.Files = append(changes.Files, abs)
		changes.Lines[abs] = addedLines(fd)
	}

	sort.Strings(changes.Files)
	r.logger.Debug("changed source files", "count", len(changes.Files))
	return changes, nil
}

// workspacePatches 暂存区与工作区之间的差异
func (r *Repository) workspacePatches() (map[string]*diff.FileDiff, error) {
	status, err := r.status()
	if err != nil {
		return nil, err
	}

	patches := make(map[string]*diff.FileDiff)
	for path, st := range status {
		if st.Worktree == git.Unmodified || st.Worktree == git.Untracked || st.Worktree == git.Deleted {
			continue
		}
		before, err := r.indexContent(path)
		if err != nil {
			return nil, err
		}
		after, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(path)))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		fd, err := unifiedPatch(path, before, string(after))
		if err != nil {
			return nil, err
		}
		if fd != nil {
			patches[path] = fd
		}
	}
	return patches, nil
}

// stagedPatches HEAD 与暂存区之间的差异
func (r *Repository) stagedPatches() (map[string]*diff.FileDiff, error) {
	status, err := r.status()
	if err != nil {
		return nil, err
	}
	headTree, err := r.headTree()
	if err != nil {
		return nil, err
	}

	patches := make(map[string]*diff.FileDiff)
	for path, st := range status {
		switch st.Staging {
		case git.Added, git.Modified, git.Renamed, git.Copied:
		default:
			continue
		}
		before, err := treeContent(headTree, path)
		if err != nil {
			return nil, err
		}
		after, err := r.indexContent(path)
		if err != nil {
			return nil, err
		}
		fd, err := unifiedPatch(path, before, after)
		if err != nil {
			return nil, err
		}
		if fd != nil {
			patches[path] = fd
		}
	}
	return patches, nil
}

// mergeBasePatches base...HEAD：合并基点到 HEAD 的差异
func (r *Repository) mergeBasePatches(base string) (map[string]*diff.FileDiff, error) {
	baseCommit, err := r.resolveCommit(base)
	if err != nil {
		return nil, err
	}
	headCommit, err := r.headCommit()
	if err != nil {
		return nil, err
	}

	bases, err := headCommit.MergeBase(baseCommit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute merge base with %s: %w", base, err)
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("no merge base between %s and HEAD", base)
	}
	return treePatches(bases[0], headCommit)
}

// commitPatches ref..HEAD：两个提交之间的差异
func (r *Repository) commitPatches(ref string) (map[string]*diff.FileDiff, error) {
	from, err := r.resolveCommit(ref)
	if err != nil {
		return nil, err
	}
	head, err := r.headCommit()
	if err != nil {
		return nil, err
	}
	return treePatches(from, head)
}

func (r *Repository) status() (git.Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}
	return status, nil
}

// resolveCommit 解析分支、标签或提交，分支名找不到时再尝试 origin/<name>
func (r *Repository) resolveCommit(ref string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		remote, rerr := r.repo.ResolveRevision(plumbing.Revision("origin/" + ref))
		if rerr != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", ref, err)
		}
		hash = remote
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	return commit, nil
}

func (r *Repository) headCommit() (*object.Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return r.repo.CommitObject(head.Hash())
}

// headTree HEAD 的树，空仓库返回 nil
func (r *Repository) headTree() (*object.Tree, error) {
	commit, err := r.headCommit()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return commit.Tree()
}

// indexContent 暂存区中的文件内容，不存在时为空
func (r *Repository) indexContent(path string) (string, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return "", fmt.Errorf("failed to read index: %w", err)
	}
	entry, err := idx.Entry(path)
	if err != nil {
		if errors.Is(err, index.ErrEntryNotFound) {
			return "", nil
		}
		return "", err
	}
	blob, err := r.repo.BlobObject(entry.Hash)
	if err != nil {
		return "", fmt.Errorf("failed to load blob for %s: %w", path, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return "", err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// treeContent 树中的文件内容，不存在时为空
func treeContent(tree *object.Tree, path string) (string, error) {
	if tree == nil {
		return "", nil
	}
	file, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return "", nil
		}
		return "", err
	}
	return file.Contents()
}

// treePatches 两个提交之间每个文件的 unified diff
func treePatches(from, to *object.Commit) (map[string]*diff.FileDiff, error) {
	fromTree, err := from.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load base tree: %w", err)
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load head tree: %w", err)
	}
	patch, err := fromTree.Patch(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}
	return splitMultiFilePatch(patch.String())
}
