package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseSource = "int main() {\n    return 0;\n}\n"

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{t: t, dir: dir, repo: repo, wt: wt}
}

func (r *testRepo) write(name, content string) string {
	r.t.Helper()
	path := filepath.Join(r.dir, name)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (r *testRepo) add(name string) {
	r.t.Helper()
	_, err := r.wt.Add(name)
	require.NoError(r.t, err)
}

func (r *testRepo) commit(msg string) plumbing.Hash {
	r.t.Helper()
	hash, err := r.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
	return hash
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{input: "workspace", expected: ModeWorkspace},
		{input: "STAGED", expected: ModeStaged},
		{input: " branch ", expected: ModeBranch},
		{input: "commit", expected: ModeCommit},
		{input: "pr", expected: ModePR},
		{input: "everything", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, mode)
			assert.Equal(t, tc.expected.String(), modeNames[mode])
		})
	}
}

func TestAddedLines(t *testing.T) {
	patch := `diff --git a/src/a.cpp b/src/a.cpp
index 1111111..2222222 100644
--- a/src/a.cpp
+++ b/src/a.cpp
@@ -1,4 +1,5 @@
 int main() {
-    int x;
+    int x = 0;
+    int y = 1;
     return x;
 }
@@ -10,2 +11,2 @@ void f() {
 void g();
-void h();
+void h(int);
diff --git a/old.cpp b/old.cpp
deleted file mode 100644
index 3333333..0000000
--- a/old.cpp
+++ /dev/null
@@ -1 +0,0 @@
-int gone;
`
	patches, err := splitMultiFilePatch(patch)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	fd, ok := patches["src/a.cpp"]
	require.True(t, ok)
	assert.Equal(t, map[int]bool{2: true, 3: true, 12: true}, addedLines(fd))
}

func TestUnifiedPatch(t *testing.T) {
	fd, err := unifiedPatch("a.cpp", baseSource, baseSource)
	require.NoError(t, err)
	assert.Nil(t, fd)

	after := "int main() {\n    int x = 1;\n    return x;\n}\n"
	fd, err = unifiedPatch("a.cpp", baseSource, after)
	require.NoError(t, err)
	require.NotNil(t, fd)
	assert.Equal(t, map[int]bool{2: true, 3: true}, addedLines(fd))

	fd, err = unifiedPatch("new.c", "", "int a;\nint b;\n")
	require.NoError(t, err)
	require.NotNil(t, fd)
	assert.Equal(t, map[int]bool{1: true, 2: true}, addedLines(fd))
}

func TestDetectPREnvironment(t *testing.T) {
	testCases := []struct {
		name     string
		env      map[string]string
		ok       bool
		expected PREnvironment
	}{
		{
			name: "github pull request",
			env: map[string]string{
				"GITHUB_ACTIONS":    "true",
				"GITHUB_EVENT_NAME": "pull_request",
				"GITHUB_BASE_REF":   "main",
				"GITHUB_HEAD_REF":   "feature/x",
				"GITHUB_REF":        "refs/pull/42/merge",
				"GITHUB_REPOSITORY": "acme/engine",
			},
			ok: true,
			expected: PREnvironment{
				Provider: "github", BaseBranch: "main", HeadBranch: "feature/x",
				Number: "42", RepoOwner: "acme", RepoName: "engine",
			},
		},
		{
			name: "github push",
			env: map[string]string{
				"GITHUB_ACTIONS":    "true",
				"GITHUB_EVENT_NAME": "push",
			},
		},
		{
			name: "gitlab merge request",
			env: map[string]string{
				"GITLAB_CI":                           "true",
				"CI_MERGE_REQUEST_IID":                "7",
				"CI_MERGE_REQUEST_TARGET_BRANCH_NAME": "develop",
				"CI_MERGE_REQUEST_SOURCE_BRANCH_NAME": "fix-leak",
				"CI_PROJECT_PATH":                     "team/lib",
			},
			ok: true,
			expected: PREnvironment{
				Provider: "gitlab", BaseBranch: "develop", HeadBranch: "fix-leak",
				Number: "7", RepoOwner: "team", RepoName: "lib",
			},
		},
		{
			name: "local",
			env:  map[string]string{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env, ok := DetectPREnvironment(func(key string) string { return tc.env[key] })
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, env)
		})
	}
}

func TestPRComment(t *testing.T) {
	comment := PRComment("Total Issues: 0\n", PREnvironment{BaseBranch: "main", HeadBranch: "dev", Number: "3"})
	assert.Contains(t, comment, "`main` → `dev`")
	assert.Contains(t, comment, "#3")
	assert.Contains(t, comment, "```\nTotal Issues: 0\n```")
}

func TestOpenNotRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, nil)
	assert.ErrorIs(t, err, ErrNotRepository)
	assert.False(t, IsRepository(dir))
}

func TestWorkspaceAndStagedChanges(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("main.cpp", baseSource)
	tr.write("README.md", "# readme\n")
	tr.add("main.cpp")
	tr.add("README.md")
	tr.commit("initial")

	repo, err := Open(tr.dir, nil)
	require.NoError(t, err)
	assert.True(t, IsRepository(tr.dir))
	assert.Equal(t, "master", repo.DefaultBranch())

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	// 未修改
	changes, err := repo.Changes(ModeWorkspace, "")
	require.NoError(t, err)
	assert.Empty(t, changes.Files)

	mainPath := tr.write("main.cpp", "int main() {\n    int x = 0;\n    return x;\n}\n")
	tr.write("README.md", "# changed\n")
	tr.write("untracked.cpp", "int u;\n")

	changes, err = repo.Changes(ModeWorkspace, "")
	require.NoError(t, err)
	assert.Equal(t, []string{mainPath}, changes.Files)
	assert.True(t, changes.Contains(mainPath, 2))
	assert.True(t, changes.Contains(mainPath, 3))
	assert.False(t, changes.Contains(mainPath, 1))

	staged, err := repo.Changes(ModeStaged, "")
	require.NoError(t, err)
	assert.Empty(t, staged.Files)

	tr.add("main.cpp")
	staged, err = repo.Changes(ModeStaged, "")
	require.NoError(t, err)
	assert.Equal(t, []string{mainPath}, staged.Files)
	assert.True(t, staged.Contains(mainPath, 2))

	changes, err = repo.Changes(ModeWorkspace, "")
	require.NoError(t, err)
	assert.Empty(t, changes.Files)
}

func TestCommitAndBranchChanges(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("lib/util.c", baseSource)
	tr.add("lib/util.c")
	first := tr.commit("initial")

	// base 分支停在第一次提交
	require.NoError(t, tr.repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("base"), first)))

	utilPath := tr.write("lib/util.c", "int main() {\n    return 0;\n}\nint extra(void) { return 1; }\n")
	newPath := tr.write("lib/new.h", "#pragma once\nint extra(void);\n")
	tr.add("lib/util.c")
	tr.add("lib/new.h")
	tr.commit("second")

	repo, err := Open(tr.dir, nil)
	require.NoError(t, err)

	changes, err := repo.Changes(ModeCommit, first.String())
	require.NoError(t, err)
	assert.Equal(t, []string{newPath, utilPath}, changes.Files)
	assert.Equal(t, map[int]bool{4: true}, changes.Lines[utilPath])
	assert.Equal(t, map[int]bool{1: true, 2: true}, changes.Lines[newPath])

	branch, err := repo.Changes(ModeBranch, "base")
	require.NoError(t, err)
	assert.Equal(t, changes.Files, branch.Files)

	_, err = repo.Changes(ModeCommit, "")
	assert.Error(t, err)

	_, err = repo.Changes(ModeBranch, "no-such-branch")
	assert.Error(t, err)
}
