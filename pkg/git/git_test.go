package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alantheprice/refactord/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepo initializes a repository with one commit, or skips the test
// when git is unavailable.
func newTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "bot@example.com"},
		{"config", "user.name", "bot"},
		{"config", "commit.gpgsign", "false"},
	} {
		out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
		require.NoError(t, err, string(out))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0644))
	for _, args := range [][]string{{"add", "a.py"}, {"commit", "-q", "-m", "init"}} {
		out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
		require.NoError(t, err, string(out))
	}
	return dir
}

func TestClient_BranchWriteCommit(t *testing.T) {
	dir := newTestRepo(t)
	ctx := context.Background()
	c := NewClient(dir)

	require.NoError(t, c.CreateBranch(ctx, "ai-refactor/test-1"))
	require.NoError(t, c.WriteFile(ctx, "a.py", "x: int = 1\n"))
	require.NoError(t, c.WriteFile(ctx, "pkg/new.py", "y = 2\n"))
	require.NoError(t, c.Commit(ctx, "refactor"))

	branch, err := c.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ai-refactor/test-1", branch)

	data, err := os.ReadFile(filepath.Join(dir, "a.py"))
	require.NoError(t, err)
	assert.Equal(t, "x: int = 1\n", string(data))

	out, err := exec.Command("git", "-C", dir, "status", "--porcelain").CombinedOutput()
	require.NoError(t, err)
	assert.Empty(t, string(out))
}

func TestClient_WriteFileRejectsTraversal(t *testing.T) {
	c := NewClient(t.TempDir())
	err := c.WriteFile(context.Background(), "../escape.py", "x")
	assert.Error(t, err)
}

func TestClient_RootDirOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := NewClient(t.TempDir()).RootDir(context.Background())
	assert.Error(t, err)
}

func TestClient_CreateBranchTwiceFails(t *testing.T) {
	dir := newTestRepo(t)
	c := NewClient(dir)
	require.NoError(t, c.CreateBranch(context.Background(), "dup"))
	assert.Error(t, c.CreateBranch(context.Background(), "dup"))
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func TestCommitter_MaterializeReturnsToBaseBranch(t *testing.T) {
	dir := newTestRepo(t)
	ctx := context.Background()
	base := gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD")
	c := NewCommitter(nil, 0, nil)

	branch, err := c.Materialize(ctx, dir, "ai-refactor/ok", "refactor", []FileChange{
		{Path: "a.py", Original: "x = 1\n", Content: "x: int = 1\n"},
		{Path: "pkg/new.py", Content: "y = 2\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ai-refactor/ok", branch)

	assert.Equal(t, base, gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Empty(t, gitOutput(t, dir, "status", "--porcelain"))
	data, err := os.ReadFile(filepath.Join(dir, "a.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "pkg", "new.py"))

	assert.Equal(t, "x: int = 1", gitOutput(t, dir, "show", "ai-refactor/ok:a.py"))
	assert.Equal(t, "y = 2", gitOutput(t, dir, "show", "ai-refactor/ok:pkg/new.py"))
}

func TestCommitter_FailedWriteLeavesWorkspaceClean(t *testing.T) {
	tests := []struct {
		name    string
		changes []FileChange
	}{
		{
			name: "target is a tracked directory",
			changes: []FileChange{
				{Path: "a.py", Original: "x = 1\n", Content: "x: int = 1\n"},
				{Path: "new.py", Content: "z = 3\n"},
				{Path: "sub", Content: "y = 2\n"},
			},
		},
		{
			name: "target is an untracked directory",
			changes: []FileChange{
				{Path: "a.py", Original: "x = 1\n", Content: "x: int = 1\n"},
				{Path: "scratch", Content: "y = 2\n"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newTestRepo(t)
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "k.py"), []byte("k = 1\n"), 0644))
			gitOutput(t, dir, "add", "sub/k.py")
			gitOutput(t, dir, "commit", "-q", "-m", "sub")
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "scratch"), 0755))
			base := gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD")

			c := NewCommitter(nil, 0, nil)
			branch, err := c.Materialize(context.Background(), dir, "ai-refactor/bad", "refactor", tt.changes)
			require.Error(t, err)
			assert.Empty(t, branch)
			assert.Equal(t, utils.CodeCommit, utils.CodeOf(err))

			assert.Equal(t, base, gitOutput(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
			assert.Empty(t, gitOutput(t, dir, "status", "--porcelain"))
			assert.Empty(t, gitOutput(t, dir, "branch", "--list", "ai-refactor/bad"))
			data, err := os.ReadFile(filepath.Join(dir, "a.py"))
			require.NoError(t, err)
			assert.Equal(t, "x = 1\n", string(data))
			assert.NoFileExists(t, filepath.Join(dir, "new.py"))
			assert.DirExists(t, filepath.Join(dir, "sub"))
		})
	}
}

func TestClient_CurrentBranchDetached(t *testing.T) {
	dir := newTestRepo(t)
	head := gitOutput(t, dir, "rev-parse", "HEAD")
	gitOutput(t, dir, "checkout", "-q", "--detach")

	branch, err := NewClient(dir).CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, head, branch)
}
