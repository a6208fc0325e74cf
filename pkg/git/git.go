package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alantheprice/refactord/pkg/codec"
)

// VCS is the version-control surface the committer needs.
type VCS interface {
	CurrentBranch(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name string) error
	WriteFile(ctx context.Context, path, content string) error
	Commit(ctx context.Context, message string) error
	Checkout(ctx context.Context, ref string) error
	DeleteBranch(ctx context.Context, name string) error
	// Discard restores paths to their HEAD state, unstaged. Paths HEAD does
	// not have are removed. Directories are left alone.
	Discard(ctx context.Context, paths []string) error
}

// Client runs git commands inside one working tree.
type Client struct {
	Dir string
}

// NewClient returns a git client rooted at dir.
func NewClient(dir string) *Client {
	return &Client{Dir: dir}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", c.Dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// RootDir returns the top-level directory of the repository.
func (c *Client) RootDir(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("could not find git root: %w", err)
	}
	return out, nil
}

// CurrentBranch returns the checked-out branch name, or the commit hash when
// HEAD is detached.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	name, err := c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || name != "HEAD" {
		return name, err
	}
	return c.run(ctx, "rev-parse", "HEAD")
}

// Checkout switches the working tree to ref.
func (c *Client) Checkout(ctx context.Context, ref string) error {
	_, err := c.run(ctx, "checkout", "-q", ref)
	return err
}

// DeleteBranch force-deletes a local branch.
func (c *Client) DeleteBranch(ctx context.Context, name string) error {
	_, err := c.run(ctx, "branch", "-D", name)
	return err
}

func (c *Client) Discard(ctx context.Context, paths []string) error {
	for _, p := range paths {
		full, err := codec.Resolve(c.Dir, p)
		if err != nil {
			return err
		}
		if info, err := os.Lstat(full); err == nil && info.IsDir() {
			continue
		}
		rel := filepath.ToSlash(p)
		if _, err := c.run(ctx, "reset", "-q", "--", rel); err != nil {
			return err
		}
		if _, err := c.run(ctx, "cat-file", "-e", "HEAD:"+rel); err == nil {
			if _, err := c.run(ctx, "checkout", "HEAD", "--", rel); err != nil {
				return err
			}
			continue
		}
		if info, err := os.Lstat(full); err == nil && info.Mode().IsRegular() {
			if err := os.Remove(full); err != nil {
				return fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
	}
	return nil
}

// CreateBranch creates and checks out a new branch.
func (c *Client) CreateBranch(ctx context.Context, name string) error {
	_, err := c.run(ctx, "checkout", "-b", name)
	return err
}

// WriteFile writes content to a workspace-relative path and stages it.
func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	full, err := codec.Resolve(c.Dir, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	mode := os.FileMode(0644)
	if info, err := os.Stat(full); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(full, []byte(content), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	_, err = c.run(ctx, "add", "--", filepath.ToSlash(path))
	return err
}

// Commit records the staged changes.
func (c *Client) Commit(ctx context.Context, message string) error {
	_, err := c.run(ctx, "commit", "-m", message)
	return err
}
