package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/alantheprice/refactord/pkg/fingerprint"
	"github.com/alantheprice/refactord/pkg/security"
	"github.com/alantheprice/refactord/pkg/utils"
	"github.com/cespare/xxhash/v2"
)

const lockStripes = 64

// BranchPrefix namespaces every branch the service creates.
const BranchPrefix = "ai-refactor/"

// FileChange is one accepted rewrite to materialize.
type FileChange struct {
	Path     string
	Original string
	Content  string
}

// Opener returns the VCS for a workspace root.
type Opener func(root string) VCS

// Committer writes accepted changes to a new branch. Commits to the same
// workspace root never run concurrently.
type Committer struct {
	open    Opener
	timeout time.Duration
	logger  *utils.Logger
	locks   [lockStripes]sync.Mutex
}

// NewCommitter creates a committer. A nil opener uses the git CLI.
func NewCommitter(open Opener, timeout time.Duration, logger *utils.Logger) *Committer {
	if open == nil {
		open = func(root string) VCS { return NewClient(root) }
	}
	if logger == nil {
		logger = utils.Discard()
	}
	return &Committer{open: open, timeout: timeout, logger: logger}
}

func (c *Committer) lockFor(root string) *sync.Mutex {
	return &c.locks[xxhash.Sum64String(filepath.Clean(root))%lockStripes]
}

// Screen drops changes that introduce credentials the original did not have.
// The skipped map holds the concerns found per path.
func Screen(changes []FileChange) (accepted []FileChange, skipped map[string][]string) {
	skipped = make(map[string][]string)
	for _, ch := range changes {
		if concerns := security.IntroducedConcerns(ch.Original, ch.Content); len(concerns) > 0 {
			skipped[ch.Path] = concerns
			continue
		}
		accepted = append(accepted, ch)
	}
	return accepted, skipped
}

// Materialize creates branch in root, writes the screened changes and
// commits them, then checks the original branch out again. On failure the
// writes are discarded and the branch is deleted. It returns the branch name
// on success.
func (c *Committer) Materialize(ctx context.Context, root, branch, message string, changes []FileChange) (string, error) {
	mu := c.lockFor(root)
	mu.Lock()
	defer mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	accepted, skipped := Screen(changes)
	for path, concerns := range skipped {
		c.logger.LogEvent("commit_skipped_file", map[string]any{"path": path, "concerns": strings.Join(concerns, ", ")})
	}
	if len(accepted) == 0 {
		return "", utils.NewCommitError("screen", errors.New("no changes left to commit"))
	}

	vcs := c.open(root)
	base, err := vcs.CurrentBranch(ctx)
	if err != nil {
		return "", stepError(ctx, "current_branch", err)
	}
	if err := vcs.CreateBranch(ctx, branch); err != nil {
		return "", stepError(ctx, "create_branch", err)
	}
	var written []string
	for _, ch := range accepted {
		written = append(written, ch.Path)
		if err := vcs.WriteFile(ctx, ch.Path, ch.Content); err != nil {
			c.rollback(ctx, vcs, base, branch, written)
			return "", stepError(ctx, "write_file", err)
		}
	}
	if err := vcs.Commit(ctx, message); err != nil {
		c.rollback(ctx, vcs, base, branch, written)
		return "", stepError(ctx, "commit", err)
	}

	rctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := vcs.Checkout(rctx, base); err != nil {
		c.logger.LogEvent("commit_checkout_failed", map[string]any{"branch": branch, "base": base, "error": err.Error()})
	}
	return branch, nil
}

const cleanupTimeout = 30 * time.Second

// cleanupContext outlives a cancelled or expired ctx so rollback can still run.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// rollback restores the written paths, returns to base and deletes branch.
// Failures are logged; the original error is what the caller reports.
func (c *Committer) rollback(ctx context.Context, vcs VCS, base, branch string, paths []string) {
	rctx, cancel := cleanupContext(ctx)
	defer cancel()
	steps := []struct {
		name string
		run  func() error
	}{
		{"discard", func() error { return vcs.Discard(rctx, paths) }},
		{"checkout", func() error { return vcs.Checkout(rctx, base) }},
		{"delete_branch", func() error { return vcs.DeleteBranch(rctx, branch) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			c.logger.LogEvent("commit_rollback_failed", map[string]any{"step": step.name, "branch": branch, "error": err.Error()})
		}
	}
}

func stepError(ctx context.Context, step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return utils.NewTimeoutError("commit", err)
	}
	return utils.NewCommitError(step, err)
}

var unsafeBranchChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// BranchName derives a branch name from the request id and a timestamp.
func BranchName(requestID string, now time.Time) string {
	slug := strings.Trim(unsafeBranchChars.ReplaceAllString(requestID, "-"), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	if slug == "" {
		slug = "batch"
	}
	return fmt.Sprintf("%s%s-%s", BranchPrefix, slug, now.UTC().Format("20060102T150405Z"))
}

// CommitMessage summarizes a batch commit.
func CommitMessage(requestID string, paths []string) string {
	var sb strings.Builder
	noun := "files"
	if len(paths) == 1 {
		noun = "file"
	}
	sb.WriteString(fmt.Sprintf("AI refactor: %d %s (request %s)\n\n", len(paths), noun, requestID))
	for _, p := range paths {
		sb.WriteString(fmt.Sprintf("- %s (reason_id %s)\n", p, fingerprint.ReasonID(requestID, p)))
	}
	return sb.String()
}
