package refactor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/alantheprice/refactord/pkg/codec"
	"github.com/alantheprice/refactord/pkg/diff"
	"github.com/alantheprice/refactord/pkg/fingerprint"
	"github.com/alantheprice/refactord/pkg/git"
	"github.com/alantheprice/refactord/pkg/llm"
	"github.com/alantheprice/refactord/pkg/normalize"
	"github.com/alantheprice/refactord/pkg/research"
	"github.com/alantheprice/refactord/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// Materializer commits accepted changes. *git.Committer implements it.
type Materializer interface {
	Materialize(ctx context.Context, root, branch, message string, changes []git.FileChange) (string, error)
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Generator  llm.TextGenerator
	Normalizer *normalize.Adapter
	// Research and Committer are optional.
	Research  research.Tool
	Committer Materializer
	Logger    *utils.Logger

	WorkspaceRoot   string
	Workers         int
	DiffContext     int
	GenerateTimeout time.Duration
	SearchTimeout   time.Duration

	// OnFileOutcome is called once per file with Result.Outcome().
	OnFileOutcome func(outcome string)
	Now           func() time.Time
}

// Orchestrator processes refactor batches.
type Orchestrator struct {
	opts Options
}

// New creates an orchestrator, filling defaults for unset options.
func New(opts Options) *Orchestrator {
	if opts.Generator == nil {
		opts.Generator = llm.StubGenerator{}
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.NewAdapter(nil)
	}
	if opts.Logger == nil {
		opts.Logger = utils.Discard()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.DiffContext < 0 {
		opts.DiffContext = diff.DefaultContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{opts: opts}
}

// ResultFunc receives each result as soon as it is complete. Calls are
// serialized but arrive in completion order.
type ResultFunc func(index int, r Result)

// Validate checks request-level fields. Failures reject the whole batch.
func (o *Orchestrator) Validate(req *BatchRequest) error {
	if strings.TrimSpace(req.RequestID) == "" {
		return utils.NewValidationError("request_id is required", nil)
	}
	if err := codec.ValidateRoot(o.root(req)); err != nil {
		return utils.NewValidationError("invalid workspace_root", err).WithResource(req.WorkspaceRoot)
	}
	return nil
}

func (o *Orchestrator) root(req *BatchRequest) string {
	if req.WorkspaceRoot != "" {
		return req.WorkspaceRoot
	}
	return o.opts.WorkspaceRoot
}

// Refactor processes every target and returns results in input order.
func (o *Orchestrator) Refactor(ctx context.Context, req *BatchRequest) (*Batch, error) {
	return o.RefactorStream(ctx, req, nil)
}

// RefactorStream is Refactor with a per-result callback.
func (o *Orchestrator) RefactorStream(ctx context.Context, req *BatchRequest, onResult ResultFunc) (*Batch, error) {
	if err := o.Validate(req); err != nil {
		return nil, err
	}
	logger := o.opts.Logger.With(req.RequestID)
	root := o.root(req)
	seed := fingerprint.Seed(req.RequestID)

	results := make([]Result, len(req.Targets))
	originals := make([]string, len(req.Targets))
	var callbackMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, target := range req.Targets {
		i, target := i, target
		g.Go(func() error {
			res, original := o.safeProcessFile(ctx, logger, req, root, seed, target)
			results[i] = res
			originals[i] = original
			if o.opts.OnFileOutcome != nil {
				o.opts.OnFileOutcome(res.Outcome())
			}
			if onResult != nil {
				callbackMu.Lock()
				onResult(i, res)
				callbackMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{RequestID: req.RequestID, Results: results}
	batch.BatchDigest = o.batchDigest(logger, results)

	if !req.DryRun && o.opts.Committer != nil {
		batch.Branch = o.commit(ctx, logger, req, root, results, originals)
	}
	return batch, nil
}

func (o *Orchestrator) batchDigest(logger *utils.Logger, results []Result) string {
	var leaves []string
	for _, r := range results {
		if r.Succeeded() {
			leaves = append(leaves, r.Path+":"+r.NewDigest)
		}
	}
	root, err := fingerprint.BatchRoot(leaves)
	if err != nil {
		logger.LogError(utils.NewInternalError("batch digest failed", err))
		return ""
	}
	return root
}

func (o *Orchestrator) commit(ctx context.Context, logger *utils.Logger, req *BatchRequest, root string, results []Result, originals []string) string {
	var changes []git.FileChange
	var paths []string
	for i, r := range results {
		if !r.Changed() {
			continue
		}
		changes = append(changes, git.FileChange{Path: r.Path, Original: originals[i], Content: r.NewContent})
		paths = append(paths, r.Path)
	}
	if len(changes) == 0 {
		return ""
	}
	branch := git.BranchName(req.RequestID, o.opts.Now())
	got, err := o.opts.Committer.Materialize(ctx, root, branch, git.CommitMessage(req.RequestID, paths), changes)
	if err != nil {
		logger.LogEvent("commit_failed", map[string]any{"branch": branch, "code": utils.CodeOf(err), "error": err.Error()})
		return ""
	}
	logger.LogEvent("commit_completed", map[string]any{"branch": got, "files": len(changes)})
	return got
}

// failed builds a result for a file that did not reach the diff stage.
func failed(path string, err error) Result {
	return Result{Path: path, Error: err.Error(), ErrorCode: utils.CodeOf(err)}
}

// safeProcessFile is processFile with panics turned into an internal_error
// result for that file only.
func (o *Orchestrator) safeProcessFile(ctx context.Context, logger *utils.Logger, req *BatchRequest, root string, seed int64, target Target) (res Result, original string) {
	defer func() {
		if r := recover(); r != nil {
			err := utils.NewInternalError(fmt.Sprintf("file pipeline panic: %v", r), nil).WithResource(target.Path)
			res, original = o.logged(logger, failed(target.Path, err)), ""
		}
	}()
	return o.processFile(ctx, logger, req, root, seed, target)
}

// processFile runs one file through the pipeline. It returns the result and
// the compared original text.
func (o *Orchestrator) processFile(ctx context.Context, logger *utils.Logger, req *BatchRequest, root string, seed int64, target Target) (Result, string) {
	path := target.Path
	if err := codec.ValidatePath(path, root); err != nil {
		return o.logged(logger, failed(path, utils.NewValidationError("invalid path", err).WithResource(path))), ""
	}
	original, err := codec.Decode(path, target.Content)
	if err != nil {
		return o.logged(logger, failed(path, utils.NewDecodeError(path, err))), ""
	}

	citations := o.research(ctx, logger, req, path)
	refs := make([]string, 0, len(citations))
	for _, c := range citations {
		refs = append(refs, c.Reference())
	}

	candidate, err := o.generate(ctx, llm.GenerateInput{
		RequestID:     req.RequestID,
		Path:          path,
		Content:       original,
		SystemContext: llm.SystemContext(req.Instruction, refs),
		Seed:          seed,
	})
	if err != nil {
		res := failed(path, err)
		res.Citations = citations
		return o.logged(logger, res), ""
	}

	origText, origOK, origErr := o.opts.Normalizer.Normalize(ctx, path, original)
	newText, newOK, newErr := o.opts.Normalizer.Normalize(ctx, path, candidate)

	res := Result{
		Path:            path,
		OrigDigest:      fingerprint.Digest(origText),
		NewDigest:       fingerprint.Digest(newText),
		Diff:            unifiedDiff(origText, newText, path, path, o.opts.DiffContext),
		NewContent:      newText,
		NormalizationOK: origOK && newOK,
		Citations:       citations,
	}
	if !res.NormalizationOK {
		var msgs []string
		if !origOK {
			msgs = append(msgs, utils.NewNormalizationError("original", origErr).Error())
		}
		if !newOK {
			msgs = append(msgs, utils.NewNormalizationError("candidate", newErr).Error())
		}
		res.Error = strings.Join(msgs, "; ")
		res.ErrorCode = utils.CodeNormalization
	}
	return o.logged(logger, res), origText
}

func (o *Orchestrator) logged(logger *utils.Logger, res Result) Result {
	fields := map[string]any{"path": res.Path, "outcome": res.Outcome()}
	if res.Diff != "" {
		added, removed := diff.Stats(res.Diff)
		fields["added"] = added
		fields["removed"] = removed
	}
	if res.Error != "" {
		fields["error"] = res.Error
	}
	logger.LogEvent("refactor_file", fields)
	return res
}

func (o *Orchestrator) research(ctx context.Context, logger *utils.Logger, req *BatchRequest, path string) []research.Citation {
	if o.opts.Research == nil || req.Research.MaxSources <= 0 {
		return nil
	}
	sctx, cancel := withTimeout(ctx, o.opts.SearchTimeout)
	defer cancel()
	citations, err := await(sctx, func(ctx context.Context) ([]research.Citation, error) {
		return o.opts.Research.Search(ctx, researchTopic(req.Instruction, path), req.Research.toolConstraints())
	})
	if err != nil {
		logger.LogEvent("research_failed", map[string]any{"path": path, "error": err.Error()})
		return nil
	}
	return research.Apply(citations, req.Research.toolConstraints())
}

func researchTopic(instruction, path string) string {
	if s := strings.TrimSpace(instruction); s != "" {
		return s
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "code refactoring algorithms"
	}
	return fmt.Sprintf("%s code refactoring algorithms", ext)
}

func (o *Orchestrator) generate(ctx context.Context, in llm.GenerateInput) (string, error) {
	gctx, cancel := withTimeout(ctx, o.opts.GenerateTimeout)
	defer cancel()

	candidate, err := await(gctx, func(ctx context.Context) (string, error) {
		return o.opts.Generator.Generate(ctx, in)
	})
	if err == nil {
		return candidate, nil
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return "", utils.NewGenerationError(in.Path, fmt.Errorf("generator panic: %v", pe.value))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "", utils.NewTimeoutError("generation", err).WithResource(in.Path)
	}
	return "", utils.NewGenerationError(in.Path, err)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// await runs fn on its own goroutine and stops waiting once ctx is done, so a
// collaborator that ignores its context cannot hold the file past its
// deadline. A late result is dropped.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: &panicError{value: r}}
			}
			done <- out
		}()
		out.value, out.err = fn(ctx)
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// unifiedDiff is replaced in tests.
var unifiedDiff = diff.Unified

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
