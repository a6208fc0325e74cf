package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alantheprice/refactord/pkg/codec"
	"github.com/alantheprice/refactord/pkg/fingerprint"
	"github.com/alantheprice/refactord/pkg/utils"
	ignore "github.com/sabhiram/go-gitignore"
)

// Options configures a Planner.
type Options struct {
	// Strategy defaults to SortedStrategy.
	Strategy Strategy
	// Ignore holds gitignore-style patterns removed from the candidates.
	Ignore []string
	Logger *utils.Logger
}

// Planner validates plan requests and delegates selection to a Strategy.
type Planner struct {
	strategy Strategy
	ignore   *ignore.GitIgnore
	logger   *utils.Logger
}

// New creates a Planner.
func New(opts Options) *Planner {
	p := &Planner{strategy: opts.Strategy, logger: opts.Logger}
	if p.strategy == nil {
		p.strategy = SortedStrategy{}
	}
	if p.logger == nil {
		p.logger = utils.Discard()
	}
	var lines []string
	for _, l := range opts.Ignore {
		l = strings.TrimSpace(l)
		if l != "" && !strings.HasPrefix(l, "#") {
			lines = append(lines, l)
		}
	}
	if len(lines) > 0 {
		p.ignore = ignore.CompileIgnoreLines(lines...)
	}
	return p
}

// Validate checks the root and the skeleton budget. It performs no planning.
func (p *Planner) Validate(req *PlanRequest) error {
	if err := codec.ValidateRoot(req.WorkspaceRoot); err != nil {
		return utils.NewValidationError("invalid workspace_root", err).WithResource(req.WorkspaceRoot)
	}
	if req.MaxSkeletonBytes <= 0 {
		return utils.NewValidationError("max_skeleton_bytes must be positive", nil)
	}
	if total := req.SkeletonBytes(); total > req.MaxSkeletonBytes {
		return utils.NewValidationError(
			fmt.Sprintf("max_skeleton_bytes exceeded: %d > %d", total, req.MaxSkeletonBytes), nil)
	}
	return nil
}

// Candidates returns the sorted, unique file paths of the tree that are valid
// relative paths and not ignored.
func (p *Planner) Candidates(req *PlanRequest) []string {
	seen := make(map[string]bool, len(req.FileTree))
	out := make([]string, 0, len(req.FileTree))
	for _, e := range req.FileTree {
		if e.IsDir() || seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		if codec.ValidatePath(e.Path, req.WorkspaceRoot) != nil {
			continue
		}
		if p.ignore != nil && p.ignore.MatchesPath(e.Path) {
			continue
		}
		out = append(out, e.Path)
	}
	sort.Strings(out)
	return out
}

// Plan validates req and selects target files. When a non-default strategy
// fails, the sorted baseline is used and the result says so.
func (p *Planner) Plan(ctx context.Context, req *PlanRequest) (*PlanResult, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	logger := p.logger.With(req.RequestID)
	seed := fingerprint.Seed(req.RequestID)
	in := Input{Request: req, Candidates: p.Candidates(req), Seed: seed}

	strategy := p.strategy.Name()
	targets, err := p.strategy.Select(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return nil, utils.NewTimeoutError("planning", ctx.Err())
		}
		if _, sorted := p.strategy.(SortedStrategy); sorted {
			return nil, utils.NewInternalError("planning failed", err)
		}
		logger.LogEvent("planner_fallback", map[string]any{"strategy": strategy, "error": err.Error()})
		targets, _ = SortedStrategy{}.Select(ctx, in)
		strategy = StrategySortedFallback
	}

	total := req.SkeletonBytes()
	result := &PlanResult{
		RequestID:          req.RequestID,
		TargetFiles:        targets,
		PlannerVersion:     Version,
		Seed:               seed,
		EstimatedTokenCost: total / 4,
		Strategy:           strategy,
	}
	logger.LogEvent("plan_completed", map[string]any{
		"targets":  len(targets),
		"seed":     seed,
		"strategy": strategy,
	})
	return result, nil
}
