package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alantheprice/refactord/pkg/codec"
	"github.com/alantheprice/refactord/pkg/fingerprint"
	"github.com/alantheprice/refactord/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStrategy struct {
	calls int
}

func (c *countingStrategy) Name() string { return "counting" }

func (c *countingStrategy) Select(ctx context.Context, in Input) ([]Target, error) {
	c.calls++
	return SortedStrategy{}.Select(ctx, in)
}

type stubReasoner struct {
	out  map[string]string
	err  error
	seen ReasonInput
}

func (s *stubReasoner) SelectFiles(_ context.Context, in ReasonInput) (map[string]string, error) {
	s.seen = in
	return s.out, s.err
}

func basicRequest() *PlanRequest {
	return &PlanRequest{
		RequestID:     "req-123",
		WorkspaceRoot: "/repo",
		FileTree: []FileTreeEntry{
			{Path: "src/b.py", Kind: KindFile, Size: 10},
			{Path: "src", Kind: KindDir},
			{Path: "src/a.py", Kind: KindFile, Size: 20},
			{Path: "src/a.py", Kind: KindFile, Size: 20},
			{Path: "../etc/passwd", Kind: KindFile},
		},
		Skeletons: []Skeleton{
			{Path: "src/a.py", Content: codec.Encode("import os\n")},
			{Path: "src/b.py", Content: codec.Encode("def f(): pass\n")},
		},
		MaxSkeletonBytes: 1000,
		Instruction:      "add type hints",
	}
}

func TestPlan_SortedBaseline(t *testing.T) {
	p := New(Options{})
	req := basicRequest()

	res, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []Target{
		{Path: "src/a.py", Reason: "Refactor recommended for src/a.py"},
		{Path: "src/b.py", Reason: "Refactor recommended for src/b.py"},
	}, res.TargetFiles)
	assert.Equal(t, "1.0.0", res.PlannerVersion)
	assert.Equal(t, StrategySorted, res.Strategy)
	assert.Equal(t, fingerprint.Seed("req-123"), res.Seed)
	assert.Equal(t, req.SkeletonBytes()/4, res.EstimatedTokenCost)
}

func TestPlan_SeedIsDeterministicAndInRange(t *testing.T) {
	p := New(Options{})
	for _, id := range []string{"", "a", "req-123", strings.Repeat("x", 500)} {
		req := basicRequest()
		req.RequestID = id
		first, err := p.Plan(context.Background(), req)
		require.NoError(t, err)
		second, err := p.Plan(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, first.Seed, second.Seed)
		assert.GreaterOrEqual(t, first.Seed, int64(0))
		assert.Less(t, first.Seed, int64(fingerprint.SeedModulus))
	}
}

func TestPlan_TargetsAreSubsetOfTreeWithoutTraversal(t *testing.T) {
	req := basicRequest()
	res, err := New(Options{}).Plan(context.Background(), req)
	require.NoError(t, err)

	tree := map[string]bool{}
	for _, e := range req.FileTree {
		tree[e.Path] = true
	}
	for _, target := range res.TargetFiles {
		assert.True(t, tree[target.Path], target.Path)
		assert.NoError(t, codec.ValidatePath(target.Path, req.WorkspaceRoot))
	}
}

func TestPlan_BudgetExceededPerformsNoPlanning(t *testing.T) {
	strategy := &countingStrategy{}
	p := New(Options{Strategy: strategy})
	req := basicRequest()
	req.Skeletons = []Skeleton{{Path: "src/a.py", Content: strings.Repeat("A", 120)}}
	req.MaxSkeletonBytes = 100

	res, err := p.Plan(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, utils.IsCategory(err, utils.CategoryValidation))
	assert.Contains(t, err.Error(), "max_skeleton_bytes exceeded")
	assert.Zero(t, strategy.calls)
}

func TestPlan_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *PlanRequest)
		want   string
	}{
		{"traversal root", func(r *PlanRequest) { r.WorkspaceRoot = "/repo/../etc" }, "invalid workspace_root"},
		{"zero budget", func(r *PlanRequest) { r.MaxSkeletonBytes = 0 }, "must be positive"},
		{"negative budget", func(r *PlanRequest) { r.MaxSkeletonBytes = -5 }, "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := &countingStrategy{}
			req := basicRequest()
			tt.mutate(req)
			_, err := New(Options{Strategy: strategy}).Plan(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, utils.CodeValidation, utils.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, strategy.calls)
		})
	}
}

func TestPlan_BudgetAtLimitIsAccepted(t *testing.T) {
	req := basicRequest()
	req.MaxSkeletonBytes = req.SkeletonBytes()
	_, err := New(Options{}).Plan(context.Background(), req)
	assert.NoError(t, err)
}

func TestPlan_IgnorePatterns(t *testing.T) {
	req := basicRequest()
	req.FileTree = append(req.FileTree,
		FileTreeEntry{Path: "node_modules/x.js", Kind: KindFile},
		FileTreeEntry{Path: "build.log", Kind: KindFile},
	)
	p := New(Options{Ignore: []string{"# comment", "node_modules/", "*.log", ""}})

	res, err := p.Plan(context.Background(), req)
	require.NoError(t, err)
	var paths []string
	for _, target := range res.TargetFiles {
		paths = append(paths, target.Path)
	}
	assert.Equal(t, []string{"src/a.py", "src/b.py"}, paths)
}

func TestPlan_ReasoningStrategyFiltersUntrustedPaths(t *testing.T) {
	reasoner := &stubReasoner{out: map[string]string{
		"src/b.py":      "hot loop",
		"src/a.py":      "",
		"../etc/passwd": "nope",
		"ghost.py":      "not in tree",
	}}
	var dropped int
	p := New(Options{Strategy: ReasoningStrategy{Reasoner: reasoner, OnDropped: func(n int) { dropped = n }}})

	res, err := p.Plan(context.Background(), basicRequest())
	require.NoError(t, err)
	assert.Equal(t, StrategyReasoning, res.Strategy)
	assert.Equal(t, []Target{
		{Path: "src/a.py", Reason: "Refactor recommended for src/a.py"},
		{Path: "src/b.py", Reason: "hot loop"},
	}, res.TargetFiles)
	assert.Equal(t, 2, dropped)

	require.Len(t, reasoner.seen.Skeletons, 2)
	assert.Equal(t, "import os\n", reasoner.seen.Skeletons[0].Content)
	assert.Equal(t, "add type hints", reasoner.seen.Instruction)
	assert.Equal(t, fingerprint.Seed("req-123"), reasoner.seen.Seed)
}

func TestPlan_ReasoningFailureFallsBackToSorted(t *testing.T) {
	reasoner := &stubReasoner{err: errors.New("model offline")}
	p := New(Options{Strategy: ReasoningStrategy{Reasoner: reasoner}})

	res, err := p.Plan(context.Background(), basicRequest())
	require.NoError(t, err)
	assert.Equal(t, StrategySortedFallback, res.Strategy)
	assert.Len(t, res.TargetFiles, 2)
}

func TestFileTreeEntry_AcceptsTypeOrKind(t *testing.T) {
	var entries []FileTreeEntry
	require.NoError(t, json.Unmarshal([]byte(`[
		{"path":"a.py","type":"file","size":3},
		{"path":"src","kind":"dir"},
		{"path":"lib","type":"directory"}
	]`), &entries))

	assert.Equal(t, FileTreeEntry{Path: "a.py", Kind: KindFile, Size: 3}, entries[0])
	assert.True(t, entries[1].IsDir())
	assert.True(t, entries[2].IsDir())
}
