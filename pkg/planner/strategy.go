package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/alantheprice/refactord/pkg/codec"
	"github.com/alantheprice/refactord/pkg/llm"
)

// Strategy names reported in PlanResult.Strategy.
const (
	StrategySorted         = "sorted"
	StrategyReasoning      = "reasoning"
	StrategySortedFallback = "sorted-fallback"
)

// Input is what a strategy sees. Candidates are sorted, unique and valid.
type Input struct {
	Request    *PlanRequest
	Candidates []string
	Seed       int64
}

// Strategy picks targets from the candidate set.
type Strategy interface {
	Name() string
	Select(ctx context.Context, in Input) ([]Target, error)
}

// DefaultReason is used when a strategy has nothing more specific to say.
func DefaultReason(path string) string {
	return fmt.Sprintf("Refactor recommended for %s", path)
}

// SortedStrategy selects every candidate in lexicographic order.
type SortedStrategy struct{}

func (SortedStrategy) Name() string { return StrategySorted }

func (SortedStrategy) Select(_ context.Context, in Input) ([]Target, error) {
	targets := make([]Target, 0, len(in.Candidates))
	for _, p := range in.Candidates {
		targets = append(targets, Target{Path: p, Reason: DefaultReason(p)})
	}
	return targets, nil
}

// ReasonInput is the context handed to a Reasoner.
type ReasonInput = llm.SelectInput

// Reasoner proposes relevant files with reasons. Its output is untrusted.
type Reasoner interface {
	SelectFiles(ctx context.Context, in ReasonInput) (map[string]string, error)
}

// ReasoningStrategy asks a Reasoner which candidates matter. Proposals outside
// the candidate set are dropped.
type ReasoningStrategy struct {
	Reasoner Reasoner
	// OnDropped, when set, receives the number of proposals that were not
	// candidates.
	OnDropped func(n int)
}

func (ReasoningStrategy) Name() string { return StrategyReasoning }

func (s ReasoningStrategy) Select(ctx context.Context, in Input) ([]Target, error) {
	if s.Reasoner == nil {
		return nil, fmt.Errorf("reasoning strategy has no reasoner")
	}
	candidates := make(map[string]bool, len(in.Candidates))
	for _, c := range in.Candidates {
		candidates[c] = true
	}

	skeletons := make([]llm.SkeletonText, 0, len(in.Request.Skeletons))
	for _, sk := range in.Request.Skeletons {
		if !candidates[sk.Path] {
			continue
		}
		text, err := codec.Decode(sk.Path, sk.Content)
		if err != nil {
			continue
		}
		skeletons = append(skeletons, llm.SkeletonText{Path: sk.Path, Content: text})
	}

	proposed, err := s.Reasoner.SelectFiles(ctx, ReasonInput{
		RequestID:   in.Request.RequestID,
		Instruction: in.Request.Instruction,
		Skeletons:   skeletons,
		Seed:        in.Seed,
	})
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(proposed))
	dropped := 0
	for p, reason := range proposed {
		if !candidates[p] {
			dropped++
			continue
		}
		if reason == "" {
			reason = DefaultReason(p)
		}
		targets = append(targets, Target{Path: p, Reason: reason})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Path < targets[j].Path })
	if dropped > 0 && s.OnDropped != nil {
		s.OnDropped(dropped)
	}
	return targets, nil
}
