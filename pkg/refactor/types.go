// Package refactor runs the per-file generate, normalize and diff pipeline
// for a batch of files.
package refactor

import (
	"encoding/json"

	"github.com/alantheprice/refactord/pkg/research"
)

// Target is one file to refactor. Content is base64-encoded.
type Target struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ResearchConstraints bound the reference search done per file.
type ResearchConstraints struct {
	MaxSources     int      `json:"max_sources"`
	AllowedSources []string `json:"allowed_sources"`
}

// UnmarshalJSON accepts max_papers as an alias of max_sources.
func (c *ResearchConstraints) UnmarshalJSON(data []byte) error {
	var raw struct {
		MaxSources     *int     `json:"max_sources"`
		MaxPapers      *int     `json:"max_papers"`
		AllowedSources []string `json:"allowed_sources"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.AllowedSources = raw.AllowedSources
	c.MaxSources = 0
	switch {
	case raw.MaxSources != nil:
		c.MaxSources = *raw.MaxSources
	case raw.MaxPapers != nil:
		c.MaxSources = *raw.MaxPapers
	}
	return nil
}

func (c ResearchConstraints) toolConstraints() research.Constraints {
	return research.Constraints{MaxSources: c.MaxSources, AllowedSources: c.AllowedSources}
}

// BatchRequest asks for a set of files to be refactored.
type BatchRequest struct {
	RequestID     string              `json:"request_id"`
	WorkspaceRoot string              `json:"workspace_root,omitempty"`
	Instruction   string              `json:"instruction,omitempty"`
	Targets       []Target            `json:"target_files"`
	Research      ResearchConstraints `json:"research_constraints"`
	DryRun        bool                `json:"dry_run"`
}

// Result is the outcome for one file. Digests are taken over exactly the
// texts that were diffed.
type Result struct {
	Path            string              `json:"path"`
	OrigDigest      string              `json:"orig_digest"`
	NewDigest       string              `json:"new_digest"`
	Diff            string              `json:"diff"`
	NewContent      string              `json:"new_content"`
	NormalizationOK bool                `json:"normalization_ok"`
	Error           string              `json:"error,omitempty"`
	ErrorCode       string              `json:"error_code,omitempty"`
	Citations       []research.Citation `json:"citations,omitempty"`
}

// Succeeded reports whether the file went through the whole pipeline cleanly.
func (r Result) Succeeded() bool {
	return r.ErrorCode == ""
}

// Changed reports whether the compared texts differ.
func (r Result) Changed() bool {
	return r.Succeeded() && r.OrigDigest != r.NewDigest
}

// Outcome labels the result for metrics and logs.
func (r Result) Outcome() string {
	switch {
	case r.ErrorCode != "":
		return r.ErrorCode
	case r.OrigDigest == r.NewDigest:
		return "unchanged"
	default:
		return "changed"
	}
}

// Batch is the response to a BatchRequest. Results follow input order.
type Batch struct {
	RequestID   string   `json:"request_id"`
	Results     []Result `json:"results"`
	Branch      string   `json:"branch,omitempty"`
	BatchDigest string   `json:"batch_digest,omitempty"`
}
