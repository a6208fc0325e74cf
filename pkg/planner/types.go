// Package planner selects the files of a workspace that a refactoring
// instruction should touch.
package planner

import (
	"encoding/json"
)

// Version is reported in every plan.
const Version = "1.0.0"

const (
	KindFile = "file"
	KindDir  = "dir"
)

// FileTreeEntry is one node of the client's file tree snapshot.
type FileTreeEntry struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

// UnmarshalJSON accepts either "kind" or "type" for the node kind.
func (e *FileTreeEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path string `json:"path"`
		Kind string `json:"kind"`
		Type string `json:"type"`
		Size int64  `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Path = raw.Path
	e.Size = raw.Size
	e.Kind = raw.Kind
	if e.Kind == "" {
		e.Kind = raw.Type
	}
	if e.Kind == "directory" {
		e.Kind = KindDir
	}
	return nil
}

// IsDir reports whether the entry is a directory.
func (e FileTreeEntry) IsDir() bool {
	return e.Kind == KindDir
}

// Skeleton is a truncated, base64-encoded preview of one file.
type Skeleton struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// PlanRequest is the input to Plan.
type PlanRequest struct {
	RequestID        string          `json:"request_id"`
	WorkspaceRoot    string          `json:"workspace_root"`
	FileTree         []FileTreeEntry `json:"file_tree"`
	Skeletons        []Skeleton      `json:"skeletons"`
	MaxSkeletonBytes int             `json:"max_skeleton_bytes"`
	Instruction      string          `json:"instruction,omitempty"`
}

// Target is a selected file and why it was selected.
type Target struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// PlanResult is the outcome of planning.
type PlanResult struct {
	RequestID          string   `json:"request_id"`
	TargetFiles        []Target `json:"target_files"`
	PlannerVersion     string   `json:"planner_version"`
	Seed               int64    `json:"seed"`
	EstimatedTokenCost int      `json:"estimated_token_cost"`
	Strategy           string   `json:"strategy"`
}

// SkeletonBytes sums the transmitted (encoded) lengths of the skeletons.
func (r *PlanRequest) SkeletonBytes() int {
	total := 0
	for _, s := range r.Skeletons {
		total += len(s.Content)
	}
	return total
}
