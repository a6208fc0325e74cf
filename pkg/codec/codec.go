// Package codec converts file content between its transport encoding and raw
// text, and validates workspace-relative paths.
package codec

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DecodeError is returned when encoded content cannot be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PathTraversalError is returned for paths that could leave the workspace root.
type PathTraversalError struct {
	Path   string
	Reason string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// Decode turns base64 content into text. Invalid UTF-8 bytes are dropped
// rather than rejected.
func Decode(path, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", &DecodeError{Path: path, Err: err}
	}
	if !utf8.Valid(raw) {
		return strings.ToValidUTF8(string(raw), ""), nil
	}
	return string(raw), nil
}

// Encode is the inverse of Decode for valid UTF-8 text.
func Encode(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// hasParentSegment reports whether any slash- or backslash-separated segment
// of p is "..".
func hasParentSegment(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// ValidateRoot rejects workspace roots that contain a parent-directory segment.
func ValidateRoot(root string) error {
	if hasParentSegment(root) {
		return &PathTraversalError{Path: root, Reason: "workspace root contains a parent-directory segment"}
	}
	return nil
}

// ValidatePath checks that path is a workspace-relative path that stays within
// root. It never touches the filesystem.
func ValidatePath(path, root string) error {
	if strings.TrimSpace(path) == "" {
		return &PathTraversalError{Path: path, Reason: "empty path"}
	}
	if strings.ContainsRune(path, 0) {
		return &PathTraversalError{Path: path, Reason: "path contains NUL byte"}
	}
	if hasParentSegment(path) {
		return &PathTraversalError{Path: path, Reason: "path contains a parent-directory segment"}
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) || filepath.VolumeName(path) != "" {
		return &PathTraversalError{Path: path, Reason: "path must be relative to the workspace root"}
	}

	if root == "" {
		root = "."
	}
	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(cleanRoot, path)
	rel, err := filepath.Rel(cleanRoot, joined)
	if err != nil {
		return &PathTraversalError{Path: path, Reason: err.Error()}
	}
	// If the relative path starts with "..", it's outside the root
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &PathTraversalError{Path: path, Reason: "path escapes the workspace root"}
	}
	if rel == "." {
		return &PathTraversalError{Path: path, Reason: "path names the workspace root itself"}
	}
	return nil
}

// Resolve validates path and joins it onto root.
func Resolve(root, path string) (string, error) {
	if err := ValidatePath(path, root); err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(path)), nil
}
