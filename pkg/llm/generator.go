// Package llm adapts language-model backends to the generation and planning
// interfaces used by the orchestrator.
package llm

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

// GenerateInput is everything a generator may use to rewrite one file.
type GenerateInput struct {
	RequestID     string
	Path          string
	Content       string
	SystemContext string
	Seed          int64
}

// TextGenerator produces a candidate rewrite of a file. The candidate is not
// assumed to be syntactically valid.
type TextGenerator interface {
	Generate(ctx context.Context, in GenerateInput) (string, error)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, in GenerateInput) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, in GenerateInput) (string, error) {
	return f(ctx, in)
}

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+.-]*[ \t]*\n(.*?)\n?```")

// StripCodeFences returns the body of the first fenced code block in a model
// response, or the trimmed response when it has no fence.
func StripCodeFences(response string) string {
	if m := fencePattern.FindStringSubmatch(response); m != nil {
		return m[1] + "\n"
	}
	return strings.TrimSpace(response) + "\n"
}

// commentPrefix returns the line comment token for a file, by extension.
func commentPrefix(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".js", ".jsx", ".ts", ".tsx", ".java", ".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".rs", ".swift", ".kt", ".scala", ".php":
		return "//"
	case ".sql", ".lua", ".hs":
		return "--"
	default:
		return "#"
	}
}
