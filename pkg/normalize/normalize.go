// Package normalize canonicalizes source text before it is compared.
package normalize

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Formatter is an external code formatter. It returns the formatted text or
// an error when the input is rejected (for example on a syntax error).
type Formatter interface {
	Format(ctx context.Context, text string) (string, error)
}

// FormatterFunc adapts a function to the Formatter interface.
type FormatterFunc func(ctx context.Context, text string) (string, error)

func (f FormatterFunc) Format(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Adapter selects a formatter by file extension and never lets a formatter
// failure escape as anything other than ok=false.
type Adapter struct {
	formatters map[string]Formatter
}

// NewAdapter creates an adapter. Keys of formatters are extensions including
// the dot (".py"); they are matched case-insensitively.
func NewAdapter(formatters map[string]Formatter) *Adapter {
	m := make(map[string]Formatter, len(formatters))
	for ext, f := range formatters {
		if f != nil {
			m[strings.ToLower(ext)] = f
		}
	}
	return &Adapter{formatters: m}
}

// Register adds or replaces the formatter for ext.
func (a *Adapter) Register(ext string, f Formatter) {
	a.formatters[strings.ToLower(ext)] = f
}

// HasFormatter reports whether path has a registered formatter.
func (a *Adapter) HasFormatter(path string) bool {
	_, ok := a.formatters[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Normalize returns the canonical form of text. When the formatter rejects
// the text, ok is false, err describes the rejection and text is returned
// unchanged.
func (a *Adapter) Normalize(ctx context.Context, path, text string) (canonical string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			canonical, ok, err = text, false, fmt.Errorf("formatter panic: %v", r)
		}
	}()

	base := Canonicalize(text)
	f, found := a.formatters[strings.ToLower(filepath.Ext(path))]
	if !found {
		return base, true, nil
	}
	formatted, ferr := f.Format(ctx, base)
	if ferr != nil {
		return text, false, ferr
	}
	return Canonicalize(formatted), true, nil
}

// Canonicalize applies the formatter-independent rules: Unicode NFC, LF line
// endings, no trailing whitespace on any line, and exactly one trailing
// newline for non-empty text.
func Canonicalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}
