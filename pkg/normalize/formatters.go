package normalize

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"os/exec"
	"strings"
)

// GoFormatter formats Go source the way gofmt does.
type GoFormatter struct{}

func (GoFormatter) Format(_ context.Context, text string) (string, error) {
	out, err := format.Source([]byte(text))
	if err != nil {
		return "", fmt.Errorf("gofmt: %w", err)
	}
	return string(out), nil
}

// CommandFormatter pipes text through an external program that reads source
// on stdin and writes the formatted source to stdout, e.g. "black -q -".
type CommandFormatter struct {
	Name string
	Args []string
}

// NewCommandFormatter builds a formatter from an argv slice.
func NewCommandFormatter(argv []string) (*CommandFormatter, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("formatter command is empty")
	}
	return &CommandFormatter{Name: argv[0], Args: argv[1:]}, nil
}

func (c *CommandFormatter) Format(ctx context.Context, text string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = strings.NewReader(text)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", c.Name, err)
		}
		return "", fmt.Errorf("%s: %w: %s", c.Name, err, msg)
	}
	return out.String(), nil
}

// Chain runs formatters in order, feeding each one's output to the next.
type Chain []Formatter

func (c Chain) Format(ctx context.Context, text string) (string, error) {
	for _, f := range c {
		out, err := f.Format(ctx, text)
		if err != nil {
			return "", err
		}
		text = out
	}
	return text, nil
}

// FromSpec builds a formatter from a configuration entry. The reserved name
// "gofmt" selects the in-process Go formatter; any other entry is a command.
// Entries separated by "|" are chained.
func FromSpec(spec []string) (Formatter, error) {
	var chain Chain
	var current []string
	flush := func() error {
		if len(current) == 0 {
			return fmt.Errorf("empty formatter stage in %v", spec)
		}
		if len(current) == 1 && current[0] == "gofmt" {
			chain = append(chain, GoFormatter{})
		} else {
			cf, err := NewCommandFormatter(current)
			if err != nil {
				return err
			}
			chain = append(chain, cf)
		}
		current = nil
		return nil
	}
	for _, arg := range spec {
		if arg == "|" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		current = append(current, arg)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}
