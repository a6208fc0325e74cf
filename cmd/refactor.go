package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alantheprice/refactord/pkg/codec"
	"github.com/alantheprice/refactord/pkg/diff"
	"github.com/alantheprice/refactord/pkg/refactor"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type refactorOptions struct {
	Files       []string
	Apply       bool
	RequestID   string
	Instruction string
	JSON        bool
}

var refactorOpts refactorOptions

var refactorCmd = &cobra.Command{
	Use:   "refactor <files...>",
	Short: "Refactor local files and print the diffs",
	Long: `Run the refactoring pipeline on local files. Paths are relative to the
configured workspace_root. Nothing is written unless --apply is given, in
which case changed files are committed to a new ai-refactor/ branch.

Diffs are colored when stdout is a terminal; otherwise the batch is printed
as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := refactorOpts
		opts.Files = args
		out := cmd.OutOrStdout()
		if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
			opts.JSON = true
		}
		return runRefactor(cmd.Context(), a, opts, out)
	},
}

func init() {
	refactorCmd.Flags().BoolVar(&refactorOpts.Apply, "apply", false, "commit changed files to a new branch")
	refactorCmd.Flags().StringVar(&refactorOpts.RequestID, "request-id", "", "request id (default: random UUID)")
	refactorCmd.Flags().StringVar(&refactorOpts.Instruction, "instruction", "", "refactoring goal passed to the generator")
}

func runRefactor(ctx context.Context, a *app, opts refactorOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	root := a.cfg.WorkspaceRoot
	req := &refactor.BatchRequest{
		RequestID:     requestIDOrNew(opts.RequestID),
		WorkspaceRoot: root,
		Instruction:   opts.Instruction,
		DryRun:        !opts.Apply,
	}
	for _, f := range opts.Files {
		rel := filepath.ToSlash(f)
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		req.Targets = append(req.Targets, refactor.Target{Path: rel, Content: codec.Encode(string(data))})
	}

	batch, err := a.orchestrator.Refactor(ctx, req)
	if err != nil {
		return err
	}
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	}
	printBatch(w, batch)
	return nil
}

const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

// printBatch renders each result's diff with colored added and removed lines.
func printBatch(w io.Writer, batch *refactor.Batch) {
	for _, res := range batch.Results {
		if res.Error != "" {
			fmt.Fprintf(w, "%s: %s%s%s\n", res.Path, colorRed, res.Error, colorReset)
		}
		if res.Diff == "" {
			if res.Error == "" {
				fmt.Fprintf(w, "%s: unchanged\n", res.Path)
			}
			continue
		}
		added, removed := diff.Stats(res.Diff)
		fmt.Fprintf(w, "%s: +%d -%d\n", res.Path, added, removed)
		inHunk := false
		for _, line := range strings.SplitAfter(res.Diff, "\n") {
			inHunk = inHunk || strings.HasPrefix(line, "@@")
			fmt.Fprint(w, colorize(line, inHunk))
		}
	}
	if batch.Branch != "" {
		fmt.Fprintf(w, "committed to %s\n", batch.Branch)
	}
	if batch.BatchDigest != "" {
		fmt.Fprintf(w, "batch digest %s\n", batch.BatchDigest)
	}
}

// colorize highlights one diff line. File headers only occur before the
// first hunk; inside hunks "--- " is a removed "-- " line.
func colorize(line string, inHunk bool) string {
	if line == "" {
		return ""
	}
	body := strings.TrimSuffix(line, "\n")
	nl := line[len(body):]
	switch {
	case !inHunk && (strings.HasPrefix(body, "+++ ") || strings.HasPrefix(body, "--- ")):
		return body + nl
	case strings.HasPrefix(body, "@@"):
		return colorCyan + body + colorReset + nl
	case strings.HasPrefix(body, "+"):
		return colorGreen + body + colorReset + nl
	case strings.HasPrefix(body, "-"):
		return colorRed + body + colorReset + nl
	default:
		return line
	}
}
