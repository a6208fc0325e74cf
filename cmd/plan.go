package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/alantheprice/refactord/pkg/filediscovery"
	"github.com/alantheprice/refactord/pkg/planner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type planOptions struct {
	Dir              string
	Instruction      string
	MaxSkeletonBytes int
	SkeletonLines    int
	RequestID        string
}

var planOpts planOptions

var planCmd = &cobra.Command{
	Use:   "plan <dir>",
	Short: "Plan target files for a local directory",
	Long: `Walk a directory (respecting .gitignore and .refactord/ignore), build
the file tree and skeletons, and print the plan as JSON.

Examples:
  refactord plan .
  refactord plan ./service --instruction "extract the retry logic" --skeleton-lines 30`,
	Args: cobra.ExactArgs(1),
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

		opts := planOpts
		opts.Dir = args[0]
		return runPlan(cmd.Context(), a, opts, cmd.OutOrStdout())
	},
}

func init() {
	planCmd.Flags().StringVar(&planOpts.Instruction, "instruction", "", "refactoring goal passed to the planner")
	planCmd.Flags().IntVar(&planOpts.MaxSkeletonBytes, "max-skeleton-bytes", 0, "skeleton budget in encoded bytes (default: no limit)")
	planCmd.Flags().IntVar(&planOpts.SkeletonLines, "skeleton-lines", filediscovery.DefaultSkeletonLines, "leading lines of each file sent as its skeleton")
	planCmd.Flags().StringVar(&planOpts.RequestID, "request-id", "", "request id (default: random UUID)")
}

func runPlan(ctx context.Context, a *app, opts planOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ws, err := filediscovery.Scan(opts.Dir, filediscovery.Options{
		SkeletonLines: opts.SkeletonLines,
		Ignore:        a.cfg.Planner.Ignore,
		Logger:        a.logger,
	})
	if err != nil {
		return err
	}

	budget := opts.MaxSkeletonBytes
	if budget <= 0 {
		budget = max(ws.SkeletonBytes(), 1)
	}
	req := &planner.PlanRequest{
		RequestID:        requestIDOrNew(opts.RequestID),
		WorkspaceRoot:    ws.Root,
		FileTree:         ws.FileTree,
		Skeletons:        ws.Skeletons,
		MaxSkeletonBytes: budget,
		Instruction:      opts.Instruction,
	}
	res, err := a.planner.Plan(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func requestIDOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
