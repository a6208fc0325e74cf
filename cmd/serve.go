package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alantheprice/refactord/pkg/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the planning and refactoring API.

Endpoints:
  POST /plan              plan target files from a file tree and skeletons
  POST /refactor          refactor a batch of files
  GET  /refactor/stream   websocket variant of /refactor, one frame per file
  GET  /health            liveness
  GET  /metrics           Prometheus counters`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Options{
			Planner:        a.planner,
			Orchestrator:   a.orchestrator,
			Metrics:        a.metrics,
			Logger:         a.logger,
			RequestTimeout: cfg.Timeouts.Request,
		})
		return srv.ListenAndServe(ctx, cfg.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config addr)")
}
