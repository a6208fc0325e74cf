package cmd

import (
	"fmt"

	"github.com/alantheprice/refactord/pkg/config"
	"github.com/alantheprice/refactord/pkg/git"
	"github.com/alantheprice/refactord/pkg/llm"
	"github.com/alantheprice/refactord/pkg/normalize"
	"github.com/alantheprice/refactord/pkg/planner"
	"github.com/alantheprice/refactord/pkg/refactor"
	"github.com/alantheprice/refactord/pkg/research"
	"github.com/alantheprice/refactord/pkg/server"
	"github.com/alantheprice/refactord/pkg/utils"
)

// app holds the collaborators built from one configuration.
type app struct {
	cfg          *config.Config
	logger       *utils.Logger
	metrics      *server.Metrics
	planner      *planner.Planner
	orchestrator *refactor.Orchestrator
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath
	}
	return config.LoadConfig(path)
}

// newApp wires every component from cfg. logToStderr mirrors the log file
// to stderr.
func newApp(cfg *config.Config, logToStderr bool) (*app, error) {
	logger := utils.NewLogger(utils.LoggerOptions{
		File:     cfg.LogFile,
		JSON:     cfg.JSONLogs,
		ToStderr: logToStderr,
	})

	normalizer, err := buildNormalizer(cfg.Formatters)
	if err != nil {
		logger.Close()
		return nil, err
	}

	var reasoner planner.Reasoner
	var generator llm.TextGenerator = llm.StubGenerator{}
	if cfg.Generator.Provider == config.ProviderOllama {
		client := llm.NewOllamaClient(llm.OllamaOptions{
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
			MaxRetries:  *cfg.Generator.MaxRetries,
		})
		generator = client
		reasoner = client
	}

	metrics := server.NewMetrics()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		planner: planner.New(planner.Options{
			Strategy: buildStrategy(cfg, reasoner, logger),
			Ignore:   cfg.Planner.Ignore,
			Logger:   logger,
		}),
		orchestrator: refactor.New(refactor.Options{
			Generator:  generator,
			Normalizer: normalizer,
			Research:   buildResearch(cfg.Research),
			Committer: git.NewCommitter(func(root string) git.VCS {
				return git.NewClient(root)
			}, cfg.Timeouts.Commit, logger),
			Logger:          logger,
			WorkspaceRoot:   cfg.WorkspaceRoot,
			Workers:         cfg.Workers,
			DiffContext:     cfg.DiffContextLines(),
			GenerateTimeout: cfg.Timeouts.Generate,
			SearchTimeout:   cfg.Timeouts.Search,
			OnFileOutcome:   metrics.ObserveFile,
		}),
	}
	return a, nil
}

func (a *app) Close() error {
	return a.logger.Close()
}

func buildNormalizer(specs map[string][]string) (*normalize.Adapter, error) {
	formatters := make(map[string]normalize.Formatter, len(specs))
	for ext, spec := range specs {
		f, err := normalize.FromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("formatter for %s: %w", ext, err)
		}
		formatters[ext] = f
	}
	return normalize.NewAdapter(formatters), nil
}

func buildStrategy(cfg *config.Config, reasoner planner.Reasoner, logger *utils.Logger) planner.Strategy {
	if cfg.Planner.Strategy != planner.StrategyReasoning || reasoner == nil {
		return planner.SortedStrategy{}
	}
	return planner.ReasoningStrategy{
		Reasoner: reasoner,
		OnDropped: func(n int) {
			logger.LogEvent("planner_dropped_paths", map[string]any{"count": n})
		},
	}
}

func buildResearch(rc config.ResearchConfig) research.Tool {
	if rc.Provider != config.ProviderJina {
		return nil
	}
	return research.NewJina(rc.Endpoint, rc.APIKey)
}
