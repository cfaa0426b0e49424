// Package app wires configuration into a ready pipeline. Both binaries
// build on it.
package app

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/config"
	"github.com/agenthands/intake/internal/core"
	"github.com/agenthands/intake/internal/core/community"
	"github.com/agenthands/intake/internal/driver"
	"github.com/agenthands/intake/internal/llm"
	"github.com/agenthands/intake/internal/notify"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Repo     driver.Repository
	Pipeline *core.Pipeline
	Ingestor *core.Ingestor

	closers []func() error
}

// NewLogger builds a production logger, or a development one when
// log.development is set.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// New opens the store, builds the classifier and notifiers, and assembles
// the pipeline. Notifiers that fail to connect are logged and skipped.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := driver.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Repo: repo}

	detector, err := community.NewDetector(cfg.CaseDetection)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	client, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	var classifier core.Classifier
	if client != nil {
		classifier = llm.NewClassifier(client, cfg.LLM.Prompt)
		logger.Info("classifying with llm", zap.String("provider", cfg.LLM.Provider), zap.String("model", cfg.LLM.Model))
	}
	if c, ok := client.(*llm.GeminiClient); ok {
		a.closers = append(a.closers, c.Close)
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithPatterns(cfg.Patterns),
		core.WithRoster(cfg.Roster),
		core.WithCaseDetector(detector),
	}
	if n := a.notifiers(); len(n) > 0 {
		opts = append(opts, core.WithNotifier(n))
	}

	a.Pipeline = core.NewPipeline(repo, opts...)
	a.Ingestor = core.NewIngestor(repo, classifier, logger)
	return a, nil
}

func (a *App) notifiers() notify.Multi {
	var out notify.Multi
	if url := a.Config.Broker.URL; url != "" {
		p, err := notify.NewPublisher(url, a.Config.Broker.Exchange, a.Logger)
		if err != nil {
			a.Logger.Warn("amqp notifications disabled", zap.Error(err))
		} else {
			out = append(out, p)
			a.closers = append(a.closers, p.Close)
		}
	}
	if s := a.Config.Slack; s.BotToken != "" && s.ChannelID != "" {
		out = append(out, notify.NewSlackNotifier(s.BotToken, s.ChannelID))
	}
	return out
}

func (a *App) Close(ctx context.Context) error {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	return a.Repo.Close(ctx)
}
