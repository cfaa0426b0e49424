package server

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/core"
)

// ErrNoSchedule is returned by Schedule when spec is empty.
var ErrNoSchedule = eris.New("no schedule configured")

// Schedule runs the full pipeline on a standard 5-field cron spec, e.g.
// "*/15 * * * *". The returned cron is already started.
func Schedule(spec string, p *core.Pipeline, logger *zap.Logger) (*cron.Cron, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, ErrNoSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	_, err := c.AddFunc(spec, func() {
		sum, err := p.Run(context.Background())
		if err != nil {
			logger.Error("scheduled run failed", zap.Error(err))
			return
		}
		logger.Info("scheduled run complete", zap.String("run", sum.RunID), zap.Int("processed", sum.Processed))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "invalid schedule %q", spec)
	}

	c.Start()
	logger.Info("pipeline scheduled", zap.String("cron", spec))
	return c, nil
}
