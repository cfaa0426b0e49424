package driver

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/config"
)

// Open returns the repository selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryRepository(), nil

	case "sqlite":
		path := cfg.URI
		if path == "" {
			path = "intake.db"
		}
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			return nil, err
		}
		return repo, nil

	case "memgraph", "neo4j":
		uri := cfg.URI
		if uri == "" {
			uri = "bolt://localhost:7687"
		}
		d, err := NewMemgraphDriver(ctx, uri, cfg.User, cfg.Password)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to graph store", zap.String("uri", uri))
		repo := NewMemgraphRepository(d, logger)
		if err := repo.BuildIndices(ctx); err != nil {
			d.Close(ctx)
			return nil, err
		}
		return repo, nil

	default:
		return nil, eris.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
