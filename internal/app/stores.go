package app

import (
	"context"
	"fmt"

	"tradeEvaluator/config"
	"tradeEvaluator/internal/adapters/clickhouse"
	"tradeEvaluator/internal/adapters/postgres"
	"tradeEvaluator/internal/adapters/sqlite"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/evaluation"
	"tradeEvaluator/internal/ports"
)

// BarStore reads and writes bar series.
type BarStore interface {
	ports.BarRepository
	ports.BarWriter
}

// SymbolStore records the symbols whose bars were imported.
type SymbolStore interface {
	UpsertSymbol(ctx context.Context, symbol domain.Symbol) error
}

// Stores are the repositories selected by the configuration. Intents always
// live in SQLite; bars and evaluations can be moved to ClickHouse and Postgres.
type Stores struct {
	Bars        BarStore
	SavePoints  ports.SavePointRepository
	Intents     ports.IntentRepository
	Evaluations ports.EvaluationRepository
	Symbols     SymbolStore
	Bindings    ports.BindingRepository

	closers []func() error
}

// OpenStores connects every configured backend. On failure, backends opened
// so far are closed again.
func OpenStores(ctx context.Context, cfg *config.Config, logger ports.Logger) (*Stores, error) {
	s := &Stores{}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite repository: %w", err)
	}
	s.closers = append(s.closers, repo.Close)
	s.Bars, s.SavePoints, s.Intents, s.Evaluations = repo, repo, repo, repo
	s.Symbols, s.Bindings = repo, repo

	if cfg.BarStore == config.StoreClickHouse {
		conn, err := clickhouse.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		s.closers = append(s.closers, conn.Close)
		bars := clickhouse.NewBarStore(conn)
		if err := bars.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Bars = bars
	}

	if cfg.EvaluationStore == config.StorePostgres {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			s.Close()
			return nil, err
		}
		s.SavePoints = postgres.NewSavePointStore(pool)
		s.Evaluations = postgres.NewEvaluationStore(pool)
	}

	logger.Info(ctx, "Stores opened", map[string]interface{}{
		"bars":        cfg.BarStore,
		"evaluations": cfg.EvaluationStore,
		"dbPath":      cfg.DBPath,
	})
	return s, nil
}

// Close closes the backends in reverse order and returns the first error.
func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// NewTesterFromConfig wires a Tester over the stores with the configured evaluation settings.
func NewTesterFromConfig(cfg *config.Config, stores *Stores, logger ports.Logger) (*Tester, error) {
	return NewTester(TesterConfig{
		Bars:        stores.Bars,
		SavePoints:  stores.SavePoints,
		Intents:     stores.Intents,
		Evaluations: stores.Evaluations,
		Evaluator:   evaluation.EvaluatorConfig{Interval: cfg.EvaluationInterval},
		Loop:        cfg.Loop,
		Ambiguity:   cfg.AmbiguityPolicy,
		Logger:      logger,
	})
}
