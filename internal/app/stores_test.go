package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEvaluator/config"
	"tradeEvaluator/internal/adapters/sqlite"
	"tradeEvaluator/internal/analytics"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/evaluation"
)

func TestOpenStores_SQLite(t *testing.T) {
	cfg := &config.Config{
		DBPath:             filepath.Join(t.TempDir(), "evaluations.db"),
		BarStore:           config.StoreSQLite,
		EvaluationStore:    config.StoreSQLite,
		EvaluationInterval: "1m",
		Loop:               evaluation.DefaultLoopConfig(),
		AmbiguityPolicy:    analytics.ExcludeAmbiguous,
	}
	log := &mockLogger{}

	stores, err := OpenStores(context.Background(), cfg, log)
	require.NoError(t, err)
	defer stores.Close()

	assert.IsType(t, &sqlite.Repository{}, stores.Bars)
	assert.IsType(t, &sqlite.Repository{}, stores.Evaluations)
	assert.Contains(t, log.infoMsgs, "Stores opened")

	tester, err := NewTesterFromConfig(cfg, stores, log)
	require.NoError(t, err)

	result, err := tester.Run(context.Background(), testSymbol("1h"), domain.KindSetup)
	require.NoError(t, err)
	assert.Empty(t, result.Evaluations)

	require.NoError(t, stores.Close())
	assert.NoError(t, stores.Close())
}
