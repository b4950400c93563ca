package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tradeEvaluator/internal/adapters/logger"
	"tradeEvaluator/internal/analytics"
	"tradeEvaluator/internal/evaluation"
	"tradeEvaluator/internal/ports"
	"tradeEvaluator/internal/utils"
)

// Store backends.
const (
	StoreSQLite     = "sqlite"
	StoreClickHouse = "clickhouse"
	StorePostgres   = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Binance API, optional for public kline endpoints
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market
	Symbol   string
	Exchange string

	// Evaluation
	EvaluationInterval string // Fine bar interval used to reconcile trades
	Loop               evaluation.LoopConfig
	AmbiguityPolicy    analytics.AmbiguityPolicy

	// Storage
	DBPath          string
	BarStore        string // sqlite | clickhouse
	ClickHouseDSN   string
	EvaluationStore string // sqlite | postgres
	PostgresDSN     string

	// Allocation
	QuoteAsset       string
	AllocationAmount decimal.Decimal

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // text | json
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Market
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "ETHUSDT"))
	cfg.Exchange = strings.ToUpper(getEnv("EXCHANGE", "BINANCE"))

	// Evaluation
	cfg.EvaluationInterval = getEnv("EVALUATION_INTERVAL", "1m")
	if _, err := utils.IntervalDuration(cfg.EvaluationInterval); err != nil {
		errs = append(errs, fmt.Sprintf("invalid EVALUATION_INTERVAL: %v", err))
	}

	cfg.Loop = evaluation.DefaultLoopConfig()
	cfg.Loop.StopAtExit = getEnvAsBool("LOOP_STOP_AT_EXIT", cfg.Loop.StopAtExit)
	cfg.Loop.LogRiskReward = getEnvAsBool("LOOP_LOG_RISK_REWARD", cfg.Loop.LogRiskReward)
	timeoutMinutes, err := getEnvAsIntRequired("LOOP_TIMEOUT_MINUTES", int(cfg.Loop.Timeout/time.Minute))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOP_TIMEOUT_MINUTES: %v", err))
	} else if timeoutMinutes < 0 {
		errs = append(errs, "LOOP_TIMEOUT_MINUTES cannot be negative")
	} else {
		cfg.Loop.Timeout = time.Duration(timeoutMinutes) * time.Minute
	}

	cfg.AmbiguityPolicy, err = analytics.ParseAmbiguityPolicy(getEnv("AMBIGUITY_POLICY", string(analytics.ExcludeAmbiguous)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMBIGUITY_POLICY: %v", err))
	}

	// Storage
	cfg.DBPath = getEnv("DB_PATH", "./data/evaluations.db")
	cfg.BarStore = strings.ToLower(getEnv("BAR_STORE", StoreSQLite))
	cfg.ClickHouseDSN = getEnv("CLICKHOUSE_DSN", "")
	switch cfg.BarStore {
	case StoreSQLite:
	case StoreClickHouse:
		if cfg.ClickHouseDSN == "" {
			errs = append(errs, "CLICKHOUSE_DSN must be set when BAR_STORE=clickhouse")
		}
	default:
		errs = append(errs, fmt.Sprintf("BAR_STORE must be %s or %s", StoreSQLite, StoreClickHouse))
	}

	cfg.EvaluationStore = strings.ToLower(getEnv("EVALUATION_STORE", StoreSQLite))
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", "")
	switch cfg.EvaluationStore {
	case StoreSQLite:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			errs = append(errs, "POSTGRES_DSN must be set when EVALUATION_STORE=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("EVALUATION_STORE must be %s or %s", StoreSQLite, StorePostgres))
	}
	if cfg.DBPath == "" && (cfg.BarStore == StoreSQLite || cfg.EvaluationStore == StoreSQLite) {
		errs = append(errs, "DB_PATH must be set")
	}

	// Allocation
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))
	cfg.AllocationAmount, err = getEnvAsDecimal("ALLOCATION_AMOUNT", decimal.Zero)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ALLOCATION_AMOUNT: %v", err))
	} else if cfg.AllocationAmount.IsNegative() {
		errs = append(errs, "ALLOCATION_AMOUNT cannot be negative")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
