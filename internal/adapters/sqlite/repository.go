package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeEvaluator/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Compile-time interface checks.
var (
	_ ports.BarRepository        = (*Repository)(nil)
	_ ports.BarWriter            = (*Repository)(nil)
	_ ports.SavePointRepository  = (*Repository)(nil)
	_ ports.IntentRepository     = (*Repository)(nil)
	_ ports.EvaluationRepository = (*Repository)(nil)
)

// Repository implements the bar, save point, intent and evaluation repositories using SQLite.
// Timestamps are stored as Unix milliseconds.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/evaluations.db"
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS symbols (
		name TEXT NOT NULL,
		exchange TEXT NOT NULL,
		interval TEXT NOT NULL,
		last_update INTEGER NULL,
		PRIMARY KEY (name, exchange, interval)
	);

	CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		t INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, interval, t)
	);

	CREATE TABLE IF NOT EXISTS bindings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		field TEXT NOT NULL,
		UNIQUE (name, field)
	);

	CREATE TABLE IF NOT EXISTS save_points (
		binding_id INTEGER NOT NULL REFERENCES bindings (id),
		t INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (binding_id, t)
	);

	CREATE TABLE IF NOT EXISTS intents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		interval TEXT NOT NULL,
		side TEXT NOT NULL,
		t INTEGER NOT NULL,
		price_date INTEGER NOT NULL,
		price REAL NOT NULL,
		stop_price REAL NOT NULL DEFAULT 0,
		close_price REAL NOT NULL DEFAULT 0,
		size REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS intent_bindings (
		intent_id INTEGER NOT NULL REFERENCES intents (id),
		field TEXT NOT NULL,
		binding_id INTEGER NOT NULL REFERENCES bindings (id),
		PRIMARY KEY (intent_id, field)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		entry_id INTEGER NOT NULL,
		exit_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NULL,
		exit_price REAL NULL,
		stop_price REAL NULL,
		close_price REAL NULL,
		highest_price REAL NOT NULL DEFAULT 0,
		lowest_price REAL NOT NULL DEFAULT 0,
		highest_entry_price REAL NULL,
		lowest_entry_price REAL NULL,
		highest_price_to_lowest_exit REAL NULL,
		lowest_price_to_highest_exit REAL NULL,
		entry_timestamp INTEGER NULL,
		exit_timestamp INTEGER NULL,
		is_entry_price_valid INTEGER NOT NULL DEFAULT 0,
		is_exit_price_valid INTEGER NOT NULL DEFAULT 0,
		is_stopped INTEGER NOT NULL DEFAULT 0,
		is_closed INTEGER NOT NULL DEFAULT 0,
		is_ambiguous INTEGER NOT NULL DEFAULT 0,
		realized_roi REAL NULL,
		highest_roi REAL NULL,
		lowest_roi REAL NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (type, entry_id, exit_id)
	);

	CREATE INDEX IF NOT EXISTS idx_intents_symbol_kind_t ON intents (symbol, exchange, interval, kind, t);
	CREATE INDEX IF NOT EXISTS idx_evaluations_exit ON evaluations (type, exit_id);
	CREATE INDEX IF NOT EXISTS idx_evaluations_symbol ON evaluations (symbol, type, entry_timestamp);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeFromNull(ms sql.NullInt64) time.Time {
	if !ms.Valid {
		return time.Time{}
	}
	return fromMillis(ms.Int64)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatFromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
