package postgres

import (
	"context"
	"fmt"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// EvaluationStore is a PostgreSQL implementation of ports.EvaluationRepository.
// Upserts are atomic on the (type, entry_id, exit_id) key, so several
// evaluators may write to the same store.
type EvaluationStore struct {
	pool *Pool
}

// NewEvaluationStore creates a new PostgreSQL evaluation store.
func NewEvaluationStore(pool *Pool) *EvaluationStore {
	return &EvaluationStore{pool: pool}
}

// Compile-time interface check.
var _ ports.EvaluationRepository = (*EvaluationStore)(nil)

const evaluationColumns = `id, type, entry_id, exit_id, symbol, side,
	entry_price, exit_price, stop_price, close_price,
	highest_price, lowest_price, highest_entry_price, lowest_entry_price,
	highest_price_to_lowest_exit, lowest_price_to_highest_exit,
	entry_timestamp, exit_timestamp,
	is_entry_price_valid, is_exit_price_valid, is_stopped, is_closed, is_ambiguous,
	realized_roi, highest_roi, lowest_roi, created_at, updated_at`

// UpsertEvaluation inserts or updates the evaluation and returns the stored row.
func (s *EvaluationStore) UpsertEvaluation(ctx context.Context, e *domain.Evaluation) (*domain.Evaluation, error) {
	if e == nil {
		return nil, fmt.Errorf("evaluation is nil: %w", ports.ErrInvalidArgument)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO evaluations (type, entry_id, exit_id, symbol, side,
			entry_price, exit_price, stop_price, close_price,
			highest_price, lowest_price, highest_entry_price, lowest_entry_price,
			highest_price_to_lowest_exit, lowest_price_to_highest_exit,
			entry_timestamp, exit_timestamp,
			is_entry_price_valid, is_exit_price_valid, is_stopped, is_closed, is_ambiguous,
			realized_roi, highest_roi, lowest_roi)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (type, entry_id, exit_id) DO UPDATE
		SET symbol = EXCLUDED.symbol,
		    side = EXCLUDED.side,
		    entry_price = EXCLUDED.entry_price,
		    exit_price = EXCLUDED.exit_price,
		    stop_price = EXCLUDED.stop_price,
		    close_price = EXCLUDED.close_price,
		    highest_price = EXCLUDED.highest_price,
		    lowest_price = EXCLUDED.lowest_price,
		    highest_entry_price = EXCLUDED.highest_entry_price,
		    lowest_entry_price = EXCLUDED.lowest_entry_price,
		    highest_price_to_lowest_exit = EXCLUDED.highest_price_to_lowest_exit,
		    lowest_price_to_highest_exit = EXCLUDED.lowest_price_to_highest_exit,
		    entry_timestamp = EXCLUDED.entry_timestamp,
		    exit_timestamp = EXCLUDED.exit_timestamp,
		    is_entry_price_valid = EXCLUDED.is_entry_price_valid,
		    is_exit_price_valid = EXCLUDED.is_exit_price_valid,
		    is_stopped = EXCLUDED.is_stopped,
		    is_closed = EXCLUDED.is_closed,
		    is_ambiguous = EXCLUDED.is_ambiguous,
		    realized_roi = EXCLUDED.realized_roi,
		    highest_roi = EXCLUDED.highest_roi,
		    lowest_roi = EXCLUDED.lowest_roi,
		    updated_at = NOW()
		RETURNING `+evaluationColumns,
		string(e.Type), e.EntryID, e.ExitID, e.Symbol, string(e.Side),
		e.EntryPrice, e.ExitPrice, e.StopPrice, e.ClosePrice,
		e.HighestPrice, e.LowestPrice, e.HighestEntryPrice, e.LowestEntryPrice,
		e.HighestPriceToLowestExit, e.LowestPriceToHighestExit,
		nullTime(e.EntryTimestamp), nullTime(e.ExitTimestamp),
		e.IsEntryPriceValid, e.IsExitPriceValid, e.IsStopped, e.IsClosed, e.IsAmbiguous,
		e.RealizedROI, e.HighestROI, e.LowestROI,
	)

	stored, err := scanEvaluation(row)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("upsert evaluation %s %d->%d: %w", e.Type, e.EntryID, e.ExitID, ports.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("upsert evaluation %s %d->%d: %w", e.Type, e.EntryID, e.ExitID, err)
	}
	return stored, nil
}

// FindEvaluationsWithExit returns evaluations of kind whose exit is exitID, ordered by ID.
func (s *EvaluationStore) FindEvaluationsWithExit(ctx context.Context, kind domain.IntentKind, exitID int64) ([]*domain.Evaluation, error) {
	return s.query(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluations
		WHERE type = $1 AND exit_id = $2
		ORDER BY id ASC
	`, string(kind), exitID)
}

// FindEvaluations returns the evaluations of symbol and kind ordered by entry timestamp.
// Evaluations that never entered sort first.
func (s *EvaluationStore) FindEvaluations(ctx context.Context, symbol string, kind domain.IntentKind) ([]*domain.Evaluation, error) {
	return s.query(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluations
		WHERE symbol = $1 AND type = $2
		ORDER BY entry_timestamp ASC NULLS FIRST, id ASC
	`, symbol, string(kind))
}

func (s *EvaluationStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Evaluation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []*domain.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		evaluations = append(evaluations, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evaluations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*domain.Evaluation, error) {
	var e domain.Evaluation
	var kind, side string
	var entryTS, exitTS *time.Time

	err := row.Scan(
		&e.ID, &kind, &e.EntryID, &e.ExitID, &e.Symbol, &side,
		&e.EntryPrice, &e.ExitPrice, &e.StopPrice, &e.ClosePrice,
		&e.HighestPrice, &e.LowestPrice, &e.HighestEntryPrice, &e.LowestEntryPrice,
		&e.HighestPriceToLowestExit, &e.LowestPriceToHighestExit,
		&entryTS, &exitTS,
		&e.IsEntryPriceValid, &e.IsExitPriceValid, &e.IsStopped, &e.IsClosed, &e.IsAmbiguous,
		&e.RealizedROI, &e.HighestROI, &e.LowestROI, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Type = domain.IntentKind(kind)
	e.Side = domain.Side(side)
	e.EntryTimestamp = timeOrZero(entryTS)
	e.ExitTimestamp = timeOrZero(exitTS)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
