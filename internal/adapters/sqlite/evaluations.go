package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

const evaluationColumns = `id, type, entry_id, exit_id, symbol, side,
	entry_price, exit_price, stop_price, close_price,
	highest_price, lowest_price, highest_entry_price, lowest_entry_price,
	highest_price_to_lowest_exit, lowest_price_to_highest_exit,
	entry_timestamp, exit_timestamp,
	is_entry_price_valid, is_exit_price_valid, is_stopped, is_closed, is_ambiguous,
	realized_roi, highest_roi, lowest_roi, created_at, updated_at`

// UpsertEvaluation inserts the evaluation or updates the row with the same
// (type, entry, exit) key. The creation time of an existing row is kept.
func (r *Repository) UpsertEvaluation(ctx context.Context, e *domain.Evaluation) (*domain.Evaluation, error) {
	if e == nil {
		return nil, fmt.Errorf("evaluation is nil: %w", ports.ErrInvalidArgument)
	}
	const query = `
	INSERT INTO evaluations (type, entry_id, exit_id, symbol, side,
		entry_price, exit_price, stop_price, close_price,
		highest_price, lowest_price, highest_entry_price, lowest_entry_price,
		highest_price_to_lowest_exit, lowest_price_to_highest_exit,
		entry_timestamp, exit_timestamp,
		is_entry_price_valid, is_exit_price_valid, is_stopped, is_closed, is_ambiguous,
		realized_roi, highest_roi, lowest_roi, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (type, entry_id, exit_id) DO UPDATE SET
		symbol = excluded.symbol, side = excluded.side,
		entry_price = excluded.entry_price, exit_price = excluded.exit_price,
		stop_price = excluded.stop_price, close_price = excluded.close_price,
		highest_price = excluded.highest_price, lowest_price = excluded.lowest_price,
		highest_entry_price = excluded.highest_entry_price, lowest_entry_price = excluded.lowest_entry_price,
		highest_price_to_lowest_exit = excluded.highest_price_to_lowest_exit,
		lowest_price_to_highest_exit = excluded.lowest_price_to_highest_exit,
		entry_timestamp = excluded.entry_timestamp, exit_timestamp = excluded.exit_timestamp,
		is_entry_price_valid = excluded.is_entry_price_valid, is_exit_price_valid = excluded.is_exit_price_valid,
		is_stopped = excluded.is_stopped, is_closed = excluded.is_closed, is_ambiguous = excluded.is_ambiguous,
		realized_roi = excluded.realized_roi, highest_roi = excluded.highest_roi, lowest_roi = excluded.lowest_roi,
		updated_at = excluded.updated_at`

	now := toMillis(r.now())
	_, err := r.db.ExecContext(ctx, query,
		string(e.Type), e.EntryID, e.ExitID, e.Symbol, string(e.Side),
		nullFloat(e.EntryPrice), nullFloat(e.ExitPrice), nullFloat(e.StopPrice), nullFloat(e.ClosePrice),
		e.HighestPrice, e.LowestPrice, nullFloat(e.HighestEntryPrice), nullFloat(e.LowestEntryPrice),
		nullFloat(e.HighestPriceToLowestExit), nullFloat(e.LowestPriceToHighestExit),
		nullMillis(e.EntryTimestamp), nullMillis(e.ExitTimestamp),
		e.IsEntryPriceValid, e.IsExitPriceValid, e.IsStopped, e.IsClosed, e.IsAmbiguous,
		nullFloat(e.RealizedROI), nullFloat(e.HighestROI), nullFloat(e.LowestROI), now, now,
	)
	if err != nil {
		err = fmt.Errorf("failed to upsert evaluation %s %d->%d: %w", e.Type, e.EntryID, e.ExitID, err)
		r.logger.Error(ctx, err, "Database error")
		return nil, err
	}

	const lookup = `SELECT ` + evaluationColumns + ` FROM evaluations
	WHERE type = ? AND entry_id = ? AND exit_id = ?`
	stored, err := scanEvaluation(r.db.QueryRowContext(ctx, lookup, string(e.Type), e.EntryID, e.ExitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation %s %d->%d vanished after upsert: %w", e.Type, e.EntryID, e.ExitID, ports.ErrUpdateFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read back evaluation: %w", err)
	}
	r.logger.Debug(ctx, "Evaluation saved", map[string]interface{}{
		"evaluationID": stored.ID,
		"entryID":      stored.EntryID,
		"exitID":       stored.ExitID,
	})
	return stored, nil
}

// FindEvaluationsWithExit returns evaluations of kind whose exit is exitID, ordered by ID.
func (r *Repository) FindEvaluationsWithExit(ctx context.Context, kind domain.IntentKind, exitID int64) ([]*domain.Evaluation, error) {
	const query = `SELECT ` + evaluationColumns + ` FROM evaluations
	WHERE type = ? AND exit_id = ? ORDER BY id ASC`
	return r.queryEvaluations(ctx, query, string(kind), exitID)
}

// FindEvaluations returns the evaluations of symbol and kind ordered by entry timestamp.
// Evaluations that never entered sort first.
func (r *Repository) FindEvaluations(ctx context.Context, symbol string, kind domain.IntentKind) ([]*domain.Evaluation, error) {
	const query = `SELECT ` + evaluationColumns + ` FROM evaluations
	WHERE symbol = ? AND type = ? ORDER BY entry_timestamp ASC, id ASC`
	return r.queryEvaluations(ctx, query, symbol, string(kind))
}

func (r *Repository) queryEvaluations(ctx context.Context, query string, args ...interface{}) ([]*domain.Evaluation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	evaluations := make([]*domain.Evaluation, 0)
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evaluations = append(evaluations, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluation rows: %w", err)
	}
	return evaluations, nil
}

// scanEvaluation scans a row into a domain.Evaluation struct.
func scanEvaluation(s scanner) (*domain.Evaluation, error) {
	e := &domain.Evaluation{}
	var kind, side string
	var entryPrice, exitPrice, stopPrice, closePrice sql.NullFloat64
	var highestEntry, lowestEntry, highestToLowest, lowestToHighest sql.NullFloat64
	var realized, highestROI, lowestROI sql.NullFloat64
	var entryTS, exitTS sql.NullInt64
	var createdAt, updatedAt int64

	err := s.Scan(
		&e.ID, &kind, &e.EntryID, &e.ExitID, &e.Symbol, &side,
		&entryPrice, &exitPrice, &stopPrice, &closePrice,
		&e.HighestPrice, &e.LowestPrice, &highestEntry, &lowestEntry,
		&highestToLowest, &lowestToHighest,
		&entryTS, &exitTS,
		&e.IsEntryPriceValid, &e.IsExitPriceValid, &e.IsStopped, &e.IsClosed, &e.IsAmbiguous,
		&realized, &highestROI, &lowestROI, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Type = domain.IntentKind(kind)
	e.Side = domain.Side(side)
	e.EntryPrice = floatFromNull(entryPrice)
	e.ExitPrice = floatFromNull(exitPrice)
	e.StopPrice = floatFromNull(stopPrice)
	e.ClosePrice = floatFromNull(closePrice)
	e.HighestEntryPrice = floatFromNull(highestEntry)
	e.LowestEntryPrice = floatFromNull(lowestEntry)
	e.HighestPriceToLowestExit = floatFromNull(highestToLowest)
	e.LowestPriceToHighestExit = floatFromNull(lowestToHighest)
	e.EntryTimestamp = timeFromNull(entryTS)
	e.ExitTimestamp = timeFromNull(exitTS)
	e.RealizedROI = floatFromNull(realized)
	e.HighestROI = floatFromNull(highestROI)
	e.LowestROI = floatFromNull(lowestROI)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}
