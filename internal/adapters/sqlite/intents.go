package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// SaveBinding stores a binding by (name, field) and returns it with its ID.
func (r *Repository) SaveBinding(ctx context.Context, b domain.Binding) (domain.Binding, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Binding{}, fmt.Errorf("failed to begin binding transaction: %w", err)
	}
	defer tx.Rollback()

	saved, err := saveBinding(ctx, tx, b)
	if err != nil {
		return domain.Binding{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Binding{}, fmt.Errorf("failed to commit binding: %w", err)
	}
	return saved, nil
}

func saveBinding(ctx context.Context, tx *sql.Tx, b domain.Binding) (domain.Binding, error) {
	if b.ID != 0 {
		return b, nil
	}
	if b.Name == "" || b.Field == "" {
		return domain.Binding{}, fmt.Errorf("binding needs a name and field: %w", ports.ErrInvalidArgument)
	}
	const insert = `INSERT INTO bindings (name, field) VALUES (?, ?) ON CONFLICT (name, field) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, b.Name, string(b.Field)); err != nil {
		return domain.Binding{}, fmt.Errorf("failed to insert binding %s: %w", b.Name, err)
	}
	const lookup = `SELECT id FROM bindings WHERE name = ? AND field = ?`
	if err := tx.QueryRowContext(ctx, lookup, b.Name, string(b.Field)).Scan(&b.ID); err != nil {
		return domain.Binding{}, fmt.Errorf("failed to look up binding %s: %w", b.Name, err)
	}
	return b, nil
}

// SaveIntent stores an intent with its bindings. Intents with an ID are
// replaced; others get a new ID, which is also set on the intent.
func (r *Repository) SaveIntent(ctx context.Context, intent *domain.TradeIntent) (int64, error) {
	if intent == nil {
		return 0, fmt.Errorf("intent is nil: %w", ports.ErrInvalidArgument)
	}
	if err := intent.Side.Validate(); err != nil {
		return 0, fmt.Errorf("%v: %w", err, ports.ErrInvalidArgument)
	}

	const query = `
	INSERT INTO intents (id, kind, symbol, exchange, interval, side, t, price_date, price, stop_price, close_price, size)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		kind = excluded.kind, symbol = excluded.symbol, exchange = excluded.exchange,
		interval = excluded.interval, side = excluded.side, t = excluded.t,
		price_date = excluded.price_date, price = excluded.price, stop_price = excluded.stop_price,
		close_price = excluded.close_price, size = excluded.size`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin intent transaction: %w", err)
	}
	defer tx.Rollback()

	var id sql.NullInt64
	if intent.ID != 0 {
		id = sql.NullInt64{Int64: intent.ID, Valid: true}
	}
	result, err := tx.ExecContext(ctx, query, id, string(intent.Kind), intent.Symbol.Name, intent.Symbol.Exchange,
		intent.Symbol.Interval, string(intent.Side), toMillis(intent.Timestamp), toMillis(intent.PriceDate),
		intent.Price, intent.StopPrice, intent.ClosePrice, intent.Size)
	if err != nil {
		return 0, fmt.Errorf("failed to insert intent for symbol %s: %w", intent.Symbol.Name, err)
	}

	intentID := intent.ID
	if intentID == 0 {
		if intentID, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("failed to get last insert ID for intent %s: %w", intent.Symbol.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM intent_bindings WHERE intent_id = ?`, intentID); err != nil {
		return 0, fmt.Errorf("failed to clear bindings of intent %d: %w", intentID, err)
	}
	for field, b := range intent.Bindings {
		b.Field = field
		saved, err := saveBinding(ctx, tx, b)
		if err != nil {
			return 0, err
		}
		const link = `INSERT INTO intent_bindings (intent_id, field, binding_id) VALUES (?, ?, ?)`
		if _, err := tx.ExecContext(ctx, link, intentID, string(field), saved.ID); err != nil {
			return 0, fmt.Errorf("failed to bind %s of intent %d: %w", field, intentID, err)
		}
		intent.Bindings[field] = saved
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit intent: %w", err)
	}
	intent.ID = intentID
	r.logger.Debug(ctx, "Intent saved", map[string]interface{}{"intentID": intentID, "symbol": intent.Symbol.Name, "kind": intent.Kind})
	return intentID, nil
}

// FindIntents returns the intents of symbol and kind ordered by timestamp, with their bindings.
func (r *Repository) FindIntents(ctx context.Context, symbol domain.Symbol, kind domain.IntentKind) ([]*domain.TradeIntent, error) {
	const query = `
	SELECT id, kind, symbol, exchange, interval, side, t, price_date, price, stop_price, close_price, size
	FROM intents
	WHERE symbol = ? AND exchange = ? AND interval = ? AND kind = ?
	ORDER BY t ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol.Name, symbol.Exchange, symbol.Interval, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query intents for %s: %w: %w", symbol.Name, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	intents := make([]*domain.TradeIntent, 0)
	byID := make(map[int64]*domain.TradeIntent)
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		intents = append(intents, intent)
		byID[intent.ID] = intent
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intent rows: %w", err)
	}
	rows.Close()

	if err := r.loadBindings(ctx, symbol, kind, byID); err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *Repository) loadBindings(ctx context.Context, symbol domain.Symbol, kind domain.IntentKind, byID map[int64]*domain.TradeIntent) error {
	if len(byID) == 0 {
		return nil
	}
	const query = `
	SELECT ib.intent_id, ib.field, b.id, b.name
	FROM intent_bindings ib
	JOIN bindings b ON b.id = ib.binding_id
	JOIN intents i ON i.id = ib.intent_id
	WHERE i.symbol = ? AND i.exchange = ? AND i.interval = ? AND i.kind = ?`

	rows, err := r.db.QueryContext(ctx, query, symbol.Name, symbol.Exchange, symbol.Interval, string(kind))
	if err != nil {
		return fmt.Errorf("failed to query intent bindings: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var intentID int64
		var field string
		var b domain.Binding
		if err := rows.Scan(&intentID, &field, &b.ID, &b.Name); err != nil {
			return fmt.Errorf("failed to scan intent binding: %w", err)
		}
		intent, ok := byID[intentID]
		if !ok {
			continue
		}
		b.Field = domain.PriceField(field)
		if intent.Bindings == nil {
			intent.Bindings = make(map[domain.PriceField]domain.Binding)
		}
		intent.Bindings[b.Field] = b
	}
	return rows.Err()
}

// scanIntent scans a row into a domain.TradeIntent struct.
func scanIntent(s scanner) (*domain.TradeIntent, error) {
	t := &domain.TradeIntent{}
	var kind, side string
	var ts, priceDate int64
	err := s.Scan(&t.ID, &kind, &t.Symbol.Name, &t.Symbol.Exchange, &t.Symbol.Interval, &side,
		&ts, &priceDate, &t.Price, &t.StopPrice, &t.ClosePrice, &t.Size)
	if err != nil {
		return nil, err
	}
	t.Kind = domain.IntentKind(kind)
	t.Side = domain.Side(side)
	t.Timestamp = fromMillis(ts)
	t.PriceDate = fromMillis(priceDate)
	return t, nil
}
