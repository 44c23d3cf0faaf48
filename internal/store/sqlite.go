package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"jupitor/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ OrderStore = (*SQLiteStore)(nil)
var _ PositionStore = (*SQLiteStore)(nil)
var _ SignalStore = (*SQLiteStore)(nil)
var _ MorphStore = (*SQLiteStore)(nil)

// SQLiteStore implements OrderStore, PositionStore, SignalStore, and
// MorphStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS morph_checkpoints (
	symbol      TEXT    NOT NULL,
	granularity TEXT    NOT NULL,
	layer       TEXT    NOT NULL,
	last_bar_ts INTEGER NOT NULL,
	state       BLOB    NOT NULL,
	PRIMARY KEY (symbol, granularity, layer)
);

CREATE TABLE IF NOT EXISTS orders (
	id               TEXT    PRIMARY KEY,
	symbol           TEXT    NOT NULL,
	side             TEXT    NOT NULL,
	type             TEXT    NOT NULL,
	status           TEXT    NOT NULL,
	qty              REAL    NOT NULL,
	price            REAL    NOT NULL,
	filled_qty       REAL    NOT NULL,
	filled_avg_price REAL    NOT NULL,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	symbol          TEXT PRIMARY KEY,
	qty             REAL NOT NULL,
	side            TEXT NOT NULL,
	avg_entry_price REAL NOT NULL,
	market_value    REAL NOT NULL,
	unrealized_pl   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_id TEXT    NOT NULL,
	symbol      TEXT    NOT NULL,
	type        TEXT    NOT NULL,
	strength    REAL    NOT NULL,
	metadata    TEXT    NOT NULL,
	created_at  INTEGER NOT NULL
)`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// SaveOrder inserts a new order into the database.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, symbol, side, type, status, qty, price, filled_qty, filled_avg_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Symbol, order.Side, order.Type, order.Status,
		order.Qty, order.Price, order.FilledQty, order.FilledAvgPrice,
		order.CreatedAt.UnixMilli(), order.UpdatedAt.UnixMilli())
	return err
}

// GetOrder retrieves a single order by its ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, side, type, status, qty, price, filled_qty, filled_avg_price, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return order, err
}

// ListOrders returns all orders matching the given status.
func (s *SQLiteStore) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, type, status, qty, price, filled_qty, filled_avg_price, created_at, updated_at
		FROM orders WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateOrder persists changes to an existing order.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, order *domain.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET symbol = ?, side = ?, type = ?, status = ?, qty = ?, price = ?,
			filled_qty = ?, filled_avg_price = ?, updated_at = ?
		WHERE id = ?`,
		order.Symbol, order.Side, order.Type, order.Status, order.Qty, order.Price,
		order.FilledQty, order.FilledAvgPrice, order.UpdatedAt.UnixMilli(), order.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store: order %s not found", order.ID)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var createdAt, updatedAt int64
	if err := row.Scan(&o.ID, &o.Symbol, &o.Side, &o.Type, &o.Status,
		&o.Qty, &o.Price, &o.FilledQty, &o.FilledAvgPrice, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	o.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &o, nil
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

// SavePosition inserts or updates a position for a symbol.
func (s *SQLiteStore) SavePosition(ctx context.Context, pos *domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (symbol, qty, side, avg_entry_price, market_value, unrealized_pl)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			qty = excluded.qty,
			side = excluded.side,
			avg_entry_price = excluded.avg_entry_price,
			market_value = excluded.market_value,
			unrealized_pl = excluded.unrealized_pl`,
		pos.Symbol, pos.Qty, pos.Side, pos.AvgEntryPrice, pos.MarketValue, pos.UnrealizedPL)
	return err
}

// GetPosition retrieves the current position for a symbol.
func (s *SQLiteStore) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, qty, side, avg_entry_price, market_value, unrealized_pl
		FROM positions WHERE symbol = ?`, symbol)
	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return pos, err
}

// ListPositions returns all open positions.
func (s *SQLiteStore) ListPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, qty, side, avg_entry_price, market_value, unrealized_pl
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// DeletePosition removes the position for a symbol.
func (s *SQLiteStore) DeletePosition(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var p domain.Position
	if err := row.Scan(&p.Symbol, &p.Qty, &p.Side, &p.AvgEntryPrice, &p.MarketValue, &p.UnrealizedPL); err != nil {
		return nil, err
	}
	return &p, nil
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// SaveSignal inserts a new signal into the database.
func (s *SQLiteStore) SaveSignal(ctx context.Context, signal *domain.Signal) error {
	metadata, err := json.Marshal(signal.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal signal metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (strategy_id, symbol, type, strength, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		signal.StrategyID, signal.Symbol, signal.Type, signal.Strength, string(metadata), signal.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	signal.ID = id
	return nil
}

// ListSignals returns the most recent signals for a strategy, up to limit.
func (s *SQLiteStore) ListSignals(ctx context.Context, strategyID string, limit int) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy_id, symbol, type, strength, metadata, created_at
		FROM signals WHERE strategy_id = ? ORDER BY created_at DESC LIMIT ?`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var metadata string
		var createdAt int64
		if err := rows.Scan(&sig.ID, &sig.StrategyID, &sig.Symbol, &sig.Type, &sig.Strength, &metadata, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metadata), &sig.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal signal metadata: %w", err)
		}
		sig.CreatedAt = time.UnixMilli(createdAt).UTC()
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// ---------------------------------------------------------------------------
// MorphStore implementation
// ---------------------------------------------------------------------------

// SaveCheckpoint inserts or replaces the checkpoint row for
// (cp.Symbol, cp.Granularity, cp.Layer).
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp MorphCheckpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO morph_checkpoints (symbol, granularity, layer, last_bar_ts, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol, granularity, layer) DO UPDATE SET
			last_bar_ts = excluded.last_bar_ts,
			state       = excluded.state`,
		cp.Symbol, cp.Granularity, cp.Layer, cp.LastBarTS.UnixMilli(), cp.State)
	return err
}

// LoadCheckpoint returns the checkpoint for (symbol, granularity, layer), or
// (nil, nil) if none has been saved.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, symbol, granularity, layer string) (*MorphCheckpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT last_bar_ts, state FROM morph_checkpoints
		WHERE symbol = ? AND granularity = ? AND layer = ?`,
		symbol, granularity, layer)

	var lastBarTS int64
	var state []byte
	switch err := row.Scan(&lastBarTS, &state); err {
	case nil:
		return &MorphCheckpoint{
			Symbol:      symbol,
			Granularity: granularity,
			Layer:       layer,
			LastBarTS:   time.UnixMilli(lastBarTS).UTC(),
			State:       state,
		}, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}
