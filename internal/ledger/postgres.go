package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pricehound/pricehound/internal/crawler"
)

//go:embed schema.sql
var schemaSQL string

const (
	selectDealForUpdateSQL = `
SELECT id, lowest_price
FROM deals
WHERE product_name = $1
ORDER BY created_at
LIMIT 1
FOR UPDATE`

	insertDealSQL = `
INSERT INTO deals (id, product_name, lowest_price, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (product_name) DO NOTHING`

	insertHistorySQL = `
INSERT INTO price_history (id, deal_id, price_in_cents, url, merchant, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	updateLowestSQL = `
UPDATE deals
SET lowest_price = $1, updated_at = $2
WHERE id = $3`

	selectDealSQL = `
SELECT id, product_name, lowest_price, currency, created_at, updated_at
FROM deals
WHERE product_name = $1
ORDER BY created_at
LIMIT 1`

	selectHistorySQL = `
SELECT id, deal_id, price_in_cents, url, merchant, created_at
FROM price_history
WHERE deal_id = $1
ORDER BY created_at`
)

// pgxPool is the slice of pgxpool.Pool the ledger uses; pgxmock satisfies
// it in tests.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// idGenerator produces entity IDs.
type idGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// PostgresLedger implements crawler.Ledger on a pgx connection pool. Each
// Record call is one transaction; failures roll all of it back so a deal
// never exists without its history row or vice versa.
type PostgresLedger struct {
	pool     pgxPool
	ids      idGenerator
	clock    crawler.Clock
	currency string
	logger   *zap.Logger
}

// NewPostgresLedger connects a pool and pings it so connectivity problems
// surface at startup.
func NewPostgresLedger(
	ctx context.Context,
	dsn string,
	ids idGenerator,
	clock crawler.Clock,
	currency string,
	logger *zap.Logger,
) (*PostgresLedger, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newLedger(pool, ids, clock, currency, logger)
}

// NewWithPool constructs a ledger from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(
	pool pgxPool,
	ids idGenerator,
	clock crawler.Clock,
	currency string,
	logger *zap.Logger,
) (*PostgresLedger, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return newLedger(pool, ids, clock, currency, logger)
}

func newLedger(pool pgxPool, ids idGenerator, clock crawler.Clock, currency string, logger *zap.Logger) (*PostgresLedger, error) {
	if ids == nil || clock == nil {
		return nil, errors.New("id generator and clock are required")
	}
	if currency == "" {
		currency = "EUR"
	}
	return &PostgresLedger{
		pool:     pool,
		ids:      ids,
		clock:    clock,
		currency: currency,
		logger:   logger,
	}, nil
}

// Close releases the pool.
func (l *PostgresLedger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}

// EnsureSchema creates the deals and price_history tables when absent.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schemaSQL); err != nil {
		return &crawler.StoreError{Op: "ensure schema", Err: err}
	}
	return nil
}

// Ping reports store connectivity, used by the readiness probe.
func (l *PostgresLedger) Ping(ctx context.Context) error {
	if err := l.pool.Ping(ctx); err != nil {
		return &crawler.StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Record implements crawler.Ledger. It finds or creates the deal for the
// product name, appends the history row unconditionally, and lowers the
// deal's lowest price when the observation is non-nil and strictly lower.
func (l *PostgresLedger) Record(ctx context.Context, rec crawler.PriceRecord) (crawler.RecordOutcome, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return crawler.RecordOutcome{}, &crawler.StoreError{Op: "begin", Err: err}
	}
	defer func() {
		// No-op after a successful commit.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			l.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	now := l.clock.Now()

	var (
		dealID uuid.UUID
		lowest *int64
	)
	err = tx.QueryRow(ctx, selectDealForUpdateSQL, rec.ProductName).Scan(&dealID, &lowest)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		dealID, err = l.ids.NewRawID()
		if err != nil {
			return crawler.RecordOutcome{}, &crawler.StoreError{Op: "generate deal id", Err: err}
		}
		// First observation for this product: the observed price, null or
		// not, seeds the lowest price. Concurrent merchant pipelines can
		// race here; the unique index on product_name makes the insert a
		// no-op for the loser, who then adopts the winner's row.
		tag, execErr := tx.Exec(ctx, insertDealSQL,
			dealID, rec.ProductName, rec.PriceInCents, l.currency, now, now)
		if execErr != nil {
			return crawler.RecordOutcome{}, &crawler.StoreError{Op: "insert deal", Err: execErr}
		}
		if tag.RowsAffected() == 0 {
			if err := tx.QueryRow(ctx, selectDealForUpdateSQL, rec.ProductName).Scan(&dealID, &lowest); err != nil {
				return crawler.RecordOutcome{}, &crawler.StoreError{Op: "reselect deal", Err: err}
			}
		} else {
			lowest = rec.PriceInCents
		}
	case err != nil:
		return crawler.RecordOutcome{}, &crawler.StoreError{Op: "select deal", Err: err}
	}

	historyID, err := l.ids.NewRawID()
	if err != nil {
		return crawler.RecordOutcome{}, &crawler.StoreError{Op: "generate history id", Err: err}
	}
	if _, err := tx.Exec(ctx, insertHistorySQL,
		historyID, dealID, rec.PriceInCents, rec.SourceURL, rec.Merchant, now); err != nil {
		return crawler.RecordOutcome{}, &crawler.StoreError{Op: "insert history", Err: err}
	}

	newLowest := false
	if rec.PriceInCents != nil && (lowest == nil || *rec.PriceInCents < *lowest) {
		if _, err := tx.Exec(ctx, updateLowestSQL, *rec.PriceInCents, now, dealID); err != nil {
			return crawler.RecordOutcome{}, &crawler.StoreError{Op: "update lowest price", Err: err}
		}
		lowest = rec.PriceInCents
		newLowest = true
	}

	if err := tx.Commit(ctx); err != nil {
		return crawler.RecordOutcome{}, &crawler.StoreError{Op: "commit", Err: err}
	}

	return crawler.RecordOutcome{
		DealID:      dealID,
		NewLowest:   newLowest,
		LowestPrice: lowest,
	}, nil
}

// GetDeal returns the tracked deal for a product name.
func (l *PostgresLedger) GetDeal(ctx context.Context, productName string) (Deal, error) {
	var d Deal
	err := l.pool.QueryRow(ctx, selectDealSQL, productName).Scan(
		&d.ID, &d.ProductName, &d.LowestPrice, &d.Currency, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deal{}, ErrDealNotFound
	}
	if err != nil {
		return Deal{}, &crawler.StoreError{Op: "select deal", Err: err}
	}
	return d, nil
}

// History returns a deal's observations, oldest first.
func (l *PostgresLedger) History(ctx context.Context, dealID uuid.UUID) ([]PriceHistory, error) {
	rows, err := l.pool.Query(ctx, selectHistorySQL, dealID)
	if err != nil {
		return nil, &crawler.StoreError{Op: "select history", Err: err}
	}
	defer rows.Close()

	var out []PriceHistory
	for rows.Next() {
		var h PriceHistory
		if err := rows.Scan(&h.ID, &h.DealID, &h.PriceInCents, &h.URL, &h.Merchant, &h.CreatedAt); err != nil {
			return nil, &crawler.StoreError{Op: "scan history", Err: err}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &crawler.StoreError{Op: "iterate history", Err: err}
	}
	return out, nil
}
