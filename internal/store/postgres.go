package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/limitidx/internal/order"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS limit_orders (
	id               TEXT PRIMARY KEY,
	maker_address    TEXT NOT NULL,
	taker_address    TEXT NOT NULL,
	maker_asset      TEXT NOT NULL,
	taker_asset      TEXT NOT NULL,
	maker_amount     NUMERIC(78, 0) NOT NULL,
	taker_amount     NUMERIC(78, 0) NOT NULL,
	expiration       NUMERIC(78, 0) NOT NULL,
	remaining_amount NUMERIC(78, 0),
	updates_count    BIGINT NOT NULL CHECK (updates_count >= 1)
);

CREATE INDEX IF NOT EXISTS idx_limit_orders_maker ON limit_orders (maker_address);

CREATE TABLE IF NOT EXISTS limitidx_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const postgresSelect = `
	SELECT id, maker_address, taker_address, maker_asset, taker_asset,
	       maker_amount::text, taker_amount::text, expiration::text,
	       remaining_amount::text, updates_count
	FROM limit_orders`

// Postgres is a RecordStore on PostgreSQL.
// Amounts are NUMERIC(78,0), wide enough for any uint256.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ RecordStore = (*Postgres)(nil)
	_ Lister      = (*Postgres)(nil)
)

// OpenPostgres connects to dsn, creates the schema and checks the identity
// scheme.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO limitidx_meta (key, value) VALUES ('identity_scheme', $1)
		ON CONFLICT (key) DO NOTHING
	`, order.IdentityScheme)
	if err != nil {
		return fmt.Errorf("record identity scheme: %w", err)
	}

	var stored string
	err = p.pool.QueryRow(ctx, `SELECT value FROM limitidx_meta WHERE key = 'identity_scheme'`).Scan(&stored)
	if err != nil {
		return fmt.Errorf("read identity scheme: %w", err)
	}
	if stored != order.IdentityScheme {
		return &SchemeMismatchError{Stored: stored, Want: order.IdentityScheme}
	}
	return nil
}

// Load returns the record stored under key.
func (p *Postgres) Load(ctx context.Context, key string) (order.Record, bool, error) {
	rec, err := scanRecord(p.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Record{}, false, nil
	}
	if err != nil {
		return order.Record{}, false, p.unavailable("load", key, err)
	}
	return rec, true, nil
}

// Save writes rec under key.
//
// The update only applies when the stored row is the direct predecessor, so
// two racing inserts of a new id cannot both report success.
func (p *Postgres) Save(ctx context.Context, key string, rec order.Record) error {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO limit_orders
		(id, maker_address, taker_address, maker_asset, taker_asset,
		 maker_amount, taker_amount, expiration, remaining_amount, updates_count)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::text,
		       $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::bigint
		WHERE $10::bigint = 1 OR EXISTS (SELECT 1 FROM limit_orders WHERE id = $1::text)
		ON CONFLICT (id) DO UPDATE SET
			remaining_amount = excluded.remaining_amount,
			updates_count    = excluded.updates_count
		WHERE limit_orders.updates_count = excluded.updates_count - 1
	`,
		rec.ID,
		rec.MakerAddress,
		rec.TakerAddress,
		rec.MakerAsset,
		rec.TakerAsset,
		amountText(rec.MakerAmount),
		amountText(rec.TakerAmount),
		amountText(rec.Expiration),
		nullableAmount(rec.RemainingAmount),
		int64(rec.UpdatesCount),
	)
	if err != nil {
		return p.unavailable("save", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save %s: %w: version %d not applicable", key, ErrConflict, rec.UpdatesCount)
	}
	return nil
}

// List returns up to limit records ordered by key. limit <= 0 means no limit.
func (p *Postgres) List(ctx context.Context, limit int) ([]order.Record, error) {
	query := postgresSelect + ` ORDER BY id COLLATE "C"`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, p.unavailable("list", "", err)
	}
	defer rows.Close()

	records := []order.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, p.unavailable("list", "", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, p.unavailable("list", "", err)
	}
	return records, nil
}

func (p *Postgres) unavailable(op, key string, err error) error {
	return &UnavailableError{Backend: "postgres", Op: op, Key: key, Err: err}
}
