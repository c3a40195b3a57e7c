package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/limitidx/internal/order"
)

const selectColumns = `
	SELECT id, maker_address, taker_address, maker_asset, taker_asset,
	       maker_amount, taker_amount, expiration, remaining_amount, updates_count
	FROM limit_orders`

// Load returns the record stored under key.
// Returns found=false and a nil error if no record exists.
func (s *Store) Load(ctx context.Context, key string) (order.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, key)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Record{}, false, nil
	}
	if err != nil {
		return order.Record{}, false, unavailable("load", key, err)
	}
	return rec, true, nil
}

// List returns up to limit records ordered by id. limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) List(ctx context.Context, limit int) ([]order.Record, error) {
	query := selectColumns + ` ORDER BY id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list", "", err)
	}
	defer rows.Close()

	return collect(rows)
}

// ListByMaker returns every record placed by maker, ordered by id.
// maker may be given in any form NormalizeAddress accepts.
func (s *Store) ListByMaker(ctx context.Context, maker string) ([]order.Record, error) {
	addr, err := order.NormalizeAddress(maker)
	if err != nil {
		return nil, fmt.Errorf("list by maker: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE maker_address = ? ORDER BY id COLLATE BINARY ASC`, addr)
	if err != nil {
		return nil, unavailable("list", addr, err)
	}
	defer rows.Close()

	return collect(rows)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM limit_orders`).Scan(&n); err != nil {
		return 0, unavailable("count", "", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (order.Record, error) {
	var (
		rec                            order.Record
		makerAmt, takerAmt, expiration string
		remaining                      sql.NullString
	)

	err := row.Scan(
		&rec.ID,
		&rec.MakerAddress,
		&rec.TakerAddress,
		&rec.MakerAsset,
		&rec.TakerAsset,
		&makerAmt,
		&takerAmt,
		&expiration,
		&remaining,
		&rec.UpdatesCount,
	)
	if err != nil {
		return order.Record{}, err
	}

	if rec.MakerAmount, err = parseAmount(makerAmt); err != nil {
		return order.Record{}, err
	}
	if rec.TakerAmount, err = parseAmount(takerAmt); err != nil {
		return order.Record{}, err
	}
	if rec.Expiration, err = parseAmount(expiration); err != nil {
		return order.Record{}, err
	}
	if remaining.Valid {
		if rec.RemainingAmount, err = parseAmount(remaining.String); err != nil {
			return order.Record{}, err
		}
	}

	return rec, nil
}

func collect(rows *sql.Rows) ([]order.Record, error) {
	records := []order.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("list", "", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", "", fmt.Errorf("iterate records: %w", err))
	}
	return records, nil
}
