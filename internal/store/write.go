package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/limitidx/internal/order"
)

// Save writes rec under key.
//
// The version check and the write run in one transaction. On conflict only
// remaining_amount and updates_count change; identity columns are write-once.
func (s *Store) Save(ctx context.Context, key string, rec order.Record) error {
	if key != rec.ID {
		return fmt.Errorf("save %s: key does not match record id %s", key, rec.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("save", key, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	var stored uint64
	found := true
	err = tx.QueryRowContext(ctx, `SELECT updates_count FROM limit_orders WHERE id = ?`, key).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return unavailable("save", key, fmt.Errorf("read version: %w", err))
	}

	if err := checkVersion(stored, found, rec.UpdatesCount); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO limit_orders
		(id, maker_address, taker_address, maker_asset, taker_asset,
		 maker_amount, taker_amount, expiration, remaining_amount, updates_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remaining_amount = excluded.remaining_amount,
			updates_count    = excluded.updates_count
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
		rec.UpdatesCount,
	)
	if err != nil {
		return unavailable("save", key, err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("save", key, fmt.Errorf("commit: %w", err))
	}

	return nil
}
