package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/limitidx/internal/order"
)

// Redis is a RecordStore on a Redis server.
//
// Each record is a JSON string under "<prefix>order:<id>". A sorted set
// "<prefix>orders" with every member at score 0 indexes the ids in
// lexicographic order for List. Saves use WATCH/MULTI so two writers racing
// on one key cannot both succeed.
type Redis struct {
	client *redis.Client
	prefix string
}

var (
	_ RecordStore = (*Redis)(nil)
	_ Lister      = (*Redis)(nil)
)

// NewRedis wraps client and verifies the identity scheme under prefix.
func NewRedis(ctx context.Context, client *redis.Client, prefix string) (*Redis, error) {
	r := &Redis{client: client, prefix: prefix}

	schemeKey := prefix + "meta:identity_scheme"
	if err := client.SetNX(ctx, schemeKey, order.IdentityScheme, 0).Err(); err != nil {
		return nil, r.unavailable("open", "", err)
	}
	stored, err := client.Get(ctx, schemeKey).Result()
	if err != nil {
		return nil, r.unavailable("open", "", err)
	}
	if stored != order.IdentityScheme {
		return nil, &SchemeMismatchError{Stored: stored, Want: order.IdentityScheme}
	}
	return r, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Load returns the record stored under key.
func (r *Redis) Load(ctx context.Context, key string) (order.Record, bool, error) {
	data, err := r.client.Get(ctx, r.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return order.Record{}, false, nil
	}
	if err != nil {
		return order.Record{}, false, r.unavailable("load", key, err)
	}

	rec, err := unmarshalRecord(data)
	if err != nil {
		return order.Record{}, false, r.unavailable("load", key, err)
	}
	return rec, true, nil
}

// Save writes rec under key inside an optimistic transaction.
func (r *Redis) Save(ctx context.Context, key string, rec order.Record) error {
	rk := r.recordKey(key)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var (
			prev  order.Record
			found bool
		)
		data, err := tx.Get(ctx, rk).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return r.unavailable("save", key, err)
		default:
			if prev, err = unmarshalRecord(data); err != nil {
				return r.unavailable("save", key, err)
			}
			found = true
		}

		if err := checkVersion(prev.UpdatesCount, found, rec.UpdatesCount); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}

		next := rec
		if found {
			next = writeOnce(prev, rec)
		}
		payload, err := marshalRecord(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, payload, 0)
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: 0, Member: key})
			return nil
		})
		return err
	}, rk)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("save %s: %w", key, ErrConflict)
	case errors.Is(err, ErrConflict), IsUnavailable(err):
		return err
	default:
		return r.unavailable("save", key, err)
	}
}

// List returns up to limit records ordered by key. limit <= 0 means no limit.
func (r *Redis) List(ctx context.Context, limit int) ([]order.Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, r.unavailable("list", "", err)
	}

	records := make([]order.Record, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, r.unavailable("list", "", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // deleted out of band
		}
		rec, err := unmarshalRecord([]byte(s))
		if err != nil {
			return nil, r.unavailable("list", ids[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Redis) recordKey(id string) string {
	return r.prefix + "order:" + id
}

func (r *Redis) indexKey() string {
	return r.prefix + "orders"
}

func (r *Redis) unavailable(op, key string, err error) error {
	return &UnavailableError{Backend: "redis", Op: op, Key: key, Err: err}
}
