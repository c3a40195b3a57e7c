package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/limitidx/internal/config"
	"github.com/roach88/limitidx/internal/source"
	"github.com/roach88/limitidx/internal/store"
)

// Backend is a record store the CLI can close.
type Backend interface {
	store.RecordStore
	Close() error
}

// StoreOpener constructs the configured record store.
type StoreOpener func(ctx context.Context, cfg config.StoreConfig) (Backend, error)

// SourceOpener constructs the configured event source.
type SourceOpener func(ctx context.Context, cfg config.SourceConfig, stdin io.Reader, logger *slog.Logger) (source.Source, error)

// memoryBackend lets the in-memory store satisfy Backend.
type memoryBackend struct {
	*store.Memory
}

func (memoryBackend) Close() error { return nil }

// OpenStore opens the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return backend(store.Open(cfg.Path))
	case config.DriverBadger:
		return backend(store.OpenBadger(cfg.Path))
	case config.DriverPostgres:
		return backend(store.OpenPostgres(ctx, cfg.DSN))
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r, err := store.NewRedis(ctx, client, cfg.Redis.Prefix)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return r, nil
	case config.DriverMemory:
		return memoryBackend{store.NewMemory()}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// backend avoids handing back a typed nil inside a non-nil interface.
func backend[B Backend](b B, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// OpenSource opens the source named by cfg.Kind.
func OpenSource(ctx context.Context, cfg config.SourceConfig, stdin io.Reader, logger *slog.Logger) (source.Source, error) {
	switch cfg.Kind {
	case config.SourceFile:
		if cfg.File == "-" {
			return source.NewJSONL("stdin", io.NopCloser(stdin)), nil
		}
		return opened(source.OpenJSONL(cfg.File))

	case config.SourceKafka:
		return opened(source.NewKafka(source.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.Group,
		}))

	case config.SourceEth:
		client, err := ethclient.DialContext(ctx, cfg.Eth.URL)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.Eth.URL, err)
		}
		var from *big.Int
		if cfg.Eth.FromBlock > 0 {
			from = new(big.Int).SetUint64(cfg.Eth.FromBlock)
		}
		logs, err := source.NewLogs(ctx, client, source.LogsConfig{
			Contract:  common.HexToAddress(cfg.Eth.Contract),
			FromBlock: from,
			Logger:    logger,
		})
		if err != nil {
			client.Close()
			return nil, err
		}
		return &clientSource{Source: logs, close: client.Close}, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func opened[S source.Source](s S, err error) (source.Source, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// clientSource closes a node client after its subscription.
type clientSource struct {
	source.Source
	close func()
}

func (s *clientSource) Close() error {
	err := s.Source.Close()
	s.close()
	return err
}

func (o *RootOptions) openStore(ctx context.Context) (Backend, error) {
	open := o.Stores
	if open == nil {
		open = OpenStore
	}
	return open(ctx, o.cfg.Store)
}

func (o *RootOptions) openSource(ctx context.Context) (source.Source, error) {
	open := o.Sources
	if open == nil {
		open = OpenSource
	}
	return open(ctx, o.cfg.Source, o.stdin(), o.logger)
}
