package main

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"stakeScope/internal/config"
	"stakeScope/internal/ledger"
	"stakeScope/internal/model"
	"stakeScope/internal/replay"
	"stakeScope/internal/storage/postgres"
	"stakeScope/internal/storage/redis"
)

// backend bundles a ledger store with what the commands need around it.
type backend struct {
	store ledger.Store
	// state is nil for the memory store.
	state     replay.NamedStateBackend
	listPools func(ctx context.Context) ([]model.PoolRecord, error)
	close     func()
}

func openBackend(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*backend, error) {
	switch cfg.Kind {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &backend{store: store, state: store, listPools: store.ListPools, close: store.Close}, nil
	case config.StoreRedis:
		store, err := redis.NewStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				logger.Warn("close redis", zap.Error(err))
			}
		}
		return &backend{store: store, state: store, listPools: store.ListPools, close: closeFn}, nil
	default:
		store := ledger.NewMemoryStore()
		listPools := func(context.Context) ([]model.PoolRecord, error) {
			pools := store.Pools()
			sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
			return pools, nil
		}
		return &backend{store: store, listPools: listPools, close: func() {}}, nil
	}
}
