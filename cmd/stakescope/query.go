package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeScope/internal/chain"
	"stakeScope/internal/config"
	"stakeScope/internal/ledger"
	"stakeScope/internal/model"
)

type queryResult struct {
	Pool    string `json:"pool"`
	User    string `json:"user"`
	Block   uint64 `json:"block,omitempty"`
	Pending string `json:"pending"`
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Pool == "" || cfg.User == "" {
		return fmt.Errorf("pool and user are required")
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	block := cfg.Block
	if block == 0 && cfg.RPCURL != "" {
		block, err = chainHead(ctx, cfg.RPCURL)
		if err != nil {
			return err
		}
		logger.Debug("query at chain head", zap.Uint64("block", block))
	}

	be, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer be.close()

	svc := ledger.NewService(be.store, ledger.Options{
		Logger:       logger,
		MaxRetries:   cfg.Store.MaxRetries,
		RetryBackoff: cfg.Store.RetryBackoff,
	})

	pending, err := svc.QueryReward(ctx, cfg.Pool, cfg.User, block)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), queryResult{
		Pool:    cfg.Pool,
		User:    cfg.User,
		Block:   block,
		Pending: pending.Dec(),
	})
}

func chainHead(ctx context.Context, rpcURL string) (uint64, error) {
	client, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	return client.LatestBlockNumber(ctx)
}

type inspectResult struct {
	Pool *model.PoolRecord `json:"pool,omitempty"`
	User *model.UserRecord `json:"user,omitempty"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer be.close()

	if cfg.Pool == "" {
		pools, err := be.listPools(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), pools)
	}

	svc := ledger.NewService(be.store, ledger.Options{Logger: logger})
	pool, err := svc.Pool(ctx, cfg.Pool)
	if err != nil {
		return err
	}
	out := inspectResult{Pool: &pool}
	if cfg.User != "" {
		user, err := svc.User(ctx, cfg.Pool, cfg.User)
		if err != nil {
			return err
		}
		out.User = &user
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
