package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeScope/internal/config"
	"stakeScope/internal/ledger"
	"stakeScope/internal/metrics"
	"stakeScope/internal/replay"
	"stakeScope/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
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

	m := metrics.Noop()
	if cfg.MetricsAddr != "" {
		m = metrics.NewPrometheus()
		shutdown := serveMetrics(cfg.MetricsAddr, m.Handler(), logger)
		defer shutdown()
	}

	svc := ledger.NewService(be.store, ledger.Options{
		Logger:       logger,
		Metrics:      m,
		MaxRetries:   cfg.Store.MaxRetries,
		RetryBackoff: cfg.Store.RetryBackoff,
	})

	var state replay.StateStore
	switch {
	case cfg.StateFile != "":
		input, err := filepath.Abs(cfg.Input)
		if err != nil {
			return err
		}
		state = &replay.FileStateStore{Path: cfg.StateFile, Input: input}
	case be.state != nil:
		state = &replay.DBStateStore{Backend: be.state, Name: cfg.StateName}
	}

	var sink storage.SnapshotSink
	if cfg.Snapshots != "" {
		snapshots := storage.NewJsonlSnapshots(cfg.Snapshots)
		defer func() {
			if err := snapshots.Close(); err != nil {
				logger.Warn("close snapshots", zap.Error(err))
			}
		}()
		sink = snapshots
	}

	runner := replay.NewRunner(replay.Config{
		InputPath: cfg.Input,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
	}, svc, sink, state, m, logger)

	sum, err := runner.Run(ctx)
	if err != nil {
		logger.Error("replay failed", zap.Error(err), zap.Uint64("last_block", sum.LastBlock))
		return err
	}

	if cfg.Store.Kind == config.StoreMemory {
		pools, err := be.listPools(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), pools)
	}
	return nil
}

// serveMetrics exposes handler on addr and returns a shutdown func.
func serveMetrics(addr string, handler http.Handler, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
}
