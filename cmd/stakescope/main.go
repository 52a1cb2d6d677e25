package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "stakescope",
		Short:        "Staking reward ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay stake events into the ledger",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input stake events JSONL")
	replayCmd.Flags().Int("batch-size", 1000, "events per batch (batches end on a block boundary)")
	replayCmd.Flags().Int("workers", 4, "pools applied in parallel")
	replayCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	replayCmd.Flags().String("state-name", "replay", "checkpoint name in the store")
	replayCmd.Flags().String("snapshots", "", "optional JSONL output of committed snapshots")
	replayCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	addStoreFlags(replayCmd)
	addLogFlags(replayCmd)

	root.AddCommand(replayCmd)

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Preview a user's pending reward",
		RunE:  runQuery,
	}

	queryCmd.Flags().String("pool", "", "pool id")
	queryCmd.Flags().String("user", "", "user address")
	queryCmd.Flags().Uint64("block", 0, "block to preview at, 0 means chain head or the pool's last update")
	queryCmd.Flags().String("rpc", "", "RPC URL used to read the chain head")
	addStoreFlags(queryCmd)
	addLogFlags(queryCmd)

	root.AddCommand(queryCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print stored pool and user records",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("pool", "", "pool id, empty lists every pool")
	inspectCmd.Flags().String("user", "", "optional user address")
	addStoreFlags(inspectCmd)
	addLogFlags(inspectCmd)

	root.AddCommand(inspectCmd)

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "memory", "ledger store (memory, postgres, redis)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	cmd.Flags().String("redis-password", "", "Redis password")
	cmd.Flags().Int("redis-db", 0, "Redis database")
	cmd.Flags().String("redis-prefix", "stakescope:", "Redis key prefix")
	cmd.Flags().Int("max-retries", 5, "maximum store retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("log-file", "", "also write logs to this file")
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}

	return cfg.Build()
}
