package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func replayFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("in", "", "")
	flags.String("store", "", "")
	flags.String("pg-dsn", "", "")
	flags.Int("batch-size", 0, "")
	flags.Int("workers", 0, "")
	flags.String("state-file", "", "")
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func TestLoadReplayDefaults(t *testing.T) {
	cfg, err := LoadReplay("", replayFlags(t, "--in", "events.jsonl"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input != "events.jsonl" {
		t.Fatalf("unexpected input %q", cfg.Input)
	}
	if cfg.Store.Kind != StoreMemory {
		t.Fatalf("expected memory store, got %q", cfg.Store.Kind)
	}
	if cfg.BatchSize != 1000 || cfg.Workers != 4 {
		t.Fatalf("unexpected batch-size %d workers %d", cfg.BatchSize, cfg.Workers)
	}
	if cfg.Store.MaxRetries != 5 || cfg.Store.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected retry settings %+v", cfg.Store)
	}
	if cfg.StateName != "replay" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadReplayEnvAndFlags(t *testing.T) {
	t.Setenv("STAKESCOPE_BATCH_SIZE", "50")
	t.Setenv("STAKESCOPE_WORKERS", "9")
	t.Setenv("STAKESCOPE_STORE", "Postgres")
	t.Setenv("STAKESCOPE_PG_DSN", "postgres://localhost/stake")

	cfg, err := LoadReplay("", replayFlags(t, "--in", "e.jsonl", "--workers", "2"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 50 {
		t.Fatalf("env should set batch-size, got %d", cfg.BatchSize)
	}
	if cfg.Workers != 2 {
		t.Fatalf("flag should override env, got %d", cfg.Workers)
	}
	if cfg.Store.Kind != StorePostgres || cfg.Store.PGDSN != "postgres://localhost/stake" {
		t.Fatalf("unexpected store %+v", cfg.Store)
	}
}

func TestLoadReplayConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stakescope.yaml")
	content := "in: from-file.jsonl\nstore: redis\nredis-addr: cache:6379\nredis-db: 3\nsnapshots: out/snapshots.jsonl\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadReplay(path, replayFlags(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input != "from-file.jsonl" || cfg.Snapshots != "out/snapshots.jsonl" {
		t.Fatalf("unexpected paths %+v", cfg)
	}
	if cfg.Store.Kind != StoreRedis || cfg.Store.RedisAddr != "cache:6379" || cfg.Store.RedisDB != 3 {
		t.Fatalf("unexpected store %+v", cfg.Store)
	}
	if cfg.Store.RedisPrefix != "stakescope:" {
		t.Fatalf("unexpected redis prefix %q", cfg.Store.RedisPrefix)
	}
}

func TestLoadReplayValidation(t *testing.T) {
	if _, err := LoadReplay("", replayFlags(t)); err == nil {
		t.Fatalf("expected error without input")
	}
	if _, err := LoadReplay("", replayFlags(t, "--in", "x", "--store", "postgres")); err == nil {
		t.Fatalf("expected error without pg-dsn")
	}
	if _, err := LoadReplay("", replayFlags(t, "--in", "x", "--store", "etcd")); err == nil {
		t.Fatalf("expected error for unknown store")
	}
	if _, err := LoadReplay("", replayFlags(t, "--in", "x", "--batch-size=-1")); err == nil {
		t.Fatalf("expected error for negative batch size")
	}
	if _, err := LoadReplay("", replayFlags(t, "--in", "x", "--state-file", "state.json")); err == nil {
		t.Fatalf("expected error for state-file with the memory store")
	}
	if _, err := LoadReplay(filepath.Join(t.TempDir(), "missing.yaml"), replayFlags(t, "--in", "x")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadQuery(t *testing.T) {
	flags := pflag.NewFlagSet("query", pflag.ContinueOnError)
	flags.String("pool", "", "")
	flags.String("user", "", "")
	flags.Uint64("block", 0, "")
	if err := flags.Parse([]string{"--pool", "0xabc#1", "--user", "0x11", "--block", "120"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	t.Setenv("STAKESCOPE_RPC", "http://localhost:8545")
	t.Setenv("STAKESCOPE_STORE", "redis")

	cfg, err := LoadQuery("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pool != "0xabc#1" || cfg.User != "0x11" || cfg.Block != 120 {
		t.Fatalf("unexpected query %+v", cfg)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("unexpected rpc %q", cfg.RPCURL)
	}
}

func TestLoadReplayStateFileWithPersistentStore(t *testing.T) {
	cfg, err := LoadReplay("", replayFlags(t, "--in", "x", "--store", "postgres", "--pg-dsn", "postgres://localhost/stake", "--state-file", "state.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateFile != "state.json" {
		t.Fatalf("unexpected state file %q", cfg.StateFile)
	}
}

func TestLoadQueryRejectsMemoryStore(t *testing.T) {
	flags := pflag.NewFlagSet("query", pflag.ContinueOnError)
	flags.String("store", "", "")
	if err := flags.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	_, err := LoadQuery("", flags)
	if err == nil {
		t.Fatalf("expected error for the memory store")
	}
	if !strings.Contains(err.Error(), "use postgres or redis") {
		t.Fatalf("unexpected error %v", err)
	}
}
