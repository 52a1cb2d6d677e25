// Package replay applies a JSONL stream of stake events to the ledger.
//
// Events must be ordered by block. They are grouped into batches that end on
// a block boundary; within a batch each pool's events run in input order on
// one worker while different pools run in parallel. The checkpoint moves only
// after a whole batch is committed.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"stakeScope/internal/metrics"
	"stakeScope/internal/model"
	"stakeScope/internal/storage"
)

var ErrUnordered = errors.New("events not ordered by block")

// Applier commits one event. ledger.Service implements it.
type Applier interface {
	Apply(ctx context.Context, ev model.StakeEvent) (model.Snapshot, error)
}

// Config controls replay behavior.
type Config struct {
	InputPath string
	BatchSize int
	Workers   int
}

// Summary reports what a run did.
type Summary struct {
	Total     int
	Applied   int
	Skipped   int
	NoStaked  int
	Batches   int
	LastBlock uint64
}

type Runner struct {
	cfg     Config
	applier Applier
	sink    storage.SnapshotSink
	state   StateStore
	metrics metrics.Metrics
	logger  *zap.Logger
}

func NewRunner(cfg Config, applier Applier, sink storage.SnapshotSink, state StateStore, m metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = storage.Discard{}
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &Runner{
		cfg:     cfg,
		applier: applier,
		sink:    sink,
		state:   state,
		metrics: m,
		logger:  logger,
	}
}

type indexedEvent struct {
	line int
	pos  int
	ev   model.StakeEvent
}

// Run replays the input file from the last checkpoint.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if r.applier == nil {
		return sum, fmt.Errorf("applier is nil")
	}
	if r.cfg.InputPath == "" {
		return sum, fmt.Errorf("input path is required")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 1000
	}
	if r.cfg.Workers <= 0 {
		r.cfg.Workers = 4
	}

	cp, resumed, err := r.loadState(ctx)
	if err != nil {
		return sum, err
	}
	if resumed {
		r.logger.Info("resume from checkpoint", zap.Uint64("last_block", cp.Block), zap.Int("last_line", cp.Line))
	}

	file, err := os.Open(r.cfg.InputPath)
	if err != nil {
		return sum, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	workers := pond.NewPool(r.cfg.Workers)
	defer workers.StopAndWait()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]indexedEvent, 0, r.cfg.BatchSize)
	var lastBlock uint64
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		sum.Total++

		var ev model.StakeEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return sum, fmt.Errorf("decode event at line %d: %w", lineNo, err)
		}
		if ev.Block < lastBlock {
			return sum, fmt.Errorf("%w: line %d has block %d after block %d", ErrUnordered, lineNo, ev.Block, lastBlock)
		}
		lastBlock = ev.Block

		if resumed && lineNo == cp.Line && ev.Block != cp.Block {
			return sum, fmt.Errorf("%w: line %d has block %d, checkpoint ended at block %d", ErrCheckpointMismatch, lineNo, ev.Block, cp.Block)
		}
		if resumed && ev.Block <= cp.Block {
			sum.Skipped++
			continue
		}

		if len(batch) >= r.cfg.BatchSize && ev.Block > batch[len(batch)-1].ev.Block {
			if err := r.flush(ctx, workers, batch, &sum); err != nil {
				return sum, err
			}
			batch = batch[:0]
		}
		batch = append(batch, indexedEvent{line: lineNo, pos: len(batch), ev: ev})
	}

	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("scan input: %w", err)
	}

	if len(batch) > 0 {
		if err := r.flush(ctx, workers, batch, &sum); err != nil {
			return sum, err
		}
	}

	r.logger.Info("replay complete",
		zap.Int("total", sum.Total),
		zap.Int("applied", sum.Applied),
		zap.Int("skipped", sum.Skipped),
		zap.Int("no_staked", sum.NoStaked),
		zap.Int("batches", sum.Batches),
		zap.Uint64("last_block", sum.LastBlock),
	)
	return sum, nil
}

func (r *Runner) loadState(ctx context.Context) (Checkpoint, bool, error) {
	if r.state == nil {
		return Checkpoint{}, false, nil
	}
	cp, ok, err := r.state.Load(ctx)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("load state: %w", err)
	}
	return cp, ok, nil
}

// flush applies one batch, writes its snapshots in input order and saves the
// checkpoint.
func (r *Runner) flush(ctx context.Context, workers pond.Pool, batch []indexedEvent, sum *Summary) error {
	start := time.Now()
	snaps := make([]model.Snapshot, len(batch))

	group := workers.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, events := range groupByPool(batch) {
		group.SubmitErr(func() error {
			for _, ie := range events {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				snap, err := r.applier.Apply(groupCtx, ie.ev)
				if err != nil {
					return fmt.Errorf("apply %s at line %d: %w", ie.ev.Kind, ie.line, err)
				}
				snaps[ie.pos] = snap
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := r.sink.PutSnapshots(snaps); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}

	tail := batch[len(batch)-1]
	last := tail.ev.Block
	if r.state != nil {
		if err := r.state.Save(ctx, Checkpoint{Block: last, Line: tail.line}); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}

	for _, snap := range snaps {
		if snap.NoStaked {
			sum.NoStaked++
		}
	}
	sum.Applied += len(batch)
	sum.Batches++
	sum.LastBlock = last

	elapsed := time.Since(start)
	r.metrics.ObserveBatch(elapsed, len(batch))
	r.logger.Info("batch complete",
		zap.Int("events", len(batch)),
		zap.Uint64("from", batch[0].ev.Block),
		zap.Uint64("to", last),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// groupByPool splits a batch per pool, keeping input order inside each group
// and ordering groups by first appearance.
func groupByPool(batch []indexedEvent) [][]indexedEvent {
	index := make(map[string]int)
	var groups [][]indexedEvent
	for _, ie := range batch {
		key := strings.ToLower(strings.TrimSpace(ie.ev.PoolID))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ie)
	}
	return groups
}
