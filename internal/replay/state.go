package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCheckpointMismatch means the checkpoint was written while replaying a
// different input.
var ErrCheckpointMismatch = errors.New("checkpoint does not match input")

// Checkpoint marks the end of the last committed batch.
type Checkpoint struct {
	Block uint64
	// Line is the input line of the batch's last event. Zero when the
	// backend keeps only the block.
	Line int
}

// StateStore persists the replay checkpoint.
type StateStore interface {
	Load(ctx context.Context) (Checkpoint, bool, error)
	Save(ctx context.Context, cp Checkpoint) error
}

// FileStateStore keeps the checkpoint in a local JSON file. When Input is
// set, the file also records it and Load refuses a checkpoint taken on
// another input.
type FileStateStore struct {
	Path  string
	Input string
}

type checkpointFile struct {
	Input     string `json:"input,omitempty"`
	LastBlock uint64 `json:"last_block"`
	LastLine  int    `json:"last_line,omitempty"`
	SavedAt   string `json:"saved_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (Checkpoint, bool, error) {
	if s == nil || s.Path == "" {
		return Checkpoint{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var rec checkpointFile
	if err := json.Unmarshal(data, &rec); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", s.Path, err)
	}
	if s.Input != "" && rec.Input != "" && rec.Input != s.Input {
		return Checkpoint{}, false, fmt.Errorf("%w: %s was taken on %s, not %s", ErrCheckpointMismatch, s.Path, rec.Input, s.Input)
	}
	return Checkpoint{Block: rec.LastBlock, Line: rec.LastLine}, true, nil
}

// Save replaces the checkpoint file through a rename so a crash leaves
// either the old or the new checkpoint.
func (s *FileStateStore) Save(ctx context.Context, cp Checkpoint) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.Marshal(checkpointFile{
		Input:     s.Input,
		LastBlock: cp.Block,
		LastLine:  cp.Line,
		SavedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, s.Path)
}

// NamedStateBackend is implemented by the postgres and redis stores.
type NamedStateBackend interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, block uint64) error
}

// DBStateStore keeps the checkpoint block under Name next to the ledger, so
// the ledger and its checkpoint are restored together.
type DBStateStore struct {
	Backend NamedStateBackend
	Name    string
}

func (s *DBStateStore) Load(ctx context.Context) (Checkpoint, bool, error) {
	if s == nil || s.Backend == nil {
		return Checkpoint{}, false, nil
	}
	block, ok, err := s.Backend.LoadState(ctx, s.Name)
	return Checkpoint{Block: block}, ok, err
}

func (s *DBStateStore) Save(ctx context.Context, cp Checkpoint) error {
	if s == nil || s.Backend == nil {
		return nil
	}
	return s.Backend.SaveState(ctx, s.Name, cp.Block)
}
