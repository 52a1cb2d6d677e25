package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"stakeScope/internal/model"
)

// JsonlSnapshots appends committed snapshots to a JSONL file. Each batch is
// flushed and synced before PutSnapshots returns, so the file never lags the
// replay checkpoint saved after it.
type JsonlSnapshots struct {
	path string

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

func NewJsonlSnapshots(path string) *JsonlSnapshots {
	return &JsonlSnapshots{path: path}
}

func (s *JsonlSnapshots) open() error {
	if s.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshots: %w", err)
	}
	s.file = file
	s.buf = bufio.NewWriter(file)
	s.enc = json.NewEncoder(s.buf)
	return nil
}

// PutSnapshots appends one batch in input order.
func (s *JsonlSnapshots) PutSnapshots(snaps []model.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}
	for _, snap := range snaps {
		if err := s.enc.Encode(snap); err != nil {
			return fmt.Errorf("write snapshot for %s at block %d: %w", snap.Pool.ID, snap.Block, err)
		}
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush snapshots: %w", err)
	}
	return s.file.Sync()
}

// Close releases the file. Later batches reopen it.
func (s *JsonlSnapshots) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.buf, s.enc = nil, nil, nil
	return err
}
