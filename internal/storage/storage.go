package storage

import "stakeScope/internal/model"

// SnapshotSink receives the snapshots of committed events.
type SnapshotSink interface {
	PutSnapshots(snaps []model.Snapshot) error
}

// Discard drops every snapshot.
type Discard struct{}

func (Discard) PutSnapshots([]model.Snapshot) error { return nil }
