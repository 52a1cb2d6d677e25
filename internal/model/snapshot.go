package model

// Snapshot is the committed state after one applied event.
type Snapshot struct {
	Block       uint64      `json:"block"`
	Kind        string      `json:"kind"`
	Pool        PoolRecord  `json:"pool"`
	User        *UserRecord `json:"user,omitempty"`
	Credited    string      `json:"credited,omitempty"`
	NoStaked    bool        `json:"no_staked,omitempty"`
	CommittedAt string      `json:"committed_at"`
}
