package model

// Stake event kinds.
const (
	EventCreatePool = "create_pool"
	EventDeposit    = "deposit"
	EventWithdraw   = "withdraw"
)

// StakeEvent is one line of the replay input.
type StakeEvent struct {
	Block  uint64      `json:"block"`
	PoolID string      `json:"pool_id"`
	User   string      `json:"user,omitempty"`
	Kind   string      `json:"kind"`
	Amount string      `json:"amount,omitempty"`
	Pool   *PoolParams `json:"pool,omitempty"`
}

// PoolParams carries the creation parameters of a create_pool event.
type PoolParams struct {
	Type             string `json:"type"`
	EmissionRate     string `json:"emission_rate"`
	MaxMintable      string `json:"max_mintable"`
	StakeDecimals    uint8  `json:"stake_decimals"`
	EmissionDecimals uint8  `json:"emission_decimals"`
}
