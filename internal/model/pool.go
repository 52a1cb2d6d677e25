package model

// PoolRecord is the stored form of a staking pool. Amounts are base-10
// integer strings. AccRewardPerShare is the accumulator mantissa, scaled by
// 10^18.
//
// StakeDecimals and EmissionDecimals are fixed when the pool is created.
type PoolRecord struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	StakeDecimals     uint8  `json:"stake_decimals"`
	EmissionDecimals  uint8  `json:"emission_decimals"`
	EmissionRate      string `json:"emission_rate"`
	TotalStaked       string `json:"total_staked"`
	MintedTotal       string `json:"minted_total"`
	MaxMintable       string `json:"max_mintable"`
	AccRewardPerShare string `json:"acc_reward_per_share"`
	LastUpdateBlock   uint64 `json:"last_update_block"`
	CreatedBlock      uint64 `json:"created_block"`
}
