package model

// UserRecord is the stored form of one user's position in a pool.
type UserRecord struct {
	PoolID             string `json:"pool_id"`
	User               string `json:"user"`
	Staked             string `json:"staked"`
	Reward             string `json:"reward"`
	RewardDebt         string `json:"reward_debt"`
	LatestUpdatedBlock uint64 `json:"latest_updated_block"`
}
