// internal/models/pool.go
package models

import (
	"github.com/google/uuid"
)

// PoolState is the reward pool singleton. Balance is the currency the pool
// holds; LastDistributedBalance is the slice of it already accounted for in
// AccRewardsPerShare, so Balance - LastDistributedBalance is always the
// not-yet-distributed inflow (including integer-division remainders that
// roll into the next distribution).
type PoolState struct {
	BaseModel
	TokensStaked           int64  `json:"tokens_staked" gorm:"not null;default:0"`
	AccRewardsPerShare     BigInt `json:"acc_rewards_per_share" gorm:"type:text;not null;default:'0'"`
	Balance                int64  `json:"balance" gorm:"not null;default:0"`
	LastDistributedBalance int64  `json:"last_distributed_balance" gorm:"not null;default:0"`
	InflowEventCount       int64  `json:"inflow_event_count" gorm:"not null;default:0"`
}

// StakePosition is keyed by (staker, asset). RewardDebt equals
// amount x AccRewardsPerShare as of the last settle, which is what keeps a
// late joiner from claiming rewards accrued before they staked.
type StakePosition struct {
	BaseModel
	StakerID   uuid.UUID `json:"staker_id" gorm:"type:uuid;not null;uniqueIndex:idx_stake_staker_asset"`
	AssetID    uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex:idx_stake_staker_asset"`
	Amount     int64     `json:"amount" gorm:"not null;default:0"`
	RewardDebt BigInt    `json:"reward_debt" gorm:"type:text;not null;default:'0'"`

	// Relationships
	Staker User `json:"staker,omitempty" gorm:"foreignKey:StakerID"`
}
