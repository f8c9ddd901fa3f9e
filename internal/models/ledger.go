// internal/models/ledger.go
package models

import (
	"github.com/google/uuid"
)

// AssetBalance is a per-(owner, asset) unit balance on the multi-asset ledger.
type AssetBalance struct {
	BaseModel
	OwnerID uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_balances_owner_asset"`
	AssetID uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex:idx_balances_owner_asset"`
	Balance int64     `json:"balance" gorm:"not null;default:0"`
}

// OperatorApproval lets a named platform operator (marketplace, reward pool)
// move assets on the owner's behalf.
type OperatorApproval struct {
	BaseModel
	OwnerID  uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_approvals_owner_operator"`
	Operator string    `json:"operator" gorm:"size:50;not null;uniqueIndex:idx_approvals_owner_operator"`
	Approved bool      `json:"approved" gorm:"not null;default:false"`
}

const (
	OperatorMarketplace = "marketplace"
	OperatorRewardPool  = "rewardpool"
)

// CurrencyAccount holds a user's platform currency in smallest units.
type CurrencyAccount struct {
	BaseModel
	UserID  uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	Balance int64     `json:"balance" gorm:"not null;default:0"`
}
