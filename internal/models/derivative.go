// internal/models/derivative.go
package models

import (
	"github.com/google/uuid"
)

// DerivativeTemplate is a publicly mintable derivative registered by an
// active renter of its source license asset. Rows are never deleted, so the
// name/metadata uniqueness checks reach every template ever enabled even
// after moderation disables one.
type DerivativeTemplate struct {
	BaseModel
	SourceAssetID uuid.UUID `json:"source_asset_id" gorm:"type:uuid;not null;index"`
	OwnerID       uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name          string    `json:"name" gorm:"size:255;not null;uniqueIndex"`
	MetadataLink  string    `json:"metadata_link" gorm:"size:512;not null;uniqueIndex"`
	Price         int64     `json:"price" gorm:"not null"`
	RoyaltyRate   int64     `json:"royalty_rate" gorm:"not null"`
	Enabled       bool      `json:"enabled" gorm:"not null;default:true;index"`
	MintedUnits   int64     `json:"minted_units" gorm:"not null;default:0"`

	// Relationships
	SourceAsset LicenseAsset `json:"source_asset,omitempty" gorm:"foreignKey:SourceAssetID"`
	Owner       User         `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}
