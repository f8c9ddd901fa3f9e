// internal/models/license_asset.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LicenseAsset is the rentable base asset. Its terms are immutable after
// creation; only the active-renter counter moves.
type LicenseAsset struct {
	BaseModel
	CreatorID           uuid.UUID `json:"creator_id" gorm:"type:uuid;not null;index"`
	CreatorName         string    `json:"creator_name" gorm:"size:255;not null"`
	MetadataLink        string    `json:"metadata_link" gorm:"size:512;not null"`
	RentalPrice         int64     `json:"rental_price" gorm:"not null"`
	RoyaltyRate         int64     `json:"royalty_rate" gorm:"not null"`
	RentalPeriodSeconds int64     `json:"rental_period_seconds" gorm:"not null"`
	TotalSupply         int64     `json:"total_supply" gorm:"not null"`
	ActiveRenters       int64     `json:"active_renters" gorm:"not null;default:0"`

	// Relationships
	Creator User           `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Rentals []RentalRecord `json:"rentals,omitempty" gorm:"foreignKey:AssetID"`
}

// RentalRecord is keyed by (asset, renter). Active must be reconciled against
// ExpiresAt before being trusted; readers go through the license service.
type RentalRecord struct {
	BaseModel
	AssetID   uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex:idx_rentals_asset_renter"`
	RenterID  uuid.UUID `json:"renter_id" gorm:"type:uuid;not null;uniqueIndex:idx_rentals_asset_renter"`
	Active    bool      `json:"active" gorm:"not null;default:false;index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`

	// Relationships
	Asset  LicenseAsset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
	Renter User         `json:"renter,omitempty" gorm:"foreignKey:RenterID"`
}

// PoolBinding records the one-shot wiring of a registry to the reward pool.
type PoolBinding struct {
	BaseModel
	Registry string    `json:"registry" gorm:"size:50;not null;uniqueIndex"`
	PoolID   uuid.UUID `json:"pool_id" gorm:"type:uuid;not null"`
	BoundBy  uuid.UUID `json:"bound_by" gorm:"type:uuid;not null"`
}

const (
	RegistryLicense    = "license"
	RegistryDerivative = "derivative"
)
