// internal/models/marketplace.go
package models

import (
	"github.com/google/uuid"
)

// Listing offers derivative units for sale. Units are not escrowed: the
// seller's balance is only checked at listing time, and a seller who moves
// units away afterwards fails the transfer at settlement.
type Listing struct {
	BaseModel
	SellerID  uuid.UUID     `json:"seller_id" gorm:"type:uuid;not null;index"`
	AssetID   uuid.UUID     `json:"asset_id" gorm:"type:uuid;not null;index"`
	Quantity  int64         `json:"quantity" gorm:"not null"`
	UnitPrice int64         `json:"unit_price" gorm:"not null"`
	Status    ListingStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	BuyerID   *uuid.UUID    `json:"buyer_id,omitempty" gorm:"type:uuid"`

	// Relationships
	Seller   User               `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Template DerivativeTemplate `json:"template,omitempty" gorm:"foreignKey:AssetID"`
}
