// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction records every currency movement in the system with its fee
// breakdown: rentals, template mints, marketplace sales, deposits and
// harvest payouts. Amounts are in smallest currency units.
type Transaction struct {
	BaseModel
	TransactionType  TransactionType   `json:"transaction_type" gorm:"type:varchar(20);not null;index"`
	PayerID          uuid.UUID         `json:"payer_id" gorm:"type:uuid;not null;index"`
	PayeeID          *uuid.UUID        `json:"payee_id" gorm:"type:uuid;index"`
	AssetID          *uuid.UUID        `json:"asset_id" gorm:"type:uuid;index"`
	Amount           int64             `json:"amount" gorm:"not null"`
	PoolFee          int64             `json:"pool_fee" gorm:"not null;default:0"`
	PaymentReference string            `json:"payment_reference" gorm:"size:255"`
	Status           TransactionStatus `json:"status" gorm:"type:varchar(20);default:'completed';index"`
	ProcessedAt      *time.Time        `json:"processed_at"`

	// Relationships
	Payer User  `json:"payer,omitempty" gorm:"foreignKey:PayerID"`
	Payee *User `json:"payee,omitempty" gorm:"foreignKey:PayeeID"`
}

// Notification is a persisted event for a user's inbox.
type Notification struct {
	BaseModel
	UserID  uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Type    NotificationType `json:"type" gorm:"type:varchar(30);not null;index"`
	Title   string           `json:"title" gorm:"size:255;not null"`
	Message string           `json:"message" gorm:"type:text"`
	Data    JSONB            `json:"data" gorm:"type:jsonb"`
	ReadAt  *time.Time       `json:"read_at"`
}
