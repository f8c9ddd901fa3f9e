// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}

	return json.Unmarshal(bytes, j)
}

// BigInt stores an arbitrary-precision integer as a decimal string column.
// The reward accumulator and per-position reward debt are scaled by the pool
// precision factor and can exceed the int64 range.
type BigInt struct {
	big.Int
}

func NewBigInt(v int64) BigInt {
	var b BigInt
	b.SetInt64(v)
	return b
}

func (b BigInt) Value() (driver.Value, error) {
	return b.String(), nil
}

func (b *BigInt) Scan(value interface{}) error {
	if value == nil {
		b.SetInt64(0)
		return nil
	}

	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		b.SetInt64(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into BigInt", value)
	}

	if s == "" {
		b.SetInt64(0)
		return nil
	}
	if _, ok := b.SetString(s, 10); !ok {
		return fmt.Errorf("invalid big integer %q", s)
	}
	return nil
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return b.Scan(s)
}

// Enums
type UserType string

const (
	UserTypeCreator UserType = "creator"
	UserTypeMember  UserType = "member"
	UserTypeAdmin   UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusSold   ListingStatus = "sold"
)

type TransactionType string

const (
	TransactionTypeRental       TransactionType = "rental"
	TransactionTypeTemplateMint TransactionType = "template_mint"
	TransactionTypeMarketSale   TransactionType = "market_sale"
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeHarvest      TransactionType = "harvest"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type NotificationType string

const (
	NotificationTypeRental   NotificationType = "rental"
	NotificationTypeExpiry   NotificationType = "rental_expired"
	NotificationTypeEnable   NotificationType = "template_enabled"
	NotificationTypeSale     NotificationType = "market_sale"
	NotificationTypeHarvest  NotificationType = "harvest"
	NotificationTypeModerate NotificationType = "moderation"
)
