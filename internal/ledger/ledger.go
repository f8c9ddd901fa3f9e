// internal/ledger/ledger.go
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/models"
)

var (
	ErrInsufficientBalance = errors.New("insufficient asset balance")
	ErrInsufficientFunds   = errors.New("insufficient currency balance")
	ErrNotApproved         = errors.New("operator is not approved by the owner")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
)

// Service is the multi-asset ownership ledger: per-(owner, asset) unit
// balances plus per-user currency accounts. Construct it over the gorm
// handle of the enclosing transaction so every movement commits or rolls
// back with the operation that caused it.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) BalanceOf(ownerID, assetID uuid.UUID) (int64, error) {
	var row models.AssetBalance
	err := s.db.Where("owner_id = ? AND asset_id = ?", ownerID, assetID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return row.Balance, nil
}

func (s *Service) Mint(toID, assetID uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.credit(toID, assetID, quantity)
}

func (s *Service) Transfer(fromID, toID, assetID uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	var row models.AssetBalance
	err := s.db.Where("owner_id = ? AND asset_id = ?", fromID, assetID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && row.Balance < quantity) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	row.Balance -= quantity
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to debit sender: %w", err)
	}
	return s.credit(toID, assetID, quantity)
}

// TransferFrom moves assets on behalf of their owner and requires a standing
// approval for the named operator.
func (s *Service) TransferFrom(operator string, fromID, toID, assetID uuid.UUID, quantity int64) error {
	approved, err := s.IsApprovedForAll(fromID, operator)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApproved
	}
	return s.Transfer(fromID, toID, assetID, quantity)
}

func (s *Service) SetApprovalForAll(ownerID uuid.UUID, operator string, approved bool) error {
	var row models.OperatorApproval
	err := s.db.Where("owner_id = ? AND operator = ?", ownerID, operator).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.OperatorApproval{OwnerID: ownerID, Operator: operator, Approved: approved}
		return s.db.Create(&row).Error
	}
	if err != nil {
		return fmt.Errorf("failed to read approval: %w", err)
	}
	row.Approved = approved
	return s.db.Save(&row).Error
}

func (s *Service) IsApprovedForAll(ownerID uuid.UUID, operator string) (bool, error) {
	var row models.OperatorApproval
	err := s.db.Where("owner_id = ? AND operator = ?", ownerID, operator).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read approval: %w", err)
	}
	return row.Approved, nil
}

func (s *Service) credit(ownerID, assetID uuid.UUID, quantity int64) error {
	var row models.AssetBalance
	err := s.db.Where("owner_id = ? AND asset_id = ?", ownerID, assetID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.AssetBalance{OwnerID: ownerID, AssetID: assetID, Balance: quantity}
		return s.db.Create(&row).Error
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	row.Balance += quantity
	return s.db.Save(&row).Error
}

// Currency accounts

func (s *Service) CurrencyBalanceOf(userID uuid.UUID) (int64, error) {
	var account models.CurrencyAccount
	err := s.db.Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read currency account: %w", err)
	}
	return account.Balance, nil
}

func (s *Service) CreditCurrency(userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}

	var account models.CurrencyAccount
	err := s.db.Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = models.CurrencyAccount{UserID: userID, Balance: amount}
		return s.db.Create(&account).Error
	}
	if err != nil {
		return fmt.Errorf("failed to read currency account: %w", err)
	}
	account.Balance += amount
	return s.db.Save(&account).Error
}

func (s *Service) DebitCurrency(userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuantity
	}

	var account models.CurrencyAccount
	err := s.db.Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && account.Balance < amount) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return fmt.Errorf("failed to read currency account: %w", err)
	}
	account.Balance -= amount
	return s.db.Save(&account).Error
}
