// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/config"
	"github.com/licenseloom/loom-backend/internal/database"
	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/models"
	"github.com/licenseloom/loom-backend/internal/utils"
)

// PaymentService is the currency on-ramp: a Stripe payment intent buys
// platform credits (smallest units, 1 credit = 1 cent) which every in-system
// payment then moves on the internal ledger.
type PaymentService struct {
	db     *gorm.DB
	config *config.Config
}

type CreateDepositIntentRequest struct {
	Amount int64 `json:"amount" validate:"required,min=1"` // credits
}

type DepositIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
}

type ConfirmDepositRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

func NewPaymentService(db *gorm.DB, config *config.Config) *PaymentService {
	// Initialize Stripe
	stripe.Key = config.Payment.StripeSecretKey

	return &PaymentService{
		db:     db,
		config: config,
	}
}

func (s *PaymentService) CreateDepositIntent(userID uuid.UUID, req *CreateDepositIntentRequest) (*DepositIntentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String("usd"),
	}
	params.AddMetadata("user_id", userID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &DepositIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Status:       string(pi.Status),
	}, nil
}

func (s *PaymentService) ConfirmDeposit(userID uuid.UUID, req *ConfirmDepositRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	pi, err := paymentintent.Get(req.PaymentIntentID, nil)
	if err != nil {
		return fmt.Errorf("failed to get payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return errors.New("payment has not succeeded")
	}

	// A confirmed intent may only be credited once.
	var existing models.Transaction
	if err := s.db.Where("payment_reference = ?", pi.ID).First(&existing).Error; err == nil {
		return errors.New("deposit already credited")
	}

	opMu.Lock()
	defer opMu.Unlock()

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := ledger.New(tx).CreditCurrency(userID, pi.Amount); err != nil {
			return err
		}

		now := time.Now()
		deposit := &models.Transaction{
			TransactionType:  models.TransactionTypeDeposit,
			PayerID:          userID,
			Amount:           pi.Amount,
			PaymentReference: pi.ID,
			Status:           models.TransactionStatusCompleted,
			ProcessedAt:      &now,
		}
		if err := tx.Create(deposit).Error; err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		return nil
	})
}

func (s *PaymentService) GetBalance(userID uuid.UUID) (int64, error) {
	return ledger.New(s.db).CurrencyBalanceOf(userID)
}

func (s *PaymentService) GetPaymentHistory(userID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).
		Where("payer_id = ? OR payee_id = ?", userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return transactions, total, nil
}
