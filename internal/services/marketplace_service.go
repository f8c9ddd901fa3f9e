// internal/services/marketplace_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/config"
	"github.com/licenseloom/loom-backend/internal/database"
	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/models"
	"github.com/licenseloom/loom-backend/internal/utils"
)

type MarketplaceService struct {
	db                  *gorm.DB
	config              *config.Config
	poolService         *RewardPoolService
	notificationService *NotificationService
}

type ListForSaleRequest struct {
	AssetID   uuid.UUID `json:"asset_id" validate:"required"`
	Quantity  int64     `json:"quantity" validate:"required,min=1"`
	UnitPrice int64     `json:"unit_price" validate:"required,min=1"`
}

type BuyRequest struct {
	ListingID     uuid.UUID `json:"listing_id" validate:"required"`
	PaymentAmount int64     `json:"payment_amount" validate:"required,min=1"`
}

func NewMarketplaceService(db *gorm.DB, cfg *config.Config, poolService *RewardPoolService, notificationService *NotificationService) *MarketplaceService {
	return &MarketplaceService{
		db:                  db,
		config:              cfg,
		poolService:         poolService,
		notificationService: notificationService,
	}
}

// List puts derivative units up for sale. The seller's balance is checked
// now but not escrowed; if the units are gone by settlement time the buy
// fails with an insufficient-balance error instead.
func (s *MarketplaceService) List(sellerID uuid.UUID, req *ListForSaleRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	opMu.Lock()
	defer opMu.Unlock()

	var listing *models.Listing
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		balance, err := ledger.New(tx).BalanceOf(sellerID, req.AssetID)
		if err != nil {
			return err
		}
		if balance < req.Quantity {
			return ErrInsufficientBalance
		}

		listing = &models.Listing{
			SellerID:  sellerID,
			AssetID:   req.AssetID,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			Status:    models.ListingStatusActive,
		}
		if err := tx.Create(listing).Error; err != nil {
			return fmt.Errorf("failed to create listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Buy settles an active listing: units move seller to buyer, the configured
// fee slice of the payment goes to the reward pool and the remainder to the
// seller. A sold listing never becomes active again.
func (s *MarketplaceService) Buy(buyerID uuid.UUID, req *BuyRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	opMu.Lock()
	defer opMu.Unlock()

	var listing models.Listing
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&listing, "id = ?", req.ListingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrListingUnavailable
			}
			return fmt.Errorf("database error: %w", err)
		}
		if listing.Status != models.ListingStatusActive {
			return ErrListingUnavailable
		}

		total, err := totalPrice(listing.UnitPrice, listing.Quantity)
		if err != nil {
			return err
		}
		if req.PaymentAmount < total {
			return ErrInsufficientPayment
		}

		lgr := ledger.New(tx)
		if err := lgr.DebitCurrency(buyerID, req.PaymentAmount); err != nil {
			return err
		}

		// The unescrowed race surfaces here when the seller no longer
		// holds the listed units.
		if err := lgr.TransferFrom(models.OperatorMarketplace, listing.SellerID, buyerID, listing.AssetID, listing.Quantity); err != nil {
			return err
		}

		fee := req.PaymentAmount * s.config.Pool.MarketFeeBps / 10000
		if err := lgr.CreditCurrency(listing.SellerID, req.PaymentAmount-fee); err != nil {
			return err
		}
		if err := s.poolService.NotifyInflow(tx, fee); err != nil {
			return err
		}

		listing.Status = models.ListingStatusSold
		listing.BuyerID = &buyerID
		if err := tx.Save(&listing).Error; err != nil {
			return fmt.Errorf("failed to update listing: %w", err)
		}

		now := time.Now()
		payment := &models.Transaction{
			TransactionType: models.TransactionTypeMarketSale,
			PayerID:         buyerID,
			PayeeID:         &listing.SellerID,
			AssetID:         &listing.AssetID,
			Amount:          req.PaymentAmount,
			PoolFee:         fee,
			Status:          models.TransactionStatusCompleted,
			ProcessedAt:     &now,
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to record sale transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"listing_id": listing.ID,
		"buyer":      buyerID,
		"seller":     listing.SellerID,
	}).Info("Listing sold")

	go s.notifySale(&listing)
	return &listing, nil
}

func (s *MarketplaceService) GetListing(listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.Preload("Seller").Preload("Template").First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingUnavailable
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &listing, nil
}

func (s *MarketplaceService) ListListings(params utils.PaginationParams) ([]models.Listing, int64, error) {
	query := s.db.Model(&models.Listing{}).Where("status = ?", models.ListingStatusActive)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	allowedSortFields := []string{"created_at", "unit_price", "quantity"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, total, nil
}

func (s *MarketplaceService) notifySale(listing *models.Listing) {
	if s.notificationService != nil {
		s.notificationService.SendSaleNotification(listing)
	}
}
