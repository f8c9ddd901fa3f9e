// internal/services/license_service.go
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

type LicenseService struct {
	db                  *gorm.DB
	config              *config.Config
	poolService         *RewardPoolService
	notificationService *NotificationService

	// now is overridable so expiry behaviour is testable; expiry is always
	// observed against this clock, never scheduled.
	now func() time.Time
}

type CreateAssetRequest struct {
	CreatorName         string `json:"creator_name" validate:"required,min=1,max=255"`
	MetadataLink        string `json:"metadata_link" validate:"required,max=512"`
	RentalPrice         int64  `json:"rental_price" validate:"required,min=1"`
	RoyaltyRate         int64  `json:"royalty_rate" validate:"min=0,max=100"`
	RentalPeriodSeconds int64  `json:"rental_period_seconds" validate:"required,min=1"`
	Supply              int64  `json:"supply" validate:"required,min=1"`
}

type RentRequest struct {
	AssetID       uuid.UUID `json:"asset_id" validate:"required"`
	PaymentAmount int64     `json:"payment_amount" validate:"required,min=1"`
}

func NewLicenseService(db *gorm.DB, cfg *config.Config, poolService *RewardPoolService, notificationService *NotificationService) *LicenseService {
	return &LicenseService{
		db:                  db,
		config:              cfg,
		poolService:         poolService,
		notificationService: notificationService,
		now:                 time.Now,
	}
}

// Create mints a new license asset's full supply to its creator. Terms are
// immutable afterwards. No payment is involved.
func (s *LicenseService) Create(creatorID uuid.UUID, req *CreateAssetRequest) (*models.LicenseAsset, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	opMu.Lock()
	defer opMu.Unlock()

	asset := &models.LicenseAsset{
		CreatorID:           creatorID,
		CreatorName:         req.CreatorName,
		MetadataLink:        req.MetadataLink,
		RentalPrice:         req.RentalPrice,
		RoyaltyRate:         req.RoyaltyRate,
		RentalPeriodSeconds: req.RentalPeriodSeconds,
		TotalSupply:         req.Supply,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(asset).Error; err != nil {
			return fmt.Errorf("failed to create license asset: %w", err)
		}
		return ledger.New(tx).Mint(creatorID, asset.ID, req.Supply)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"asset_id": asset.ID,
		"creator":  creatorID,
		"supply":   req.Supply,
	}).Info("License asset created")

	return asset, nil
}

// Rent opens a time-boxed rental for the caller. A stale record for the same
// (asset, caller) pair is reconciled first, so an expired rental never blocks
// a new one. The configured fee slice goes to the reward pool, the remainder
// to the asset's creator.
func (s *LicenseService) Rent(renterID uuid.UUID, req *RentRequest) (*models.RentalRecord, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	opMu.Lock()
	defer opMu.Unlock()

	var record *models.RentalRecord
	var asset models.LicenseAsset
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if _, err := registryBinding(tx, models.RegistryLicense); err != nil {
			return err
		}

		if err := tx.First(&asset, "id = ?", req.AssetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssetNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if req.PaymentAmount < asset.RentalPrice {
			return ErrInsufficientPayment
		}

		existing, err := s.reconcileTx(tx, &asset, renterID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Active {
			return ErrAlreadyRenting
		}

		lgr := ledger.New(tx)
		if err := lgr.DebitCurrency(renterID, req.PaymentAmount); err != nil {
			return err
		}

		fee := req.PaymentAmount * s.config.Pool.RentalFeeBps / 10000
		if err := lgr.CreditCurrency(asset.CreatorID, req.PaymentAmount-fee); err != nil {
			return err
		}
		if err := s.poolService.NotifyInflow(tx, fee); err != nil {
			return err
		}

		expiresAt := s.now().Add(time.Duration(asset.RentalPeriodSeconds) * time.Second)
		if existing != nil {
			existing.Active = true
			existing.ExpiresAt = expiresAt
			record = existing
			if err := tx.Save(record).Error; err != nil {
				return fmt.Errorf("failed to update rental record: %w", err)
			}
		} else {
			record = &models.RentalRecord{
				AssetID:   asset.ID,
				RenterID:  renterID,
				Active:    true,
				ExpiresAt: expiresAt,
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("failed to create rental record: %w", err)
			}
		}

		asset.ActiveRenters++
		if err := tx.Save(&asset).Error; err != nil {
			return fmt.Errorf("failed to update renter counter: %w", err)
		}

		now := s.now()
		payment := &models.Transaction{
			TransactionType: models.TransactionTypeRental,
			PayerID:         renterID,
			PayeeID:         &asset.CreatorID,
			AssetID:         &asset.ID,
			Amount:          req.PaymentAmount,
			PoolFee:         fee,
			Status:          models.TransactionStatusCompleted,
			ProcessedAt:     &now,
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to record rental transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.notifyRental(&asset, renterID)
	return record, nil
}

// ReconcileExpiry commits the expiry of a stale rental record. Callable by
// anyone, idempotent, a no-op for missing, inactive or unexpired records.
func (s *LicenseService) ReconcileExpiry(assetID, renterID uuid.UUID) error {
	opMu.Lock()
	defer opMu.Unlock()

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var asset models.LicenseAsset
		if err := tx.First(&asset, "id = ?", assetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssetNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}
		_, err := s.reconcileTx(tx, &asset, renterID)
		return err
	})
}

// IsActivelyRenting reconciles first and then reports the rental status.
func (s *LicenseService) IsActivelyRenting(assetID, renterID uuid.UUID) (bool, error) {
	if err := s.ReconcileExpiry(assetID, renterID); err != nil {
		return false, err
	}

	var record models.RentalRecord
	err := s.db.Where("asset_id = ? AND renter_id = ?", assetID, renterID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return record.Active, nil
}

// BindPool wires the registry to the reward pool exactly once.
func (s *LicenseService) BindPool(callerID, poolID uuid.UUID) error {
	opMu.Lock()
	defer opMu.Unlock()

	return bindRegistry(s.db, models.RegistryLicense, callerID, poolID)
}

func (s *LicenseService) GetAsset(assetID uuid.UUID) (*models.LicenseAsset, error) {
	var asset models.LicenseAsset
	if err := s.db.Preload("Creator").First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &asset, nil
}

func (s *LicenseService) ListAssets(params utils.PaginationParams) ([]models.LicenseAsset, int64, error) {
	query := s.db.Model(&models.LicenseAsset{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count license assets: %w", err)
	}

	allowedSortFields := []string{"created_at", "rental_price", "active_renters"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var assets []models.LicenseAsset
	if err := query.Find(&assets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch license assets: %w", err)
	}
	return assets, total, nil
}

// isActivelyRentingTx is the in-transaction variant used by the derivative
// registry while it already holds the serializer.
func (s *LicenseService) isActivelyRentingTx(tx *gorm.DB, assetID, renterID uuid.UUID) (bool, *models.LicenseAsset, error) {
	var asset models.LicenseAsset
	if err := tx.First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrAssetNotFound
		}
		return false, nil, fmt.Errorf("database error: %w", err)
	}

	record, err := s.reconcileTx(tx, &asset, renterID)
	if err != nil {
		return false, nil, err
	}
	return record != nil && record.Active, &asset, nil
}

// reconcileTx flips an expired record to inactive and decrements the asset's
// active-renter counter exactly once. Returns the record as it stands after
// reconciliation, or nil when none exists.
func (s *LicenseService) reconcileTx(tx *gorm.DB, asset *models.LicenseAsset, renterID uuid.UUID) (*models.RentalRecord, error) {
	var record models.RentalRecord
	err := tx.Where("asset_id = ? AND renter_id = ?", asset.ID, renterID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if record.Active && s.now().After(record.ExpiresAt) {
		record.Active = false
		asset.ActiveRenters--
		if err := tx.Save(&record).Error; err != nil {
			return nil, fmt.Errorf("failed to expire rental record: %w", err)
		}
		if err := tx.Save(asset).Error; err != nil {
			return nil, fmt.Errorf("failed to update renter counter: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"asset_id": asset.ID,
			"renter":   renterID,
		}).Info("Rental expired")

		go s.notifyExpiry(asset, renterID)
	}
	return &record, nil
}

func (s *LicenseService) notifyRental(asset *models.LicenseAsset, renterID uuid.UUID) {
	if s.notificationService != nil {
		s.notificationService.SendRentalNotification(asset, renterID)
	}
}

func (s *LicenseService) notifyExpiry(asset *models.LicenseAsset, renterID uuid.UUID) {
	if s.notificationService != nil {
		s.notificationService.SendRentalExpiredNotification(asset, renterID)
	}
}

// Registry binding helpers shared with the derivative registry.

func bindRegistry(db *gorm.DB, registry string, callerID, poolID uuid.UUID) error {
	return database.WithTransaction(db, func(tx *gorm.DB) error {
		var caller models.User
		if err := tx.First(&caller, "id = ?", callerID).Error; err != nil {
			return ErrUnauthorized
		}
		if caller.UserType != models.UserTypeAdmin {
			return ErrUnauthorized
		}

		var existing models.PoolBinding
		err := tx.Where("registry = ?", registry).First(&existing).Error
		if err == nil {
			return ErrAlreadyBound
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("database error: %w", err)
		}

		binding := &models.PoolBinding{
			Registry: registry,
			PoolID:   poolID,
			BoundBy:  callerID,
		}
		return tx.Create(binding).Error
	})
}

func registryBinding(tx *gorm.DB, registry string) (*models.PoolBinding, error) {
	var binding models.PoolBinding
	err := tx.Where("registry = ?", registry).First(&binding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPoolNotBound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &binding, nil
}
