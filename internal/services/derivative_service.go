// internal/services/derivative_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
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

type DerivativeService struct {
	db                  *gorm.DB
	config              *config.Config
	licenseService      *LicenseService
	poolService         *RewardPoolService
	notificationService *NotificationService
}

type EnableTemplateRequest struct {
	SourceAssetID uuid.UUID `json:"source_asset_id" validate:"required"`
	Name          string    `json:"name" validate:"required,min=1,max=255"`
	MetadataLink  string    `json:"metadata_link" validate:"required,max=512"`
	Price         int64     `json:"price" validate:"required,min=1"`
	RoyaltyRate   int64     `json:"royalty_rate" validate:"min=0,max=100"`
}

type MintTemplateRequest struct {
	TemplateID    uuid.UUID `json:"template_id" validate:"required"`
	Quantity      int64     `json:"quantity" validate:"required,min=1"`
	PaymentAmount int64     `json:"payment_amount" validate:"required,min=1"`
}

func NewDerivativeService(db *gorm.DB, cfg *config.Config, licenseService *LicenseService, poolService *RewardPoolService, notificationService *NotificationService) *DerivativeService {
	return &DerivativeService{
		db:                  db,
		config:              cfg,
		licenseService:      licenseService,
		poolService:         poolService,
		notificationService: notificationService,
	}
}

// Enable registers a derivative template. Only an active renter of the
// source asset may register, the template name must contain the source
// asset's creator name, and neither name nor metadata link may ever have
// been used by any template before, enabled or not.
func (s *DerivativeService) Enable(callerID uuid.UUID, req *EnableTemplateRequest) (*models.DerivativeTemplate, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	opMu.Lock()
	defer opMu.Unlock()

	var template *models.DerivativeTemplate
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if _, err := registryBinding(tx, models.RegistryDerivative); err != nil {
			return err
		}

		renting, asset, err := s.licenseService.isActivelyRentingTx(tx, req.SourceAssetID, callerID)
		if err != nil {
			return err
		}
		if !renting {
			return ErrNotRenting
		}

		if !strings.Contains(req.Name, asset.CreatorName) {
			return ErrNameMismatch
		}

		// Uniqueness is historical: disabled templates keep their claim.
		var count int64
		if err := tx.Model(&models.DerivativeTemplate{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if count > 0 {
			return ErrNameTaken
		}
		if err := tx.Model(&models.DerivativeTemplate{}).Where("metadata_link = ?", req.MetadataLink).Count(&count).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if count > 0 {
			return ErrMetadataTaken
		}

		template = &models.DerivativeTemplate{
			SourceAssetID: req.SourceAssetID,
			OwnerID:       callerID,
			Name:          req.Name,
			MetadataLink:  req.MetadataLink,
			Price:         req.Price,
			RoyaltyRate:   req.RoyaltyRate,
			Enabled:       true,
		}
		if err := tx.Create(template).Error; err != nil {
			return fmt.Errorf("failed to create derivative template: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"template_id": template.ID,
		"source":      req.SourceAssetID,
		"owner":       callerID,
	}).Info("Derivative template enabled")

	go s.notifyEnabled(template)
	return template, nil
}

// Mint sells freshly minted derivative units to anyone. The configured fee
// slice of the payment goes to the reward pool, the remainder to the
// template owner.
func (s *DerivativeService) Mint(callerID uuid.UUID, req *MintTemplateRequest) (*models.DerivativeTemplate, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	opMu.Lock()
	defer opMu.Unlock()

	var template models.DerivativeTemplate
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if _, err := registryBinding(tx, models.RegistryDerivative); err != nil {
			return err
		}

		if err := tx.First(&template, "id = ?", req.TemplateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAvailable
			}
			return fmt.Errorf("database error: %w", err)
		}
		if !template.Enabled {
			return ErrNotAvailable
		}

		total, err := totalPrice(template.Price, req.Quantity)
		if err != nil {
			return err
		}
		if req.PaymentAmount < total {
			return ErrInsufficientPayment
		}

		lgr := ledger.New(tx)
		if err := lgr.DebitCurrency(callerID, req.PaymentAmount); err != nil {
			return err
		}

		fee := req.PaymentAmount * s.config.Pool.MintFeeBps / 10000
		if err := lgr.CreditCurrency(template.OwnerID, req.PaymentAmount-fee); err != nil {
			return err
		}
		if err := s.poolService.NotifyInflow(tx, fee); err != nil {
			return err
		}

		if err := lgr.Mint(callerID, template.ID, req.Quantity); err != nil {
			return err
		}

		template.MintedUnits += req.Quantity
		if err := tx.Save(&template).Error; err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}

		now := time.Now()
		payment := &models.Transaction{
			TransactionType: models.TransactionTypeTemplateMint,
			PayerID:         callerID,
			PayeeID:         &template.OwnerID,
			AssetID:         &template.ID,
			Amount:          req.PaymentAmount,
			PoolFee:         fee,
			Status:          models.TransactionStatusCompleted,
			ProcessedAt:     &now,
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to record mint transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// BindPool wires the registry to the reward pool exactly once.
func (s *DerivativeService) BindPool(callerID, poolID uuid.UUID) error {
	opMu.Lock()
	defer opMu.Unlock()

	return bindRegistry(s.db, models.RegistryDerivative, callerID, poolID)
}

func (s *DerivativeService) GetTemplate(templateID uuid.UUID) (*models.DerivativeTemplate, error) {
	var template models.DerivativeTemplate
	if err := s.db.Preload("SourceAsset").Preload("Owner").First(&template, "id = ?", templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAvailable
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &template, nil
}

func (s *DerivativeService) ListTemplates(params utils.PaginationParams) ([]models.DerivativeTemplate, int64, error) {
	query := s.db.Model(&models.DerivativeTemplate{}).Where("enabled = ?", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	allowedSortFields := []string{"created_at", "price", "minted_units"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var templates []models.DerivativeTemplate
	if err := query.Find(&templates).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch templates: %w", err)
	}
	return templates, total, nil
}

func (s *DerivativeService) notifyEnabled(template *models.DerivativeTemplate) {
	if s.notificationService != nil {
		s.notificationService.SendTemplateEnabledNotification(template)
	}
}
