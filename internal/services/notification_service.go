// internal/services/notification_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/config"
	"github.com/licenseloom/loom-backend/internal/models"
	"github.com/licenseloom/loom-backend/internal/utils"
)

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

func (s *NotificationService) SendRentalNotification(asset *models.LicenseAsset, renterID uuid.UUID) error {
	return s.create(asset.CreatorID, models.NotificationTypeRental,
		"License rented",
		fmt.Sprintf("Your license asset %q was rented", asset.CreatorName),
		models.JSONB{"asset_id": asset.ID.String(), "renter_id": renterID.String()})
}

func (s *NotificationService) SendRentalExpiredNotification(asset *models.LicenseAsset, renterID uuid.UUID) error {
	return s.create(renterID, models.NotificationTypeExpiry,
		"Rental expired",
		fmt.Sprintf("Your rental of %q has expired", asset.CreatorName),
		models.JSONB{"asset_id": asset.ID.String()})
}

func (s *NotificationService) SendTemplateEnabledNotification(template *models.DerivativeTemplate) error {
	return s.create(template.OwnerID, models.NotificationTypeEnable,
		"Derivative template enabled",
		fmt.Sprintf("Template %q is now open for public minting", template.Name),
		models.JSONB{"template_id": template.ID.String()})
}

func (s *NotificationService) SendSaleNotification(listing *models.Listing) error {
	return s.create(listing.SellerID, models.NotificationTypeSale,
		"Listing sold",
		fmt.Sprintf("Your listing of %d units sold", listing.Quantity),
		models.JSONB{"listing_id": listing.ID.String()})
}

func (s *NotificationService) SendHarvestNotification(stakerID uuid.UUID, amount int64) error {
	return s.create(stakerID, models.NotificationTypeHarvest,
		"Rewards harvested",
		fmt.Sprintf("You harvested %d reward credits", amount),
		models.JSONB{"amount": amount})
}

func (s *NotificationService) SendModerationNotification(ownerID uuid.UUID, templateID uuid.UUID, reason string) error {
	return s.create(ownerID, models.NotificationTypeModerate,
		"Template disabled",
		fmt.Sprintf("Your template was disabled by moderation: %s", reason),
		models.JSONB{"template_id": templateID.String(), "reason": reason})
}

func (s *NotificationService) GetUserNotifications(userID uuid.UUID, params utils.PaginationParams) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *NotificationService) create(userID uuid.UUID, typ models.NotificationType, title, message string, data models.JSONB) error {
	notification := &models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data:    data,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create notification")
		return err
	}
	return nil
}
