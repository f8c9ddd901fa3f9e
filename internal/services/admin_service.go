// internal/services/admin_service.go
package services

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/database"
	"github.com/licenseloom/loom-backend/internal/models"
)

// AdminService covers moderation and platform reporting. Disabling a
// template is the one mutation: the row stays behind so its name and
// metadata link remain burned for future Enable calls.
type AdminService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type PlatformStats struct {
	TotalUsers        int64            `json:"total_users"`
	TotalAssets       int64            `json:"total_assets"`
	TotalTemplates    int64            `json:"total_templates"`
	ActiveListings    int64            `json:"active_listings"`
	ActiveRentals     int64            `json:"active_rentals"`
	TransactionVolume int64            `json:"transaction_volume"`
	PoolBalance       int64            `json:"pool_balance"`
	UsersByType       map[string]int64 `json:"users_by_type"`
}

func NewAdminService(db *gorm.DB, notificationService *NotificationService) *AdminService {
	return &AdminService{
		db:                  db,
		notificationService: notificationService,
	}
}

// DisableTemplate takes a derivative template off the mint path. Only
// admins may call it; minted units already in circulation are untouched.
func (s *AdminService) DisableTemplate(adminID, templateID uuid.UUID, reason string) (*models.DerivativeTemplate, error) {
	var admin models.User
	if err := s.db.First(&admin, "id = ?", adminID).Error; err != nil {
		return nil, ErrUnauthorized
	}
	if admin.UserType != models.UserTypeAdmin {
		return nil, ErrUnauthorized
	}

	opMu.Lock()
	defer opMu.Unlock()

	var template models.DerivativeTemplate
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&template, "id = ?", templateID).Error; err != nil {
			return ErrNotAvailable
		}

		if !template.Enabled {
			// Already disabled, nothing to do.
			return nil
		}

		return tx.Model(&template).Update("enabled", false).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"template_id": template.ID,
		"admin_id":    adminID,
		"reason":      reason,
	}).Info("Derivative template disabled")

	if s.notificationService != nil {
		go s.notificationService.SendModerationNotification(template.OwnerID, template.ID, reason)
	}

	return &template, nil
}

// GetPlatformStats aggregates counts and volume for the admin dashboard.
func (s *AdminService) GetPlatformStats() (*PlatformStats, error) {
	stats := &PlatformStats{UsersByType: make(map[string]int64)}

	if err := s.db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.LicenseAsset{}).Count(&stats.TotalAssets).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.DerivativeTemplate{}).Count(&stats.TotalTemplates).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Listing{}).
		Where("status = ?", models.ListingStatusActive).
		Count(&stats.ActiveListings).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.RentalRecord{}).
		Where("active = ?", true).
		Count(&stats.ActiveRentals).Error; err != nil {
		return nil, err
	}

	var volume struct{ Total int64 }
	if err := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("status = ?", models.TransactionStatusCompleted).
		Scan(&volume).Error; err != nil {
		return nil, err
	}
	stats.TransactionVolume = volume.Total

	var pool models.PoolState
	if err := s.db.First(&pool).Error; err == nil {
		stats.PoolBalance = pool.Balance
	}

	var rows []struct {
		UserType string
		Count    int64
	}
	if err := s.db.Model(&models.User{}).
		Select("user_type, COUNT(*) as count").
		Group("user_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.UsersByType[row.UserType] = row.Count
	}

	return stats, nil
}

// ListTransactions returns the platform transaction log, newest first.
func (s *AdminService) ListTransactions(page, limit int) ([]models.Transaction, int64, error) {
	var transactions []models.Transaction
	var total int64

	query := s.db.Model(&models.Transaction{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&transactions).Error

	return transactions, total, err
}
