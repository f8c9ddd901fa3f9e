// internal/services/services_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/licenseloom/loom-backend/internal/config"
	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.LicenseAsset{},
		&models.RentalRecord{},
		&models.PoolBinding{},
		&models.DerivativeTemplate{},
		&models.Listing{},
		&models.PoolState{},
		&models.StakePosition{},
		&models.AssetBalance{},
		&models.OperatorApproval{},
		&models.CurrencyAccount{},
		&models.Transaction{},
		&models.Notification{},
	))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
		Pool: config.PoolConfig{
			RentalFeeBps: 2000,
			MintFeeBps:   1000,
			MarketFeeBps: 250,
		},
	}
}

func createTestUser(t *testing.T, db *gorm.DB, userType models.UserType) *models.User {
	t.Helper()

	tag := uuid.New().String()[:8]
	user := &models.User{
		Username: fmt.Sprintf("user_%s", tag),
		Email:    fmt.Sprintf("user_%s@example.com", tag),
		UserType: userType,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("TestPass123!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func fundUser(t *testing.T, db *gorm.DB, userID uuid.UUID, amount int64) {
	t.Helper()
	require.NoError(t, ledger.New(db).CreditCurrency(userID, amount))
}

func currencyBalance(t *testing.T, db *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	balance, err := ledger.New(db).CurrencyBalanceOf(userID)
	require.NoError(t, err)
	return balance
}

func assetBalance(t *testing.T, db *gorm.DB, ownerID, assetID uuid.UUID) int64 {
	t.Helper()
	balance, err := ledger.New(db).BalanceOf(ownerID, assetID)
	require.NoError(t, err)
	return balance
}

func approveOperator(t *testing.T, db *gorm.DB, ownerID uuid.UUID, operator string) {
	t.Helper()
	require.NoError(t, ledger.New(db).SetApprovalForAll(ownerID, operator, true))
}

// createTestTemplate inserts an enabled derivative template directly,
// bypassing the rental gate, for tests that only need a stakeable asset.
func createTestTemplate(t *testing.T, db *gorm.DB, ownerID uuid.UUID, price int64) *models.DerivativeTemplate {
	t.Helper()

	tag := uuid.New().String()[:8]
	template := &models.DerivativeTemplate{
		SourceAssetID: uuid.New(),
		OwnerID:       ownerID,
		Name:          fmt.Sprintf("template_%s", tag),
		MetadataLink:  fmt.Sprintf("meta_%s", tag),
		Price:         price,
		RoyaltyRate:   5,
		Enabled:       true,
	}
	require.NoError(t, db.Create(template).Error)
	return template
}
