// internal/ledger/ledger_test.go
package ledger

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/licenseloom/loom-backend/internal/models"
)

func newTestLedger(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.AssetBalance{},
		&models.OperatorApproval{},
		&models.CurrencyAccount{},
	))
	return New(db)
}

func TestMintAndTransfer(t *testing.T) {
	lgr := newTestLedger(t)
	alice, bob, asset := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, lgr.Mint(alice, asset, 10))

	balance, err := lgr.BalanceOf(alice, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	require.NoError(t, lgr.Transfer(alice, bob, asset, 4))

	balance, err = lgr.BalanceOf(alice, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(6), balance)

	balance, err = lgr.BalanceOf(bob, asset)
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)
}

func TestTransferBeyondBalance(t *testing.T) {
	lgr := newTestLedger(t)
	alice, bob, asset := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, lgr.Mint(alice, asset, 3))
	assert.ErrorIs(t, lgr.Transfer(alice, bob, asset, 4), ErrInsufficientBalance)
	assert.ErrorIs(t, lgr.Transfer(bob, alice, asset, 1), ErrInsufficientBalance)
}

func TestTransferRejectsNonPositiveQuantity(t *testing.T) {
	lgr := newTestLedger(t)
	alice, bob, asset := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, lgr.Mint(alice, asset, 3))
	assert.ErrorIs(t, lgr.Transfer(alice, bob, asset, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, lgr.Transfer(alice, bob, asset, -1), ErrInvalidQuantity)
}

func TestOperatorApproval(t *testing.T) {
	lgr := newTestLedger(t)
	alice, bob, asset := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, lgr.Mint(alice, asset, 5))

	err := lgr.TransferFrom(models.OperatorMarketplace, alice, bob, asset, 2)
	assert.ErrorIs(t, err, ErrNotApproved)

	require.NoError(t, lgr.SetApprovalForAll(alice, models.OperatorMarketplace, true))
	require.NoError(t, lgr.TransferFrom(models.OperatorMarketplace, alice, bob, asset, 2))

	// Approval is per operator, not global.
	err = lgr.TransferFrom(models.OperatorRewardPool, alice, bob, asset, 1)
	assert.ErrorIs(t, err, ErrNotApproved)

	// Revocation takes effect immediately.
	require.NoError(t, lgr.SetApprovalForAll(alice, models.OperatorMarketplace, false))
	err = lgr.TransferFrom(models.OperatorMarketplace, alice, bob, asset, 1)
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestCurrencyAccounts(t *testing.T) {
	lgr := newTestLedger(t)
	alice := uuid.New()

	balance, err := lgr.CurrencyBalanceOf(alice)
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, lgr.CreditCurrency(alice, 1000))
	assert.ErrorIs(t, lgr.DebitCurrency(alice, 1001), ErrInsufficientFunds)
	require.NoError(t, lgr.DebitCurrency(alice, 400))

	balance, err = lgr.CurrencyBalanceOf(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance)
}
