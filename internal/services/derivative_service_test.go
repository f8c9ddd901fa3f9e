// internal/services/derivative_service_test.go
package services

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/models"
)

type DerivativeTestSuite struct {
	suite.Suite
	db         *gorm.DB
	pool       *RewardPoolService
	license    *LicenseService
	derivative *DerivativeService
	admin      *models.User
	creator    *models.User
	renter     *models.User
	minter     *models.User
	asset      *models.LicenseAsset
	clock      time.Time
}

func (s *DerivativeTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	cfg := newTestConfig()
	s.pool = NewRewardPoolService(s.db, nil)
	s.license = NewLicenseService(s.db, cfg, s.pool, nil)
	s.derivative = NewDerivativeService(s.db, cfg, s.license, s.pool, nil)

	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.license.now = func() time.Time { return s.clock }

	s.admin = createTestUser(s.T(), s.db, models.UserTypeAdmin)
	s.creator = createTestUser(s.T(), s.db, models.UserTypeCreator)
	s.renter = createTestUser(s.T(), s.db, models.UserTypeMember)
	s.minter = createTestUser(s.T(), s.db, models.UserTypeMember)

	require.NoError(s.T(), s.license.BindPool(s.admin.ID, uuid.New()))
	require.NoError(s.T(), s.derivative.BindPool(s.admin.ID, uuid.New()))

	asset, err := s.license.Create(s.creator.ID, &CreateAssetRequest{
		CreatorName:         s.creator.Username,
		MetadataLink:        "meta_" + uuid.New().String(),
		RentalPrice:         1_000_000,
		RoyaltyRate:         10,
		RentalPeriodSeconds: 3600,
		Supply:              100,
	})
	require.NoError(s.T(), err)
	s.asset = asset

	fundUser(s.T(), s.db, s.renter.ID, 10_000_000)
	_, err = s.license.Rent(s.renter.ID, &RentRequest{AssetID: asset.ID, PaymentAmount: 1_000_000})
	require.NoError(s.T(), err)
}

func (s *DerivativeTestSuite) enableTemplate() *models.DerivativeTemplate {
	template, err := s.derivative.Enable(s.renter.ID, &EnableTemplateRequest{
		SourceAssetID: s.asset.ID,
		Name:          s.creator.Username + " remix",
		MetadataLink:  "tpl_" + uuid.New().String(),
		Price:         200_000,
		RoyaltyRate:   5,
	})
	require.NoError(s.T(), err)
	return template
}

func (s *DerivativeTestSuite) TestEnableRequiresActiveRental() {
	_, err := s.derivative.Enable(s.minter.ID, &EnableTemplateRequest{
		SourceAssetID: s.asset.ID,
		Name:          s.creator.Username + " remix",
		MetadataLink:  "tpl_" + uuid.New().String(),
		Price:         200_000,
	})
	assert.ErrorIs(s.T(), err, ErrNotRenting)
}

func (s *DerivativeTestSuite) TestEnableFailsAfterExpiry() {
	s.clock = s.clock.Add(2 * time.Hour)

	_, err := s.derivative.Enable(s.renter.ID, &EnableTemplateRequest{
		SourceAssetID: s.asset.ID,
		Name:          s.creator.Username + " remix",
		MetadataLink:  "tpl_" + uuid.New().String(),
		Price:         200_000,
	})
	assert.ErrorIs(s.T(), err, ErrNotRenting)
}

func (s *DerivativeTestSuite) TestEnableEnforcesNameAttribution() {
	_, err := s.derivative.Enable(s.renter.ID, &EnableTemplateRequest{
		SourceAssetID: s.asset.ID,
		Name:          "unrelated name",
		MetadataLink:  "tpl_" + uuid.New().String(),
		Price:         200_000,
	})
	assert.ErrorIs(s.T(), err, ErrNameMismatch)
}

func (s *DerivativeTestSuite) TestNameAndMetadataAreBurnedForever() {
	template := s.enableTemplate()

	// Disable the template and try to reuse its name and metadata link.
	require.NoError(s.T(), s.db.Model(template).Update("enabled", false).Error)

	_, err := s.derivative.Enable(s.renter.ID, &EnableTemplateRequest{
		SourceAssetID: s.asset.ID,
		Name:          template.Name,
		MetadataLink:  "tpl_" + uuid.New().String(),
		Price:         200_000,
	})
	assert.ErrorIs(s.T(), err, ErrNameTaken)

	_, err = s.derivative.Enable(s.renter.ID, &EnableTemplateRequest{
		SourceAssetID: s.asset.ID,
		Name:          s.creator.Username + " remix two",
		MetadataLink:  template.MetadataLink,
		Price:         200_000,
	})
	assert.ErrorIs(s.T(), err, ErrMetadataTaken)
}

func (s *DerivativeTestSuite) TestMintSplitsPayment() {
	template := s.enableTemplate()
	fundUser(s.T(), s.db, s.minter.ID, 1_000_000)

	minted, err := s.derivative.Mint(s.minter.ID, &MintTemplateRequest{
		TemplateID:    template.ID,
		Quantity:      5,
		PaymentAmount: 1_000_000,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(5), minted.MintedUnits)
	assert.Equal(s.T(), int64(5), assetBalance(s.T(), s.db, s.minter.ID, template.ID))

	// 10% of the payment goes to the pool, the rest to the template owner.
	ownerBalance := currencyBalance(s.T(), s.db, s.renter.ID)
	assert.Equal(s.T(), int64(9_000_000+900_000), ownerBalance)
	assert.Zero(s.T(), currencyBalance(s.T(), s.db, s.minter.ID))
}

func (s *DerivativeTestSuite) TestMintRejectsUnderpayment() {
	template := s.enableTemplate()
	fundUser(s.T(), s.db, s.minter.ID, 1_000_000)

	_, err := s.derivative.Mint(s.minter.ID, &MintTemplateRequest{
		TemplateID:    template.ID,
		Quantity:      5,
		PaymentAmount: 999_999,
	})
	assert.ErrorIs(s.T(), err, ErrInsufficientPayment)
}

func (s *DerivativeTestSuite) TestMintRejectsOverflowingQuantity() {
	template := s.enableTemplate()
	fundUser(s.T(), s.db, s.minter.ID, 1)

	// A quantity whose total wraps past int64 must not slip under the
	// payment check.
	_, err := s.derivative.Mint(s.minter.ID, &MintTemplateRequest{
		TemplateID:    template.ID,
		Quantity:      math.MaxInt64/template.Price + 1,
		PaymentAmount: 1,
	})
	assert.ErrorIs(s.T(), err, ErrInsufficientPayment)

	assert.Equal(s.T(), int64(1), currencyBalance(s.T(), s.db, s.minter.ID))
	assert.Zero(s.T(), assetBalance(s.T(), s.db, s.minter.ID, template.ID))
}

func (s *DerivativeTestSuite) TestMintRequiresBoundPool() {
	// A fresh database without a binding rejects mints outright.
	db := newTestDB(s.T())
	cfg := newTestConfig()
	pool := NewRewardPoolService(db, nil)
	license := NewLicenseService(db, cfg, pool, nil)
	derivative := NewDerivativeService(db, cfg, license, pool, nil)

	owner := createTestUser(s.T(), db, models.UserTypeMember)
	minter := createTestUser(s.T(), db, models.UserTypeMember)
	template := createTestTemplate(s.T(), db, owner.ID, 200_000)
	fundUser(s.T(), db, minter.ID, 1_000_000)

	_, err := derivative.Mint(minter.ID, &MintTemplateRequest{
		TemplateID:    template.ID,
		Quantity:      1,
		PaymentAmount: 200_000,
	})
	assert.ErrorIs(s.T(), err, ErrPoolNotBound)
}

func (s *DerivativeTestSuite) TestMintDisabledTemplate() {
	template := s.enableTemplate()
	require.NoError(s.T(), s.db.Model(template).Update("enabled", false).Error)

	fundUser(s.T(), s.db, s.minter.ID, 1_000_000)
	_, err := s.derivative.Mint(s.minter.ID, &MintTemplateRequest{
		TemplateID:    template.ID,
		Quantity:      1,
		PaymentAmount: 200_000,
	})
	assert.ErrorIs(s.T(), err, ErrNotAvailable)
}

func (s *DerivativeTestSuite) TestMintUnknownTemplate() {
	fundUser(s.T(), s.db, s.minter.ID, 1_000_000)

	_, err := s.derivative.Mint(s.minter.ID, &MintTemplateRequest{
		TemplateID:    uuid.New(),
		Quantity:      1,
		PaymentAmount: 200_000,
	})
	assert.ErrorIs(s.T(), err, ErrNotAvailable)
}

func TestDerivativeSuite(t *testing.T) {
	suite.Run(t, new(DerivativeTestSuite))
}
