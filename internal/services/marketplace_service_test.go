// internal/services/marketplace_service_test.go
package services

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/models"
)

type MarketplaceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	pool     *RewardPoolService
	market   *MarketplaceService
	template *models.DerivativeTemplate
	seller   *models.User
	buyer    *models.User
}

func (s *MarketplaceTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.pool = NewRewardPoolService(s.db, nil)
	s.market = NewMarketplaceService(s.db, newTestConfig(), s.pool, nil)

	owner := createTestUser(s.T(), s.db, models.UserTypeCreator)
	s.template = createTestTemplate(s.T(), s.db, owner.ID, 100_000)

	s.seller = createTestUser(s.T(), s.db, models.UserTypeMember)
	s.buyer = createTestUser(s.T(), s.db, models.UserTypeMember)

	require.NoError(s.T(), ledger.New(s.db).Mint(s.seller.ID, s.template.ID, 10))
	approveOperator(s.T(), s.db, s.seller.ID, models.OperatorMarketplace)
}

func (s *MarketplaceTestSuite) list(quantity, unitPrice int64) *models.Listing {
	listing, err := s.market.List(s.seller.ID, &ListForSaleRequest{
		AssetID:   s.template.ID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
	require.NoError(s.T(), err)
	return listing
}

func (s *MarketplaceTestSuite) TestBuySettlesListing() {
	listing := s.list(4, 250_000)
	fundUser(s.T(), s.db, s.buyer.ID, 1_000_000)

	sold, err := s.market.Buy(s.buyer.ID, &BuyRequest{
		ListingID:     listing.ID,
		PaymentAmount: 1_000_000,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.ListingStatusSold, sold.Status)
	require.NotNil(s.T(), sold.BuyerID)
	assert.Equal(s.T(), s.buyer.ID, *sold.BuyerID)

	assert.Equal(s.T(), int64(4), assetBalance(s.T(), s.db, s.buyer.ID, s.template.ID))
	assert.Equal(s.T(), int64(6), assetBalance(s.T(), s.db, s.seller.ID, s.template.ID))

	// 2.5% of the payment goes to the pool, the rest to the seller.
	assert.Equal(s.T(), int64(975_000), currencyBalance(s.T(), s.db, s.seller.ID))
	assert.Zero(s.T(), currencyBalance(s.T(), s.db, s.buyer.ID))

	state, err := s.pool.State()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(25_000), state.Balance)
}

func (s *MarketplaceTestSuite) TestSoldListingIsTerminal() {
	listing := s.list(1, 100_000)
	fundUser(s.T(), s.db, s.buyer.ID, 1_000_000)

	_, err := s.market.Buy(s.buyer.ID, &BuyRequest{ListingID: listing.ID, PaymentAmount: 100_000})
	require.NoError(s.T(), err)

	_, err = s.market.Buy(s.buyer.ID, &BuyRequest{ListingID: listing.ID, PaymentAmount: 100_000})
	assert.ErrorIs(s.T(), err, ErrListingUnavailable)
}

func (s *MarketplaceTestSuite) TestListBeyondBalance() {
	_, err := s.market.List(s.seller.ID, &ListForSaleRequest{
		AssetID:   s.template.ID,
		Quantity:  11,
		UnitPrice: 100_000,
	})
	assert.ErrorIs(s.T(), err, ErrInsufficientBalance)
}

func (s *MarketplaceTestSuite) TestBuyRejectsUnderpayment() {
	listing := s.list(4, 250_000)
	fundUser(s.T(), s.db, s.buyer.ID, 1_000_000)

	_, err := s.market.Buy(s.buyer.ID, &BuyRequest{
		ListingID:     listing.ID,
		PaymentAmount: 999_999,
	})
	assert.ErrorIs(s.T(), err, ErrInsufficientPayment)
	assert.Equal(s.T(), int64(1_000_000), currencyBalance(s.T(), s.db, s.buyer.ID))
}

func (s *MarketplaceTestSuite) TestBuyRejectsOverflowingTotal() {
	// Two units priced so their total wraps past int64 must not settle
	// for a token payment.
	listing := s.list(2, math.MaxInt64/2+1)
	fundUser(s.T(), s.db, s.buyer.ID, 1_000_000)

	_, err := s.market.Buy(s.buyer.ID, &BuyRequest{
		ListingID:     listing.ID,
		PaymentAmount: 1,
	})
	assert.ErrorIs(s.T(), err, ErrInsufficientPayment)

	assert.Equal(s.T(), int64(1_000_000), currencyBalance(s.T(), s.db, s.buyer.ID))
	assert.Zero(s.T(), assetBalance(s.T(), s.db, s.buyer.ID, s.template.ID))

	got, err := s.market.GetListing(listing.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.ListingStatusActive, got.Status)
}

func (s *MarketplaceTestSuite) TestUnknownListing() {
	fundUser(s.T(), s.db, s.buyer.ID, 1_000_000)

	_, err := s.market.Buy(s.buyer.ID, &BuyRequest{ListingID: uuid.New(), PaymentAmount: 100_000})
	assert.ErrorIs(s.T(), err, ErrListingUnavailable)
}

// Listings do not escrow units, so a seller who moves them away after
// listing fails the sale at settlement and the buyer keeps their money.
func (s *MarketplaceTestSuite) TestUnescrowedSellerRace() {
	listing := s.list(10, 100_000)

	// Seller drains the listed units before anyone buys.
	stranger := createTestUser(s.T(), s.db, models.UserTypeMember)
	require.NoError(s.T(), ledger.New(s.db).Transfer(s.seller.ID, stranger.ID, s.template.ID, 10))

	fundUser(s.T(), s.db, s.buyer.ID, 1_000_000)
	_, err := s.market.Buy(s.buyer.ID, &BuyRequest{ListingID: listing.ID, PaymentAmount: 1_000_000})
	assert.ErrorIs(s.T(), err, ErrInsufficientBalance)

	// The whole settlement rolled back.
	assert.Equal(s.T(), int64(1_000_000), currencyBalance(s.T(), s.db, s.buyer.ID))
	assert.Zero(s.T(), assetBalance(s.T(), s.db, s.buyer.ID, s.template.ID))

	got, err := s.market.GetListing(listing.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.ListingStatusActive, got.Status)
}

func (s *MarketplaceTestSuite) TestBuyWithoutSellerApproval() {
	require.NoError(s.T(), ledger.New(s.db).SetApprovalForAll(s.seller.ID, models.OperatorMarketplace, false))
	listing := s.list(1, 100_000)

	fundUser(s.T(), s.db, s.buyer.ID, 1_000_000)
	_, err := s.market.Buy(s.buyer.ID, &BuyRequest{ListingID: listing.ID, PaymentAmount: 100_000})
	assert.ErrorIs(s.T(), err, ErrOperatorNotApproved)
}

func TestMarketplaceSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceTestSuite))
}
