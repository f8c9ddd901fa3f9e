// internal/services/rewardpool_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/database"
	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/models"
)

type RewardPoolTestSuite struct {
	suite.Suite
	db       *gorm.DB
	pool     *RewardPoolService
	template *models.DerivativeTemplate
	alice    *models.User
	bob      *models.User
}

func (s *RewardPoolTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.pool = NewRewardPoolService(s.db, nil)

	owner := createTestUser(s.T(), s.db, models.UserTypeCreator)
	s.template = createTestTemplate(s.T(), s.db, owner.ID, 100)

	s.alice = createTestUser(s.T(), s.db, models.UserTypeMember)
	s.bob = createTestUser(s.T(), s.db, models.UserTypeMember)

	lgr := ledger.New(s.db)
	require.NoError(s.T(), lgr.Mint(s.alice.ID, s.template.ID, 10))
	require.NoError(s.T(), lgr.Mint(s.bob.ID, s.template.ID, 10))
	approveOperator(s.T(), s.db, s.alice.ID, models.OperatorRewardPool)
	approveOperator(s.T(), s.db, s.bob.ID, models.OperatorRewardPool)
}

func (s *RewardPoolTestSuite) inflow(amount int64) {
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.pool.NotifyInflow(tx, amount)
	})
	require.NoError(s.T(), err)
}

func (s *RewardPoolTestSuite) stake(staker *models.User, amount int64) {
	_, err := s.pool.Stake(staker.ID, &StakeRequest{AssetID: s.template.ID, Amount: amount})
	require.NoError(s.T(), err)
}

// Mirrors the canonical distribution sequence: a lone staker of 1 unit takes
// the whole first inflow, a second staker of 2 units joins, and the next
// inflow splits 1:2.
func (s *RewardPoolTestSuite) TestProRataDistribution() {
	s.stake(s.alice, 1)
	s.inflow(1_000_000)

	s.stake(s.bob, 2)
	s.inflow(3_000_000)

	harvested, err := s.pool.Harvest(s.alice.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2_000_000), harvested)
	assert.Equal(s.T(), int64(2_000_000), currencyBalance(s.T(), s.db, s.alice.ID))

	pending, err := s.pool.PendingRewards(s.bob.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2_000_000), pending)

	// Harvesting again without new inflow pays nothing.
	harvested, err = s.pool.Harvest(s.alice.ID)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), harvested)
}

func (s *RewardPoolTestSuite) TestWithdrawAutoHarvests() {
	s.stake(s.alice, 1)
	s.stake(s.bob, 2)
	s.inflow(3_000_000)

	harvested, err := s.pool.Withdraw(s.bob.ID, &WithdrawRequest{
		AssetIDs:   []uuid.UUID{s.template.ID},
		Quantities: []int64{2},
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2_000_000), harvested)
	assert.Equal(s.T(), int64(2_000_000), currencyBalance(s.T(), s.db, s.bob.ID))
	assert.Equal(s.T(), int64(10), assetBalance(s.T(), s.db, s.bob.ID, s.template.ID))

	state, err := s.pool.State()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), state.TokensStaked)
}

func (s *RewardPoolTestSuite) TestZeroStakeInflowIsOwedToNobody() {
	s.inflow(500_000)

	s.stake(s.alice, 1)
	pending, err := s.pool.PendingRewards(s.alice.ID)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), pending)

	s.inflow(100_000)
	harvested, err := s.pool.Harvest(s.alice.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(100_000), harvested)

	// The pre-stake inflow stays in the pool balance.
	state, err := s.pool.State()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(500_000), state.Balance)
}

func (s *RewardPoolTestSuite) TestRemainderRollsIntoNextInflow() {
	s.stake(s.alice, 3)

	s.inflow(100)
	harvested, err := s.pool.Harvest(s.alice.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(99), harvested)

	s.inflow(100)
	harvested, err = s.pool.Harvest(s.alice.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(100), harvested)

	// 199 of 200 paid out; the last unit of dust waits for the next inflow.
	state, err := s.pool.State()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), state.Balance)
	assert.Equal(s.T(), int64(2), state.InflowEventCount)
}

func (s *RewardPoolTestSuite) TestRestakeSettlesBeforeDilution() {
	s.stake(s.alice, 1)
	s.inflow(1_000_000)

	// Adding stake must not let the new units claim the earlier inflow.
	s.stake(s.alice, 4)

	assert.Equal(s.T(), int64(1_000_000), currencyBalance(s.T(), s.db, s.alice.ID))

	pending, err := s.pool.PendingRewards(s.alice.ID)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), pending)
}

func (s *RewardPoolTestSuite) TestStakeUnknownTemplate() {
	_, err := s.pool.Stake(s.alice.ID, &StakeRequest{AssetID: uuid.New(), Amount: 1})
	assert.ErrorIs(s.T(), err, ErrNotAvailable)
}

func (s *RewardPoolTestSuite) TestStakeWithoutApproval() {
	carol := createTestUser(s.T(), s.db, models.UserTypeMember)
	require.NoError(s.T(), ledger.New(s.db).Mint(carol.ID, s.template.ID, 5))

	_, err := s.pool.Stake(carol.ID, &StakeRequest{AssetID: s.template.ID, Amount: 1})
	assert.ErrorIs(s.T(), err, ErrOperatorNotApproved)
}

func (s *RewardPoolTestSuite) TestStakeBeyondBalance() {
	_, err := s.pool.Stake(s.alice.ID, &StakeRequest{AssetID: s.template.ID, Amount: 11})
	assert.ErrorIs(s.T(), err, ErrInsufficientBalance)
}

func (s *RewardPoolTestSuite) TestWithdrawLengthMismatch() {
	s.stake(s.alice, 2)

	_, err := s.pool.Withdraw(s.alice.ID, &WithdrawRequest{
		AssetIDs:   []uuid.UUID{s.template.ID},
		Quantities: []int64{1, 1},
	})
	assert.ErrorIs(s.T(), err, ErrLengthMismatch)
}

func (s *RewardPoolTestSuite) TestWithdrawBeyondStake() {
	s.stake(s.alice, 2)

	_, err := s.pool.Withdraw(s.alice.ID, &WithdrawRequest{
		AssetIDs:   []uuid.UUID{s.template.ID},
		Quantities: []int64{3},
	})
	assert.ErrorIs(s.T(), err, ErrInsufficientStake)

	// The failed withdraw must not have moved anything.
	assert.Equal(s.T(), int64(8), assetBalance(s.T(), s.db, s.alice.ID, s.template.ID))
}

func TestRewardPoolSuite(t *testing.T) {
	suite.Run(t, new(RewardPoolTestSuite))
}
