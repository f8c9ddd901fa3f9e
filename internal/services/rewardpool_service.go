// internal/services/rewardpool_service.go
package services

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/licenseloom/loom-backend/internal/database"
	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/models"
)

// RewardPrecision scales AccRewardsPerShare so that integer division keeps
// sub-unit resolution. All reward math is integer; remainders stay in the
// pool balance and roll into the next distribution.
const RewardPrecision = 1_000_000_000_000

var rewardPrecisionBig = big.NewInt(RewardPrecision)

// opMu is the single serializer: every state-mutating top-level operation in
// this package runs under it, so a reader can never observe TokensStaked
// updated without the matching RewardDebt.
var opMu sync.Mutex

type RewardPoolService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

func NewRewardPoolService(db *gorm.DB, notificationService *NotificationService) *RewardPoolService {
	return &RewardPoolService{
		db:                  db,
		notificationService: notificationService,
	}
}

type StakeRequest struct {
	AssetID uuid.UUID `json:"asset_id" validate:"required"`
	Amount  int64     `json:"amount" validate:"required,min=1"`
}

type WithdrawRequest struct {
	AssetIDs   []uuid.UUID `json:"asset_ids" validate:"required,min=1"`
	Quantities []int64     `json:"quantities" validate:"required,min=1"`
}

// State returns the pool singleton, creating it on first use.
func (s *RewardPoolService) State() (*models.PoolState, error) {
	return poolState(s.db)
}

func poolState(tx *gorm.DB) (*models.PoolState, error) {
	var state models.PoolState
	err := tx.First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.PoolState{
			AccRewardsPerShare: models.NewBigInt(0),
		}
		if err := tx.Create(&state).Error; err != nil {
			return nil, fmt.Errorf("failed to create pool state: %w", err)
		}
		return &state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pool state: %w", err)
	}
	return &state, nil
}

// NotifyInflow credits a fee to the pool balance and distributes everything
// not yet accounted for across the current stake. Runs inside the caller's
// transaction; callers hold opMu. With nobody staked the amount only raises
// the distributed baseline: it is owed to no one, and whoever is staked at
// the next inflow does not pick it up retroactively.
func (s *RewardPoolService) NotifyInflow(tx *gorm.DB, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	state, err := poolState(tx)
	if err != nil {
		return err
	}

	state.Balance += amount
	state.InflowEventCount++

	if state.TokensStaked == 0 {
		state.LastDistributedBalance = state.Balance
		return tx.Save(state).Error
	}

	undistributed := state.Balance - state.LastDistributedBalance
	if undistributed > 0 {
		delta := big.NewInt(undistributed)
		delta.Mul(delta, rewardPrecisionBig)
		delta.Quo(delta, big.NewInt(state.TokensStaked))

		state.AccRewardsPerShare.Add(&state.AccRewardsPerShare.Int, delta)

		distributed := new(big.Int).Mul(delta, big.NewInt(state.TokensStaked))
		distributed.Quo(distributed, rewardPrecisionBig)
		state.LastDistributedBalance += distributed.Int64()

		logrus.WithFields(logrus.Fields{
			"amount":        amount,
			"tokens_staked": state.TokensStaked,
			"distributed":   distributed.Int64(),
			"inflow_events": state.InflowEventCount,
		}).Info("Pool inflow distributed")
	}

	return tx.Save(state).Error
}

// Stake transfers derivative units into the pool. An existing position is
// auto-harvested before its amount changes so the new units cannot dilute
// rewards already accrued.
func (s *RewardPoolService) Stake(stakerID uuid.UUID, req *StakeRequest) (*models.StakePosition, error) {
	opMu.Lock()
	defer opMu.Unlock()

	var position *models.StakePosition
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var template models.DerivativeTemplate
		if err := tx.First(&template, "id = ?", req.AssetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAvailable
			}
			return fmt.Errorf("database error: %w", err)
		}

		state, err := poolState(tx)
		if err != nil {
			return err
		}

		lgr := ledger.New(tx)
		if err := lgr.TransferFrom(models.OperatorRewardPool, stakerID, state.ID, req.AssetID, req.Amount); err != nil {
			return err
		}

		pos, err := stakePosition(tx, stakerID, req.AssetID)
		if err != nil {
			return err
		}

		if pos.Amount > 0 {
			if err := s.settlePosition(tx, state, pos, stakerID); err != nil {
				return err
			}
		}

		pos.Amount += req.Amount
		state.TokensStaked += req.Amount
		pos.RewardDebt = rewardDebt(pos.Amount, &state.AccRewardsPerShare.Int)

		if err := tx.Save(pos).Error; err != nil {
			return fmt.Errorf("failed to save stake position: %w", err)
		}
		if err := tx.Save(state).Error; err != nil {
			return fmt.Errorf("failed to save pool state: %w", err)
		}

		position = pos
		return nil
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// Harvest pays out every pending reward the caller has accrued across all
// staked assets. Harvesting zero is legal and pays zero.
func (s *RewardPoolService) Harvest(stakerID uuid.UUID) (int64, error) {
	opMu.Lock()
	defer opMu.Unlock()

	var total int64
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		state, err := poolState(tx)
		if err != nil {
			return err
		}

		var positions []models.StakePosition
		if err := tx.Where("staker_id = ?", stakerID).Find(&positions).Error; err != nil {
			return fmt.Errorf("failed to load stake positions: %w", err)
		}

		for i := range positions {
			pos := &positions[i]
			pending := pendingReward(pos.Amount, &state.AccRewardsPerShare.Int, &pos.RewardDebt.Int)
			if pending > 0 {
				total += pending
			}
			pos.RewardDebt = rewardDebt(pos.Amount, &state.AccRewardsPerShare.Int)
			if err := tx.Save(pos).Error; err != nil {
				return fmt.Errorf("failed to save stake position: %w", err)
			}
		}

		if total == 0 {
			return nil
		}

		paid, err := s.payOut(tx, state, stakerID, total)
		if err != nil {
			return err
		}
		total = paid
		return tx.Save(state).Error
	})
	if err != nil {
		return 0, err
	}

	if total > 0 {
		go s.notifyHarvest(stakerID, total)
	}
	return total, nil
}

// Withdraw returns staked units to the caller, auto-harvesting each touched
// position first.
func (s *RewardPoolService) Withdraw(stakerID uuid.UUID, req *WithdrawRequest) (int64, error) {
	if len(req.AssetIDs) != len(req.Quantities) {
		return 0, ErrLengthMismatch
	}

	opMu.Lock()
	defer opMu.Unlock()

	var harvested int64
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		state, err := poolState(tx)
		if err != nil {
			return err
		}

		lgr := ledger.New(tx)
		for i, assetID := range req.AssetIDs {
			quantity := req.Quantities[i]
			if quantity <= 0 {
				return ErrInvalidAmount
			}

			pos, err := stakePosition(tx, stakerID, assetID)
			if err != nil {
				return err
			}
			if quantity > pos.Amount {
				return ErrInsufficientStake
			}

			pending := pendingReward(pos.Amount, &state.AccRewardsPerShare.Int, &pos.RewardDebt.Int)
			if pending > 0 {
				paid, err := s.payOut(tx, state, stakerID, pending)
				if err != nil {
					return err
				}
				harvested += paid
			}

			pos.Amount -= quantity
			state.TokensStaked -= quantity
			pos.RewardDebt = rewardDebt(pos.Amount, &state.AccRewardsPerShare.Int)

			if err := tx.Save(pos).Error; err != nil {
				return fmt.Errorf("failed to save stake position: %w", err)
			}
			if err := lgr.Transfer(state.ID, stakerID, assetID, quantity); err != nil {
				return err
			}
		}

		return tx.Save(state).Error
	})
	if err != nil {
		return 0, err
	}

	if harvested > 0 {
		go s.notifyHarvest(stakerID, harvested)
	}
	return harvested, nil
}

func (s *RewardPoolService) GetPositions(stakerID uuid.UUID) ([]models.StakePosition, error) {
	var positions []models.StakePosition
	if err := s.db.Where("staker_id = ?", stakerID).Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to load stake positions: %w", err)
	}
	return positions, nil
}

// PendingRewards is a read-only estimate of what Harvest would pay now.
func (s *RewardPoolService) PendingRewards(stakerID uuid.UUID) (int64, error) {
	state, err := s.State()
	if err != nil {
		return 0, err
	}

	positions, err := s.GetPositions(stakerID)
	if err != nil {
		return 0, err
	}

	var total int64
	for i := range positions {
		total += pendingReward(positions[i].Amount, &state.AccRewardsPerShare.Int, &positions[i].RewardDebt.Int)
	}
	return total, nil
}

// settlePosition pays out a single position's pending reward without
// touching its amount; the caller resets the debt afterwards.
func (s *RewardPoolService) settlePosition(tx *gorm.DB, state *models.PoolState, pos *models.StakePosition, stakerID uuid.UUID) error {
	pending := pendingReward(pos.Amount, &state.AccRewardsPerShare.Int, &pos.RewardDebt.Int)
	if pending <= 0 {
		return nil
	}
	_, err := s.payOut(tx, state, stakerID, pending)
	return err
}

// payOut moves currency out of the pool and returns the amount actually
// paid. Balance and the distributed baseline drop together. A pending value
// can exceed the baseline by integer-division dust, so the payment is
// clamped; the dust stays in the balance and rolls into the next inflow.
func (s *RewardPoolService) payOut(tx *gorm.DB, state *models.PoolState, stakerID uuid.UUID, amount int64) (int64, error) {
	if amount > state.LastDistributedBalance {
		amount = state.LastDistributedBalance
	}
	if amount <= 0 {
		return 0, nil
	}

	state.Balance -= amount
	state.LastDistributedBalance -= amount

	lgr := ledger.New(tx)
	if err := lgr.CreditCurrency(stakerID, amount); err != nil {
		return 0, err
	}

	now := time.Now()
	txRecord := &models.Transaction{
		TransactionType: models.TransactionTypeHarvest,
		PayerID:         state.ID,
		PayeeID:         &stakerID,
		Amount:          amount,
		Status:          models.TransactionStatusCompleted,
		ProcessedAt:     &now,
	}
	if err := tx.Create(txRecord).Error; err != nil {
		return 0, fmt.Errorf("failed to record harvest transaction: %w", err)
	}
	return amount, nil
}

func (s *RewardPoolService) notifyHarvest(stakerID uuid.UUID, amount int64) {
	if s.notificationService != nil {
		s.notificationService.SendHarvestNotification(stakerID, amount)
	}
}

func stakePosition(tx *gorm.DB, stakerID, assetID uuid.UUID) (*models.StakePosition, error) {
	var pos models.StakePosition
	err := tx.Where("staker_id = ? AND asset_id = ?", stakerID, assetID).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pos = models.StakePosition{
			StakerID:   stakerID,
			AssetID:    assetID,
			RewardDebt: models.NewBigInt(0),
		}
		if err := tx.Create(&pos).Error; err != nil {
			return nil, fmt.Errorf("failed to create stake position: %w", err)
		}
		return &pos, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stake position: %w", err)
	}
	return &pos, nil
}

// pendingReward computes (amount x acc - debt) / precision without int64
// overflow; the result always fits because total payouts never exceed total
// integer inflow.
func pendingReward(amount int64, acc, debt *big.Int) int64 {
	p := new(big.Int).Mul(big.NewInt(amount), acc)
	p.Sub(p, debt)
	p.Quo(p, rewardPrecisionBig)
	if p.Sign() < 0 {
		return 0
	}
	return p.Int64()
}

func rewardDebt(amount int64, acc *big.Int) models.BigInt {
	var debt models.BigInt
	debt.Mul(big.NewInt(amount), acc)
	return debt
}
