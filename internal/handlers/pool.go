// internal/handlers/pool.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseloom/loom-backend/internal/services"
	"github.com/licenseloom/loom-backend/internal/utils"
)

type PoolHandler struct {
	poolService *services.RewardPoolService
}

func NewPoolHandler(poolService *services.RewardPoolService) *PoolHandler {
	return &PoolHandler{
		poolService: poolService,
	}
}

// GET /pool
func (h *PoolHandler) GetState(c *gin.Context) {
	state, err := h.poolService.State()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, state)
}

// POST /pool/stake
func (h *PoolHandler) Stake(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	position, err := h.poolService.Stake(userID, &req)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, position)
}

// POST /pool/harvest
func (h *PoolHandler) Harvest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	amount, err := h.poolService.Harvest(userID)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"harvested": amount,
	})
}

// POST /pool/withdraw
func (h *PoolHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	harvested, err := h.poolService.Withdraw(userID, &req)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"harvested": harvested,
	})
}

// GET /pool/positions
func (h *PoolHandler) GetPositions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	positions, err := h.poolService.GetPositions(userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"positions": positions,
	})
}

// GET /pool/pending
func (h *PoolHandler) GetPendingRewards(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	pending, err := h.poolService.PendingRewards(userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"pending": pending,
	})
}
