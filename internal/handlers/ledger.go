// internal/handlers/ledger.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseloom/loom-backend/internal/ledger"
	"github.com/licenseloom/loom-backend/internal/models"
	"github.com/licenseloom/loom-backend/internal/utils"
)

// LedgerHandler exposes asset balances and operator approvals. Transfers
// themselves only happen inside rental, mint and marketplace flows.
type LedgerHandler struct {
	ledger *ledger.Service
}

func NewLedgerHandler(ledgerService *ledger.Service) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledgerService,
	}
}

type approvalRequest struct {
	Operator string `json:"operator" validate:"required,oneof=marketplace rewardpool"`
	Approved bool   `json:"approved"`
}

// GET /ledger/balances/:assetId
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	assetID, ok := pathUUID(c, "assetId")
	if !ok {
		return
	}

	balance, err := h.ledger.BalanceOf(userID, assetID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"asset_id": assetID,
		"balance":  balance,
	})
}

// POST /ledger/approvals
func (h *LedgerHandler) SetApproval(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.ledger.SetApprovalForAll(userID, req.Operator, req.Approved); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"operator": req.Operator,
		"approved": req.Approved,
	})
}

// GET /ledger/approvals/:operator
func (h *LedgerHandler) GetApproval(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	operator := c.Param("operator")
	if operator != models.OperatorMarketplace && operator != models.OperatorRewardPool {
		utils.BadRequestResponse(c, "Unknown operator", nil)
		return
	}

	approved, err := h.ledger.IsApprovedForAll(userID, operator)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"operator": operator,
		"approved": approved,
	})
}
