// internal/handlers/license.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseloom/loom-backend/internal/services"
	"github.com/licenseloom/loom-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

type bindPoolRequest struct {
	PoolID string `json:"pool_id" validate:"required,uuid"`
}

// POST /assets
func (h *LicenseHandler) CreateAsset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	asset, err := h.licenseService.Create(userID, &req)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, asset)
}

// POST /assets/rent
func (h *LicenseHandler) Rent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.RentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	record, err := h.licenseService.Rent(userID, &req)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, record)
}

// GET /assets
func (h *LicenseHandler) GetAssets(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	assets, total, err := h.licenseService.ListAssets(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(assets, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /assets/:id
func (h *LicenseHandler) GetAsset(c *gin.Context) {
	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	asset, err := h.licenseService.GetAsset(assetID)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, asset)
}

// GET /assets/:id/rental-status
func (h *LicenseHandler) GetRentalStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	active, err := h.licenseService.IsActivelyRenting(assetID, userID)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"asset_id": assetID,
		"active":   active,
	})
}

// POST /assets/:id/reconcile
func (h *LicenseHandler) ReconcileExpiry(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	assetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.licenseService.ReconcileExpiry(assetID, userID); err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Rental state reconciled",
	})
}

// POST /assets/bind-pool
func (h *LicenseHandler) BindPool(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req bindPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	poolID, ok := parseRequestUUID(c, req.PoolID, "pool_id")
	if !ok {
		return
	}

	if err := h.licenseService.BindPool(userID, poolID); err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Reward pool bound to license registry",
	})
}
