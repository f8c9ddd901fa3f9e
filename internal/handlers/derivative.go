// internal/handlers/derivative.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseloom/loom-backend/internal/services"
	"github.com/licenseloom/loom-backend/internal/utils"
)

type DerivativeHandler struct {
	derivativeService *services.DerivativeService
}

func NewDerivativeHandler(derivativeService *services.DerivativeService) *DerivativeHandler {
	return &DerivativeHandler{
		derivativeService: derivativeService,
	}
}

// POST /templates
func (h *DerivativeHandler) EnableTemplate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.EnableTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	template, err := h.derivativeService.Enable(userID, &req)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, template)
}

// POST /templates/mint
func (h *DerivativeHandler) MintTemplate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.MintTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	template, err := h.derivativeService.Mint(userID, &req)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, template)
}

// GET /templates
func (h *DerivativeHandler) GetTemplates(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	templates, total, err := h.derivativeService.ListTemplates(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(templates, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /templates/:id
func (h *DerivativeHandler) GetTemplate(c *gin.Context) {
	templateID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	template, err := h.derivativeService.GetTemplate(templateID)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, template)
}

// POST /templates/bind-pool
func (h *DerivativeHandler) BindPool(c *gin.Context) {
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

	if err := h.derivativeService.BindPool(userID, poolID); err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Reward pool bound to derivative registry",
	})
}
