// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseloom/loom-backend/internal/services"
	"github.com/licenseloom/loom-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

type disableTemplateRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=1000"`
}

// PUT /admin/templates/:id/disable
func (h *AdminHandler) DisableTemplate(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	templateID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req disableTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	template, err := h.adminService.DisableTemplate(adminID, templateID, req.Reason)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, template)
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetPlatformStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /admin/transactions
func (h *AdminHandler) GetTransactions(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	transactions, total, err := h.adminService.ListTransactions(params.Page, params.Limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}
