// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/licenseloom/loom-backend/internal/services"
	"github.com/licenseloom/loom-backend/internal/utils"
)

// serviceErrorResponse maps service failures onto HTTP statuses. Anything
// outside the known taxonomy is treated as an internal error.
func serviceErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		utils.ForbiddenResponse(c, err.Error())
	case errors.Is(err, services.ErrAssetNotFound):
		utils.NotFoundResponse(c, "asset")
	case errors.Is(err, services.ErrNotAvailable),
		errors.Is(err, services.ErrListingUnavailable),
		errors.Is(err, services.ErrAlreadyRenting),
		errors.Is(err, services.ErrAlreadyBound),
		errors.Is(err, services.ErrNameTaken),
		errors.Is(err, services.ErrMetadataTaken):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrInsufficientPayment),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrInsufficientStake),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrLengthMismatch),
		errors.Is(err, services.ErrNotRenting),
		errors.Is(err, services.ErrNameMismatch),
		errors.Is(err, services.ErrPoolNotBound),
		errors.Is(err, services.ErrOperatorNotApproved):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

// currentUserID reads the authenticated caller out of the gin context. A
// missing or malformed ID writes the error response and returns false.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}

	return userID, true
}

// pathUUID parses a :param path segment as a UUID.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// parseRequestUUID parses a UUID carried as a string in a request body.
func parseRequestUUID(c *gin.Context, value, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
