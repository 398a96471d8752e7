package handlers

import (
	"errors"

	"github.com/automax/routing/internal/database"
	"github.com/automax/routing/internal/geocoder"
	"github.com/automax/routing/internal/repository"
	"github.com/automax/routing/internal/services"
	"github.com/automax/routing/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// serviceError maps a service failure to its HTTP answer.
func serviceError(c *fiber.Ctx, err error) error {
	if claimErr, ok := services.AsRecordClaimError(err); ok {
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, claimErr.Message)
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrNotAuthorized):
		return utils.ErrorResponse(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrReassignmentNotAllowed):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrRecordCardClosed),
		errors.Is(err, repository.ErrGroupHasChildren),
		errors.Is(err, repository.ErrInvalidMove):
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, database.ErrLockNotAcquired):
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, geocoder.ErrAddressNotFound):
		return utils.ErrorResponse(c, fiber.StatusBadGateway, err.Error())
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, err.Error())
	}
}
